package game

import "math"

// Vec3 is a point or direction in world space. Y is up.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) LengthSq() float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

func (v Vec3) Length() float64 {
	return math.Sqrt(v.LengthSq())
}

// Normalized returns the unit vector, or zero for a zero vector
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Distance returns the distance between two points
func Distance(a, b Vec3) float64 {
	return a.Sub(b).Length()
}

// DistanceSq avoids the sqrt for range comparisons
func DistanceSq(a, b Vec3) float64 {
	return a.Sub(b).LengthSq()
}

// Euler is a yaw/pitch/roll rotation in radians
type Euler struct {
	Yaw, Pitch, Roll float64
}

// Quat is a rotation quaternion. Ragdoll poses replicate as
// quaternions so receivers never re-derive them from Euler angles.
type Quat struct {
	X, Y, Z, W float64
}

// QuatIdentity is the no-rotation quaternion
func QuatIdentity() Quat {
	return Quat{W: 1}
}

// QuatFromAxisAngle builds a rotation of angle radians around axis
func QuatFromAxisAngle(axis Vec3, angle float64) Quat {
	a := axis.Normalized()
	s := math.Sin(angle / 2)
	return Quat{
		X: a.X * s,
		Y: a.Y * s,
		Z: a.Z * s,
		W: math.Cos(angle / 2),
	}
}

// QuatFromYaw builds a rotation around the up axis
func QuatFromYaw(yaw float64) Quat {
	return QuatFromAxisAngle(Vec3{Y: 1}, yaw)
}

func (q Quat) Mul(o Quat) Quat {
	return Quat{
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

func (q Quat) Length() float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// Normalized returns the unit quaternion, or identity when degenerate
func (q Quat) Normalized() Quat {
	l := q.Length()
	if l == 0 {
		return QuatIdentity()
	}
	return Quat{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

// Integrate advances the orientation by an angular velocity over dt
// and renormalizes. Standard first-order quaternion integration.
func (q Quat) Integrate(angVel Vec3, dt float64) Quat {
	w := Quat{X: angVel.X, Y: angVel.Y, Z: angVel.Z}
	dq := w.Mul(q)
	half := 0.5 * dt
	return Quat{
		X: q.X + dq.X*half,
		Y: q.Y + dq.Y*half,
		Z: q.Z + dq.Z*half,
		W: q.W + dq.W*half,
	}.Normalized()
}
