package game

import "math"

const (
	ProjectileSpeed    = 45.0 // meters/s
	ProjectileLifetime = 1.2  // seconds
	ProjectileRadius   = 0.08
	ProjectileDamage   = 20
	MuzzleForward      = 0.6 // spawn distance ahead of the character
	MuzzleHeight       = 1.4
)

// Projectile is a short-lived tracer. Only the origin and direction
// ever replicate (the Shoot message); every session flies its own copy.
// Remote copies are visual only and never arbitrate hits.
type Projectile struct {
	ID      string
	OwnerID string
	Pos     Vec3
	Prev    Vec3 // position one tick ago, sweep segment start
	Vel     Vec3
	Life    float64
	Damage  int
	Remote  bool
	Alive   bool
}

// NewProjectile seeds a projectile from an origin and direction
func NewProjectile(ownerID string, origin, dir Vec3, remote bool) *Projectile {
	return &Projectile{
		ID:      GenerateID(3),
		OwnerID: ownerID,
		Pos:     origin,
		Prev:    origin,
		Vel:     dir.Normalized().Scale(ProjectileSpeed),
		Life:    ProjectileLifetime,
		Damage:  ProjectileDamage,
		Remote:  remote,
		Alive:   true,
	}
}

// MuzzlePoint returns where a character's shots leave from
func MuzzlePoint(pos Vec3, yaw float64) Vec3 {
	return Vec3{
		X: pos.X + math.Sin(yaw)*MuzzleForward,
		Y: pos.Y + MuzzleHeight,
		Z: pos.Z + math.Cos(yaw)*MuzzleForward,
	}
}

// Update flies the projectile one tick, keeping the sweep segment
func (pr *Projectile) Update(dt float64) {
	if !pr.Alive {
		return
	}
	pr.Prev = pr.Pos
	pr.Pos = pr.Pos.Add(pr.Vel.Scale(dt))
	pr.Life -= dt
	if pr.Life <= 0 {
		pr.Alive = false
	}
	if math.Abs(pr.Pos.X) > ArenaHalf*1.5 || math.Abs(pr.Pos.Z) > ArenaHalf*1.5 {
		pr.Alive = false
	}
}

// SegmentHitsSphere checks whether the segment a-b passes within r of
// center, so fast projectiles cannot tunnel through a target between
// ticks.
func SegmentHitsSphere(a, b, center Vec3, r float64) bool {
	d := b.Sub(a)
	f := a.Sub(center)
	A := d.Dot(d)
	if A == 0 {
		return f.LengthSq() <= r*r
	}
	B := 2 * f.Dot(d)
	C := f.Dot(f) - r*r
	disc := B*B - 4*A*C
	if disc < 0 {
		return false
	}
	disc = math.Sqrt(disc)
	t1 := (-B - disc) / (2 * A)
	t2 := (-B + disc) / (2 * A)
	return (t1 >= 0 && t1 <= 1) || (t2 >= 0 && t2 <= 1) || (t1 <= 0 && t2 >= 1)
}

// HitsBody sweeps this tick's flight against a body at pos. Bodies are
// spheres centered at chest height, radius r.
func (pr *Projectile) HitsBody(pos Vec3, r float64) bool {
	center := Vec3{X: pos.X, Y: pos.Y + MuzzleHeight, Z: pos.Z}
	return SegmentHitsSphere(pr.Prev, pr.Pos, center, r+ProjectileRadius)
}
