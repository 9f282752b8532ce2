package game

import (
	"gridfire/internal/protocol"
)

// Ragdoll is the replicated pose of a dead player's body. It exists
// only between death and RagdollEnd, and only its owner publishes it.
type Ragdoll struct {
	ID     string // the dead player's session id
	Pos    Vec3
	Orient Quat
}

// ApplyState maps a pose sample straight onto the entity. Receivers
// run no physics and no smoothing.
func (r *Ragdoll) ApplyState(st protocol.RagdollState) {
	r.Pos = Vec3{X: st.X, Y: st.Y, Z: st.Z}
	r.Orient = Quat{X: st.QX, Y: st.QY, Z: st.QZ, W: st.QW}
}

// ToState converts to the replicated wire form
func (r *Ragdoll) ToState() protocol.RagdollState {
	return protocol.RagdollState{
		ID: r.ID,
		X:  r.Pos.X,
		Y:  r.Pos.Y,
		Z:  r.Pos.Z,
		QX: r.Orient.X,
		QY: r.Orient.Y,
		QZ: r.Orient.Z,
		QW: r.Orient.W,
	}
}

// PoseSource is the boundary to the physics collaborator. The owning
// session polls it each tick for the body's world pose; everything
// behind it (rigid bodies, joints, solver) stays outside the protocol.
type PoseSource interface {
	// Step advances the simulation and returns the current pose
	Step(dt float64) (Vec3, Quat)
	// Settled reports that the body has come to rest
	Settled() bool
}

const (
	ragdollGravity    = 9.8
	ragdollRestHeight = 0.25 // body half-thickness lying on the ground
	ragdollStartLift  = 1.0  // center of mass height at death
	ragdollKnockback  = 3.5  // meters/s from the killing hit
	ragdollPopUp      = 2.0  // small upward component of the impulse
	ragdollTumble     = 6.0  // radians/s initial spin
	ragdollBounce     = 0.25 // vertical restitution on ground contact
	ragdollGroundDrag = 0.6  // horizontal velocity kept per contact
	ragdollSpinDecay  = 2.0  // angular damping per second
	ragdollRestSpeed  = 0.15 // below this the body counts as resting
)

// SettleBody is the built-in PoseSource used headless: a single rigid
// body that falls, tumbles and settles on the ground plane. Real
// clients swap in their physics engine behind the same interface.
type SettleBody struct {
	pos     Vec3
	vel     Vec3
	orient  Quat
	angVel  Vec3
	settled bool
}

// NewSettleBody starts a body at the dead player's pose, kicked along
// the killing hit's direction.
func NewSettleBody(pos Vec3, yaw float64, impulse Vec3) *SettleBody {
	dir := Vec3{X: impulse.X, Z: impulse.Z}.Normalized()
	b := &SettleBody{
		pos:    Vec3{X: pos.X, Y: pos.Y + ragdollStartLift, Z: pos.Z},
		vel:    dir.Scale(ragdollKnockback).Add(Vec3{Y: ragdollPopUp}),
		orient: QuatFromYaw(yaw),
	}
	// Tumble around the axis perpendicular to the knock direction
	axis := Vec3{Y: 1}.Cross(dir)
	if axis.LengthSq() == 0 {
		axis = Vec3{X: 1}
	}
	b.angVel = axis.Normalized().Scale(ragdollTumble)
	return b
}

func (b *SettleBody) Step(dt float64) (Vec3, Quat) {
	if b.settled {
		return b.pos, b.orient
	}

	b.vel.Y -= ragdollGravity * dt
	b.pos = b.pos.Add(b.vel.Scale(dt))

	if b.pos.Y <= ragdollRestHeight {
		b.pos.Y = ragdollRestHeight
		if b.vel.Y < 0 {
			b.vel.Y = -b.vel.Y * ragdollBounce
		}
		b.vel.X *= ragdollGroundDrag
		b.vel.Z *= ragdollGroundDrag
	}

	b.orient = b.orient.Integrate(b.angVel, dt)
	decay := 1 - ragdollSpinDecay*dt
	if decay < 0 {
		decay = 0
	}
	b.angVel = b.angVel.Scale(decay)

	onGround := b.pos.Y <= ragdollRestHeight+1e-6
	if onGround && b.vel.Length() < ragdollRestSpeed && b.angVel.Length() < ragdollRestSpeed {
		b.vel = Vec3{}
		b.angVel = Vec3{}
		b.settled = true
	}
	return b.pos, b.orient
}

func (b *SettleBody) Settled() bool {
	return b.settled
}
