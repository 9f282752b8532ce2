package session

import (
	"log"

	"gridfire/internal/game"
	"gridfire/internal/protocol"
)

// ragdollTimeout ends a sequence that outlives its respawn, so a stuck
// session cannot keep publishing poses forever.
const ragdollTimeout = 8.0 // seconds

// startRagdoll begins the death sequence for this session's own
// player. The local pose source owns the body from here; pose samples
// go out with every publish until endRagdoll.
func (s *Session) startRagdoll(impulse game.Vec3) {
	if s.pose != nil {
		return
	}
	s.pose = s.newPose(s.self.Pos, s.self.Rot.Yaw, impulse)
	s.poseT = 0
	s.ragPos = s.self.Pos
	s.ragOrient = game.QuatFromYaw(s.self.Rot.Yaw)
	s.world.ApplyRagdoll(s.ragdollState())
	log.Printf("session %s down, ragdoll started", s.id)
}

func (s *Session) ragdollState() protocol.RagdollState {
	return protocol.RagdollState{
		ID: s.id,
		X:  s.ragPos.X, Y: s.ragPos.Y, Z: s.ragPos.Z,
		QX: s.ragOrient.X, QY: s.ragOrient.Y, QZ: s.ragOrient.Z, QW: s.ragOrient.W,
	}
}

// tickRagdoll advances the owned ragdoll, if one is running
func (s *Session) tickRagdoll(dt float64) {
	if s.pose == nil {
		return
	}
	s.ragPos, s.ragOrient = s.pose.Step(dt)
	s.world.ApplyRagdoll(s.ragdollState())
	s.poseT += dt
	if s.poseT >= ragdollTimeout {
		s.endRagdoll()
	}
}

// endRagdoll closes the owned sequence and announces it. Safe to call
// with no ragdoll running.
func (s *Session) endRagdoll() {
	if s.pose == nil {
		return
	}
	s.pose = nil
	s.poseT = 0
	s.world.EndRagdoll(s.id)
	if err := s.link.SendText(protocol.MsgRagdollEnd, protocol.RagdollEndMsg{ID: s.id}); err != nil {
		log.Printf("send ragdoll end: %v", err)
	}
}
