package game

import (
	"math"
	"testing"

	"gridfire/internal/protocol"
)

func TestPlayerTakeDamage(t *testing.T) {
	p := NewPlayer("p1")

	died := p.TakeDamage(40)
	if died {
		t.Error("player should survive 40 damage")
	}
	if p.Health != 60 {
		t.Errorf("expected 60 health, got %d", p.Health)
	}
	if p.Action != protocol.ActionHit {
		t.Errorf("expected hit reaction, got %s", p.Action)
	}

	died = p.TakeDamage(60)
	if !died {
		t.Error("player should die at 0 health")
	}
	if p.Action != protocol.ActionDead {
		t.Errorf("expected dead action, got %s", p.Action)
	}
	if p.RespawnT != RespawnDelay {
		t.Errorf("death should arm the respawn timer, got %f", p.RespawnT)
	}
}

func TestPlayerDamageWhenDead(t *testing.T) {
	p := NewPlayer("p1")
	p.TakeDamage(PlayerMaxHealth)
	if p.TakeDamage(50) {
		t.Error("dead player should not report dying again")
	}
	if p.Health != 0 {
		t.Errorf("dead player health should stay 0, got %d", p.Health)
	}
}

func TestPlayerRespawnTimer(t *testing.T) {
	p := NewPlayer("p1")
	p.TakeDamage(PlayerMaxHealth)

	for i := 0; i < int(RespawnDelay*60)+2; i++ {
		p.Update(1.0 / 60.0)
	}
	if !p.CanRespawn() {
		t.Error("respawn timer should have run out")
	}

	p.Respawn()
	if !p.Alive() {
		t.Error("respawned player should be alive")
	}
	if p.Health != p.MaxHealth {
		t.Errorf("respawn should restore full health, got %d", p.Health)
	}
	if p.Action != protocol.ActionIdle {
		t.Errorf("respawned player should idle, got %s", p.Action)
	}
}

func TestPlayerMoveClampsToArena(t *testing.T) {
	p := NewPlayer("p1")
	p.Pos = Vec3{X: ArenaHalf - 0.1}
	for i := 0; i < 120; i++ {
		p.Move(Vec3{X: 1}, 0, 1.0/60.0)
	}
	if p.Pos.X > ArenaHalf {
		t.Errorf("position should clamp to arena, got %f", p.Pos.X)
	}
	if p.Action != protocol.ActionRun {
		t.Errorf("moving player should run, got %s", p.Action)
	}
}

func TestPlayerStunBlocksMovement(t *testing.T) {
	p := NewPlayer("p1")
	p.Pos = Vec3{}
	p.Stun()

	p.Move(Vec3{X: 1}, 0, 1.0/60.0)
	if p.Pos.X != 0 {
		t.Errorf("stunned player should not move, got %f", p.Pos.X)
	}
	if p.Action != protocol.ActionStunned {
		t.Errorf("expected stunned action, got %s", p.Action)
	}

	// Stun wears off
	for i := 0; i < int(StunTime*60)+2; i++ {
		p.Update(1.0 / 60.0)
	}
	p.Move(Vec3{X: 1}, 0, 1.0/60.0)
	if p.Pos.X == 0 {
		t.Error("player should move again after stun wears off")
	}
}

func TestPlayerCanFire(t *testing.T) {
	p := NewPlayer("p1")
	if !p.CanFire() {
		t.Error("fresh player should be able to fire")
	}
	p.FireCD = FireCooldown
	if p.CanFire() {
		t.Error("cooldown should block firing")
	}
	p.FireCD = 0
	p.TakeDamage(PlayerMaxHealth)
	if p.CanFire() {
		t.Error("dead player should not fire")
	}
}

func TestPlayerWeaponFollowsPose(t *testing.T) {
	p := NewPlayer("p1")
	p.Pos = Vec3{}
	p.Move(Vec3{}, 0, 1.0/60.0)
	front := p.Weapon.Pos

	p.Move(Vec3{}, math.Pi, 1.0/60.0)
	back := p.Weapon.Pos

	if math.Abs(front.Z+back.Z) > 1e-6 {
		t.Errorf("weapon should mirror across a half turn: %f vs %f", front.Z, back.Z)
	}
	if p.Weapon.Rot.Yaw != p.Rot.Yaw {
		t.Error("weapon rotation should track the aim")
	}
}

func TestPlayerApplyStateLastWriteWins(t *testing.T) {
	p := NewPlayer("p1")

	p.ApplyState(protocol.PlayerState{
		ID: "p1", X: 1, Z: 2, Yaw: 0.5,
		Action: protocol.ActionRun, Health: 80, MaxHealth: 100,
	})
	p.ApplyState(protocol.PlayerState{
		ID: "p1", X: 9, Z: 9, Yaw: 1.5,
		Action: protocol.ActionIdle, Health: 70, MaxHealth: 100,
	})

	if p.Pos.X != 9 || p.Pos.Z != 9 {
		t.Errorf("latest update should win, got %+v", p.Pos)
	}
	if p.Health != 70 {
		t.Errorf("expected health 70, got %d", p.Health)
	}
}

func TestPlayerApplyStateDeadFreezesPose(t *testing.T) {
	p := NewPlayer("p1")
	p.ApplyState(protocol.PlayerState{
		ID: "p1", X: 3, Z: 4,
		Action: protocol.ActionDead, Health: 0, MaxHealth: 100,
	})

	// While dead, position updates are suppressed; the ragdoll owns the pose
	p.ApplyState(protocol.PlayerState{
		ID: "p1", X: 50, Z: 50,
		Action: protocol.ActionDead, Health: 0, MaxHealth: 100,
	})
	if p.Pos.X != 3 || p.Pos.Z != 4 {
		t.Errorf("dead pose should stay frozen, got %+v", p.Pos)
	}

	// A health>0 update is a respawn and applies fully
	p.ApplyState(protocol.PlayerState{
		ID: "p1", X: 7, Z: 8,
		Action: protocol.ActionIdle, Health: 100, MaxHealth: 100,
	})
	if p.Pos.X != 7 || p.Pos.Z != 8 {
		t.Errorf("respawn update should apply, got %+v", p.Pos)
	}
	if p.Action != protocol.ActionIdle {
		t.Errorf("expected idle after respawn, got %s", p.Action)
	}
}
