package game

import (
	"math"
	"math/rand"

	"gridfire/internal/protocol"
)

const (
	PlayerMaxHealth = 100
	PlayerRadius    = 0.5 // hit capsule radius, meters
	PlayerWalkSpeed = 4.5 // meters/s
	FireCooldown    = 0.18
	RespawnDelay    = 4.0 // seconds between death and respawn
	HitFlashTime    = 0.3 // seconds the hit reaction action holds
	StunTime        = 0.8 // seconds an enemy strike locks movement

	// Square arena, half-extent in meters. Positions clamp to it.
	ArenaHalf = 40.0
)

// Weapon offset from the character origin, in local space. Rotated by
// yaw each tick so peers can attach the weapon model to the pose.
var weaponOffset = Vec3{X: 0.35, Y: 1.1, Z: 0.45}

// Transform is a replicated position plus orientation
type Transform struct {
	Pos Vec3
	Rot Euler
}

// Player is one session's character. The owning session simulates it;
// every other session overwrites its copy from StateUpdate frames.
type Player struct {
	ID        string
	Pos       Vec3
	Rot       Euler
	Action    string
	Firing    bool
	Health    int
	MaxHealth int
	Weapon    Transform

	// Owner-side timers. Never replicated; remote copies leave them zero.
	FireCD   float64
	RespawnT float64
	HitT     float64
	StunT    float64
}

// NewPlayer spawns a player at a random arena position, facing center
func NewPlayer(id string) *Player {
	pos := Vec3{
		X: (rand.Float64()*2 - 1) * ArenaHalf * 0.5,
		Z: (rand.Float64()*2 - 1) * ArenaHalf * 0.5,
	}
	p := &Player{
		ID:        id,
		Pos:       pos,
		Rot:       Euler{Yaw: math.Atan2(-pos.X, -pos.Z)},
		Action:    protocol.ActionIdle,
		Health:    PlayerMaxHealth,
		MaxHealth: PlayerMaxHealth,
	}
	p.updateWeapon()
	return p
}

// Alive reports whether the player is simulating normally
func (p *Player) Alive() bool {
	return p.Health > 0
}

// Update ticks owner-side timers one frame. Dead players count down to
// respawn; the session decides what to do when CanRespawn turns true.
func (p *Player) Update(dt float64) {
	if p.FireCD > 0 {
		p.FireCD -= dt
	}
	if p.HitT > 0 {
		p.HitT -= dt
	}
	if p.StunT > 0 {
		p.StunT -= dt
	}
	if !p.Alive() && p.RespawnT > 0 {
		p.RespawnT -= dt
	}
}

// CanRespawn reports that the death timer has run out
func (p *Player) CanRespawn() bool {
	return !p.Alive() && p.RespawnT <= 0
}

// Move steers the player by a desired direction on the ground plane,
// analog style: magnitudes up to 1 scale the walk speed. Stunned and
// dead players do not move.
func (p *Player) Move(dir Vec3, yaw float64, dt float64) {
	if !p.Alive() || p.StunT > 0 {
		p.resolveAction(false)
		return
	}
	p.Rot.Yaw = NormalizeAngle(yaw)

	moving := false
	flat := Vec3{X: dir.X, Z: dir.Z}
	if flat.LengthSq() > 1e-6 {
		if flat.LengthSq() > 1 {
			flat = flat.Normalized()
		}
		step := flat.Scale(PlayerWalkSpeed * dt)
		p.Pos = p.Pos.Add(step)
		p.Pos.X = Clamp(p.Pos.X, -ArenaHalf, ArenaHalf)
		p.Pos.Z = Clamp(p.Pos.Z, -ArenaHalf, ArenaHalf)
		moving = true
	}
	p.resolveAction(moving)
	p.updateWeapon()
}

// resolveAction picks the animation action by priority:
// dead > stunned > hit reaction > shooting > running > idle
func (p *Player) resolveAction(moving bool) {
	switch {
	case !p.Alive():
		p.Action = protocol.ActionDead
	case p.StunT > 0:
		p.Action = protocol.ActionStunned
	case p.HitT > 0:
		p.Action = protocol.ActionHit
	case p.Firing:
		p.Action = protocol.ActionShoot
	case moving:
		p.Action = protocol.ActionRun
	default:
		p.Action = protocol.ActionIdle
	}
}

// updateWeapon re-derives the held weapon transform from the pose
func (p *Player) updateWeapon() {
	sin, cos := math.Sin(p.Rot.Yaw), math.Cos(p.Rot.Yaw)
	local := weaponOffset
	p.Weapon.Pos = p.Pos.Add(Vec3{
		X: local.X*cos + local.Z*sin,
		Y: local.Y,
		Z: -local.X*sin + local.Z*cos,
	})
	p.Weapon.Rot = p.Rot
}

// CanFire reports whether a shot may leave this tick
func (p *Player) CanFire() bool {
	return p.Alive() && p.StunT <= 0 && p.FireCD <= 0
}

// TakeDamage reduces health and returns true when this hit killed.
// Dead players ignore further damage.
func (p *Player) TakeDamage(dmg int) bool {
	if !p.Alive() {
		return false
	}
	p.Health -= dmg
	if p.Health <= 0 {
		p.Health = 0
		p.Action = protocol.ActionDead
		p.RespawnT = RespawnDelay
		return true
	}
	p.HitT = HitFlashTime
	p.Action = protocol.ActionHit
	return false
}

// Stun locks movement, used for enemy melee strikes
func (p *Player) Stun() {
	if !p.Alive() {
		return
	}
	p.StunT = StunTime
	p.Action = protocol.ActionStunned
}

// Respawn resets the player after the death timer
func (p *Player) Respawn() {
	p.Pos = Vec3{
		X: (rand.Float64()*2 - 1) * ArenaHalf * 0.5,
		Z: (rand.Float64()*2 - 1) * ArenaHalf * 0.5,
	}
	p.Health = p.MaxHealth
	p.Action = protocol.ActionIdle
	p.Firing = false
	p.FireCD = 0
	p.RespawnT = 0
	p.HitT = 0
	p.StunT = 0
	p.updateWeapon()
}

// ApplyState overwrites this copy from a replicated update, last write
// wins. While the copy is dead, position and rotation stay frozen so
// the ragdoll owns the visual pose; a health>0 update (respawn) or a
// RagdollEnd lifts the freeze.
func (p *Player) ApplyState(st protocol.PlayerState) {
	if p.Action == protocol.ActionDead && st.Health <= 0 {
		p.Firing = st.Firing
		p.Health = st.Health
		p.MaxHealth = st.MaxHealth
		return
	}
	p.Pos = Vec3{X: st.X, Y: st.Y, Z: st.Z}
	p.Rot = Euler{Yaw: st.Yaw, Pitch: st.Pitch, Roll: st.Roll}
	p.Action = st.Action
	p.Firing = st.Firing
	p.Health = st.Health
	p.MaxHealth = st.MaxHealth
	p.Weapon = Transform{
		Pos: Vec3{X: st.WX, Y: st.WY, Z: st.WZ},
		Rot: Euler{Yaw: st.WYaw, Pitch: st.WPitch, Roll: st.WRoll},
	}
}

// ToState converts to the replicated wire form
func (p *Player) ToState() protocol.PlayerState {
	return protocol.PlayerState{
		ID:        p.ID,
		X:         p.Pos.X,
		Y:         p.Pos.Y,
		Z:         p.Pos.Z,
		Yaw:       p.Rot.Yaw,
		Pitch:     p.Rot.Pitch,
		Roll:      p.Rot.Roll,
		Action:    p.Action,
		Firing:    p.Firing,
		Health:    p.Health,
		MaxHealth: p.MaxHealth,
		WX:        p.Weapon.Pos.X,
		WY:        p.Weapon.Pos.Y,
		WZ:        p.Weapon.Pos.Z,
		WYaw:      p.Weapon.Rot.Yaw,
		WPitch:    p.Weapon.Rot.Pitch,
		WRoll:     p.Weapon.Rot.Roll,
	}
}
