package game

import (
	"math"
	"math/rand"

	"gridfire/internal/protocol"
)

const (
	EnemyMaxHealth   = 60
	EnemyRadius      = 0.6 // hit capsule radius, meters
	EnemyPatrolSpeed = 1.6 // meters/s
	EnemyChaseSpeed  = 3.4
	EnemyTurnSpeed   = 3.0 // radians/s
	EnemyWanderDrift = 1.2 // max radians/s the wander heading changes
	EnemyWanderTurn  = 1.8 // how fast the enemy turns toward its wander heading

	EnemyDetectRange = 14.0 // patrol -> alert
	EnemyLoseRange   = 18.0 // alert -> patrol, hysteresis above detect
	EnemyAttackRange = 1.8  // alert -> attack
	EnemyBreakRange  = 2.6  // attack -> alert, hysteresis above attack
	EnemyStandOff    = 1.4  // stop closing inside this distance

	EnemyDetectRangeSq = EnemyDetectRange * EnemyDetectRange
	EnemyLoseRangeSq   = EnemyLoseRange * EnemyLoseRange
	EnemyAttackRangeSq = EnemyAttackRange * EnemyAttackRange
	EnemyBreakRangeSq  = EnemyBreakRange * EnemyBreakRange

	EnemyStrikeDamage = 18
	EnemyStrikePeriod = 1.2 // seconds between strikes landing on one victim
	EnemyDespawnTime  = 3.0 // seconds a corpse stays in the published set
)

// EnemyPhase is the AI state. Transitions go through NextPhase only.
type EnemyPhase uint8

const (
	PhasePatrol EnemyPhase = iota
	PhaseAlert
	PhaseAttack
	PhaseDead
)

func (ph EnemyPhase) String() string {
	switch ph {
	case PhasePatrol:
		return "patrol"
	case PhaseAlert:
		return "alert"
	case PhaseAttack:
		return "attack"
	case PhaseDead:
		return "dead"
	}
	return "unknown"
}

// NextPhase is the whole transition table. distSq is the squared
// distance to the nearest live player, or math.MaxFloat64 when there
// is none. Dead is absorbing; only TakeDamage enters it.
func NextPhase(cur EnemyPhase, distSq float64) EnemyPhase {
	switch cur {
	case PhasePatrol:
		if distSq <= EnemyDetectRangeSq {
			return PhaseAlert
		}
	case PhaseAlert:
		if distSq <= EnemyAttackRangeSq {
			return PhaseAttack
		}
		if distSq > EnemyLoseRangeSq {
			return PhasePatrol
		}
	case PhaseAttack:
		if distSq > EnemyBreakRangeSq {
			return PhaseAlert
		}
	case PhaseDead:
		return PhaseDead
	}
	return cur
}

// Enemy is an AI combatant. The Host simulates it and publishes
// position, yaw and animation action; followers overwrite their copies
// from those frames and never run Update. Health never replicates:
// every session recomputes it from the shared hit stream.
type Enemy struct {
	ID        string
	Pos       Vec3
	Yaw       float64
	Phase     EnemyPhase
	Action    string
	Health    int
	MaxHealth int

	WanderAngle float64
	DeadT       float64 // despawn countdown once dead
}

// NewEnemy spawns an enemy at a random arena edge, facing center
func NewEnemy() *Enemy {
	e := &Enemy{
		ID:        GenerateID(4),
		Phase:     PhasePatrol,
		Action:    protocol.EnemyIdle,
		Health:    EnemyMaxHealth,
		MaxHealth: EnemyMaxHealth,
	}

	switch rand.Intn(4) {
	case 0:
		e.Pos = Vec3{X: -ArenaHalf, Z: (rand.Float64()*2 - 1) * ArenaHalf}
	case 1:
		e.Pos = Vec3{X: ArenaHalf, Z: (rand.Float64()*2 - 1) * ArenaHalf}
	case 2:
		e.Pos = Vec3{X: (rand.Float64()*2 - 1) * ArenaHalf, Z: -ArenaHalf}
	default:
		e.Pos = Vec3{X: (rand.Float64()*2 - 1) * ArenaHalf, Z: ArenaHalf}
	}

	e.Yaw = math.Atan2(-e.Pos.X, -e.Pos.Z)
	e.WanderAngle = e.Yaw
	return e
}

// Alive reports whether the enemy still takes damage
func (e *Enemy) Alive() bool {
	return e.Phase != PhaseDead
}

// Despawned reports that the corpse timer ran out and the Host should
// drop the enemy from the published set.
func (e *Enemy) Despawned() bool {
	return e.Phase == PhaseDead && e.DeadT <= 0
}

// Update advances the enemy one Host tick against the current players
func (e *Enemy) Update(dt float64, players map[string]*Player) {
	if e.Phase == PhaseDead {
		e.DeadT -= dt
		e.Action = protocol.EnemyDie
		return
	}

	// Nearest live player drives every transition
	distSq := math.MaxFloat64
	var target *Player
	for _, p := range players {
		if !p.Alive() {
			continue
		}
		d2 := DistanceSq(e.Pos, p.Pos)
		if d2 < distSq {
			distSq = d2
			target = p
		}
	}

	e.Phase = NextPhase(e.Phase, distSq)

	switch e.Phase {
	case PhasePatrol:
		e.wander(dt)
		e.Action = protocol.EnemyWalk
	case PhaseAlert:
		e.pursue(dt, target, math.Sqrt(distSq))
		e.Action = protocol.EnemyWalk
	case PhaseAttack:
		if target != nil {
			e.turnToward(target.Pos, dt, EnemyTurnSpeed)
		}
		e.Action = protocol.EnemyAttack
	}
}

// wander drifts the heading gently and walks it forward
func (e *Enemy) wander(dt float64) {
	e.WanderAngle += (rand.Float64()*2 - 1) * EnemyWanderDrift * dt
	diff := NormalizeAngle(e.WanderAngle - e.Yaw)
	maxTurn := EnemyWanderTurn * dt
	e.Yaw += Clamp(diff, -maxTurn, maxTurn)
	e.step(EnemyPatrolSpeed * dt)

	// Bounce the wander heading off arena walls
	if e.Pos.X <= -ArenaHalf || e.Pos.X >= ArenaHalf ||
		e.Pos.Z <= -ArenaHalf || e.Pos.Z >= ArenaHalf {
		e.WanderAngle = math.Atan2(-e.Pos.X, -e.Pos.Z)
	}
}

// pursue closes on the target, stopping at stand-off distance
func (e *Enemy) pursue(dt float64, target *Player, dist float64) {
	if target == nil {
		return
	}
	e.turnToward(target.Pos, dt, EnemyTurnSpeed)
	if dist > EnemyStandOff {
		e.step(EnemyChaseSpeed * dt)
	}
}

func (e *Enemy) turnToward(p Vec3, dt, turnSpeed float64) {
	desired := math.Atan2(p.X-e.Pos.X, p.Z-e.Pos.Z)
	diff := NormalizeAngle(desired - e.Yaw)
	maxTurn := turnSpeed * dt
	e.Yaw += Clamp(diff, -maxTurn, maxTurn)
}

// step walks forward along the current yaw, clamped to the arena
func (e *Enemy) step(d float64) {
	e.Pos.X += math.Sin(e.Yaw) * d
	e.Pos.Z += math.Cos(e.Yaw) * d
	e.Pos.X = Clamp(e.Pos.X, -ArenaHalf, ArenaHalf)
	e.Pos.Z = Clamp(e.Pos.Z, -ArenaHalf, ArenaHalf)
}

// TakeDamage reduces local health and returns true on death. Runs on
// every session so the whole arena agrees without replicating health.
func (e *Enemy) TakeDamage(dmg int) bool {
	if e.Phase == PhaseDead {
		return false
	}
	e.Health -= dmg
	if e.Health <= 0 {
		e.Health = 0
		e.Phase = PhaseDead
		e.Action = protocol.EnemyDie
		e.DeadT = EnemyDespawnTime
		return true
	}
	return false
}

// ApplyState overwrites a follower copy from a Host frame. Local death
// sticks: a stale frame from before the kill cannot revive the corpse.
// Phase follows the wire action so a follower promoted to Host resumes
// the AI where the old Host left it.
func (e *Enemy) ApplyState(st protocol.EnemyState) {
	e.Pos = Vec3{X: st.X, Y: st.Y, Z: st.Z}
	e.Yaw = st.Yaw
	if e.Phase == PhaseDead {
		e.Action = protocol.EnemyDie
		return
	}
	e.Action = st.Action
	e.Phase = phaseForAction(st.Action)
	if e.Phase == PhaseDead && e.DeadT <= 0 {
		e.DeadT = EnemyDespawnTime
	}
}

// phaseForAction recovers an AI phase from a wire action. Walk could be
// patrol or alert; patrol is safe, NextPhase promotes it within a tick.
func phaseForAction(action string) EnemyPhase {
	switch action {
	case protocol.EnemyAttack:
		return PhaseAttack
	case protocol.EnemyDie:
		return PhaseDead
	}
	return PhasePatrol
}

// ToState converts to the replicated wire form
func (e *Enemy) ToState() protocol.EnemyState {
	return protocol.EnemyState{
		ID:     e.ID,
		X:      e.Pos.X,
		Y:      e.Pos.Y,
		Z:      e.Pos.Z,
		Yaw:    e.Yaw,
		Action: e.Action,
	}
}
