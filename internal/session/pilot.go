package session

import (
	"math"
	"math/rand"
	"time"

	"gridfire/internal/game"
)

// Intent is one tick of input. The input layer produces it, the
// session applies it to its own player; nothing in it replicates.
type Intent struct {
	Move game.Vec3 // desired ground-plane direction, length <= 1
	Yaw  float64   // facing
	Aim  game.Vec3 // fire direction, used while Fire is set
	Fire bool
}

// Pilot drives a session's own player. Real clients put their input
// device behind this; headless runs use WanderPilot.
type Pilot interface {
	Steer(dt float64, w *game.World, self *game.Player) Intent
}

const (
	pilotEngageRange = 12.0 // start shooting at enemies inside this
	pilotStandOff    = 3.0  // back away from enemies closer than this
	pilotTurnRate    = 4.0  // radians/s toward the desired facing
	pilotDriftRate   = 0.8  // max radians/s of wander heading drift
	pilotEdgeMargin  = 3.0  // distance from the wall that turns us around
	pilotAimCone     = 0.25 // radians off target within which we fire
	pilotBurstTime   = 0.9  // seconds of sustained fire
	pilotBurstPause  = 0.6

	pilotEngageRangeSq = pilotEngageRange * pilotEngageRange
	pilotStandOffSq    = pilotStandOff * pilotStandOff
)

// WanderPilot roams the arena and fights whatever comes close: drift a
// heading while nothing is near, turn on the nearest live enemy inside
// engage range and fire in bursts, back off when crowded.
type WanderPilot struct {
	speed   float64
	heading float64
	burstT  float64
	pauseT  float64
	rng     *rand.Rand
}

// NewWanderPilot returns a pilot walking at speed times the normal
// walk rate, capped at full speed.
func NewWanderPilot(speed float64) *WanderPilot {
	if speed <= 0 {
		speed = 1
	}
	if speed > 1 {
		speed = 1
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &WanderPilot{
		speed:   speed,
		heading: rng.Float64()*2*math.Pi - math.Pi,
		rng:     rng,
	}
}

func (wp *WanderPilot) Steer(dt float64, w *game.World, self *game.Player) Intent {
	target := nearestLiveEnemy(w, self.Pos)
	if target == nil || game.DistanceSq(target.Pos, self.Pos) > pilotEngageRangeSq {
		return wp.wander(dt, self)
	}
	return wp.engage(dt, self, target)
}

func (wp *WanderPilot) wander(dt float64, self *game.Player) Intent {
	wp.burstT, wp.pauseT = 0, 0

	wp.heading += (wp.rng.Float64()*2 - 1) * pilotDriftRate * dt
	ahead := self.Pos.Add(game.Vec3{
		X: math.Sin(wp.heading),
		Z: math.Cos(wp.heading),
	}.Scale(pilotEdgeMargin))
	if math.Abs(ahead.X) > game.ArenaHalf || math.Abs(ahead.Z) > game.ArenaHalf {
		wp.heading = math.Atan2(-self.Pos.X, -self.Pos.Z)
	}
	wp.heading = game.NormalizeAngle(wp.heading)

	return Intent{
		Move: game.Vec3{X: math.Sin(wp.heading), Z: math.Cos(wp.heading)}.Scale(wp.speed),
		Yaw:  wp.heading,
	}
}

func (wp *WanderPilot) engage(dt float64, self *game.Player, target *game.Enemy) Intent {
	to := target.Pos.Sub(self.Pos)
	want := math.Atan2(to.X, to.Z)
	yaw := game.LerpAngle(self.Rot.Yaw, want, game.Clamp(pilotTurnRate*dt, 0, 1))
	wp.heading = yaw

	var move game.Vec3
	if to.LengthSq() < pilotStandOffSq {
		move = to.Normalized().Scale(-wp.speed)
	}

	fire := wp.burstGate(dt) && math.Abs(game.NormalizeAngle(want-yaw)) < pilotAimCone
	aim := game.Vec3{X: to.X, Z: to.Z}.Normalized()

	return Intent{Move: move, Yaw: yaw, Aim: aim, Fire: fire}
}

// burstGate alternates fire and pause windows
func (wp *WanderPilot) burstGate(dt float64) bool {
	if wp.pauseT > 0 {
		wp.pauseT -= dt
		if wp.pauseT <= 0 {
			wp.burstT = pilotBurstTime
		}
		return false
	}
	if wp.burstT <= 0 {
		wp.burstT = pilotBurstTime
	}
	wp.burstT -= dt
	if wp.burstT <= 0 {
		wp.pauseT = pilotBurstPause
	}
	return true
}

func nearestLiveEnemy(w *game.World, from game.Vec3) *game.Enemy {
	var best *game.Enemy
	bestSq := math.MaxFloat64
	for _, e := range w.Enemies {
		if !e.Alive() {
			continue
		}
		if d := game.DistanceSq(e.Pos, from); d < bestSq {
			best, bestSq = e, d
		}
	}
	return best
}
