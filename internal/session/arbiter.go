package session

import (
	"log"
	"time"

	"gridfire/internal/game"
	"gridfire/internal/protocol"
)

const hitDedupSize = 512

// hitKey identifies one hit claim. Contact strikes carry the enemy as
// shooter while the victim's counter supplies the seq, so two victims
// of the same enemy can collide on (shooter, seq) alone; the target
// completes the key.
type hitKey struct {
	shooter string
	target  string
	seq     uint32
}

// seenHit records k and reports whether it was already recorded. A
// fixed ring evicts the oldest entry once full.
func (s *Session) seenHit(k hitKey) bool {
	if s.seenSet[k] {
		return true
	}
	if old := s.seenRing[s.seenIdx]; old != (hitKey{}) {
		delete(s.seenSet, old)
	}
	s.seenRing[s.seenIdx] = k
	s.seenSet[k] = true
	s.seenIdx = (s.seenIdx + 1) % len(s.seenRing)
	return false
}

// emitHit publishes a hit claim. The claim is not applied here: the
// relay echoes it back to this session too, and the echo applies
// through the same path as everyone else's hits.
func (s *Session) emitHit(shooter, target string, damage int, dir game.Vec3) {
	s.hitSeq++
	msg := protocol.HitMsg{
		Target:  target,
		Shooter: shooter,
		Damage:  damage,
		DX:      dir.X,
		DY:      dir.Y,
		DZ:      dir.Z,
		Seq:     s.hitSeq,
		TS:      time.Now().UnixMilli(),
	}
	if err := s.link.SendText(protocol.MsgHit, msg); err != nil {
		log.Printf("send hit: %v", err)
	}
}

// applyHit applies an echoed hit claim to the local view. The shooter
// is believed unconditionally; dead targets ignore damage.
func (s *Session) applyHit(hit protocol.HitMsg) {
	if s.cfg.HitDedup {
		if s.seenHit(hitKey{shooter: hit.Shooter, target: hit.Target, seq: hit.Seq}) {
			return
		}
	}

	if e, ok := s.world.Enemies[hit.Target]; ok {
		e.TakeDamage(hit.Damage)
		return
	}

	p, ok := s.world.Players[hit.Target]
	if !ok || !p.Alive() {
		return
	}
	died := p.TakeDamage(hit.Damage)
	if _, fromEnemy := s.world.Enemies[hit.Shooter]; fromEnemy && !died {
		p.Stun()
	}
	if died && hit.Target == s.id {
		s.startRagdoll(game.Vec3{X: hit.DX, Y: hit.DY, Z: hit.DZ})
	}
}

// scanProjectileHits sweeps this session's own projectiles against its
// view of the arena. Remote copies never arbitrate; their owners do.
func (s *Session) scanProjectileHits() {
	for _, pr := range s.world.Projectiles {
		if pr.Remote || !pr.Alive {
			continue
		}
		if target := s.projectileTarget(pr); target != "" {
			pr.Alive = false
			s.emitHit(s.id, target, pr.Damage, pr.Vel.Normalized())
		}
	}
}

// projectileTarget returns the first body the projectile's sweep
// crosses this tick, or ""
func (s *Session) projectileTarget(pr *game.Projectile) string {
	for id, e := range s.world.Enemies {
		if e.Alive() && pr.HitsBody(e.Pos, game.EnemyRadius) {
			return id
		}
	}
	for id, p := range s.world.Players {
		if id == pr.OwnerID || !p.Alive() {
			continue
		}
		if pr.HitsBody(p.Pos, game.PlayerRadius) {
			return id
		}
	}
	return ""
}

// scanEnemyContact emits the strikes of enemies attacking this
// session's own player. Each enemy lands at most one strike per
// EnemyStrikePeriod on this victim; other victims run their own scan.
func (s *Session) scanEnemyContact() {
	if !s.self.Alive() {
		return
	}
	for id, e := range s.world.Enemies {
		if e.Phase != game.PhaseAttack {
			continue
		}
		if game.DistanceSq(e.Pos, s.self.Pos) > game.EnemyAttackRangeSq {
			continue
		}
		if _, cooling := s.strikeCD[id]; cooling {
			continue
		}
		s.strikeCD[id] = game.EnemyStrikePeriod
		dir := s.self.Pos.Sub(e.Pos).Normalized()
		s.emitHit(id, s.id, game.EnemyStrikeDamage, dir)
	}
}

// tickStrikes counts down the per-enemy strike cooldowns
func (s *Session) tickStrikes(dt float64) {
	for id := range s.strikeCD {
		s.strikeCD[id] -= dt
		if s.strikeCD[id] <= 0 {
			delete(s.strikeCD, id)
		}
	}
}
