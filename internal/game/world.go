package game

import (
	"gridfire/internal/protocol"
)

// World is the entity registry for one session. Entities reference
// each other by id through it instead of holding back-pointers, and
// the owning session goroutine is the only one that touches it, so
// there is no lock.
type World struct {
	Players     map[string]*Player
	Enemies     map[string]*Enemy
	Ragdolls    map[string]*Ragdoll
	Projectiles map[string]*Projectile
}

func NewWorld() *World {
	return &World{
		Players:     make(map[string]*Player),
		Enemies:     make(map[string]*Enemy),
		Ragdolls:    make(map[string]*Ragdoll),
		Projectiles: make(map[string]*Projectile),
	}
}

// Player returns the player with the given id, or nil
func (w *World) Player(id string) *Player {
	return w.Players[id]
}

// AddPlayer registers a player, replacing any previous entry
func (w *World) AddPlayer(p *Player) {
	w.Players[p.ID] = p
}

// RemovePlayer drops a departed session's player and its ragdoll
func (w *World) RemovePlayer(id string) {
	delete(w.Players, id)
	delete(w.Ragdolls, id)
}

// ApplyPlayerState applies a replicated update last-write-wins. An
// update for an unknown id creates the player, which covers a state
// frame racing ahead of its join announcement.
func (w *World) ApplyPlayerState(st protocol.PlayerState) {
	p, ok := w.Players[st.ID]
	if !ok {
		p = &Player{ID: st.ID}
		w.Players[st.ID] = p
	}
	p.ApplyState(st)
}

// SyncEnemies replaces the enemy set with the Host's published array:
// upsert every listed enemy, drop every unlisted one. Applying the
// same array twice leaves the world identical, which is what makes
// redelivered frames harmless.
func (w *World) SyncEnemies(list []protocol.EnemyState) {
	seen := make(map[string]bool, len(list))
	for _, st := range list {
		seen[st.ID] = true
		e, ok := w.Enemies[st.ID]
		if !ok {
			e = &Enemy{
				ID:        st.ID,
				Health:    EnemyMaxHealth,
				MaxHealth: EnemyMaxHealth,
			}
			w.Enemies[st.ID] = e
		}
		e.ApplyState(st)
	}
	for id := range w.Enemies {
		if !seen[id] {
			delete(w.Enemies, id)
		}
	}
}

// AdvanceEnemies runs one Host tick of AI: update everything, bury
// despawned corpses, and top the population back up to target.
func (w *World) AdvanceEnemies(dt float64, target int) {
	for id, e := range w.Enemies {
		e.Update(dt, w.Players)
		if e.Despawned() {
			delete(w.Enemies, id)
		}
	}
	for len(w.Enemies) < target {
		e := NewEnemy()
		w.Enemies[e.ID] = e
	}
}

// EnemyStates builds the Host's published array. Corpses stay listed
// until they despawn so followers play the death animation.
func (w *World) EnemyStates() []protocol.EnemyState {
	out := make([]protocol.EnemyState, 0, len(w.Enemies))
	for _, e := range w.Enemies {
		out = append(out, e.ToState())
	}
	return out
}

// AddProjectile registers a projectile
func (w *World) AddProjectile(pr *Projectile) {
	w.Projectiles[pr.ID] = pr
}

// AdvanceProjectiles flies every projectile one tick and prunes the
// dead ones.
func (w *World) AdvanceProjectiles(dt float64) {
	for id, pr := range w.Projectiles {
		pr.Update(dt)
		if !pr.Alive {
			delete(w.Projectiles, id)
		}
	}
}

// ApplyRagdoll maps a replicated pose sample onto the ragdoll entity,
// creating it on the first sample.
func (w *World) ApplyRagdoll(st protocol.RagdollState) {
	r, ok := w.Ragdolls[st.ID]
	if !ok {
		r = &Ragdoll{ID: st.ID}
		w.Ragdolls[st.ID] = r
	}
	r.ApplyState(st)
}

// EndRagdoll closes a ragdoll sequence. Safe to call twice or with no
// active ragdoll; either way the player returns to the default idle
// pose and replicated position updates apply again.
func (w *World) EndRagdoll(id string) {
	delete(w.Ragdolls, id)
	if p, ok := w.Players[id]; ok && p.Action == protocol.ActionDead {
		p.Action = protocol.ActionIdle
	}
}
