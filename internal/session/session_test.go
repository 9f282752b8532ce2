package session

import (
	"testing"

	"gridfire/internal/config"
	"gridfire/internal/game"
	"gridfire/internal/protocol"
)

// recorder captures everything a session sends, in send order
type recorder struct {
	events []wireEvent
}

type wireEvent struct {
	msgType string // set on text sends
	data    interface{}
	tag     byte // set on frame sends
	frame   interface{}
}

func (r *recorder) SendText(msgType string, data interface{}) error {
	r.events = append(r.events, wireEvent{msgType: msgType, data: data})
	return nil
}

func (r *recorder) SendFrame(tag byte, v interface{}) error {
	r.events = append(r.events, wireEvent{tag: tag, frame: v})
	return nil
}

func (r *recorder) texts(msgType string) []wireEvent {
	var out []wireEvent
	for _, ev := range r.events {
		if ev.msgType == msgType {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) framesOf(tag byte) []wireEvent {
	var out []wireEvent
	for _, ev := range r.events {
		if ev.msgType == "" && ev.tag == tag {
			out = append(out, ev)
		}
	}
	return out
}

// testSession builds a session wired to a recorder instead of a
// relay, with the player pinned to the origin for geometry tests.
func testSession(host bool) (*Session, *recorder) {
	cfg := config.Session{TickHz: 60, PublishDiv: 3, EnemyCount: 2}
	s := newSession(cfg, "self", host, nil)
	s.self.Pos = game.Vec3{}
	s.self.Rot = game.Euler{}
	rec := &recorder{}
	s.link = rec
	return s, rec
}

func addEnemy(s *Session, id string, pos game.Vec3, phase game.EnemyPhase) *game.Enemy {
	e := &game.Enemy{
		ID:        id,
		Pos:       pos,
		Phase:     phase,
		Action:    protocol.EnemyIdle,
		Health:    game.EnemyMaxHealth,
		MaxHealth: game.EnemyMaxHealth,
	}
	s.world.Enemies[id] = e
	return e
}

func hitFrom(shooter, target string, dmg int, seq uint32) protocol.HitMsg {
	return protocol.HitMsg{Target: target, Shooter: shooter, Damage: dmg, Seq: seq, DX: 1}
}

func mustEncode(t *testing.T, msgType string, data interface{}) []byte {
	t.Helper()
	raw, err := protocol.Encode(msgType, data)
	if err != nil {
		t.Fatalf("encode %s: %v", msgType, err)
	}
	return raw
}

func mustFrame(t *testing.T, tag byte, v interface{}) []byte {
	t.Helper()
	raw, err := protocol.EncodeFrame(tag, v)
	if err != nil {
		t.Fatalf("encode frame 0x%02x: %v", tag, err)
	}
	return raw
}

// stubPose is a deterministic PoseSource: X counts the steps taken
type stubPose struct {
	steps   int
	settled bool
}

func (p *stubPose) Step(dt float64) (game.Vec3, game.Quat) {
	p.steps++
	return game.Vec3{X: float64(p.steps)}, game.QuatIdentity()
}

func (p *stubPose) Settled() bool { return p.settled }

func stubPoseFactory(s *Session) *int {
	calls := new(int)
	s.newPose = func(pos game.Vec3, yaw float64, impulse game.Vec3) game.PoseSource {
		*calls++
		return &stubPose{}
	}
	return calls
}

func TestApplyHitDamagesEnemy(t *testing.T) {
	s, _ := testSession(true)
	e := addEnemy(s, "e1", game.Vec3{X: 3}, game.PhasePatrol)

	s.applyHit(hitFrom("self", "e1", 20, 1))
	if e.Health != game.EnemyMaxHealth-20 {
		t.Errorf("expected health %d, got %d", game.EnemyMaxHealth-20, e.Health)
	}

	for seq := uint32(2); seq <= 4; seq++ {
		s.applyHit(hitFrom("self", "e1", 20, seq))
	}
	if e.Alive() {
		t.Error("enemy should be dead")
	}
	if e.Health != 0 {
		t.Errorf("dead enemy health should clamp to 0, got %d", e.Health)
	}

	s.applyHit(hitFrom("self", "e1", 20, 5))
	if e.Health != 0 {
		t.Error("dead enemy must ignore damage")
	}
}

func TestApplyHitUnknownTarget(t *testing.T) {
	s, _ := testSession(false)
	s.applyHit(hitFrom("self", "ghost", 20, 1))
	// nothing to assert beyond not panicking and self untouched
	if s.self.Health != game.PlayerMaxHealth {
		t.Error("unknown target must not damage anyone")
	}
}

func TestApplyHitSelfDeathStartsRagdoll(t *testing.T) {
	s, _ := testSession(false)
	stubPoseFactory(s)

	for seq := uint32(1); seq <= 5; seq++ {
		s.applyHit(hitFrom("p2", "self", 20, seq))
	}
	if s.self.Alive() {
		t.Fatal("player should be dead after 100 damage")
	}
	if s.pose == nil {
		t.Fatal("own death must start a ragdoll")
	}
	if _, ok := s.world.Ragdolls["self"]; !ok {
		t.Error("own ragdoll should be visible in the world")
	}
	if s.self.Action != protocol.ActionDead {
		t.Errorf("expected dead action, got %q", s.self.Action)
	}
}

func TestApplyHitRemotePlayerDeathNoRagdoll(t *testing.T) {
	s, _ := testSession(false)
	stubPoseFactory(s)
	s.world.ApplyPlayerState(protocol.NewPlayerState("p2"))

	for seq := uint32(1); seq <= 5; seq++ {
		s.applyHit(hitFrom("self", "p2", 20, seq))
	}
	p2 := s.world.Player("p2")
	if p2.Alive() {
		t.Fatal("p2 should be dead")
	}
	if s.pose != nil {
		t.Error("only the dying player's owner runs the ragdoll")
	}
}

func TestApplyHitEnemyStrikeStuns(t *testing.T) {
	s, _ := testSession(false)
	addEnemy(s, "e1", game.Vec3{X: 1}, game.PhaseAttack)

	s.applyHit(hitFrom("e1", "self", game.EnemyStrikeDamage, 1))
	if s.self.Health != game.PlayerMaxHealth-game.EnemyStrikeDamage {
		t.Errorf("expected health %d, got %d", game.PlayerMaxHealth-game.EnemyStrikeDamage, s.self.Health)
	}
	if s.self.StunT <= 0 {
		t.Error("enemy strike should stun")
	}
	if s.self.Action != protocol.ActionStunned {
		t.Errorf("expected stunned action, got %q", s.self.Action)
	}
}

func TestApplyHitPlayerShooterNoStun(t *testing.T) {
	s, _ := testSession(false)
	s.applyHit(hitFrom("p2", "self", 10, 1))
	if s.self.StunT > 0 {
		t.Error("player shots must not stun")
	}
}

func TestApplyHitFatalStrikeSkipsStun(t *testing.T) {
	s, _ := testSession(false)
	stubPoseFactory(s)
	addEnemy(s, "e1", game.Vec3{X: 1}, game.PhaseAttack)
	s.self.Health = 10

	s.applyHit(hitFrom("e1", "self", game.EnemyStrikeDamage, 1))
	if s.self.Alive() {
		t.Fatal("strike should have killed")
	}
	if s.self.Action != protocol.ActionDead {
		t.Errorf("death outranks stun, got %q", s.self.Action)
	}
	if s.pose == nil {
		t.Error("fatal strike must start the ragdoll")
	}
}

func TestApplyHitDedup(t *testing.T) {
	s, _ := testSession(false)
	s.cfg.HitDedup = true
	e1 := addEnemy(s, "e1", game.Vec3{X: 3}, game.PhasePatrol)
	e2 := addEnemy(s, "e2", game.Vec3{X: -3}, game.PhasePatrol)

	s.applyHit(hitFrom("self", "e1", 20, 7))
	s.applyHit(hitFrom("self", "e1", 20, 7))
	if e1.Health != game.EnemyMaxHealth-20 {
		t.Errorf("redelivered hit must apply once, health %d", e1.Health)
	}

	s.applyHit(hitFrom("self", "e1", 20, 8))
	if e1.Health != game.EnemyMaxHealth-40 {
		t.Error("a fresh seq must apply")
	}

	// same shooter and seq against another target is a distinct claim
	s.applyHit(hitFrom("self", "e2", 20, 7))
	if e2.Health != game.EnemyMaxHealth-20 {
		t.Error("dedup key must include the target")
	}
}

func TestApplyHitDedupOffRepeats(t *testing.T) {
	s, _ := testSession(false)
	e := addEnemy(s, "e1", game.Vec3{X: 3}, game.PhasePatrol)

	s.applyHit(hitFrom("self", "e1", 20, 7))
	s.applyHit(hitFrom("self", "e1", 20, 7))
	if e.Health != game.EnemyMaxHealth-40 {
		t.Errorf("with dedup off every delivery applies, health %d", e.Health)
	}
}

func TestSeenHitRingEvicts(t *testing.T) {
	s, _ := testSession(false)
	for i := 0; i < hitDedupSize+1; i++ {
		s.seenHit(hitKey{shooter: "s", target: "t", seq: uint32(i + 1)})
	}
	if len(s.seenSet) > hitDedupSize {
		t.Fatalf("seen set grew past the ring: %d", len(s.seenSet))
	}
	if s.seenHit(hitKey{shooter: "s", target: "t", seq: 1}) {
		t.Error("oldest entry should have been evicted")
	}
}

func TestContactStrikeFlow(t *testing.T) {
	s, rec := testSession(false)
	addEnemy(s, "e1", game.Vec3{X: 1}, game.PhaseAttack)

	s.scanEnemyContact()
	hits := rec.texts(protocol.MsgHit)
	if len(hits) != 1 {
		t.Fatalf("expected 1 strike, got %d", len(hits))
	}
	msg := hits[0].data.(protocol.HitMsg)
	if msg.Shooter != "e1" || msg.Target != "self" || msg.Damage != game.EnemyStrikeDamage {
		t.Errorf("unexpected strike claim: %+v", msg)
	}
	if s.self.Health != game.PlayerMaxHealth {
		t.Error("contact damage must wait for the relay echo")
	}

	s.scanEnemyContact()
	if len(rec.texts(protocol.MsgHit)) != 1 {
		t.Error("strike cooldown should hold")
	}

	s.tickStrikes(game.EnemyStrikePeriod + 0.1)
	s.scanEnemyContact()
	if len(rec.texts(protocol.MsgHit)) != 2 {
		t.Error("cooldown expiry should allow the next strike")
	}
}

func TestContactStrikeRequiresAttackPhaseInRange(t *testing.T) {
	s, rec := testSession(false)
	addEnemy(s, "far", game.Vec3{X: 3}, game.PhaseAttack)
	addEnemy(s, "calm", game.Vec3{X: 1}, game.PhaseAlert)

	s.scanEnemyContact()
	if len(rec.texts(protocol.MsgHit)) != 0 {
		t.Error("out-of-range or non-attacking enemies must not strike")
	}
}

func TestContactStrikeSkipsDeadSelf(t *testing.T) {
	s, rec := testSession(false)
	stubPoseFactory(s)
	addEnemy(s, "e1", game.Vec3{X: 1}, game.PhaseAttack)
	s.self.TakeDamage(game.PlayerMaxHealth)

	s.scanEnemyContact()
	if len(rec.texts(protocol.MsgHit)) != 0 {
		t.Error("a dead player reports no strikes")
	}
}

func TestScanOwnProjectileHitsEnemy(t *testing.T) {
	s, rec := testSession(false)
	addEnemy(s, "e1", game.Vec3{X: 5}, game.PhaseAlert)
	pr := game.NewProjectile("self", game.Vec3{X: 4, Y: game.MuzzleHeight}, game.Vec3{X: 1}, false)
	s.world.AddProjectile(pr)

	s.world.AdvanceProjectiles(1.0 / 30)
	s.scanProjectileHits()

	hits := rec.texts(protocol.MsgHit)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit claim, got %d", len(hits))
	}
	msg := hits[0].data.(protocol.HitMsg)
	if msg.Shooter != "self" || msg.Target != "e1" || msg.Damage != game.ProjectileDamage {
		t.Errorf("unexpected claim: %+v", msg)
	}
	if pr.Alive {
		t.Error("a landed projectile stops flying")
	}

	// enemy health untouched until the echo comes back
	if s.world.Enemies["e1"].Health != game.EnemyMaxHealth {
		t.Error("hit must not apply before the echo")
	}
}

func TestScanRemoteProjectileNeverArbitrates(t *testing.T) {
	s, rec := testSession(false)
	addEnemy(s, "e1", game.Vec3{X: 5}, game.PhaseAlert)
	pr := game.NewProjectile("p2", game.Vec3{X: 4, Y: game.MuzzleHeight}, game.Vec3{X: 1}, true)
	s.world.AddProjectile(pr)

	s.world.AdvanceProjectiles(1.0 / 30)
	s.scanProjectileHits()

	if len(rec.texts(protocol.MsgHit)) != 0 {
		t.Error("remote copies are visual only")
	}
	if !pr.Alive {
		t.Error("remote copies fly through; their owner arbitrates")
	}
}

func TestScanProjectileHitsRemotePlayer(t *testing.T) {
	s, rec := testSession(false)
	st := protocol.NewPlayerState("p2")
	st.X = 5
	s.world.ApplyPlayerState(st)
	pr := game.NewProjectile("self", game.Vec3{X: 4, Y: game.MuzzleHeight}, game.Vec3{X: 1}, false)
	s.world.AddProjectile(pr)

	s.world.AdvanceProjectiles(1.0 / 30)
	s.scanProjectileHits()

	hits := rec.texts(protocol.MsgHit)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit claim, got %d", len(hits))
	}
	if msg := hits[0].data.(protocol.HitMsg); msg.Target != "p2" {
		t.Errorf("expected target p2, got %q", msg.Target)
	}
}

func TestScanProjectileSkipsOwner(t *testing.T) {
	s, rec := testSession(false)
	pr := game.NewProjectile("self", game.Vec3{X: -1, Y: game.MuzzleHeight}, game.Vec3{X: 1}, false)
	s.world.AddProjectile(pr)

	s.world.AdvanceProjectiles(1.0 / 30) // sweep crosses the owner at the origin
	s.scanProjectileHits()

	if len(rec.texts(protocol.MsgHit)) != 0 {
		t.Error("a projectile must not hit its own shooter")
	}
}

func TestDispatchJoinAndLeave(t *testing.T) {
	s, _ := testSession(false)

	s.dispatch(inbound{raw: mustEncode(t, protocol.MsgJoin, protocol.JoinMsg{
		ID: "p2", State: protocol.NewPlayerState("p2"),
	})})
	if s.world.Player("p2") == nil {
		t.Fatal("join should create the peer")
	}

	s.dispatch(inbound{raw: mustEncode(t, protocol.MsgLeave, protocol.LeaveMsg{ID: "p2"})})
	if s.world.Player("p2") != nil {
		t.Error("leave should remove the peer")
	}
}

func TestDispatchJoinForSelfIgnored(t *testing.T) {
	s, _ := testSession(false)
	s.self.Pos.X = 3

	s.dispatch(inbound{raw: mustEncode(t, protocol.MsgJoin, protocol.JoinMsg{
		ID: "self", State: protocol.NewPlayerState("self"),
	})})
	if s.self.Pos.X != 3 {
		t.Error("a reflected join must not reset the own player")
	}
}

func TestDispatchHostPromotion(t *testing.T) {
	s, _ := testSession(false)

	s.dispatch(inbound{raw: mustEncode(t, protocol.MsgHost, protocol.HostMsg{IsHost: true})})
	if !s.host {
		t.Fatal("host grant should promote")
	}

	s.dispatch(inbound{raw: mustEncode(t, protocol.MsgHost, protocol.HostMsg{IsHost: true})})
	if !s.host {
		t.Error("repeated grant stays host")
	}
}

func TestDispatchShootSpawnsRemoteProjectile(t *testing.T) {
	s, _ := testSession(false)

	s.dispatch(inbound{raw: mustEncode(t, protocol.MsgShoot, protocol.ShootMsg{
		ID: "p2", OX: 1, OY: game.MuzzleHeight, DZ: 1,
	})})
	if len(s.world.Projectiles) != 1 {
		t.Fatalf("expected 1 projectile, got %d", len(s.world.Projectiles))
	}
	for _, pr := range s.world.Projectiles {
		if !pr.Remote || pr.OwnerID != "p2" {
			t.Errorf("expected a remote copy owned by p2: %+v", pr)
		}
	}

	// a shoot carrying our own id is a relay defect; never double-spawn
	s.dispatch(inbound{raw: mustEncode(t, protocol.MsgShoot, protocol.ShootMsg{ID: "self", DZ: 1})})
	if len(s.world.Projectiles) != 1 {
		t.Error("own shoot must not spawn a second projectile")
	}
}

func TestDispatchRagdollEnd(t *testing.T) {
	s, _ := testSession(false)
	st := protocol.NewPlayerState("p2")
	st.Health = 0
	st.Action = protocol.ActionDead
	s.world.ApplyPlayerState(st)
	s.world.ApplyRagdoll(protocol.RagdollState{ID: "p2", X: 1})

	s.dispatch(inbound{raw: mustEncode(t, protocol.MsgRagdollEnd, protocol.RagdollEndMsg{ID: "p2"})})
	if _, ok := s.world.Ragdolls["p2"]; ok {
		t.Error("ragdoll end should drop the body")
	}
	if s.world.Player("p2").Action != protocol.ActionIdle {
		t.Error("ragdoll end should restore the idle pose")
	}
}

func TestDispatchFrameStateSkipsSelf(t *testing.T) {
	s, _ := testSession(false)

	own := protocol.NewPlayerState("self")
	own.X = 99
	s.dispatch(inbound{binary: true, raw: mustFrame(t, protocol.FrameState, own)})
	if s.self.Pos.X != 0 {
		t.Error("a reflected state frame must not move the own player")
	}

	other := protocol.NewPlayerState("p2")
	other.X = 7
	s.dispatch(inbound{binary: true, raw: mustFrame(t, protocol.FrameState, other)})
	if p := s.world.Player("p2"); p == nil || p.Pos.X != 7 {
		t.Error("peer state frames apply")
	}
}

func TestDispatchFrameEnemiesByRole(t *testing.T) {
	frameMsg := protocol.EnemyStatesMsg{Tick: 1, Enemies: []protocol.EnemyState{
		{ID: "e1", X: 2, Action: protocol.EnemyWalk},
	}}

	follower, _ := testSession(false)
	follower.dispatch(inbound{binary: true, raw: mustFrame(t, protocol.FrameEnemies, frameMsg)})
	if len(follower.world.Enemies) != 1 {
		t.Error("followers apply enemy frames")
	}

	host, _ := testSession(true)
	host.dispatch(inbound{binary: true, raw: mustFrame(t, protocol.FrameEnemies, frameMsg)})
	if len(host.world.Enemies) != 0 {
		t.Error("the authority ignores enemy frames")
	}
}

func TestDispatchFrameRagdollSkipsSelf(t *testing.T) {
	s, _ := testSession(false)

	s.dispatch(inbound{binary: true, raw: mustFrame(t, protocol.FrameRagdoll, protocol.RagdollState{ID: "self", X: 5})})
	if len(s.world.Ragdolls) != 0 {
		t.Error("own ragdoll runs on the local pose source only")
	}

	s.dispatch(inbound{binary: true, raw: mustFrame(t, protocol.FrameRagdoll, protocol.RagdollState{ID: "p2", X: 5})})
	if r, ok := s.world.Ragdolls["p2"]; !ok || r.Pos.X != 5 {
		t.Error("peer ragdoll frames apply")
	}
}

func TestDispatchFrameSnapshot(t *testing.T) {
	s, _ := testSession(false)
	stale := protocol.NewPlayerState("self")
	stale.X = 50
	peer := protocol.NewPlayerState("p2")
	peer.X = 4

	snap := protocol.SnapshotMsg{Players: map[string]protocol.PlayerState{
		"self": stale,
		"p2":   peer,
	}}
	s.dispatch(inbound{binary: true, raw: mustFrame(t, protocol.FrameSnapshot, snap)})

	if s.self.Pos.X != 0 {
		t.Error("snapshot must not overwrite the own player")
	}
	if p := s.world.Player("p2"); p == nil || p.Pos.X != 4 {
		t.Error("snapshot seeds the peers")
	}
}

func TestStepPublishCadence(t *testing.T) {
	s, rec := testSession(true)
	for i := 0; i < 6; i++ {
		s.step(1.0 / 60)
	}
	if n := len(rec.framesOf(protocol.FrameState)); n != 2 {
		t.Errorf("expected 2 state frames over 6 ticks at div 3, got %d", n)
	}
	if n := len(rec.framesOf(protocol.FrameEnemies)); n != 2 {
		t.Errorf("the host publishes enemies at the same cadence, got %d", n)
	}

	follower, frec := testSession(false)
	for i := 0; i < 6; i++ {
		follower.step(1.0 / 60)
	}
	if n := len(frec.framesOf(protocol.FrameState)); n != 2 {
		t.Errorf("follower state cadence wrong, got %d", n)
	}
	if n := len(frec.framesOf(protocol.FrameEnemies)); n != 0 {
		t.Errorf("followers never publish enemies, got %d", n)
	}
}

func TestStepHostTopsUpEnemies(t *testing.T) {
	host, _ := testSession(true)
	host.step(1.0 / 60)
	if len(host.world.Enemies) != 2 {
		t.Errorf("host should spawn up to the target, got %d", len(host.world.Enemies))
	}

	follower, _ := testSession(false)
	follower.step(1.0 / 60)
	if len(follower.world.Enemies) != 0 {
		t.Error("followers never simulate enemies")
	}
}

// firePilot always pulls the trigger facing +Z
type firePilot struct{}

func (firePilot) Steer(dt float64, w *game.World, self *game.Player) Intent {
	return Intent{Aim: game.Vec3{Z: 1}, Fire: true}
}

func TestDriveFiresThroughPilot(t *testing.T) {
	s, rec := testSession(false)
	s.pilot = firePilot{}

	s.step(1.0 / 60)
	shoots := rec.texts(protocol.MsgShoot)
	if len(shoots) != 1 {
		t.Fatalf("expected 1 shoot, got %d", len(shoots))
	}
	msg := shoots[0].data.(protocol.ShootMsg)
	if msg.ID != "self" || msg.DZ != 1 {
		t.Errorf("unexpected shoot seed: %+v", msg)
	}
	if len(s.world.Projectiles) != 1 {
		t.Fatal("firing should spawn the local authoritative projectile")
	}
	for _, pr := range s.world.Projectiles {
		if pr.Remote {
			t.Error("the local projectile arbitrates, it is not a remote copy")
		}
	}

	// cooldown holds through the next tick
	s.step(1.0 / 60)
	if len(rec.texts(protocol.MsgShoot)) != 1 {
		t.Error("fire cooldown should block an immediate second shot")
	}

	// and releases after it runs out
	for i := 0; i < 15; i++ {
		s.step(1.0 / 60)
	}
	if len(rec.texts(protocol.MsgShoot)) < 2 {
		t.Error("expected another shot after the cooldown")
	}
}

func TestRagdollLifecycle(t *testing.T) {
	s, rec := testSession(false)
	calls := stubPoseFactory(s)

	s.startRagdoll(game.Vec3{X: 1})
	if *calls != 1 {
		t.Fatal("expected one pose source")
	}
	s.startRagdoll(game.Vec3{X: 1})
	if *calls != 1 {
		t.Error("a second start while running is a no-op")
	}

	s.tickRagdoll(1.0 / 60)
	if s.ragPos.X != 1 {
		t.Errorf("pose should advance with ticks, got %v", s.ragPos)
	}
	if r, ok := s.world.Ragdolls["self"]; !ok || r.Pos.X != 1 {
		t.Error("the own world mirrors the owned ragdoll")
	}

	// publish carries the pose while the sequence runs
	s.publish()
	if n := len(rec.framesOf(protocol.FrameRagdoll)); n != 1 {
		t.Errorf("expected a ragdoll frame in publish, got %d", n)
	}

	s.endRagdoll()
	if s.pose != nil {
		t.Fatal("end should clear the pose source")
	}
	if len(rec.texts(protocol.MsgRagdollEnd)) != 1 {
		t.Fatal("end must announce itself")
	}
	if _, ok := s.world.Ragdolls["self"]; ok {
		t.Error("end drops the body")
	}

	s.endRagdoll()
	if len(rec.texts(protocol.MsgRagdollEnd)) != 1 {
		t.Error("ending twice announces once")
	}
}

func TestRagdollSafetyTimeout(t *testing.T) {
	s, rec := testSession(false)
	stubPoseFactory(s)

	s.startRagdoll(game.Vec3{X: 1})
	for i := 0; i < 500; i++ {
		s.tickRagdoll(1.0 / 50)
	}
	if s.pose != nil {
		t.Fatal("the safety timeout should end the sequence")
	}
	if len(rec.texts(protocol.MsgRagdollEnd)) != 1 {
		t.Errorf("expected exactly one end, got %d", len(rec.texts(protocol.MsgRagdollEnd)))
	}
}

func TestRespawnEndsRagdollThenPublishesLiveState(t *testing.T) {
	s, rec := testSession(false)
	stubPoseFactory(s)

	for seq := uint32(1); seq <= 5; seq++ {
		s.applyHit(hitFrom("p2", "self", 20, seq))
	}
	if s.self.Alive() || s.pose == nil {
		t.Fatal("setup: player should be dead with a ragdoll running")
	}

	s.self.RespawnT = 0.001
	for i := 0; i < 3; i++ {
		s.step(1.0 / 60)
	}

	if !s.self.Alive() {
		t.Fatal("player should have respawned")
	}
	if s.pose != nil {
		t.Fatal("respawn ends the ragdoll")
	}

	endAt := -1
	for i, ev := range rec.events {
		if ev.msgType == protocol.MsgRagdollEnd {
			endAt = i
			break
		}
	}
	if endAt < 0 {
		t.Fatal("respawn must announce the ragdoll end")
	}
	for _, ev := range rec.events[endAt+1:] {
		if ev.msgType == "" && ev.tag == protocol.FrameState {
			if st := ev.frame.(protocol.PlayerState); st.Health <= 0 {
				t.Error("the first state after the end must carry live health")
			}
			return
		}
	}
	t.Error("expected a state frame after the ragdoll end")
}
