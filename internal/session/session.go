// Package session runs one independently simulating arena client: it
// owns a player, mirrors everyone else's, arbitrates its own hits and,
// when seated as Host, simulates the enemies for the whole arena.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/gorilla/websocket"

	"gridfire/internal/config"
	"gridfire/internal/game"
	"gridfire/internal/protocol"
)

const (
	writeWait   = 10 * time.Second
	welcomeWait = 5 * time.Second
	inboxSize   = 256
	maxDelta    = 0.1 // seconds; longer stalls simulate as one slow tick
)

// Link is the writing half of the relay connection. The run loop is
// its only caller, which satisfies the one-writer rule of the
// underlying connection.
type Link interface {
	SendText(msgType string, data interface{}) error
	SendFrame(tag byte, v interface{}) error
}

type wsLink struct {
	conn *websocket.Conn
}

func (l wsLink) SendText(msgType string, data interface{}) error {
	raw, err := protocol.Encode(msgType, data)
	if err != nil {
		return err
	}
	l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return l.conn.WriteMessage(websocket.TextMessage, raw)
}

func (l wsLink) SendFrame(tag byte, v interface{}) error {
	raw, err := protocol.EncodeFrame(tag, v)
	if err != nil {
		return err
	}
	l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return l.conn.WriteMessage(websocket.BinaryMessage, raw)
}

// inbound is one message off the read pump
type inbound struct {
	binary bool
	raw    []byte
	err    error
}

// Session is one simulating client. Everything inside it is confined
// to the goroutine running Run; other goroutines reach in through
// Inspect only.
type Session struct {
	cfg   config.Session
	id    string
	host  bool
	world *game.World
	self  *game.Player
	pilot Pilot
	link  Link

	conn   *websocket.Conn
	inbox  chan inbound
	probes chan func()
	done   chan struct{}

	tick uint64

	// hit arbiter state
	hitSeq   uint32
	seenRing []hitKey
	seenIdx  int
	seenSet  map[hitKey]bool
	strikeCD map[string]float64

	// ragdoll owner state
	pose      game.PoseSource
	poseT     float64
	ragPos    game.Vec3
	ragOrient game.Quat
	newPose   func(pos game.Vec3, yaw float64, impulse game.Vec3) game.PoseSource
}

func newSession(cfg config.Session, id string, host bool, pilot Pilot) *Session {
	if cfg.TickHz <= 0 {
		cfg.TickHz = 60
	}
	if cfg.PublishDiv <= 0 {
		cfg.PublishDiv = 1
	}
	if cfg.EnemyCount < 0 {
		cfg.EnemyCount = 0
	}

	w := game.NewWorld()
	self := game.NewPlayer(id)
	w.AddPlayer(self)

	return &Session{
		cfg:      cfg,
		id:       id,
		host:     host,
		world:    w,
		self:     self,
		pilot:    pilot,
		inbox:    make(chan inbound, inboxSize),
		probes:   make(chan func()),
		done:     make(chan struct{}),
		seenRing: make([]hitKey, hitDedupSize),
		seenSet:  make(map[hitKey]bool, hitDedupSize),
		strikeCD: make(map[string]float64),
		newPose: func(pos game.Vec3, yaw float64, impulse game.Vec3) game.PoseSource {
			return game.NewSettleBody(pos, yaw, impulse)
		},
	}
}

// Connect dials the relay and seats the session. The relay's first
// message is the private welcome carrying the assigned id and the
// authority verdict; everything after it flows through Run.
func Connect(ctx context.Context, cfg config.Session, pilot Pilot) (*Session, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.RelayURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(welcomeWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	env, err := protocol.Decode(raw)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if env.T != protocol.MsgWelcome {
		conn.Close()
		return nil, fmt.Errorf("expected welcome, got %q", env.T)
	}
	var w protocol.WelcomeMsg
	if err := json.Unmarshal(env.D, &w); err != nil {
		conn.Close()
		return nil, fmt.Errorf("welcome payload: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	s := newSession(cfg, w.ID, w.IsHost, pilot)
	s.conn = conn
	s.link = wsLink{conn}

	role := "follower"
	if s.host {
		role = "host"
	}
	log.Printf("session %s connected as %s", s.id, role)
	return s, nil
}

// ID returns the relay-assigned session id
func (s *Session) ID() string {
	return s.id
}

// Inspect runs fn on the simulation goroutine between ticks and waits
// for it to finish. Renderers and tests read world state through it
// instead of taking locks. Only valid while Run is active.
func (s *Session) Inspect(fn func()) {
	doneFn := make(chan struct{})
	s.probes <- func() {
		fn()
		close(doneFn)
	}
	<-doneFn
}

// Run drives the session until the context ends or the relay drops
// the connection. Call it once.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.conn.Close()
	go s.readLoop()

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.TickHz))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return ctx.Err()

		case m := <-s.inbox:
			if m.err != nil {
				return s.finish(m.err)
			}
			s.dispatch(m)

		case fn := <-s.probes:
			fn()

		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if dt > maxDelta {
				dt = maxDelta
			}
			if err := s.drainInbox(); err != nil {
				return s.finish(err)
			}
			s.step(dt)
		}
	}
}

func (s *Session) finish(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return fmt.Errorf("relay read: %w", err)
}

// readLoop feeds the inbox from the connection. It exits on read error
// or when Run has finished.
func (s *Session) readLoop() {
	for {
		msgType, raw, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case s.inbox <- inbound{err: err}:
			case <-s.done:
			}
			return
		}
		select {
		case s.inbox <- inbound{binary: msgType == websocket.BinaryMessage, raw: raw}:
		case <-s.done:
			return
		}
	}
}

// drainInbox applies everything queued before the tick simulates
func (s *Session) drainInbox() error {
	for {
		select {
		case m := <-s.inbox:
			if m.err != nil {
				return m.err
			}
			s.dispatch(m)
		default:
			return nil
		}
	}
}

func (s *Session) dispatch(m inbound) {
	if m.binary {
		s.dispatchFrame(m.raw)
		return
	}

	env, err := protocol.Decode(m.raw)
	if err != nil {
		log.Printf("bad envelope: %v", err)
		return
	}

	switch env.T {
	case protocol.MsgJoin:
		var join protocol.JoinMsg
		if err := json.Unmarshal(env.D, &join); err != nil {
			return
		}
		if join.ID == s.id {
			return
		}
		s.world.ApplyPlayerState(join.State)
		log.Printf("session %s: peer %s joined", s.id, join.ID)

	case protocol.MsgLeave:
		var leave protocol.LeaveMsg
		if err := json.Unmarshal(env.D, &leave); err != nil {
			return
		}
		s.world.RemovePlayer(leave.ID)
		log.Printf("session %s: peer %s left", s.id, leave.ID)

	case protocol.MsgHost:
		var h protocol.HostMsg
		if err := json.Unmarshal(env.D, &h); err != nil {
			return
		}
		if h.IsHost && !s.host {
			s.host = true
			log.Printf("session %s: promoted to host", s.id)
		}

	case protocol.MsgShoot:
		var shoot protocol.ShootMsg
		if err := json.Unmarshal(env.D, &shoot); err != nil {
			return
		}
		if shoot.ID == s.id {
			return
		}
		s.world.AddProjectile(game.NewProjectile(
			shoot.ID,
			game.Vec3{X: shoot.OX, Y: shoot.OY, Z: shoot.OZ},
			game.Vec3{X: shoot.DX, Y: shoot.DY, Z: shoot.DZ},
			true,
		))

	case protocol.MsgHit:
		var hit protocol.HitMsg
		if err := json.Unmarshal(env.D, &hit); err != nil {
			return
		}
		s.applyHit(hit)

	case protocol.MsgRagdollEnd:
		var end protocol.RagdollEndMsg
		if err := json.Unmarshal(env.D, &end); err != nil {
			return
		}
		s.world.EndRagdoll(end.ID)
	}
}

func (s *Session) dispatchFrame(raw []byte) {
	tag, body, err := protocol.SplitFrame(raw)
	if err != nil {
		return
	}

	switch tag {
	case protocol.FrameState:
		var st protocol.PlayerState
		if err := protocol.DecodeFrame(body, &st); err != nil {
			return
		}
		if st.ID == s.id {
			return // nobody else speaks for this player
		}
		s.world.ApplyPlayerState(st)

	case protocol.FrameEnemies:
		if s.host {
			return // the authority never follows another sim's enemies
		}
		var msg protocol.EnemyStatesMsg
		if err := protocol.DecodeFrame(body, &msg); err != nil {
			return
		}
		s.world.SyncEnemies(msg.Enemies)

	case protocol.FrameRagdoll:
		var st protocol.RagdollState
		if err := protocol.DecodeFrame(body, &st); err != nil {
			return
		}
		if st.ID == s.id {
			return // our own body runs on the local pose source
		}
		s.world.ApplyRagdoll(st)

	case protocol.FrameSnapshot:
		var snap protocol.SnapshotMsg
		if err := protocol.DecodeFrame(body, &snap); err != nil {
			return
		}
		for _, st := range snap.Players {
			if st.ID == s.id {
				continue
			}
			s.world.ApplyPlayerState(st)
		}
	}
}

// step runs one simulation tick
func (s *Session) step(dt float64) {
	s.tick++
	s.self.Update(dt)
	s.tickStrikes(dt)

	if s.self.CanRespawn() {
		s.respawn()
	}
	if s.self.Alive() && s.pilot != nil {
		s.drive(dt)
	}

	if s.host {
		s.world.AdvanceEnemies(dt, s.cfg.EnemyCount)
	}
	s.world.AdvanceProjectiles(dt)
	s.scanProjectileHits()
	s.scanEnemyContact()
	s.tickRagdoll(dt)

	if s.tick%uint64(s.cfg.PublishDiv) == 0 {
		s.publish()
	}
}

func (s *Session) drive(dt float64) {
	in := s.pilot.Steer(dt, s.world, s.self)
	s.self.Firing = in.Fire
	s.self.Move(in.Move, in.Yaw, dt)
	if in.Fire && s.self.CanFire() {
		s.fire(in.Aim)
	}
}

// fire spawns the local authoritative projectile and replicates the
// seed so peers can fly their visual copies.
func (s *Session) fire(aim game.Vec3) {
	dir := aim.Normalized()
	if dir.LengthSq() == 0 {
		dir = game.Vec3{X: math.Sin(s.self.Rot.Yaw), Z: math.Cos(s.self.Rot.Yaw)}
	}
	origin := game.MuzzlePoint(s.self.Pos, s.self.Rot.Yaw)

	s.world.AddProjectile(game.NewProjectile(s.id, origin, dir, false))
	s.self.FireCD = game.FireCooldown

	if err := s.link.SendText(protocol.MsgShoot, protocol.ShootMsg{
		ID: s.id,
		OX: origin.X, OY: origin.Y, OZ: origin.Z,
		DX: dir.X, DY: dir.Y, DZ: dir.Z,
	}); err != nil {
		log.Printf("send shoot: %v", err)
	}
}

// publish sends this session's share of the arena at the replication
// cadence: its own state, the enemy array when Host, and the ragdoll
// pose while one is running.
func (s *Session) publish() {
	if err := s.link.SendFrame(protocol.FrameState, s.self.ToState()); err != nil {
		log.Printf("publish state: %v", err)
	}

	if s.host {
		msg := protocol.EnemyStatesMsg{Tick: s.tick, Enemies: s.world.EnemyStates()}
		if err := s.link.SendFrame(protocol.FrameEnemies, msg); err != nil {
			log.Printf("publish enemies: %v", err)
		}
	}

	if s.pose != nil {
		if err := s.link.SendFrame(protocol.FrameRagdoll, s.ragdollState()); err != nil {
			log.Printf("publish ragdoll: %v", err)
		}
	}
}

func (s *Session) respawn() {
	s.self.Respawn()
	s.endRagdoll()
	log.Printf("session %s respawned", s.id)
}
