package relay

import (
	"fmt"
	"log"
	"sync"
	"time"

	"gridfire/internal/protocol"
)

const (
	maxSessions   = 64
	maxConnsPerIP = 16

	trafficSampleEvery = time.Minute
)

// Hub owns the session registry and fans messages out. It assigns ids,
// seats the Host, and serves membership snapshots; payload semantics
// stay with the sessions. All registry mutation funnels through Run.
type Hub struct {
	mu        sync.RWMutex
	sessions  map[string]*Client
	order     []string // connect order; the election walks it front to back
	hostID    string
	lastState map[string]protocol.PlayerState // latest per-session state, serves snapshots

	register   chan *Client
	unregister chan *Client

	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int

	journal   *Journal
	startedAt time.Time

	statMu  sync.Mutex
	msgsIn  uint64
	msgsOut uint64
}

// NewHub creates a Hub. journal may be nil to disable the event log.
func NewHub(journal *Journal) *Hub {
	return &Hub{
		sessions:   make(map[string]*Client),
		lastState:  make(map[string]protocol.PlayerState),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		ipConns:    make(map[string]int),
		journal:    journal,
		startedAt:  time.Now(),
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxSessions {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events and periodic traffic samples
func (h *Hub) Run() {
	ticker := time.NewTicker(trafficSampleEvery)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.admit(client)
		case client := <-h.unregister:
			h.drop(client)
		case <-ticker.C:
			h.sampleTraffic()
		}
	}
}

// admit seats a new session: first connector (or first after everyone
// left) becomes Host. The private welcome carries the verdict, the
// snapshot brings the joiner up to date, and everyone else hears Join.
func (h *Hub) admit(c *Client) {
	state := protocol.NewPlayerState(c.id)

	h.mu.Lock()
	isHost := h.hostID == ""
	if isHost {
		h.hostID = c.id
	}
	h.sessions[c.id] = c
	h.order = append(h.order, c.id)
	h.lastState[c.id] = state

	snap := protocol.SnapshotMsg{Players: make(map[string]protocol.PlayerState, len(h.lastState)-1)}
	for id, st := range h.lastState {
		if id != c.id {
			snap.Players[id] = st
		}
	}
	count := len(h.sessions)
	h.mu.Unlock()

	c.sendEnvelope(protocol.MsgWelcome, protocol.WelcomeMsg{ID: c.id, IsHost: isHost})
	if frame, err := protocol.EncodeFrame(protocol.FrameSnapshot, snap); err == nil {
		c.SendBinary(frame)
	} else {
		log.Printf("snapshot encode error: %v", err)
	}

	if join, err := protocol.Encode(protocol.MsgJoin, protocol.JoinMsg{ID: c.id, State: state}); err == nil {
		h.broadcastExcept(c.id, join, false)
	}

	h.journal.Record(EvtConnect, c.id, "")
	log.Printf("session %s connected (%d online, host=%v)", c.id, count, isHost)
}

// drop removes a departed session. If it held authority, the earliest
// connected survivor is promoted and told so privately; everyone else
// only hears Leave.
func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	if _, ok := h.sessions[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, c.id)
	delete(h.lastState, c.id)
	for i, id := range h.order {
		if id == c.id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	close(c.send)

	var promoted *Client
	if h.hostID == c.id {
		h.hostID = ""
		if len(h.order) > 0 {
			h.hostID = h.order[0]
			promoted = h.sessions[h.hostID]
		}
	}
	count := len(h.sessions)
	h.mu.Unlock()

	if leave, err := protocol.Encode(protocol.MsgLeave, protocol.LeaveMsg{ID: c.id}); err == nil {
		h.broadcastExcept(c.id, leave, false)
	}
	h.journal.Record(EvtDisconnect, c.id, "")
	log.Printf("session %s disconnected (%d online)", c.id, count)

	if promoted != nil {
		promoted.sendEnvelope(protocol.MsgHost, protocol.HostMsg{IsHost: true})
		h.journal.Record(EvtHostAssign, promoted.id, "")
		log.Printf("session %s promoted to host", promoted.id)
	}
}

// RelayText fans an inbound text envelope out. Hit events go to every
// session including the sender, so that all peers, shooter included,
// apply the hit from the same echoed copy. Everything else goes to the
// other sessions only.
func (h *Hub) RelayText(senderID, msgType string, raw []byte) {
	if !h.admitted(senderID) {
		return
	}
	h.countIn()
	if msgType == protocol.MsgHit {
		h.broadcastAll(raw, false)
		return
	}
	h.broadcastExcept(senderID, raw, false)
}

// RelayBinary fans an inbound binary frame out to the other sessions.
// State frames refresh the sender's snapshot cache entry on the way
// through; the forwarded bytes are untouched.
func (h *Hub) RelayBinary(senderID string, raw []byte) {
	if !h.admitted(senderID) {
		return
	}
	h.countIn()

	tag, body, err := protocol.SplitFrame(raw)
	if err != nil {
		return
	}
	if tag == protocol.FrameState {
		var st protocol.PlayerState
		if err := protocol.DecodeFrame(body, &st); err == nil {
			st.ID = senderID // the cache only ever speaks for the sender
			h.mu.Lock()
			if _, ok := h.sessions[senderID]; ok {
				h.lastState[senderID] = st
			}
			h.mu.Unlock()
		}
	}
	h.broadcastExcept(senderID, raw, true)
}

func (h *Hub) admitted(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[id]
	return ok
}

// broadcastExcept fans pre-encoded bytes to every session but one.
// Sends never block: a stalled receiver drops messages instead of
// holding up the rest of the arena.
func (h *Hub) broadcastExcept(senderID string, data []byte, binary bool) {
	h.mu.RLock()
	n := 0
	for id, c := range h.sessions {
		if id == senderID {
			continue
		}
		if binary {
			c.SendBinary(data)
		} else {
			c.SendRaw(data)
		}
		n++
	}
	h.mu.RUnlock()
	h.countOut(n)
}

func (h *Hub) broadcastAll(data []byte, binary bool) {
	h.mu.RLock()
	n := len(h.sessions)
	for _, c := range h.sessions {
		if binary {
			c.SendBinary(data)
		} else {
			c.SendRaw(data)
		}
	}
	h.mu.RUnlock()
	h.countOut(n)
}

func (h *Hub) countIn() {
	h.statMu.Lock()
	h.msgsIn++
	h.statMu.Unlock()
}

func (h *Hub) countOut(n int) {
	if n == 0 {
		return
	}
	h.statMu.Lock()
	h.msgsOut += uint64(n)
	h.statMu.Unlock()
}

// sampleTraffic journals a cumulative traffic snapshot
func (h *Hub) sampleTraffic() {
	h.statMu.Lock()
	in, out := h.msgsIn, h.msgsOut
	h.statMu.Unlock()
	if in == 0 && out == 0 {
		return
	}
	h.journal.Record(EvtTraffic, "", fmt.Sprintf(`{"in":%d,"out":%d,"sessions":%d}`, in, out, h.SessionCount()))
}

// HostID returns the current Host's session id, or "" with no sessions
func (h *Hub) HostID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.hostID
}

// SessionCount returns the number of admitted sessions
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// SessionInfo is one /status registry row
type SessionInfo struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
	Host        bool      `json:"host"`
}

// Status is the /status response body
type Status struct {
	Uptime   string         `json:"uptime"`
	HostID   string         `json:"host_id"`
	Sessions []SessionInfo  `json:"sessions"`
	MsgsIn   uint64         `json:"msgs_in"`
	MsgsOut  uint64         `json:"msgs_out"`
	Events   map[string]int `json:"events,omitempty"`
}

// Status reports the live registry in connect order plus traffic and
// journal counters.
func (h *Hub) Status() Status {
	h.mu.RLock()
	s := Status{
		Uptime:   time.Since(h.startedAt).Round(time.Second).String(),
		HostID:   h.hostID,
		Sessions: make([]SessionInfo, 0, len(h.order)),
	}
	for _, id := range h.order {
		c := h.sessions[id]
		if c == nil {
			continue
		}
		s.Sessions = append(s.Sessions, SessionInfo{
			ID:          id,
			ConnectedAt: c.connectedAt,
			Host:        id == h.hostID,
		})
	}
	h.mu.RUnlock()

	h.statMu.Lock()
	s.MsgsIn, s.MsgsOut = h.msgsIn, h.msgsOut
	h.statMu.Unlock()

	if counts, err := h.journal.EventCounts(7); err == nil {
		s.Events = counts
	}
	return s
}
