package protocol

import "encoding/json"

// Text message types (JSON envelopes)
const (
	MsgWelcome    = "welcome"     // relay -> new session: assigned id, host flag
	MsgJoin       = "join"        // relay -> others: a session connected
	MsgLeave      = "leave"       // relay -> others: a session disconnected
	MsgHost       = "host"        // relay -> one session: authority assignment
	MsgShoot      = "shoot"       // session -> others: projectile spawn seed
	MsgHit        = "hit"         // session -> everyone, sender included
	MsgRagdollEnd = "ragdoll_end" // ragdoll owner -> others: sequence finished
)

// Binary frame tags. High-rate state messages travel as binary WebSocket
// frames: one tag byte followed by a msgpack body.
const (
	FrameState    byte = 0x01 // PlayerState
	FrameEnemies  byte = 0x02 // EnemyStatesMsg
	FrameRagdoll  byte = 0x03 // RagdollState
	FrameSnapshot byte = 0x04 // SnapshotMsg, relay -> new session
)

// Animation actions carried on the wire. The rendering layer maps these
// onto character poses; the protocol only transports them.
const (
	ActionIdle    = "idle"
	ActionRun     = "run"
	ActionShoot   = "shoot"
	ActionHit     = "hit"
	ActionStunned = "stunned"
	ActionDead    = "dead"
)

// Enemy animation actions published by the Host.
const (
	EnemyIdle   = "idle"
	EnemyWalk   = "walk"
	EnemyAttack = "attack"
	EnemyDie    = "die"
)

// Envelope wraps all outgoing text messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is the incoming side of Envelope. The payload stays raw
// until the type switch knows what to unmarshal it into.
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// WelcomeMsg is the first message a session receives after connecting
type WelcomeMsg struct {
	ID     string `json:"id"`
	IsHost bool   `json:"host"`
}

// JoinMsg announces a new session to everyone already connected
type JoinMsg struct {
	ID    string      `json:"id"`
	State PlayerState `json:"state"`
}

// LeaveMsg announces a departed session
type LeaveMsg struct {
	ID string `json:"id"`
}

// HostMsg privately grants authority. Sessions that never receive it
// are followers by silence.
type HostMsg struct {
	IsHost bool `json:"host"`
}

// ShootMsg seeds a projectile on every receiver. Only origin and
// direction replicate; each session runs its own visual flight.
type ShootMsg struct {
	ID string  `json:"id"` // shooter session id
	OX float64 `json:"ox"`
	OY float64 `json:"oy"`
	OZ float64 `json:"oz"`
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
	DZ float64 `json:"dz"`
}

// HitMsg is a peer-reported hit claim. The relay echoes it to all
// sessions including the shooter, so everyone applies it on one path.
// Seq is a monotonic counter from the reporting session; receivers
// that need at-most-once behavior dedup on (Shooter, Target, Seq).
type HitMsg struct {
	Target  string  `json:"tgt"`
	Shooter string  `json:"src"`
	Damage  int     `json:"dmg"`
	DX      float64 `json:"dx,omitempty"` // impact direction, seeds ragdoll impulse
	DY      float64 `json:"dy,omitempty"`
	DZ      float64 `json:"dz,omitempty"`
	Seq     uint32  `json:"seq"`
	TS      int64   `json:"ts"` // sender clock, unix millis
}

// RagdollEndMsg closes a ragdoll sequence. Idempotent on receivers.
type RagdollEndMsg struct {
	ID string `json:"id"`
}

// PlayerState is the last-write-wins replicated state of one player.
// Broadcast as a FrameState binary frame at the publish cadence.
type PlayerState struct {
	ID        string  `json:"id" msgpack:"id"`
	X         float64 `json:"x" msgpack:"x"`
	Y         float64 `json:"y" msgpack:"y"`
	Z         float64 `json:"z" msgpack:"z"`
	Yaw       float64 `json:"ry" msgpack:"ry"`
	Pitch     float64 `json:"rp" msgpack:"rp"`
	Roll      float64 `json:"rr" msgpack:"rr"`
	Action    string  `json:"act" msgpack:"act"`
	Firing    bool    `json:"fire" msgpack:"fire"`
	Health    int     `json:"hp" msgpack:"hp"`
	MaxHealth int     `json:"mhp" msgpack:"mhp"`

	// Held weapon transform, mapped onto the character pose by renderers
	WX     float64 `json:"wx" msgpack:"wx"`
	WY     float64 `json:"wy" msgpack:"wy"`
	WZ     float64 `json:"wz" msgpack:"wz"`
	WYaw   float64 `json:"wry" msgpack:"wry"`
	WPitch float64 `json:"wrp" msgpack:"wrp"`
	WRoll  float64 `json:"wrr" msgpack:"wrr"`
}

// EnemyState is one Host-owned enemy inside an EnemyStatesMsg
type EnemyState struct {
	ID     string  `json:"id" msgpack:"id"`
	X      float64 `json:"x" msgpack:"x"`
	Y      float64 `json:"y" msgpack:"y"`
	Z      float64 `json:"z" msgpack:"z"`
	Yaw    float64 `json:"ry" msgpack:"ry"`
	Action string  `json:"act" msgpack:"act"`
}

// EnemyStatesMsg is the Host's full enemy array. Apply is idempotent:
// upsert every listed enemy, remove every unlisted one.
type EnemyStatesMsg struct {
	Tick    uint64       `json:"tick" msgpack:"tick"`
	Enemies []EnemyState `json:"en" msgpack:"en"`
}

// RagdollState is one pose sample published by the dying player's owner
type RagdollState struct {
	ID string  `json:"id" msgpack:"id"`
	X  float64 `json:"x" msgpack:"x"`
	Y  float64 `json:"y" msgpack:"y"`
	Z  float64 `json:"z" msgpack:"z"`
	QX float64 `json:"qx" msgpack:"qx"`
	QY float64 `json:"qy" msgpack:"qy"`
	QZ float64 `json:"qz" msgpack:"qz"`
	QW float64 `json:"qw" msgpack:"qw"`
}

// SnapshotMsg brings a late joiner up to date with everyone already
// connected. The relay serves it from its per-session state cache.
type SnapshotMsg struct {
	Players map[string]PlayerState `json:"players" msgpack:"players"`
}

// DefaultMaxHealth seeds relay-side snapshot entries before the
// session's first StateUpdate arrives.
const DefaultMaxHealth = 100

// NewPlayerState returns the default state cached for a session that
// has not published yet: idle at the origin, full health.
func NewPlayerState(id string) PlayerState {
	return PlayerState{
		ID:        id,
		Action:    ActionIdle,
		Health:    DefaultMaxHealth,
		MaxHealth: DefaultMaxHealth,
	}
}

// Catalog is the root type reflected by cmd/schema. It exists so the
// browser client team gets one JSON Schema document covering every
// payload the wire can carry.
type Catalog struct {
	Welcome    WelcomeMsg     `json:"welcome"`
	Join       JoinMsg        `json:"join"`
	Leave      LeaveMsg       `json:"leave"`
	Host       HostMsg        `json:"host"`
	Shoot      ShootMsg       `json:"shoot"`
	Hit        HitMsg         `json:"hit"`
	RagdollEnd RagdollEndMsg  `json:"ragdoll_end"`
	State      PlayerState    `json:"state"`
	Enemies    EnemyStatesMsg `json:"enemies"`
	Ragdoll    RagdollState   `json:"ragdoll"`
	Snapshot   SnapshotMsg    `json:"snapshot"`
}
