package relay

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gridfire/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufSize    = 256

	// A session publishes state, enemies and ragdoll frames at 20 Hz
	// each at peak; leave room on top for shoot and hit bursts.
	maxMessagesPerSec = 120
)

// Client is one connected session's WebSocket endpoint on the relay
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	id          string
	remoteAddr  string
	connectedAt time.Time
	msgCount    int
	msgResetAt  time.Time
}

// NewClient wraps an upgraded connection. The session id is fixed here,
// before any pump runs, and never changes.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufSize),
		id:          uuid.NewString(),
		remoteAddr:  remoteAddr,
		connectedAt: time.Now(),
	}
}

// ID returns the relay-assigned session id
func (c *Client) ID() string {
	return c.id
}

// ReadPump reads messages from the WebSocket connection. Read deadline
// expiry, close and protocol errors all exit through the same
// unregister path.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		if msgType == websocket.BinaryMessage {
			c.hub.RelayBinary(c.id, message)
		} else {
			c.handleText(message)
		}
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendEnvelope marshals and sends a text envelope to this client
func (c *Client) sendEnvelope(msgType string, data interface{}) {
	raw, err := protocol.Encode(msgType, data)
	if err != nil {
		log.Printf("encode error: %v", err)
		return
	}
	c.SendRaw(raw)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with 0xFF marker byte so WritePump can distinguish from text.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF // binary marker
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

// handleText routes an inbound text envelope. Only session-originated
// kinds fan out; welcome, join, leave and host are the relay's own
// voice and a client cannot speak with it.
func (c *Client) handleText(raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		log.Printf("unmarshal error: %v", err)
		return
	}

	switch env.T {
	case protocol.MsgShoot, protocol.MsgHit, protocol.MsgRagdollEnd:
		c.hub.RelayText(c.id, env.T, raw)
	}
}
