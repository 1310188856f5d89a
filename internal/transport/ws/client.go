// Package ws is the websocket frontend for the session coordinator. It
// owns connection upgrade, the per-connection read/write pumps, the JSON
// message envelope, and inbound rate limiting. All game semantics live in
// the session package; this package only decodes, dispatches, and delivers.
package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JvstinNgvyen/space-scrap/internal/game/session"
	"github.com/JvstinNgvyen/space-scrap/internal/observability"
)

const (
	// writeWait bounds a single outbound write.
	writeWait = 10 * time.Second
	// pongWait is the read deadline; a connection that neither talks nor
	// answers pings within it is considered dead.
	pongWait = 60 * time.Second
	// pingInterval must be shorter than pongWait.
	pingInterval = 30 * time.Second
	// maxMessageSize caps one inbound frame. Transforms are small;
	// anything larger is a misbehaving client.
	maxMessageSize = 32 * 1024
	// outboxSize is the per-connection outbound buffer. A peer that
	// cannot drain it loses messages rather than stalling the room.
	outboxSize = 64
)

var errOutboxFull = errors.New("outbox full, message dropped")

// Envelope frames every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client is one live websocket connection. It implements session.Sender:
// Send enqueues without blocking and delivery is best-effort, which is the
// fire-and-forget contract the coordinator relies on.
type Client struct {
	id      string
	conn    *websocket.Conn
	coord   *session.Coordinator
	logger  *zap.Logger
	limiter *rate.Limiter

	outbox chan []byte

	mu     sync.Mutex
	closed bool

	onClose func(*Client)
}

func newClient(id string, conn *websocket.Conn, coord *session.Coordinator, limiter *rate.Limiter, logger *zap.Logger, onClose func(*Client)) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		coord:   coord,
		logger:  logger.With(observability.ConnID(id)),
		limiter: limiter,
		outbox:  make(chan []byte, outboxSize),
		onClose: onClose,
	}
}

// ID returns the ephemeral connection identifier.
func (c *Client) ID() string { return c.id }

// Send marshals an envelope and enqueues it. It never blocks: when the
// outbox is full the message is dropped and an error returned, which the
// coordinator ignores by design.
func (c *Client) Send(msgType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Envelope{Type: msgType, Payload: body})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.outbox <- frame:
		return nil
	default:
		c.logger.Warn("outbox full, dropping message", zap.String("msg_type", msgType))
		return errOutboxFull
	}
}

// CloseSuperseded tears the connection down after its seat was taken over
// by a newer connection. The coordinator has already rebound the seat, so
// the read pump's disconnect report for this connection becomes a no-op.
func (c *Client) CloseSuperseded() {
	c.close(websocket.ClosePolicyViolation, "session superseded by a newer connection")
}

// close shuts the outbox and sends a best-effort close frame.
func (c *Client) close(code int, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.outbox)
	c.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.conn.Close()
}

// sendError reports a failed operation to this connection only.
func (c *Client) sendError(err error) {
	_ = c.Send(session.MsgError, session.ErrorPayload{Message: err.Error()})
}

// writePump drains the outbox and keeps the connection alive with pings.
// It exits when the outbox is closed or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.outbox:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads and dispatches inbound messages until the transport
// drops, then reports the disconnect to the coordinator.
func (c *Client) readPump() {
	defer func() {
		c.coord.RecordDisconnect(c.id)
		c.close(websocket.CloseNormalClosure, "")
		if c.onClose != nil {
			c.onClose(c)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("read failed", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !c.limiter.Allow() {
			c.sendError(errors.New("message rate exceeded"))
			continue
		}
		c.dispatch(raw)
	}
}
