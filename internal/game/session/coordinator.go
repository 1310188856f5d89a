package session

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JvstinNgvyen/space-scrap/internal/game/roomcode"
	"github.com/JvstinNgvyen/space-scrap/internal/observability"
)

// CodeGenerator produces candidate room codes. Collision checking against
// live rooms happens in the coordinator, not here.
type CodeGenerator interface {
	NewCode() (string, error)
}

// DefaultGracePeriod is how long a disconnected seat is held before it is
// permanently vacated.
const DefaultGracePeriod = 60 * time.Second

// maxCodeAttempts bounds the create-room retry loop on code collisions.
// Collisions are retried internally and never surface to the client.
const maxCodeAttempts = 10

// errCodeExhausted is internal: maxCodeAttempts collisions in a row.
var errCodeExhausted = errors.New("could not allocate a unique room code")

// Coordinator owns all room state transitions. Inbound connection events
// and client messages enter here; outbound messages leave through each
// seat's Sender. Per-room mutations are serialized by the room's mutex,
// so operations on distinct rooms run in parallel.
type Coordinator struct {
	store    Store
	codes    CodeGenerator
	grace    time.Duration
	maxRooms int
	logger   *zap.Logger

	// Test seams. Production uses the real clock and timer.
	now      func() time.Time
	schedule func(d time.Duration, fn func())

	// mu guards conns, the connection-to-room index used to resolve
	// transport-level disconnects. Never held while acquiring a room
	// mutex in the other direction: room locks may be held when taking
	// mu, not vice versa.
	mu    sync.Mutex
	conns map[string]string
}

// NewCoordinator wires a Coordinator over the given room table.
//
// Precondition: store, codes, and logger must be non-nil.
// A non-positive grace falls back to DefaultGracePeriod. A maxRooms of
// zero means no room cap.
func NewCoordinator(store Store, codes CodeGenerator, grace time.Duration, maxRooms int, logger *zap.Logger) *Coordinator {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Coordinator{
		store:    store,
		codes:    codes,
		grace:    grace,
		maxRooms: maxRooms,
		logger:   logger,
		now:      time.Now,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
		conns: make(map[string]string),
	}
}

// RoomCount returns the number of live rooms.
func (c *Coordinator) RoomCount() int {
	return c.store.Len()
}

// CreateRoom allocates a fresh room, seats the creator in slot A with the
// first turn, and replies room-created.
func (c *Coordinator) CreateRoom(conn Sender, displayName string) error {
	c.detach(conn.ID())

	// Best-effort cap: concurrent creates racing the check may overshoot
	// it by one.
	if c.maxRooms > 0 && c.store.Len() >= c.maxRooms {
		return ErrServerFull
	}

	// The creator is seated before the room is published: the store must
	// never hold a room with zero occupied seats, and a join racing the
	// fresh code must find slot A taken.
	var r *Room
	for attempt := 0; ; attempt++ {
		if attempt == maxCodeAttempts {
			return errCodeExhausted
		}
		code, err := c.codes.NewCode()
		if err != nil {
			return err
		}
		r = newRoom(code)
		r.Players[SlotA] = &Player{
			ConnID:      conn.ID(),
			Label:       SlotA,
			DisplayName: displayName,
			Connected:   true,
			sender:      conn,
		}
		if c.store.PutIfAbsent(r) {
			break
		}
	}
	reply := RoomCreatedPayload{RoomID: r.ID, SlotLabel: SlotA, DisplayName: displayName}

	c.bind(conn.ID(), r.ID)
	c.logger.Info("room created",
		observability.RoomID(r.ID),
		observability.ConnID(conn.ID()),
	)
	return conn.Send(MsgRoomCreated, reply)
}

// JoinRoom seats the caller in the first vacant slot, activates the room,
// replies room-joined with the current object state and roster, and
// notifies the existing occupant. Concurrent joins on the same room
// serialize on the room mutex; the loser observes RoomFull.
func (c *Coordinator) JoinRoom(conn Sender, roomID, displayName string) error {
	c.detach(conn.ID())

	r, ok := c.store.Get(roomcode.Normalize(roomID))
	if !ok {
		return ErrRoomNotFound
	}

	r.mu.Lock()
	if r.state == StateTerminated {
		r.mu.Unlock()
		return ErrRoomNotFound
	}
	label, free := r.freeSlot()
	if !free {
		r.mu.Unlock()
		return ErrRoomFull
	}
	p := &Player{
		ConnID:      conn.ID(),
		Label:       label,
		DisplayName: displayName,
		Connected:   true,
		sender:      conn,
	}
	r.Players[label] = p
	r.refreshState()
	reply := RoomJoinedPayload{
		RoomID:      r.ID,
		SlotLabel:   label,
		DisplayName: displayName,
		ObjectState: r.objectStateCopy(),
		Roster:      r.roster(),
	}
	peer := c.liveSender(r, label.Other())
	r.mu.Unlock()

	c.bind(conn.ID(), r.ID)
	c.logger.Info("player joined",
		observability.RoomID(r.ID),
		observability.Slot(label),
		observability.ConnID(conn.ID()),
	)
	if peer != nil {
		_ = peer.Send(MsgPlayerJoined, PlayerEventPayload{SlotLabel: label, DisplayName: displayName})
	}
	return conn.Send(MsgRoomJoined, reply)
}

// Reconnect rebinds a seat to a new connection and replies with a full
// session snapshot. The seat must have been occupied in this room;
// reconnecting into a fresh or foreign seat fails with SlotNotFound.
//
// If the seat is still connected, the newest connection wins: the old
// transport is closed and superseded. See DESIGN.md.
func (c *Coordinator) Reconnect(conn Sender, roomID, slot string) error {
	label, ok := ParseSlotLabel(slot)
	if !ok {
		return ErrSlotNotFound
	}
	target := roomcode.Normalize(roomID)
	c.detachForReconnect(conn.ID(), target, label)

	r, found := c.store.Get(target)
	if !found {
		return ErrRoomNotFound
	}

	r.mu.Lock()
	if r.state == StateTerminated {
		r.mu.Unlock()
		return ErrRoomNotFound
	}
	p, occupied := r.Players[label]
	if !occupied {
		r.mu.Unlock()
		return ErrSlotNotFound
	}

	superseded := Sender(nil)
	if p.Connected && p.sender != nil && p.ConnID != conn.ID() {
		superseded = p.sender
	}
	oldConnID := p.ConnID
	p.ConnID = conn.ID()
	p.sender = conn
	p.Connected = true
	p.DisconnectedAt = time.Time{}
	r.refreshState()

	reply := ReconnectedPayload{
		RoomID:      r.ID,
		SlotLabel:   label,
		DisplayName: p.DisplayName,
		ObjectState: r.objectStateCopy(),
		Turn:        r.Turn,
		TurnNumber:  r.TurnNumber,
		Roster:      r.roster(),
	}
	notify := PlayerEventPayload{SlotLabel: label, DisplayName: p.DisplayName}
	peer := c.liveSender(r, label.Other())
	r.mu.Unlock()

	c.unbind(oldConnID)
	c.bind(conn.ID(), r.ID)
	c.logger.Info("player reconnected",
		observability.RoomID(r.ID),
		observability.Slot(label),
		observability.ConnID(conn.ID()),
		zap.Bool("superseded", superseded != nil),
	)
	if superseded != nil {
		superseded.CloseSuperseded()
	}
	if peer != nil {
		_ = peer.Send(MsgPlayerReconnected, notify)
	}
	return conn.Send(MsgReconnected, reply)
}

// EndTurn advances the turn to the other seat and announces turn-changed
// to both. Valid only when the requesting seat holds the turn and both
// seats are occupied; otherwise state is untouched and only the requester
// hears about it.
func (c *Coordinator) EndTurn(conn Sender, roomID string) error {
	r, ok := c.store.Get(roomcode.Normalize(roomID))
	if !ok {
		return ErrRoomNotFound
	}

	r.mu.Lock()
	if r.state == StateTerminated {
		r.mu.Unlock()
		return ErrRoomNotFound
	}
	p, member := r.playerByConn(conn.ID())
	if !member {
		r.mu.Unlock()
		return ErrSlotNotFound
	}
	if len(r.Players) < 2 {
		r.mu.Unlock()
		return ErrOpponentAbsent
	}
	if p.Label != r.Turn {
		r.mu.Unlock()
		return ErrNotYourTurn
	}
	r.advanceTurn()
	announce := TurnChangedPayload{Turn: r.Turn, TurnNumber: r.TurnNumber}
	recipients := r.liveSenders()
	r.mu.Unlock()

	c.logger.Debug("turn changed",
		observability.RoomID(r.ID),
		zap.String("turn", string(announce.Turn)),
		zap.Int("turn_number", announce.TurnNumber),
	)
	for _, s := range recipients {
		_ = s.Send(MsgTurnChanged, announce)
	}
	return nil
}

// ApplyObjectUpdate stores the transform under objectId and relays it to
// the peer seat only; the author never hears an echo. The transform is
// opaque and relayed verbatim. The authoring seat must hold the turn:
// out-of-turn updates are rejected server-side regardless of what the
// client claims.
func (c *Coordinator) ApplyObjectUpdate(conn Sender, roomID, objectID string, transform json.RawMessage) error {
	r, ok := c.store.Get(roomcode.Normalize(roomID))
	if !ok {
		return ErrRoomNotFound
	}

	r.mu.Lock()
	if r.state == StateTerminated {
		r.mu.Unlock()
		return ErrRoomNotFound
	}
	p, member := r.playerByConn(conn.ID())
	if !member {
		r.mu.Unlock()
		return ErrSlotNotFound
	}
	if p.Label != r.Turn {
		r.mu.Unlock()
		return ErrNotYourTurn
	}
	r.ObjectState[objectID] = transform
	peer := c.liveSender(r, p.Label.Other())
	r.mu.Unlock()

	if peer != nil {
		_ = peer.Send(MsgObjectUpdated, ObjectUpdatedPayload{ObjectID: objectID, Transform: transform})
	}
	return nil
}

// RelaySelectObject forwards the active-object-selection indicator to the
// peer. Fire-and-forget: nothing is persisted and nothing is queued for a
// disconnected peer.
func (c *Coordinator) RelaySelectObject(conn Sender, roomID, objectID string) error {
	return c.relayIndicator(conn, roomID, func(label SlotLabel) (string, any) {
		return MsgObjectSelected, ObjectSelectedPayload{ObjectID: objectID, SlotLabel: label}
	})
}

// RelayPoseMode forwards the pose-edit-mode indicator to the peer under
// the same fire-and-forget policy as RelaySelectObject.
func (c *Coordinator) RelayPoseMode(conn Sender, roomID, objectID string, active bool) error {
	return c.relayIndicator(conn, roomID, func(label SlotLabel) (string, any) {
		return MsgPoseModeChanged, PoseModePayload{ObjectID: objectID, SlotLabel: label, Active: active}
	})
}

func (c *Coordinator) relayIndicator(conn Sender, roomID string, build func(label SlotLabel) (string, any)) error {
	r, ok := c.store.Get(roomcode.Normalize(roomID))
	if !ok {
		return ErrRoomNotFound
	}

	r.mu.Lock()
	if r.state == StateTerminated {
		r.mu.Unlock()
		return ErrRoomNotFound
	}
	p, member := r.playerByConn(conn.ID())
	if !member {
		r.mu.Unlock()
		return ErrSlotNotFound
	}
	peer := c.liveSender(r, p.Label.Other())
	label := p.Label
	r.mu.Unlock()

	if peer != nil {
		msgType, payload := build(label)
		_ = peer.Send(msgType, payload)
	}
	return nil
}

// RoomInfo returns the public projection of a live room. It requires no
// membership; it backs both the get-room-info message and the HTTP
// room pre-check.
func (c *Coordinator) RoomInfo(roomID string) (RoomInfoPayload, error) {
	r, ok := c.store.Get(roomcode.Normalize(roomID))
	if !ok {
		return RoomInfoPayload{}, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateTerminated {
		return RoomInfoPayload{}, ErrRoomNotFound
	}
	return RoomInfoPayload{
		RoomID:      r.ID,
		Roster:      r.roster(),
		ObjectState: r.objectStateCopy(),
	}, nil
}

// LeaveRoom vacates the caller's seat immediately, skipping the grace
// period. The peer receives player-left; an emptied room is deleted
// synchronously.
func (c *Coordinator) LeaveRoom(conn Sender) error {
	roomID, bound := c.roomOf(conn.ID())
	if !bound {
		return ErrRoomNotFound
	}
	r, ok := c.store.Get(roomID)
	if !ok {
		c.unbind(conn.ID())
		return ErrRoomNotFound
	}

	r.mu.Lock()
	p, member := r.playerByConn(conn.ID())
	if !member {
		r.mu.Unlock()
		c.unbind(conn.ID())
		return ErrSlotNotFound
	}
	c.removeSeatLocked(r, p)
	notify := PlayerEventPayload{SlotLabel: p.Label, DisplayName: p.DisplayName}
	peer := c.liveSender(r, p.Label.Other())
	r.mu.Unlock()

	c.unbind(conn.ID())
	c.logger.Info("player left",
		observability.RoomID(r.ID),
		observability.Slot(p.Label),
	)
	if peer != nil {
		_ = peer.Send(MsgPlayerLeft, notify)
	}
	return nil
}

// RecordDisconnect handles a transport-level disconnect. The seat is
// marked degraded and retained: playable state survives, the peer is told,
// and a grace-period finalization is scheduled. The seat is only vacated
// if it is still disconnected when the timer fires.
func (c *Coordinator) RecordDisconnect(connID string) {
	roomID, bound := c.roomOf(connID)
	if !bound {
		return
	}
	c.unbind(connID)

	r, ok := c.store.Get(roomID)
	if !ok {
		return
	}

	r.mu.Lock()
	p, member := r.playerByConn(connID)
	if !member || !p.Connected {
		// A superseded or already-left connection dropping late.
		r.mu.Unlock()
		return
	}
	p.Connected = false
	p.DisconnectedAt = c.now()
	p.sender = nil
	r.refreshState()
	label := p.Label
	notify := PlayerEventPayload{SlotLabel: label, DisplayName: p.DisplayName}
	peer := c.liveSender(r, label.Other())
	r.mu.Unlock()

	c.logger.Info("player disconnected",
		observability.RoomID(roomID),
		observability.Slot(label),
		zap.Duration("grace_period", c.grace),
	)
	if peer != nil {
		_ = peer.Send(MsgPlayerDisconnected, notify)
	}

	// No cancellation token: the callback re-reads live state under the
	// room lock at fire time, so overlapping timers for the same seat
	// resolve to at most one removal.
	c.schedule(c.grace, func() {
		c.finalizeDeparture(roomID, label)
	})
}

// finalizeDeparture is the grace-period reaper callback. It trusts nothing
// captured at scheduling time beyond the room id and seat label: the seat
// is vacated only if it still exists, is still disconnected, and has been
// disconnected for a full grace period (a disconnect-reconnect-disconnect
// sequence arms a fresh window that an older timer must not cut short).
func (c *Coordinator) finalizeDeparture(roomID string, label SlotLabel) {
	r, ok := c.store.Get(roomID)
	if !ok {
		return
	}

	r.mu.Lock()
	p, occupied := r.Players[label]
	if !occupied || p.Connected {
		r.mu.Unlock()
		return
	}
	if c.now().Before(p.DisconnectedAt.Add(c.grace)) {
		r.mu.Unlock()
		return
	}
	c.removeSeatLocked(r, p)
	notify := PlayerEventPayload{SlotLabel: label, DisplayName: p.DisplayName}
	peer := c.liveSender(r, label.Other())
	deleted := r.state == StateTerminated
	r.mu.Unlock()

	c.logger.Info("grace period expired, seat vacated",
		observability.RoomID(roomID),
		observability.Slot(label),
		zap.Bool("room_deleted", deleted),
	)
	if peer != nil {
		_ = peer.Send(MsgPlayerLeft, notify)
	}
}

// removeSeatLocked vacates a seat and deletes the room if it empties.
// Caller must hold r.mu.
func (c *Coordinator) removeSeatLocked(r *Room, p *Player) {
	delete(r.Players, p.Label)
	if len(r.Players) == 0 {
		r.state = StateTerminated
		c.store.Delete(r.ID)
		return
	}
	r.refreshState()
}

// liveSender returns the Sender for the given seat if it is occupied and
// connected. Caller must hold r.mu.
func (c *Coordinator) liveSender(r *Room, label SlotLabel) Sender {
	p, ok := r.Players[label]
	if !ok || !p.Connected || p.sender == nil {
		return nil
	}
	return p.sender
}

// liveSenders returns the Senders of every connected seat.
// Caller must hold r.mu.
func (r *Room) liveSenders() []Sender {
	out := make([]Sender, 0, len(r.Players))
	for _, l := range []SlotLabel{SlotA, SlotB} {
		if p, ok := r.Players[l]; ok && p.Connected && p.sender != nil {
			out = append(out, p.sender)
		}
	}
	return out
}

// detach severs any existing room membership for a connection that is
// starting over with create or join. A connection occupies at most one
// seat at a time.
func (c *Coordinator) detach(connID string) {
	if _, bound := c.roomOf(connID); !bound {
		return
	}
	_ = c.LeaveRoom(connRef(connID))
}

// detachForReconnect releases any seat the connection holds, except when it
// is the very seat being reconnected: a live connection retrying its own
// reconnect must rebind in place, not vacate itself.
func (c *Coordinator) detachForReconnect(connID, targetRoom string, label SlotLabel) {
	cur, bound := c.roomOf(connID)
	if !bound {
		return
	}
	if cur == targetRoom {
		if r, ok := c.store.Get(cur); ok {
			r.mu.Lock()
			p, member := r.playerByConn(connID)
			sameSeat := member && p.Label == label
			r.mu.Unlock()
			if sameSeat {
				return
			}
		}
	}
	_ = c.LeaveRoom(connRef(connID))
}

// connRef is a Sender stand-in carrying only a connection id, for index
// operations that never send.
type connRef string

func (c connRef) ID() string             { return string(c) }
func (c connRef) Send(string, any) error { return nil }
func (c connRef) CloseSuperseded()       {}

func (c *Coordinator) bind(connID, roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[connID] = roomID
}

func (c *Coordinator) unbind(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conns, connID)
}

func (c *Coordinator) roomOf(connID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	roomID, ok := c.conns[connID]
	return roomID, ok
}
