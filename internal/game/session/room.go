// Package session implements the two-player session coordinator: room
// lifecycle, slot assignment, the turn state machine, and
// disconnect/reconnect reconciliation with a grace period.
package session

import (
	"encoding/json"
	"sync"
	"time"
)

// SlotLabel identifies one of the two fixed seats in a room. Identity is
// bound to the slot for the lifetime of the room; connections come and go.
type SlotLabel string

const (
	// SlotA is the creator's seat. It holds the first turn.
	SlotA SlotLabel = "A"
	// SlotB is the joiner's seat.
	SlotB SlotLabel = "B"
)

// String returns the wire form of the label.
func (l SlotLabel) String() string { return string(l) }

// Other returns the opposing slot label.
func (l SlotLabel) Other() SlotLabel {
	if l == SlotA {
		return SlotB
	}
	return SlotA
}

// ParseSlotLabel converts a wire string into a SlotLabel.
func ParseSlotLabel(s string) (SlotLabel, bool) {
	switch SlotLabel(s) {
	case SlotA, SlotB:
		return SlotLabel(s), true
	}
	return "", false
}

// RoomState is the coordinator's per-room state machine position.
type RoomState int

const (
	// StateAwaitingOpponent means only the creator's seat is filled.
	StateAwaitingOpponent RoomState = iota
	// StateActive means both seats are filled and connected.
	StateActive
	// StateDegraded means at least one occupied seat has lost its
	// connection and its grace period is running.
	StateDegraded
	// StateTerminated means the room has been deleted. Operations that
	// raced with the deletion observe this and treat the room as gone.
	StateTerminated
)

// String returns the state name for logging.
func (s RoomState) String() string {
	switch s {
	case StateAwaitingOpponent:
		return "awaiting_opponent"
	case StateActive:
		return "active"
	case StateDegraded:
		return "degraded"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Player is a seat occupant. The slot label is fixed for the lifetime of
// the room; the connection ID is replaced on every reconnect and must never
// be used as a durable key.
type Player struct {
	// ConnID is the current live connection identifier. A disconnected
	// player keeps its last ConnID until the seat is reaped or rebound.
	ConnID string
	// Label is the seat this player occupies.
	Label SlotLabel
	// DisplayName is supplied at join time and immutable thereafter.
	DisplayName string
	// Connected reports whether the player's transport is live.
	Connected bool
	// DisconnectedAt is the wall time of the most recent disconnect.
	// Zero while connected.
	DisconnectedAt time.Time

	sender Sender
}

// Room is a two-seat game session. All fields besides the mutex are guarded
// by it: every mutation of a given room is serialized through mu. Distinct
// rooms share nothing and proceed in parallel.
type Room struct {
	mu sync.Mutex

	// ID is the short join code, unique among live rooms.
	ID string
	// Players maps occupied seats to their occupants. Size 1 or 2 while
	// the room is live; a room that would drop to 0 is deleted instead.
	Players map[SlotLabel]*Player
	// Turn names the seat currently authorized to act.
	Turn SlotLabel
	// TurnNumber counts turns, starting at 1 with slot A active.
	TurnNumber int
	// ObjectState holds the last-known transform per controllable object,
	// opaque to the coordinator. Retained only so joiners and
	// reconnectors can resync without replaying history.
	ObjectState map[string]json.RawMessage

	state RoomState
}

func newRoom(id string) *Room {
	return &Room{
		ID:          id,
		Players:     make(map[SlotLabel]*Player, 2),
		Turn:        SlotA,
		TurnNumber:  1,
		ObjectState: make(map[string]json.RawMessage),
		state:       StateAwaitingOpponent,
	}
}

// freeSlot returns the first vacant seat, A before B.
// Caller must hold r.mu.
func (r *Room) freeSlot() (SlotLabel, bool) {
	for _, l := range []SlotLabel{SlotA, SlotB} {
		if _, occupied := r.Players[l]; !occupied {
			return l, true
		}
	}
	return "", false
}

// playerByConn resolves a seat by live connection identity.
// Caller must hold r.mu.
func (r *Room) playerByConn(connID string) (*Player, bool) {
	for _, p := range r.Players {
		if p.ConnID == connID {
			return p, true
		}
	}
	return nil, false
}

// advanceTurn hands the move to the other seat and increments the counter.
// Caller must hold r.mu and must have validated the request.
func (r *Room) advanceTurn() {
	r.Turn = r.Turn.Other()
	r.TurnNumber++
}

// refreshState recomputes the state machine position from seat occupancy
// and connectivity. Caller must hold r.mu. Terminated is sticky.
func (r *Room) refreshState() {
	if r.state == StateTerminated {
		return
	}
	for _, p := range r.Players {
		if !p.Connected {
			r.state = StateDegraded
			return
		}
	}
	if len(r.Players) < 2 {
		r.state = StateAwaitingOpponent
		return
	}
	r.state = StateActive
}

// RosterEntry is the public projection of a seat occupant.
type RosterEntry struct {
	SlotLabel   SlotLabel `json:"slotLabel"`
	DisplayName string    `json:"displayName"`
	Connected   bool      `json:"connected"`
}

// roster returns the occupied seats in A, B order.
// Caller must hold r.mu.
func (r *Room) roster() []RosterEntry {
	entries := make([]RosterEntry, 0, len(r.Players))
	for _, l := range []SlotLabel{SlotA, SlotB} {
		if p, ok := r.Players[l]; ok {
			entries = append(entries, RosterEntry{
				SlotLabel:   p.Label,
				DisplayName: p.DisplayName,
				Connected:   p.Connected,
			})
		}
	}
	return entries
}

// objectStateCopy snapshots ObjectState for handing to a client.
// Caller must hold r.mu.
func (r *Room) objectStateCopy() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(r.ObjectState))
	for id, transform := range r.ObjectState {
		out[id] = transform
	}
	return out
}
