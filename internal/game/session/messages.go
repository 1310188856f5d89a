package session

import "encoding/json"

// Sender is the outbound half of a client connection. Sends are
// fire-and-forget from the coordinator's perspective: the implementation
// must not block, and a failed or dropped send never affects room state.
type Sender interface {
	// ID returns the ephemeral connection identifier.
	ID() string
	// Send enqueues one message for delivery.
	Send(msgType string, payload any) error
	// CloseSuperseded tears down the connection after its seat has been
	// taken over by a newer connection.
	CloseSuperseded()
}

// Server-to-client message kinds.
const (
	MsgRoomCreated        = "room-created"
	MsgRoomJoined         = "room-joined"
	MsgPlayerJoined       = "player-joined"
	MsgReconnected        = "reconnected"
	MsgPlayerReconnected  = "player-reconnected"
	MsgObjectUpdated      = "object-updated"
	MsgObjectSelected     = "object-selected"
	MsgPoseModeChanged    = "pose-mode-changed"
	MsgTurnChanged        = "turn-changed"
	MsgPlayerDisconnected = "player-disconnected"
	MsgPlayerLeft         = "player-left"
	MsgRoomInfo           = "room-info"
	MsgPong               = "pong"
	MsgError              = "error"
)

// RoomCreatedPayload answers create-room, addressed to the creator.
type RoomCreatedPayload struct {
	RoomID      string    `json:"roomId"`
	SlotLabel   SlotLabel `json:"slotLabel"`
	DisplayName string    `json:"displayName"`
}

// RoomJoinedPayload answers join-room, addressed to the joiner. It carries
// the full object state and roster so the joiner starts in sync.
type RoomJoinedPayload struct {
	RoomID      string                     `json:"roomId"`
	SlotLabel   SlotLabel                  `json:"slotLabel"`
	DisplayName string                     `json:"displayName"`
	ObjectState map[string]json.RawMessage `json:"objectState"`
	Roster      []RosterEntry              `json:"roster"`
}

// PlayerEventPayload notifies a peer about the other seat: joined,
// reconnected, disconnected, or left.
type PlayerEventPayload struct {
	SlotLabel   SlotLabel `json:"slotLabel"`
	DisplayName string    `json:"displayName"`
}

// ReconnectedPayload answers reconnect-room with a full session snapshot so
// the client resynchronizes without replaying history.
type ReconnectedPayload struct {
	RoomID      string                     `json:"roomId"`
	SlotLabel   SlotLabel                  `json:"slotLabel"`
	DisplayName string                     `json:"displayName"`
	ObjectState map[string]json.RawMessage `json:"objectState"`
	Turn        SlotLabel                  `json:"turn"`
	TurnNumber  int                        `json:"turnNumber"`
	Roster      []RosterEntry              `json:"roster"`
}

// ObjectUpdatedPayload relays one transform to the peer seat.
type ObjectUpdatedPayload struct {
	ObjectID  string          `json:"objectId"`
	Transform json.RawMessage `json:"transform"`
}

// ObjectSelectedPayload relays the active-object-selection indicator.
type ObjectSelectedPayload struct {
	ObjectID  string    `json:"objectId"`
	SlotLabel SlotLabel `json:"slotLabel"`
}

// PoseModePayload relays the pose-edit-mode indicator.
type PoseModePayload struct {
	ObjectID  string    `json:"objectId"`
	SlotLabel SlotLabel `json:"slotLabel"`
	Active    bool      `json:"active"`
}

// TurnChangedPayload announces a completed turn to both seats.
type TurnChangedPayload struct {
	Turn       SlotLabel `json:"turn"`
	TurnNumber int       `json:"turnNumber"`
}

// RoomInfoPayload answers get-room-info.
type RoomInfoPayload struct {
	RoomID      string                     `json:"roomId"`
	Roster      []RosterEntry              `json:"roster"`
	ObjectState map[string]json.RawMessage `json:"objectState"`
}

// ErrorPayload reports a failed operation to the requester only.
type ErrorPayload struct {
	Message string `json:"message"`
}
