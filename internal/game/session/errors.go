package session

import "errors"

// Operation errors reported to the requesting connection only, as an
// error{message} reply. None are fatal to the server.
var (
	// ErrRoomNotFound is returned when the room id names no live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull is returned when both seats are already occupied.
	ErrRoomFull = errors.New("room is full")
	// ErrServerFull is returned when creating a room would exceed the
	// configured room cap.
	ErrServerFull = errors.New("server is at capacity")
	// ErrSlotNotFound is returned on reconnect into a seat that was never
	// occupied in this room, or when a connection acts on a room it no
	// longer belongs to.
	ErrSlotNotFound = errors.New("slot not found")
	// ErrNotYourTurn is returned when a seat acts out of turn.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrOpponentAbsent is returned when a turn action requires both
	// seats occupied and only one is.
	ErrOpponentAbsent = errors.New("opponent absent")
)
