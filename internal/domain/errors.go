package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for room operations.
var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrInvalidNickname = errors.New("nickname too short")
	ErrRoomFull        = errors.New("room is full")
	ErrNotJoined       = errors.New("connection has not joined the room")
	ErrPersistence     = errors.New("persistence failure")
	ErrInvalidMessage  = errors.New("invalid message")
)

// User-visible error messages.
const (
	MsgRoomNotFound  = "Room not found"
	MsgNicknameShort = "Nickname too short"
	MsgRoomFullFmt   = "Room is full (Max %d participants)"
	MsgJoinFailed    = "Failed to join room"
	MsgSendFailed    = "Failed to send message"
	MsgInvalidEvent  = "Invalid event"
)

// UserMessage maps a join error to the text shown to the originating connection.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return MsgRoomNotFound
	case errors.Is(err, ErrInvalidNickname):
		return MsgNicknameShort
	case errors.Is(err, ErrRoomFull):
		capacity := DefaultCapacity
		var full *FullError
		if errors.As(err, &full) {
			capacity = full.Capacity
		}
		return fmt.Sprintf(MsgRoomFullFmt, capacity)
	case errors.Is(err, ErrInvalidMessage):
		return MsgInvalidEvent
	default:
		return MsgJoinFailed
	}
}

// FullError reports a join refused because the room is at capacity.
type FullError struct {
	Capacity int
}

func (e *FullError) Error() string {
	return fmt.Sprintf("room is full (capacity %d)", e.Capacity)
}

// Is makes errors.Is(err, ErrRoomFull) match.
func (e *FullError) Is(target error) bool {
	return target == ErrRoomFull
}
