package server

import (
	"context"
	"strings"

	"github.com/Tyrowin/roomchat/internal/domain"
	"github.com/Tyrowin/roomchat/internal/room"
)

// Rooms is the room directory as seen by the transport.
type Rooms interface {
	Create(ctx context.Context, name string) (domain.Room, error)
	Admit(ctx context.Context, roomID string) error
	Join(ctx context.Context, roomID, connID, nickname string) (room.JoinResult, error)
	Leave(ctx context.Context, roomID, connID string) error
	Send(ctx context.Context, roomID, connID, content string, kind domain.Kind) (domain.Message, error)
}

// createRoomRequest is the body of POST /api/create-room.
type createRoomRequest struct {
	Name string `json:"name"`
}

type createRoomResponse struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
