package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Client to server event names.
const (
	EventJoinRoom    = "join-room"
	EventSendMessage = "send-message"
	EventLeaveRoom   = "leave-room"
)

// Server to client event names.
const (
	EventRoomHistory = "room-history"
	EventUserJoined  = "user-joined"
	EventUserLeft    = "user-left"
	EventNewMessage  = "new-message"
	EventError       = "error"
)

// Envelope is the frame exchanged over the socket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRoomRequest is the payload of join-room.
type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
}

// Validate checks required fields. Nickname length is enforced by the room.
func (r *JoinRoomRequest) Validate() error {
	r.RoomID = strings.TrimSpace(r.RoomID)
	r.Nickname = strings.TrimSpace(r.Nickname)
	if r.RoomID == "" {
		return fmt.Errorf("%w: roomId is required", ErrInvalidMessage)
	}
	return nil
}

// SendMessageRequest is the payload of send-message.
type SendMessageRequest struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
	Type    Kind   `json:"type"`
}

// ImagePrefix is required on image payloads.
const ImagePrefix = "data:image/"

// Validate defaults the kind to text and rejects malformed payloads.
func (r *SendMessageRequest) Validate() error {
	r.RoomID = strings.TrimSpace(r.RoomID)
	if r.Type == "" {
		r.Type = KindText
	}
	switch {
	case r.RoomID == "":
		return fmt.Errorf("%w: roomId is required", ErrInvalidMessage)
	case !r.Type.Valid():
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidMessage, r.Type)
	case strings.TrimSpace(r.Content) == "":
		return fmt.Errorf("%w: content is empty", ErrInvalidMessage)
	case r.Type == KindImage && !strings.HasPrefix(r.Content, ImagePrefix):
		return fmt.Errorf("%w: image content must be a data URL", ErrInvalidMessage)
	}
	return nil
}

// LeaveRoomRequest is the payload of leave-room.
type LeaveRoomRequest struct {
	RoomID string `json:"roomId"`
}

// Outbound is a server event ready to be encoded.
type Outbound struct {
	Event string
	Data  any
}

// Encode renders the event as an Envelope frame.
func (o Outbound) Encode() ([]byte, error) {
	data, err := json.Marshal(o.Data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", o.Event, err)
	}
	return json.Marshal(Envelope{Event: o.Event, Data: data})
}

// MessageView is the wire form of a Message.
type MessageView struct {
	SenderNickname string    `json:"senderNickname"`
	Content        string    `json:"content"`
	Type           Kind      `json:"type"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ViewOf converts a stored message to its wire form.
func ViewOf(m Message) MessageView {
	return MessageView{
		SenderNickname: m.SenderNickname,
		Content:        m.Content,
		Type:           m.Kind,
		CreatedAt:      m.CreatedAt,
	}
}

// RoomHistory is sent to a connection after it joins.
type RoomHistory struct {
	Messages []MessageView `json:"messages"`
	RoomName string        `json:"roomName"`
	Count    int           `json:"count"`
}

// Presence is the payload of user-joined and user-left.
type Presence struct {
	Nickname string `json:"nickname"`
	Count    int    `json:"count"`
}

// ErrorPayload is the payload of error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// HistoryEvent builds a room-history event.
func HistoryEvent(roomName string, messages []Message, count int) Outbound {
	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, ViewOf(m))
	}
	return Outbound{Event: EventRoomHistory, Data: RoomHistory{Messages: views, RoomName: roomName, Count: count}}
}

// JoinedEvent builds a user-joined event.
func JoinedEvent(nickname string, count int) Outbound {
	return Outbound{Event: EventUserJoined, Data: Presence{Nickname: nickname, Count: count}}
}

// LeftEvent builds a user-left event.
func LeftEvent(nickname string, count int) Outbound {
	return Outbound{Event: EventUserLeft, Data: Presence{Nickname: nickname, Count: count}}
}

// MessageEvent builds a new-message event.
func MessageEvent(m Message) Outbound {
	return Outbound{Event: EventNewMessage, Data: ViewOf(m)}
}

// ErrorEvent builds an error event.
func ErrorEvent(message string) Outbound {
	return Outbound{Event: EventError, Data: ErrorPayload{Message: message}}
}
