// Package domain defines the rooms, messages, memberships, and error
// taxonomy shared by every roomchat component.
package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Room and message limits.
const (
	DefaultCapacity     = 50
	DefaultHistoryLimit = 50
	DefaultTTL          = 12 * time.Hour
	MinNicknameLength   = 2
	DefaultRoomName     = "Anonymous Room"
	MaxRoomNameLength   = 100
)

// Kind is the content kind of a message.
type Kind string

// Supported message kinds.
const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	return k == KindText || k == KindImage
}

// Room is a capacity- and time-bounded chat channel.
type Room struct {
	ID           string
	Name         string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity time.Time
}

// NewRoom returns a room created at now that expires after ttl.
func NewRoom(id, name string, now time.Time, ttl time.Duration) Room {
	return Room{
		ID:           id,
		Name:         NormalizeRoomName(name),
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		LastActivity: now,
	}
}

// Expired reports whether the room is past its expiry at now.
func (r Room) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Message is an immutable entry of a room's log.
type Message struct {
	RoomID         string
	SenderNickname string
	Content        string
	Kind           Kind
	CreatedAt      time.Time
}

// Member is a connection admitted to a room.
type Member struct {
	ConnectionID string
	Nickname     string
	JoinedAt     time.Time
}

// ValidNickname reports whether nickname meets the minimum length once trimmed.
func ValidNickname(nickname string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(nickname)) >= MinNicknameLength
}

// NormalizeRoomName trims name, applies the default, and caps its length.
func NormalizeRoomName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultRoomName
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLength {
		name = string([]rune(name)[:MaxRoomNameLength])
	}
	return name
}
