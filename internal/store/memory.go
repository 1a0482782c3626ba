package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/domain"
)

// Memory keeps rooms and logs in process memory.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string]*memoryRoom
}

type memoryRoom struct {
	room     domain.Room
	messages []domain.Message
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{rooms: make(map[string]*memoryRoom)}
}

func (m *Memory) CreateRoom(_ context.Context, room domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = &memoryRoom{room: room}
	return nil
}

func (m *Memory) GetRoom(_ context.Context, roomID string) (domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return domain.Room{}, ErrNotFound
	}
	return r.room, nil
}

func (m *Memory) Append(_ context.Context, msg domain.Message) (domain.Message, error) {
	msg = stamp(msg)

	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[msg.RoomID]
	if !ok {
		return domain.Message{}, ErrNotFound
	}
	r.messages = append(r.messages, msg)
	r.room.LastActivity = msg.CreatedAt
	return msg, nil
}

func (m *Memory) Recent(_ context.Context, roomID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}

	start := 0
	if limit > 0 && len(r.messages) > limit {
		start = len(r.messages) - limit
	}
	out := make([]domain.Message, len(r.messages)-start)
	copy(out, r.messages[start:])
	return out, nil
}

func (m *Memory) ExpiredRooms(_ context.Context, now time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, r := range m.rooms {
		if r.room.Expired(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) DeleteRoom(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
