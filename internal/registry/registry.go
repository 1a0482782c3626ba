// Package registry maps live connections to the room and nickname they
// currently hold.
package registry

import "sync"

// Entry is the chat context of a connection.
type Entry struct {
	RoomID   string
	Nickname string
}

// Registry is a concurrent connection lookup table. Each key is written only
// by its own connection's event stream.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Bind records that connID is in roomID as nickname, replacing any previous entry.
func (r *Registry) Bind(connID, roomID, nickname string) {
	r.mu.Lock()
	r.entries[connID] = Entry{RoomID: roomID, Nickname: nickname}
	r.mu.Unlock()
}

// Lookup returns the entry for connID.
func (r *Registry) Lookup(connID string) (Entry, bool) {
	r.mu.RLock()
	e, ok := r.entries[connID]
	r.mu.RUnlock()
	return e, ok
}

// Unbind removes and returns the entry for connID.
func (r *Registry) Unbind(connID string) (Entry, bool) {
	r.mu.Lock()
	e, ok := r.entries[connID]
	delete(r.entries, connID)
	r.mu.Unlock()
	return e, ok
}

// Len returns the number of bound connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
