// Package broadcast delivers encoded room events to connection sinks.
package broadcast

import (
	"sync"

	"github.com/Tyrowin/roomchat/internal/domain"
	"github.com/Tyrowin/roomchat/internal/log"
)

// Sink receives encoded frames for one connection. Deliver must not block
// and returns false when the frame was dropped. Frames accepted by a sink
// must be written in the order they were delivered.
type Sink interface {
	Deliver(frame []byte) bool
}

// Engine fans events out to attached sinks. Delivery is best effort: a sink
// that is missing, closed, or full simply misses the frame.
type Engine struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

// New returns an Engine with no sinks.
func New() *Engine {
	return &Engine{sinks: make(map[string]Sink)}
}

// Attach registers the sink for connID.
func (e *Engine) Attach(connID string, sink Sink) {
	e.mu.Lock()
	e.sinks[connID] = sink
	e.mu.Unlock()
}

// Detach forgets connID. Later broadcasts skip it.
func (e *Engine) Detach(connID string) {
	e.mu.Lock()
	delete(e.sinks, connID)
	e.mu.Unlock()
}

// Len returns the number of attached sinks.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sinks)
}

// Broadcast encodes ev once and delivers it to every recipient of roomID.
// It returns the number of sinks that accepted the frame.
func (e *Engine) Broadcast(roomID string, ev domain.Outbound, recipients []string) int {
	if len(recipients) == 0 {
		return 0
	}
	frame, err := ev.Encode()
	if err != nil {
		log.L().Error().Err(err).Str(log.FieldRoomID, roomID).Str(log.FieldEvent, ev.Event).Msg("failed to encode broadcast")
		return 0
	}

	delivered := 0
	for _, target := range e.snapshot(recipients) {
		if deliver(target.sink, frame) {
			delivered++
			continue
		}
		log.L().Debug().Str(log.FieldRoomID, roomID).Str(log.FieldConnID, target.id).Str(log.FieldEvent, ev.Event).Msg("dropped frame for slow or closed connection")
	}
	return delivered
}

// SendTo delivers ev to a single connection.
func (e *Engine) SendTo(connID string, ev domain.Outbound) bool {
	frame, err := ev.Encode()
	if err != nil {
		log.L().Error().Err(err).Str(log.FieldConnID, connID).Str(log.FieldEvent, ev.Event).Msg("failed to encode event")
		return false
	}

	e.mu.RLock()
	sink, ok := e.sinks[connID]
	e.mu.RUnlock()
	if !ok {
		return false
	}
	return deliver(sink, frame)
}

type target struct {
	id   string
	sink Sink
}

// snapshot resolves recipients to sinks under the read lock.
func (e *Engine) snapshot(recipients []string) []target {
	e.mu.RLock()
	defer e.mu.RUnlock()

	targets := make([]target, 0, len(recipients))
	for _, id := range recipients {
		if sink, ok := e.sinks[id]; ok {
			targets = append(targets, target{id: id, sink: sink})
		}
	}
	return targets
}

func deliver(sink Sink, frame []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.L().Error().Interface("panic", r).Msg("recovered from panic while delivering frame")
			ok = false
		}
	}()
	return sink.Deliver(frame)
}
