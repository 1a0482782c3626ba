package broadcast

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/domain"
)

type recordingSink struct {
	mu     sync.Mutex
	frames [][]byte
	full   bool
}

func (s *recordingSink) Deliver(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.frames = append(s.frames, frame)
	return true
}

func (s *recordingSink) events(t *testing.T) []domain.Envelope {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Envelope, 0, len(s.frames))
	for _, f := range s.frames {
		var env domain.Envelope
		require.NoError(t, json.Unmarshal(f, &env))
		out = append(out, env)
	}
	return out
}

type panickingSink struct{}

func (panickingSink) Deliver([]byte) bool { panic("send on closed channel") }

// TestBroadcastDeliversToRecipientsOnly verifies only listed, attached sinks get the frame.
func TestBroadcastDeliversToRecipientsOnly(t *testing.T) {
	e := New()
	a, b, c := &recordingSink{}, &recordingSink{}, &recordingSink{}
	e.Attach("a", a)
	e.Attach("b", b)
	e.Attach("c", c)

	n := e.Broadcast("room", domain.JoinedEvent("alice", 2), []string{"a", "b", "ghost"})
	assert.Equal(t, 2, n)
	assert.Len(t, a.events(t), 1)
	assert.Len(t, b.events(t), 1)
	assert.Empty(t, c.events(t))
}

// TestBroadcastPreservesIssueOrder checks frames land in each sink in the order
// they were broadcast.
func TestBroadcastPreservesIssueOrder(t *testing.T) {
	e := New()
	sink := &recordingSink{}
	e.Attach("a", sink)

	for i := 0; i < 20; i++ {
		e.Broadcast("room", domain.MessageEvent(domain.Message{Content: fmt.Sprint(i)}), []string{"a"})
	}

	events := sink.events(t)
	require.Len(t, events, 20)
	for i, env := range events {
		var view domain.MessageView
		require.NoError(t, json.Unmarshal(env.Data, &view))
		assert.Equal(t, fmt.Sprint(i), view.Content)
	}
}

// TestBroadcastSkipsFullAndPanickingSinks verifies one bad sink does not stop
// delivery to the rest.
func TestBroadcastSkipsFullAndPanickingSinks(t *testing.T) {
	e := New()
	ok := &recordingSink{}
	e.Attach("ok", ok)
	e.Attach("full", &recordingSink{full: true})
	e.Attach("boom", panickingSink{})

	n := e.Broadcast("room", domain.LeftEvent("bob", 1), []string{"full", "boom", "ok"})
	assert.Equal(t, 1, n)
	assert.Len(t, ok.events(t), 1)
}

// TestDetachAndSendTo covers single-connection delivery and detaching.
func TestDetachAndSendTo(t *testing.T) {
	e := New()
	sink := &recordingSink{}
	e.Attach("a", sink)
	assert.Equal(t, 1, e.Len())

	assert.True(t, e.SendTo("a", domain.ErrorEvent("Room not found")))
	e.Detach("a")
	assert.False(t, e.SendTo("a", domain.ErrorEvent("again")))
	assert.Equal(t, 0, e.Len())

	events := sink.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventError, events[0].Event)
}
