package registry

import (
	"fmt"
	"sync"
	"testing"
)

// TestBindLookupUnbind walks one connection through its registry lifecycle.
func TestBindLookupUnbind(t *testing.T) {
	r := New()

	if _, ok := r.Lookup("c1"); ok {
		t.Fatal("expected no entry before Bind")
	}

	r.Bind("c1", "abc123", "alice")
	e, ok := r.Lookup("c1")
	if !ok || e.RoomID != "abc123" || e.Nickname != "alice" {
		t.Fatalf("Lookup = %+v, %v", e, ok)
	}

	r.Bind("c1", "def456", "alice2")
	if e, _ := r.Lookup("c1"); e.RoomID != "def456" {
		t.Errorf("rebind kept old room %q", e.RoomID)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	e, ok = r.Unbind("c1")
	if !ok || e.Nickname != "alice2" {
		t.Errorf("Unbind = %+v, %v", e, ok)
	}
	if _, ok := r.Unbind("c1"); ok {
		t.Error("second Unbind should report no entry")
	}
}

// TestConcurrentConnections binds and unbinds many connections in parallel.
func TestConcurrentConnections(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conn-%d", i)
			r.Bind(id, "room", id)
			if _, ok := r.Lookup(id); !ok {
				t.Errorf("missing %s", id)
			}
			if i%2 == 0 {
				r.Unbind(id)
			}
		}(i)
	}
	wg.Wait()

	if r.Len() != 50 {
		t.Errorf("Len = %d, want 50", r.Len())
	}
}
