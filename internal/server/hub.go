package server

import (
	"context"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/broadcast"
	"github.com/Tyrowin/roomchat/internal/log"
	"github.com/Tyrowin/roomchat/internal/registry"
)

// Hub owns the set of live connections. It starts their pumps on register
// and, on unregister, detaches them from the broadcast engine and leaves
// whatever room they were in.
type Hub struct {
	rooms    Rooms
	engine   *broadcast.Engine
	registry *registry.Registry

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub. Run must be started before clients are registered.
func NewHub(rooms Rooms, engine *broadcast.Engine, reg *registry.Registry) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:      rooms,
		engine:     engine,
		registry:   reg,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands c to the hub. It reports false once the hub is shutting down.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Unregister releases c. After Run has returned the release happens inline.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		h.release(c, false)
	}
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run starts the hub's main event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case c := <-h.register:
			if c == nil {
				log.L().Warn().Msg("received nil client registration; skipping")
				continue
			}
			h.add(c)

		case c := <-h.unregister:
			h.release(c, true)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mutex.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mutex.Unlock()

	h.engine.Attach(c.id, c)
	c.logger.Info().Int("clients", count).Msg("client registered")

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
}

// release forgets c and leaves its room. With async set the leave runs on
// its own goroutine so a busy room never stalls the hub loop.
func (h *Hub) release(c *Client, async bool) {
	h.mutex.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mutex.Unlock()

	h.engine.Detach(c.id)
	c.close()
	c.logger.Info().Int("clients", count).Msg("client unregistered")

	entry, ok := h.registry.Unbind(c.id)
	if !ok {
		return
	}
	if !async {
		h.leave(c, entry.RoomID)
		return
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.leave(c, entry.RoomID)
	}()
}

// leave waits as long as the room needs: a dropped leave would keep a ghost
// member counted against capacity. It returns early only if the room stops.
func (h *Hub) leave(c *Client, roomID string) {
	if err := h.rooms.Leave(context.Background(), roomID, c.id); err != nil {
		c.logger.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to leave room on disconnect")
	}
}

// shutdownClients closes every connection; their pumps then unwind.
func (h *Hub) shutdownClients() {
	log.L().Info().Msg("shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mutex.Unlock()

	for _, c := range clients {
		if c.conn == nil {
			continue
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn().Err(err).Msg("error closing client connection")
		}
	}

	log.L().Info().Int("clients", len(clients)).Msg("closed client connections")
}

// Shutdown closes every connection and waits up to timeout for their pumps
// and pending leaves to finish.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.L().Info().Msg("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.L().Info().Msg("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		log.L().Warn().Msg("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
