// Package room owns the set of active rooms. Every room has its own serial
// executor, so joins, leaves, sends, and expiry of one room are totally
// ordered while different rooms proceed in parallel.
package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Tyrowin/roomchat/internal/domain"
	"github.com/Tyrowin/roomchat/internal/log"
	"github.com/Tyrowin/roomchat/internal/store"
)

// Room id alphabet and length.
const (
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	idLength   = 10
)

// Publisher delivers events to connections.
type Publisher interface {
	Broadcast(roomID string, ev domain.Outbound, recipients []string) int
	SendTo(connID string, ev domain.Outbound) bool
}

// Moderator rewrites message content before it is stored.
type Moderator interface {
	Apply(content string, kind domain.Kind) string
}

// Options tunes a Directory.
type Options struct {
	Capacity      int           `mapstructure:"capacity"`
	HistoryLimit  int           `mapstructure:"history_limit"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	QueueSize     int           `mapstructure:"queue_size"`

	// Clock defaults to time.Now.
	Clock func() time.Time `mapstructure:"-"`
}

// DefaultOptions returns the production limits.
func DefaultOptions() Options {
	return Options{
		Capacity:      domain.DefaultCapacity,
		HistoryLimit:  domain.DefaultHistoryLimit,
		TTL:           domain.DefaultTTL,
		SweepInterval: time.Minute,
		QueueSize:     64,
	}
}

func (o Options) sanitize() Options {
	def := DefaultOptions()
	if o.Capacity <= 0 {
		o.Capacity = def.Capacity
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = def.HistoryLimit
	}
	if o.TTL <= 0 {
		o.TTL = def.TTL
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = def.SweepInterval
	}
	if o.QueueSize <= 0 {
		o.QueueSize = def.QueueSize
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// JoinResult is returned by a successful Join.
type JoinResult struct {
	RoomName string
	History  []domain.Message
	Count    int
}

// Directory is the registry of active rooms.
type Directory struct {
	store     store.Store
	moderator Moderator
	publisher Publisher
	opts      Options

	mu     sync.Mutex
	rooms  map[string]*executor
	closed bool
	loads  singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Directory. Call Start to run the expiry sweeper and Shutdown
// to stop every room executor.
func New(st store.Store, moderator Moderator, publisher Publisher, opts Options) *Directory {
	ctx, cancel := context.WithCancel(context.Background())
	return &Directory{
		store:     st,
		moderator: moderator,
		publisher: publisher,
		opts:      opts.sanitize(),
		rooms:     make(map[string]*executor),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (d *Directory) now() time.Time {
	return d.opts.Clock()
}

// Create registers a new room and returns it.
func (d *Directory) Create(ctx context.Context, name string) (domain.Room, error) {
	id, err := gonanoid.Generate(idAlphabet, idLength)
	if err != nil {
		return domain.Room{}, fmt.Errorf("failed to generate room id: %w", err)
	}

	room := domain.NewRoom(id, name, d.now(), d.opts.TTL)
	if err := d.store.CreateRoom(ctx, room); err != nil {
		return domain.Room{}, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	log.Ctx(ctx).Info().Str(log.FieldRoomID, room.ID).Str("room_name", room.Name).Time("expires_at", room.ExpiresAt).Msg("room created")
	return room, nil
}

// Join admits connID to roomID as nickname. The joiner receives room-history
// and every other member receives user-joined, both from the room executor.
func (d *Directory) Join(ctx context.Context, roomID, connID, nickname string) (JoinResult, error) {
	nickname = strings.TrimSpace(nickname)

	e, err := d.executor(ctx, roomID)
	if err != nil {
		return JoinResult{}, err
	}

	var res JoinResult
	err = e.do(ctx, func(runCtx context.Context) error {
		if e.expired || e.room.Expired(d.now()) {
			e.expired = true
			return domain.ErrRoomNotFound
		}
		if !domain.ValidNickname(nickname) {
			return domain.ErrInvalidNickname
		}
		prev, rejoin := e.members[connID]
		if !rejoin && len(e.members) >= d.opts.Capacity {
			return &domain.FullError{Capacity: d.opts.Capacity}
		}

		history, err := d.store.Recent(runCtx, roomID, d.opts.HistoryLimit)
		if err != nil {
			log.L().Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to load history")
			return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		}

		e.members[connID] = domain.Member{ConnectionID: connID, Nickname: nickname, JoinedAt: d.now()}
		count := len(e.members)
		res = JoinResult{RoomName: e.room.Name, History: history, Count: count}

		d.publisher.SendTo(connID, domain.HistoryEvent(e.room.Name, history, count))
		// A rejoin under the same nickname is not news to the others.
		if !rejoin || prev.Nickname != nickname {
			d.publisher.Broadcast(roomID, domain.JoinedEvent(nickname, count), e.recipients(connID))
		}

		log.L().Info().Str(log.FieldRoomID, roomID).Str(log.FieldConnID, connID).Str(log.FieldNickname, nickname).Int(log.FieldCount, count).Msg("member joined")
		return nil
	})
	return res, err
}

// Leave removes connID from roomID. It is a no-op when the connection is not
// a member or the room is gone. Like every operation, ctx only bounds the
// wait for queue space; pass a context without deadline when the leave must
// not be lost.
func (d *Directory) Leave(ctx context.Context, roomID, connID string) error {
	e := d.active(roomID)
	if e == nil {
		return nil
	}

	err := e.do(ctx, func(context.Context) error {
		m, ok := e.members[connID]
		if !ok {
			return nil
		}
		delete(e.members, connID)
		count := len(e.members)

		d.publisher.Broadcast(roomID, domain.LeftEvent(m.Nickname, count), e.recipients(""))
		log.L().Info().Str(log.FieldRoomID, roomID).Str(log.FieldConnID, connID).Str(log.FieldNickname, m.Nickname).Int(log.FieldCount, count).Msg("member left")
		return nil
	})
	if errors.Is(err, domain.ErrRoomNotFound) {
		return nil
	}
	return err
}

// Send moderates, stores, and broadcasts a message from connID. Nothing is
// broadcast when the store rejects the message.
func (d *Directory) Send(ctx context.Context, roomID, connID, content string, kind domain.Kind) (domain.Message, error) {
	if !kind.Valid() {
		return domain.Message{}, fmt.Errorf("%w: unsupported type %q", domain.ErrInvalidMessage, kind)
	}

	e := d.active(roomID)
	if e == nil {
		return domain.Message{}, domain.ErrNotJoined
	}

	var stored domain.Message
	err := e.do(ctx, func(runCtx context.Context) error {
		m, ok := e.members[connID]
		if !ok {
			return domain.ErrNotJoined
		}
		if e.expired || e.room.Expired(d.now()) {
			e.expired = true
			return domain.ErrRoomNotFound
		}

		msg := domain.Message{
			RoomID:         roomID,
			SenderNickname: m.Nickname,
			Content:        d.moderator.Apply(content, kind),
			Kind:           kind,
			CreatedAt:      d.now(),
		}
		saved, err := d.store.Append(runCtx, msg)
		if err != nil {
			log.L().Error().Err(err).Str(log.FieldRoomID, roomID).Str(log.FieldConnID, connID).Msg("failed to persist message")
			return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		}
		e.room.LastActivity = saved.CreatedAt
		stored = saved

		d.publisher.Broadcast(roomID, domain.MessageEvent(saved), e.recipients(""))
		return nil
	})
	return stored, err
}

// Admit reports whether roomID currently exists and has room for one more
// member. It is advisory: Join performs the authoritative check.
func (d *Directory) Admit(ctx context.Context, roomID string) error {
	e, err := d.executor(ctx, roomID)
	if err != nil {
		return err
	}
	return e.do(ctx, func(context.Context) error {
		if e.expired || e.room.Expired(d.now()) {
			return domain.ErrRoomNotFound
		}
		if len(e.members) >= d.opts.Capacity {
			return &domain.FullError{Capacity: d.opts.Capacity}
		}
		return nil
	})
}

// Members returns the member count of an active room, or zero.
func (d *Directory) Members(ctx context.Context, roomID string) int {
	e := d.active(roomID)
	if e == nil {
		return 0
	}
	count := 0
	_ = e.do(ctx, func(context.Context) error {
		count = len(e.members)
		return nil
	})
	return count
}

// Active returns the number of rooms with a running executor.
func (d *Directory) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms)
}

// active returns the running executor for roomID without touching the store.
func (d *Directory) active(roomID string) *executor {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rooms[roomID]
}

// executor returns the running executor for roomID, loading the room record
// on first use. Concurrent first accesses share a single load.
func (d *Directory) executor(ctx context.Context, roomID string) (*executor, error) {
	if e := d.active(roomID); e != nil {
		return e, nil
	}

	v, err, _ := d.loads.Do(roomID, func() (any, error) {
		if e := d.active(roomID); e != nil {
			return e, nil
		}
		room, err := d.store.GetRoom(ctx, roomID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		}
		if room.Expired(d.now()) {
			return nil, domain.ErrRoomNotFound
		}
		return d.spawn(room)
	})
	if err != nil {
		return nil, err
	}
	return v.(*executor), nil
}

func (d *Directory) spawn(room domain.Room) (*executor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, domain.ErrRoomNotFound
	}
	if e, ok := d.rooms[room.ID]; ok {
		return e, nil
	}

	e := newExecutor(room, d.opts.QueueSize)
	d.rooms[room.ID] = e
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		e.run(d.ctx)
	}()

	log.L().Debug().Str(log.FieldRoomID, room.ID).Msg("room executor started")
	return e, nil
}

// forget drops roomID from the directory if it still maps to e.
func (d *Directory) forget(roomID string, e *executor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rooms[roomID] == e {
		delete(d.rooms, roomID)
	}
}

// Shutdown stops the sweeper and every room executor, waiting up to timeout.
func (d *Directory) Shutdown(timeout time.Duration) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.L().Info().Msg("room directory stopped")
		return nil
	case <-time.After(timeout):
		log.L().Warn().Msg("room directory shutdown timed out")
		return context.DeadlineExceeded
	}
}
