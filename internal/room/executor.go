package room

import (
	"context"
	"fmt"
	"sort"

	"github.com/Tyrowin/roomchat/internal/domain"
	"github.com/Tyrowin/roomchat/internal/log"
)

// op runs on a room's executor goroutine with exclusive access to its state.
type op func(ctx context.Context) error

// executor serializes every operation of one room. Its fields other than
// ops and done are owned by the run goroutine.
type executor struct {
	room    domain.Room
	members map[string]domain.Member
	expired bool
	stopped bool

	ops  chan op
	done chan struct{}
}

func newExecutor(room domain.Room, queueSize int) *executor {
	return &executor{
		room:    room,
		members: make(map[string]domain.Member),
		ops:     make(chan op, queueSize),
		done:    make(chan struct{}),
	}
}

// run processes operations in arrival order until the room is removed or
// ctx is cancelled.
func (e *executor) run(ctx context.Context) {
	defer close(e.done)

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-e.ops:
			fn(ctx)
			if e.stopped {
				return
			}
		}
	}
}

// do enqueues fn and waits for its result. Once enqueued an operation is not
// cancelled; ctx only bounds the wait for queue space.
func (e *executor) do(ctx context.Context, fn op) error {
	result := make(chan error, 1)
	wrapped := func(runCtx context.Context) error {
		err := e.guard(runCtx, fn)
		result <- err
		return err
	}

	select {
	case e.ops <- wrapped:
	case <-e.done:
		return domain.ErrRoomNotFound
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-e.done:
		// The operation may have been the one that stopped the executor.
		select {
		case err := <-result:
			return err
		default:
			return domain.ErrRoomNotFound
		}
	}
}

// guard keeps a panicking operation from taking the room down with it.
func (e *executor) guard(ctx context.Context, fn op) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.L().Error().Str(log.FieldRoomID, e.room.ID).Interface("panic", r).Msg("recovered from panic in room operation")
			err = fmt.Errorf("room %s: operation panicked: %v", e.room.ID, r)
		}
	}()
	return fn(ctx)
}

// recipients lists member connection ids, skipping exclude. Sorted so that
// delivery order across members is stable.
func (e *executor) recipients(exclude string) []string {
	ids := make([]string, 0, len(e.members))
	for id := range e.members {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
