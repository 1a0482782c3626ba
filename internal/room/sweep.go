package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tyrowin/roomchat/internal/domain"
	"github.com/Tyrowin/roomchat/internal/log"
	"github.com/Tyrowin/roomchat/internal/store"
)

// Start runs the expiry sweeper every SweepInterval until Shutdown.
func (d *Directory) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sweepLoop(d.ctx)
	}()
	log.L().Info().Dur("interval", d.opts.SweepInterval).Dur("ttl", d.opts.TTL).Msg("room expiry sweeper started")
}

func (d *Directory) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(d.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Sweep(ctx); err != nil {
				log.L().Error().Err(err).Msg("room sweep finished with errors")
			}
		}
	}
}

// Sweep permanently deletes every room whose expiry has passed, together with
// its message log. Rooms with a running executor are deleted from inside that
// executor so no join or send can interleave with the deletion. It returns
// the number of rooms removed.
func (d *Directory) Sweep(ctx context.Context) (int, error) {
	now := d.now()

	candidates := make(map[string]struct{})
	ids, listErr := d.store.ExpiredRooms(ctx, now)
	if listErr != nil {
		listErr = fmt.Errorf("list expired rooms: %w", listErr)
	}
	for _, id := range ids {
		candidates[id] = struct{}{}
	}

	d.mu.Lock()
	running := make(map[string]*executor, len(d.rooms))
	for id, e := range d.rooms {
		running[id] = e
		if e.room.ExpiresAt.After(now) {
			continue
		}
		candidates[id] = struct{}{}
	}
	d.mu.Unlock()

	removed := 0
	var errs []error
	if listErr != nil {
		errs = append(errs, listErr)
	}
	for id := range candidates {
		var (
			ok  bool
			err error
		)
		if e, live := running[id]; live {
			ok, err = d.expire(ctx, id, e, now)
		} else {
			ok, err = d.expireIdle(ctx, id, now)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			removed++
		}
	}

	if removed > 0 {
		log.L().Info().Int("removed", removed).Msg("expired rooms removed")
	}
	return removed, errors.Join(errs...)
}

// expire deletes a room through its executor and stops the executor.
func (d *Directory) expire(ctx context.Context, roomID string, e *executor, now time.Time) (bool, error) {
	removed := false
	err := e.do(ctx, func(runCtx context.Context) error {
		if !e.room.Expired(now) {
			return nil
		}
		e.expired = true
		if err := d.store.DeleteRoom(runCtx, roomID); err != nil {
			log.L().Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to delete expired room")
			return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		}
		e.members = make(map[string]domain.Member)
		e.stopped = true
		d.forget(roomID, e)
		removed = true
		return nil
	})
	if errors.Is(err, domain.ErrRoomNotFound) {
		return false, nil
	}
	return removed, err
}

// expireIdle deletes a room that has no executor. A join racing with this
// loads the record, sees it expired, and refuses.
func (d *Directory) expireIdle(ctx context.Context, roomID string, now time.Time) (bool, error) {
	room, err := d.store.GetRoom(ctx, roomID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Record already gone; clear any leftover log or index entry.
	case err != nil:
		return false, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	case !room.Expired(now):
		return false, nil
	}

	if err := d.store.DeleteRoom(ctx, roomID); err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return true, nil
}
