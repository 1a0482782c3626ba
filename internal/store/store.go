// Package store persists rooms and their ordered message logs.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tyrowin/roomchat/internal/domain"
)

// ErrNotFound is returned when a room record does not exist.
var ErrNotFound = errors.New("store: room not found")

// Store is the durable room and message log. Implementations must be safe for
// concurrent use; ordering within a room is provided by the caller.
type Store interface {
	// CreateRoom saves a new room record.
	CreateRoom(ctx context.Context, room domain.Room) error
	// GetRoom loads a room record or returns ErrNotFound.
	GetRoom(ctx context.Context, roomID string) (domain.Room, error)
	// Append adds msg to the end of the room's log, assigning CreatedAt when
	// unset, and bumps the room's last activity.
	Append(ctx context.Context, msg domain.Message) (domain.Message, error)
	// Recent returns up to limit most recent messages, oldest first.
	Recent(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
	// ExpiredRooms lists rooms whose expiry is at or before now.
	ExpiredRooms(ctx context.Context, now time.Time) ([]string, error)
	// DeleteRoom removes the room record and its entire log.
	DeleteRoom(ctx context.Context, roomID string) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// RedisConfig holds connection settings for the redis driver.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Config selects and configures a backend.
type Config struct {
	Driver     string      `mapstructure:"driver"`
	SQLitePath string      `mapstructure:"sqlite_path"`
	Redis      RedisConfig `mapstructure:"redis"`
}

// Open returns the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return OpenSQLite(cfg.SQLitePath)
	case DriverRedis:
		return OpenRedis(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func stamp(msg domain.Message) domain.Message {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return msg
}
