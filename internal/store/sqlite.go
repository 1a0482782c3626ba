package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Tyrowin/roomchat/internal/domain"
)

type roomRecord struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Name         string    `gorm:"size:100;not null"`
	CreatedAt    time.Time `gorm:"not null"`
	ExpiresAt    time.Time `gorm:"index;not null"`
	LastActivity time.Time
}

func (roomRecord) TableName() string { return "rooms" }

type messageRecord struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	RoomID         string    `gorm:"size:64;index:idx_messages_room_id;not null"`
	SenderNickname string    `gorm:"not null"`
	Content        string    `gorm:"type:text;not null"`
	Kind           string    `gorm:"size:16;not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (messageRecord) TableName() string { return "messages" }

func (r roomRecord) toDomain() domain.Room {
	return domain.Room{
		ID:           r.ID,
		Name:         r.Name,
		CreatedAt:    r.CreatedAt,
		ExpiresAt:    r.ExpiresAt,
		LastActivity: r.LastActivity,
	}
}

func (m messageRecord) toDomain() domain.Message {
	return domain.Message{
		RoomID:         m.RoomID,
		SenderNickname: m.SenderNickname,
		Content:        m.Content,
		Kind:           domain.Kind(m.Kind),
		CreatedAt:      m.CreatedAt,
	}
}

// SQL stores rooms and messages through gorm. Times are kept in UTC so the
// textual sqlite timestamps compare correctly.
type SQL struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) a sqlite database at path and migrates it.
// An empty path opens a private in-memory database.
func OpenSQLite(path string) (*SQL, error) {
	if path == "" {
		path = "file::memory:"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// sqlite serializes writers; one connection keeps in-memory databases shared.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return NewSQL(db)
}

// NewSQL wraps an open gorm handle and migrates the schema.
func NewSQL(db *gorm.DB) (*SQL, error) {
	if err := db.AutoMigrate(&roomRecord{}, &messageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &SQL{db: db}, nil
}

func (s *SQL) CreateRoom(ctx context.Context, room domain.Room) error {
	rec := roomRecord{
		ID:           room.ID,
		Name:         room.Name,
		CreatedAt:    room.CreatedAt.UTC(),
		ExpiresAt:    room.ExpiresAt.UTC(),
		LastActivity: room.LastActivity.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

func (s *SQL) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	var rec roomRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Room{}, ErrNotFound
		}
		return domain.Room{}, fmt.Errorf("failed to find room: %w", err)
	}
	return rec.toDomain(), nil
}

func (s *SQL) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	msg = stamp(msg)
	msg.CreatedAt = msg.CreatedAt.UTC()
	rec := messageRecord{
		RoomID:         msg.RoomID,
		SenderNickname: msg.SenderNickname,
		Content:        msg.Content,
		Kind:           string(msg.Kind),
		CreatedAt:      msg.CreatedAt,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&roomRecord{}).Where("id = ?", msg.RoomID).Update("last_activity", msg.CreatedAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Create(&rec).Error
	})
	if errors.Is(err, ErrNotFound) {
		return domain.Message{}, ErrNotFound
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to append message: %w", err)
	}
	return msg, nil
}

func (s *SQL) Recent(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []messageRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	out := make([]domain.Message, len(recs))
	for i, rec := range recs {
		out[len(recs)-1-i] = rec.toDomain()
	}
	return out, nil
}

func (s *SQL) ExpiredRooms(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&roomRecord{}).
		Where("expires_at <= ?", now.UTC()).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired rooms: %w", err)
	}
	return ids, nil
}

func (s *SQL) DeleteRoom(ctx context.Context, roomID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&messageRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", roomID).Delete(&roomRecord{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
