package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Tyrowin/roomchat/internal/domain"
)

// DefaultRedisPrefix namespaces every key written by Redis.
const DefaultRedisPrefix = "roomchat"

// Redis keeps each room as a hash, its log as a list, and an expiry index as
// a sorted set scored by unix expiry time.
type Redis struct {
	client *redis.Client
	prefix string
}

type redisMessage struct {
	SenderNickname string    `json:"senderNickname"`
	Content        string    `json:"content"`
	Kind           string    `json:"type"`
	CreatedAt      time.Time `json:"createdAt"`
}

// OpenRedis connects to the configured server and verifies it with PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedis(client, cfg.Prefix), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) roomKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s", r.prefix, roomID)
}

func (r *Redis) messagesKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s:messages", r.prefix, roomID)
}

func (r *Redis) expiryKey() string {
	return r.prefix + ":rooms:expiry"
}

func (r *Redis) CreateRoom(ctx context.Context, room domain.Room) error {
	key := r.roomKey(room.ID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"name", room.Name,
			"created_at", room.CreatedAt.UnixNano(),
			"expires_at", room.ExpiresAt.UnixNano(),
			"last_activity", room.LastActivity.UnixNano(),
		)
		// Secondary cleanup in case the sweeper never reaches this room.
		pipe.ExpireAt(ctx, key, room.ExpiresAt)
		pipe.ZAdd(ctx, r.expiryKey(), redis.Z{Score: float64(room.ExpiresAt.Unix()), Member: room.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

func (r *Redis) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	fields, err := r.client.HGetAll(ctx, r.roomKey(roomID)).Result()
	if err != nil {
		return domain.Room{}, fmt.Errorf("failed to load room: %w", err)
	}
	if len(fields) == 0 {
		return domain.Room{}, ErrNotFound
	}

	room := domain.Room{ID: roomID, Name: fields["name"]}
	room.CreatedAt, err = parseNanos(fields["created_at"])
	if err == nil {
		room.ExpiresAt, err = parseNanos(fields["expires_at"])
	}
	if err == nil {
		room.LastActivity, err = parseNanos(fields["last_activity"])
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("corrupt room record %s: %w", roomID, err)
	}
	return room, nil
}

func (r *Redis) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	msg = stamp(msg)
	room, err := r.GetRoom(ctx, msg.RoomID)
	if err != nil {
		return domain.Message{}, err
	}

	data, err := json.Marshal(redisMessage{
		SenderNickname: msg.SenderNickname,
		Content:        msg.Content,
		Kind:           string(msg.Kind),
		CreatedAt:      msg.CreatedAt,
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to encode message: %w", err)
	}

	listKey := r.messagesKey(msg.RoomID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, listKey, data)
		pipe.ExpireAt(ctx, listKey, room.ExpiresAt)
		pipe.HSet(ctx, r.roomKey(msg.RoomID), "last_activity", msg.CreatedAt.UnixNano())
		return nil
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to append message: %w", err)
	}
	return msg, nil
}

func (r *Redis) Recent(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	exists, err := r.client.Exists(ctx, r.roomKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check room: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := r.client.LRange(ctx, r.messagesKey(roomID), start, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	out := make([]domain.Message, 0, len(raw))
	for _, item := range raw {
		var m redisMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("corrupt message in room %s: %w", roomID, err)
		}
		out = append(out, domain.Message{
			RoomID:         roomID,
			SenderNickname: m.SenderNickname,
			Content:        m.Content,
			Kind:           domain.Kind(m.Kind),
			CreatedAt:      m.CreatedAt,
		})
	}
	return out, nil
}

func (r *Redis) ExpiredRooms(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list expired rooms: %w", err)
	}
	return ids, nil
}

func (r *Redis) DeleteRoom(ctx context.Context, roomID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.roomKey(roomID), r.messagesKey(roomID))
		pipe.ZRem(ctx, r.expiryKey(), roomID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func parseNanos(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}
