package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mossy-p/whiteboard-signaling/config"
	"github.com/mossy-p/whiteboard-signaling/internal/models"
	"github.com/redis/go-redis/v9"
)

// Redis keeps each room under three keys:
//
//	room:<id>           JSON metadata
//	room:<id>:pages     JSON array of pages
//	room:<id>:messages  list of JSON chat records
type Redis struct {
	client *redis.Client
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func roomKey(id string) string     { return "room:" + id }
func pagesKey(id string) string    { return "room:" + id + ":pages" }
func messagesKey(id string) string { return "room:" + id + ":messages" }

func (s *Redis) CreateRoom(ctx context.Context, room models.RoomMetadata) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	ok, err := s.client.SetNX(ctx, roomKey(room.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("store room %s: %w", room.ID, err)
	}
	if !ok {
		return ErrRoomExists
	}
	return nil
}

func (s *Redis) GetRoom(ctx context.Context, roomID string) (*models.RoomMetadata, error) {
	data, err := s.client.Get(ctx, roomKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}

	var room models.RoomMetadata
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("failed to parse room data: %w", err)
	}
	return &room, nil
}

func (s *Redis) SetTitle(ctx context.Context, roomID, title string) error {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	room.Title = title

	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	// XX keeps a concurrent delete from resurrecting the room.
	if err := s.client.SetXX(ctx, roomKey(roomID), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("update title %s: %w", roomID, err)
	}
	return nil
}

func (s *Redis) Pages(ctx context.Context, roomID string) ([]models.Page, error) {
	if err := s.exists(ctx, roomID); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, pagesKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []models.Page{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pages %s: %w", roomID, err)
	}

	var pages []models.Page
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("failed to parse pages: %w", err)
	}
	return pages, nil
}

func (s *Redis) SavePages(ctx context.Context, roomID string, pages []models.Page) error {
	if err := s.exists(ctx, roomID); err != nil {
		return err
	}

	sorted := append([]models.Page(nil), pages...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PageIndex < sorted[j].PageIndex })

	data, err := json.Marshal(sorted)
	if err != nil {
		return fmt.Errorf("marshal pages: %w", err)
	}
	if err := s.client.Set(ctx, pagesKey(roomID), data, 0).Err(); err != nil {
		return fmt.Errorf("save pages %s: %w", roomID, err)
	}
	return nil
}

func (s *Redis) AppendChat(ctx context.Context, roomID string, msg models.ChatRecord) error {
	if err := s.exists(ctx, roomID); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal chat: %w", err)
	}
	if err := s.client.RPush(ctx, messagesKey(roomID), data).Err(); err != nil {
		return fmt.Errorf("append chat %s: %w", roomID, err)
	}
	return nil
}

func (s *Redis) Chat(ctx context.Context, roomID string) ([]models.ChatRecord, error) {
	if err := s.exists(ctx, roomID); err != nil {
		return nil, err
	}

	raw, err := s.client.LRange(ctx, messagesKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read chat %s: %w", roomID, err)
	}

	msgs := make([]models.ChatRecord, 0, len(raw))
	for _, r := range raw {
		var m models.ChatRecord
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("failed to parse chat record: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *Redis) exists(ctx context.Context, roomID string) error {
	n, err := s.client.Exists(ctx, roomKey(roomID)).Result()
	if err != nil {
		return fmt.Errorf("lookup room %s: %w", roomID, err)
	}
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// Close closes the Redis connection
func (s *Redis) Close() error {
	return s.client.Close()
}
