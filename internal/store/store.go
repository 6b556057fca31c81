package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mossy-p/whiteboard-signaling/config"
	"github.com/mossy-p/whiteboard-signaling/internal/models"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)

// Store is the durable side of a room: metadata, ordered canvas pages and
// chat history. Live participants never touch it.
type Store interface {
	CreateRoom(ctx context.Context, room models.RoomMetadata) error
	GetRoom(ctx context.Context, roomID string) (*models.RoomMetadata, error)
	SetTitle(ctx context.Context, roomID, title string) error

	// Pages returns the saved pages ordered by index. A room that never saved
	// returns an empty slice.
	Pages(ctx context.Context, roomID string) ([]models.Page, error)
	SavePages(ctx context.Context, roomID string, pages []models.Page) error

	// AppendChat stores messages in the order it is called.
	AppendChat(ctx context.Context, roomID string, msg models.ChatRecord) error
	Chat(ctx context.Context, roomID string) ([]models.ChatRecord, error)

	Close() error
}

// Open connects the backend selected in cfg.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		return OpenRedis(ctx, cfg.Redis)
	case config.BackendSQLite:
		return OpenSQLite(cfg.SQLite.Path)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
