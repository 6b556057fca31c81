package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mossy-p/whiteboard-signaling/internal/models"
	_ "modernc.org/sqlite"
)

// SQLite is a single-file Store for deployments without Redis.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite prepares a SQLite database at the given path and ensures the schema exists.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			host_id TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS pages (
			room_id TEXT NOT NULL,
			page_index INTEGER NOT NULL,
			canvas_data TEXT NOT NULL DEFAULT '',
			PRIMARY KEY(room_id, page_index),
			FOREIGN KEY(room_id) REFERENCES rooms(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id TEXT NOT NULL,
			user TEXT NOT NULL,
			message TEXT NOT NULL,
			socket_id TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			FOREIGN KEY(room_id) REFERENCES rooms(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_room_seq ON chat_messages(room_id, seq);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *SQLite) CreateRoom(ctx context.Context, room models.RoomMetadata) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, host_id, title, created_at) VALUES (?, ?, ?, ?)`,
		room.ID, room.HostID, room.Title, room.CreatedAt.UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrRoomExists
		}
		return fmt.Errorf("insert room %s: %w", room.ID, err)
	}
	return nil
}

func (s *SQLite) GetRoom(ctx context.Context, roomID string) (*models.RoomMetadata, error) {
	var room models.RoomMetadata
	err := s.db.QueryRowContext(ctx,
		`SELECT id, host_id, title, created_at FROM rooms WHERE id = ?`, roomID).
		Scan(&room.ID, &room.HostID, &room.Title, &room.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return &room, nil
}

func (s *SQLite) SetTitle(ctx context.Context, roomID, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE rooms SET title = ? WHERE id = ?`, title, roomID)
	if err != nil {
		return fmt.Errorf("update title %s: %w", roomID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *SQLite) Pages(ctx context.Context, roomID string) ([]models.Page, error) {
	if err := s.exists(ctx, roomID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT page_index, canvas_data FROM pages WHERE room_id = ? ORDER BY page_index`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query pages %s: %w", roomID, err)
	}
	defer rows.Close()

	pages := []models.Page{}
	for rows.Next() {
		var p models.Page
		if err := rows.Scan(&p.PageIndex, &p.CanvasData); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// SavePages replaces every page of the room in one transaction.
func (s *SQLite) SavePages(ctx context.Context, roomID string, pages []models.Page) error {
	if err := s.exists(ctx, roomID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("clear pages %s: %w", roomID, err)
	}
	for _, p := range pages {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO pages (room_id, page_index, canvas_data) VALUES (?, ?, ?)`,
			roomID, p.PageIndex, p.CanvasData); err != nil {
			return fmt.Errorf("insert page %d: %w", p.PageIndex, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) AppendChat(ctx context.Context, roomID string, msg models.ChatRecord) error {
	if err := s.exists(ctx, roomID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (room_id, user, message, socket_id, timestamp) VALUES (?, ?, ?, ?, ?)`,
		roomID, msg.User, msg.Message, msg.SocketID, msg.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("append chat %s: %w", roomID, err)
	}
	return nil
}

func (s *SQLite) Chat(ctx context.Context, roomID string) ([]models.ChatRecord, error) {
	if err := s.exists(ctx, roomID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user, message, socket_id, timestamp FROM chat_messages WHERE room_id = ? ORDER BY seq`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query chat %s: %w", roomID, err)
	}
	defer rows.Close()

	msgs := []models.ChatRecord{}
	for rows.Next() {
		var m models.ChatRecord
		if err := rows.Scan(&m.User, &m.Message, &m.SocketID, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQLite) exists(ctx context.Context, roomID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE id = ?`, roomID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup room %s: %w", roomID, err)
	}
	return nil
}

// Close releases database resources.
func (s *SQLite) Close() error {
	return s.db.Close()
}
