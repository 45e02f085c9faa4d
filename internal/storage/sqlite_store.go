package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"github.com/user/legion-bot/internal/types"
)

// SQLiteStore keeps one JSON document per row
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at filePath and creates the schema
func NewSQLiteStore(filePath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", filePath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under load
	db.SetMaxOpenConns(1)

	st := &SQLiteStore{db: db}
	if err := st.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LoadPlayer(ctx context.Context, userID string) (*types.PlayerProfile, bool, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM players WHERE user_id = ?`, userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	player, err := decodePlayer(doc)
	if err != nil {
		return nil, false, err
	}
	return player, true, nil
}

func (s *SQLiteStore) SavePlayer(ctx context.Context, player *types.PlayerProfile) error {
	doc, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("failed to marshal player: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO players (user_id, doc, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		player.UserID,
		doc,
		toTS(player.UpdatedAt),
	)
	return err
}

func (s *SQLiteStore) ListPlayers(ctx context.Context) ([]*types.PlayerProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM players ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*types.PlayerProfile, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		player, err := decodePlayer(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, player)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) LoadWildSpawn(ctx context.Context, key string) (*types.WildSpawnState, bool, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM wild_spawns WHERE key = ?`, key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var state types.WildSpawnState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, false, fmt.Errorf("failed to parse wild spawn %q: %w", key, err)
	}
	return &state, true, nil
}

func (s *SQLiteStore) SaveWildSpawn(ctx context.Context, key string, state *types.WildSpawnState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal wild spawn: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wild_spawns (key, doc, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		key,
		doc,
		toTS(time.Now()),
	)
	return err
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS players (
			user_id TEXT PRIMARY KEY,
			doc BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS wild_spawns (
			key TEXT PRIMARY KEY,
			doc BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`)
	if err != nil {
		return fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return nil
}

func decodePlayer(doc []byte) (*types.PlayerProfile, error) {
	var player types.PlayerProfile
	if err := json.Unmarshal(doc, &player); err != nil {
		return nil, fmt.Errorf("failed to parse player document: %w", err)
	}
	player.Normalize()
	return &player, nil
}

func toTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
