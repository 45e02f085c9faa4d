package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/legion-bot/internal/types"
)

// PostgresStore keeps documents in JSONB columns
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, verifies connectivity and creates the schema
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = 4
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	st := &PostgresStore{pool: pool}
	if err := st.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return st, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) LoadPlayer(ctx context.Context, userID string) (*types.PlayerProfile, bool, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM legion_players WHERE user_id = $1`, userID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (s *PostgresStore) SavePlayer(ctx context.Context, player *types.PlayerProfile) error {
	doc, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("failed to marshal player: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO legion_players (user_id, doc, updated_at)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (user_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		player.UserID, string(doc), player.UpdatedAt)
	return err
}

func (s *PostgresStore) ListPlayers(ctx context.Context) ([]*types.PlayerProfile, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM legion_players ORDER BY user_id`)
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

func (s *PostgresStore) LoadWildSpawn(ctx context.Context, key string) (*types.WildSpawnState, bool, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM legion_wild_spawns WHERE key = $1`, key).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (s *PostgresStore) SaveWildSpawn(ctx context.Context, key string, state *types.WildSpawnState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal wild spawn: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO legion_wild_spawns (key, doc, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		key, string(doc))
	return err
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS legion_players (
			user_id TEXT PRIMARY KEY,
			doc JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS legion_wild_spawns (
			key TEXT PRIMARY KEY,
			doc JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create postgres schema: %w", err)
	}
	return nil
}
