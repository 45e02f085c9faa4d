// Package storage persists player profiles and the wild spawn record.
// Every engine stores them as JSON documents.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/user/legion-bot/internal/interfaces"
)

const (
	EngineMemory   = "memory"
	EngineJSON     = "json"
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
)

// ErrUnsupportedEngine is returned for an unknown engine name
var ErrUnsupportedEngine = errors.New("unsupported store engine")

// Store is a game store that owns resources
type Store interface {
	interfaces.Store
	Close() error
}

// NewByEngine opens the store named by engine. dsn is a file path for the
// file engines and a connection string for postgres.
func NewByEngine(ctx context.Context, engine, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineJSON:
		return NewJSONStore(dsn)
	case EngineSQLite:
		return NewSQLiteStore(dsn)
	case EnginePostgres:
		return NewPostgresStore(ctx, dsn)
	case EngineMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEngine, engine)
	}
}
