package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/legion-bot/internal/types"
)

type fileState struct {
	Players map[string]*types.PlayerProfile  `json:"players"`
	Spawns  map[string]*types.WildSpawnState `json:"wild_spawns"`
}

// JSONStore keeps every document in one JSON file. Each write rewrites the
// file through a temp file and rename.
type JSONStore struct {
	filePath string
	mu       sync.RWMutex
	state    fileState
}

// NewJSONStore opens or creates the file at filePath
func NewJSONStore(filePath string) (*JSONStore, error) {
	if filePath == "" {
		return nil, errors.New("json store requires a file path")
	}
	s := &JSONStore{
		filePath: filePath,
		state: fileState{
			Players: make(map[string]*types.PlayerProfile),
			Spawns:  make(map[string]*types.WildSpawnState),
		},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) LoadPlayer(_ context.Context, userID string) (*types.PlayerProfile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.Players[userID]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

// SavePlayer stores the profile. The in-memory copy is only replaced once
// the file write succeeded.
func (s *JSONStore) SavePlayer(_ context.Context, player *types.PlayerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.state.Players[player.UserID]
	s.state.Players[player.UserID] = player.Clone()
	if err := s.persistLocked(); err != nil {
		if existed {
			s.state.Players[player.UserID] = prev
		} else {
			delete(s.state.Players, player.UserID)
		}
		return err
	}
	return nil
}

func (s *JSONStore) ListPlayers(_ context.Context) ([]*types.PlayerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedPlayers(s.state.Players), nil
}

func (s *JSONStore) LoadWildSpawn(_ context.Context, key string) (*types.WildSpawnState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.state.Spawns[key]
	if !ok {
		return nil, false, nil
	}
	return state.Clone(), true, nil
}

func (s *JSONStore) SaveWildSpawn(_ context.Context, key string, state *types.WildSpawnState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.state.Spawns[key]
	s.state.Spawns[key] = state.Clone()
	if err := s.persistLocked(); err != nil {
		if existed {
			s.state.Spawns[key] = prev
		} else {
			delete(s.state.Spawns, key)
		}
		return err
	}
	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read store file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var loaded fileState
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse store file: %w", err)
	}
	for id, p := range loaded.Players {
		if p == nil {
			continue
		}
		if p.UserID == "" {
			p.UserID = id
		}
		p.Normalize()
		s.state.Players[id] = p
	}
	for key, state := range loaded.Spawns {
		if state != nil {
			s.state.Spawns[key] = state
		}
	}
	return nil
}

func (s *JSONStore) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
