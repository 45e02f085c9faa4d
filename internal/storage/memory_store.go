package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/user/legion-bot/internal/types"
)

// MemoryStore keeps documents in process memory only
type MemoryStore struct {
	mu      sync.RWMutex
	players map[string]*types.PlayerProfile
	spawns  map[string]*types.WildSpawnState
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players: make(map[string]*types.PlayerProfile),
		spawns:  make(map[string]*types.WildSpawnState),
	}
}

func (s *MemoryStore) LoadPlayer(_ context.Context, userID string) (*types.PlayerProfile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[userID]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func (s *MemoryStore) SavePlayer(_ context.Context, player *types.PlayerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[player.UserID] = player.Clone()
	return nil
}

func (s *MemoryStore) ListPlayers(_ context.Context) ([]*types.PlayerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedPlayers(s.players), nil
}

func (s *MemoryStore) LoadWildSpawn(_ context.Context, key string) (*types.WildSpawnState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.spawns[key]
	if !ok {
		return nil, false, nil
	}
	return state.Clone(), true, nil
}

func (s *MemoryStore) SaveWildSpawn(_ context.Context, key string, state *types.WildSpawnState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawns[key] = state.Clone()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// sortedPlayers clones a player map into a slice ordered by user id
func sortedPlayers(players map[string]*types.PlayerProfile) []*types.PlayerProfile {
	result := make([]*types.PlayerProfile, 0, len(players))
	for _, p := range players {
		result = append(result, p.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UserID < result[j].UserID
	})
	return result
}
