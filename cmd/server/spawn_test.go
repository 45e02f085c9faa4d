package main

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/legion-bot/config"
	"github.com/user/legion-bot/internal/catalog"
	"github.com/user/legion-bot/internal/game"
	"github.com/user/legion-bot/internal/interfaces"
	"github.com/user/legion-bot/internal/storage"
	"github.com/user/legion-bot/internal/types"
)

// channelBroadcaster resolves every name and records announcements
type channelBroadcaster struct {
	mu        sync.Mutex
	announced []*types.WildSpawn
}

func (b *channelBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.announced)
}

func (b *channelBroadcaster) ResolveDestination(_ context.Context, name string) (types.Destination, error) {
	return types.Destination{ID: "c1", Name: name}, nil
}

func (b *channelBroadcaster) AnnounceSpawn(_ context.Context, _ types.Destination, spawn *types.WildSpawn) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.announced = append(b.announced, spawn)
	return nil
}

func newSpawnServer(t *testing.T, broadcaster interfaces.Broadcaster) (*game.GameManager, *httptest.Server) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.AdminToken = "s3cret"

	cat, err := catalog.New([]types.Species{
		{ID: 19, Name: "Rattata", Types: []string{"Normal"}, Rarity: types.RarityCommon, CatchRate: 0.9, Generation: 1},
	}, game.FixedRoller{Value: 0.1})
	require.NoError(t, err)

	gm := game.NewGameManager(cfg.Game, cat, storage.NewMemoryStore(), game.FixedRoller{Value: 0.1})
	if broadcaster != nil {
		gm.SetBroadcaster(broadcaster)
	}
	srv := httptest.NewServer(newRouter(cfg, gm, nil, nil, nil, zap.NewNop()))
	t.Cleanup(srv.Close)
	return gm, srv
}

func TestSpawnClientUsesTheRunningServer(t *testing.T) {
	// Setup
	broadcaster := &channelBroadcaster{}
	gm, srv := newSpawnServer(t, broadcaster)
	ctx := context.Background()

	// Test case 1: the forced spawn lands in the server's own coordinator
	result, err := newSpawnClient(srv.URL+"/", "s3cret").ForceSpawn(ctx)
	require.NoError(t, err)
	require.NotNil(t, result.Spawn)
	assert.Equal(t, "Rattata", result.Spawn.Species.Name)

	status := gm.WildStatus()
	require.True(t, status.Available)
	assert.Equal(t, result.Spawn.ID, status.Spawn.ID)
	assert.Equal(t, 1, broadcaster.count())

	// Test case 2: players answering the announcement can catch it
	catch, err := gm.AttemptWildCatch(ctx, "ash", "Ash", result.Destination.Name)
	require.NoError(t, err)
	assert.Equal(t, types.ReasonNone, catch.Reason)
	assert.Equal(t, result.Spawn.ID, catch.SpawnID)
	require.NotNil(t, catch.Winner)
	assert.Equal(t, "ash", catch.Winner.UserID)
}

func TestSpawnClientErrors(t *testing.T) {
	ctx := context.Background()

	// Test case 1: wrong token
	_, srv := newSpawnServer(t, &channelBroadcaster{})
	_, err := newSpawnClient(srv.URL, "nope").ForceSpawn(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	// Test case 2: server without a broadcaster
	_, srv = newSpawnServer(t, nil)
	_, err = newSpawnClient(srv.URL, "s3cret").ForceSpawn(ctx)
	assert.ErrorIs(t, err, interfaces.ErrDestinationUnavailable)

	// Test case 3: nothing listening
	_, err = newSpawnClient("http://127.0.0.1:1", "s3cret").ForceSpawn(ctx)
	assert.Error(t, err)
}
