package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/user/legion-bot/internal/interfaces"
	"github.com/user/legion-bot/internal/types"
)

// MockBroadcaster is a mock implementation of interfaces.Broadcaster
type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) ResolveDestination(ctx context.Context, name string) (types.Destination, error) {
	args := m.Called(name)
	return args.Get(0).(types.Destination), args.Error(1)
}

func (m *MockBroadcaster) AnnounceSpawn(ctx context.Context, dest types.Destination, spawn *types.WildSpawn) error {
	args := m.Called(dest, spawn.Species.Name)
	return args.Error(0)
}

var pokemonChannel = types.Destination{ID: "chan-1", Name: "pokemon"}

func spawnWithBroadcaster(t *testing.T, h *harness) *types.SpawnResult {
	t.Helper()
	b := &MockBroadcaster{}
	b.On("ResolveDestination", "pokemon").Return(pokemonChannel, nil)
	b.On("AnnounceSpawn", pokemonChannel, mock.Anything).Return(nil)
	h.gm.SetBroadcaster(b)

	result, err := h.gm.ForceSpawn(context.Background())
	require.NoError(t, err)
	return result
}

func TestWildSpawnRaceScenario(t *testing.T) {
	// Setup
	h := newHarness(t)
	ctx := context.Background()
	spawned := spawnWithBroadcaster(t, h)
	assert.Equal(t, "pokemon", spawned.Destination.Name)
	assert.NotEmpty(t, spawned.Spawn.ID)
	assert.NotEqual(t, types.RarityRare, spawned.Spawn.Species.Rarity)

	// Test case 1: A fails
	h.roller.push(0.9)
	result, err := h.gm.AttemptWildCatch(ctx, "a", "Ay", "pokemon")
	require.NoError(t, err)
	assert.Equal(t, types.ReasonNone, result.Reason)
	assert.False(t, result.Success())
	assert.Nil(t, result.Winner)

	// Test case 2: A tries again
	result, err = h.gm.AttemptWildCatch(ctx, "a", "Ay", "pokemon")
	require.NoError(t, err)
	assert.Equal(t, types.ReasonAlreadyAttempted, result.Reason)

	// Test case 3: B wins
	h.roller.push(0.1)
	result, err = h.gm.AttemptWildCatch(ctx, "b", "Bee", "POKEMON")
	require.NoError(t, err)
	assert.True(t, result.Success())
	require.NotNil(t, result.Winner)
	assert.Equal(t, "b", result.Winner.UserID)
	require.NotNil(t, result.Creature)
	assert.Equal(t, types.SourceWildSpawn, result.Creature.Source)
	assert.Equal(t, types.BallPoke, result.Creature.Ball)

	// Test case 4: C is too late
	result, err = h.gm.AttemptWildCatch(ctx, "c", "Cee", "pokemon")
	require.NoError(t, err)
	assert.Equal(t, types.ReasonNoPokemonAvailable, result.Reason)

	// A spent one ball, C spent none
	a, err := h.gm.GetPlayer(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 4, a.Inventory.Count(types.BallPoke))
	c, err := h.gm.GetPlayer(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 5, c.Inventory.Count(types.BallPoke))

	status := h.gm.WildStatus()
	assert.False(t, status.Available)
	require.NotNil(t, status.Spawn)
	assert.Equal(t, "b", status.Spawn.Winner.UserID)
	assert.Len(t, status.Spawn.Attempts, 2)

	// The record was persisted
	stored, ok, err := h.store.LoadWildSpawn(ctx, WildSpawnKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", stored.Current.Winner.UserID)
}

func TestWildCatchGates(t *testing.T) {
	// Setup
	h := newHarness(t)
	ctx := context.Background()

	// Test case 1: nothing spawned yet
	result, err := h.gm.AttemptWildCatch(ctx, "a", "Ay", "pokemon")
	require.NoError(t, err)
	assert.Equal(t, types.ReasonNoPokemonAvailable, result.Reason)

	spawnWithBroadcaster(t, h)

	// Test case 2: wrong channel
	result, err = h.gm.AttemptWildCatch(ctx, "a", "Ay", "general")
	require.NoError(t, err)
	assert.Equal(t, types.ReasonWrongChannel, result.Reason)

	// Test case 3: callers that do not know their channel are not gated
	result, err = h.gm.AttemptWildCatch(ctx, "a", "Ay", "")
	require.NoError(t, err)
	assert.Equal(t, types.ReasonNone, result.Reason)
}

func TestWildCatchWithoutBallDoesNotCountAsAttempt(t *testing.T) {
	// Setup
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SavePlayer(ctx, types.NewPlayerProfile("a", 0, 0, epoch)))
	spawnWithBroadcaster(t, h)

	result, err := h.gm.AttemptWildCatch(ctx, "a", "Ay", "pokemon")
	require.NoError(t, err)
	assert.Equal(t, types.ReasonNoPokeball, result.Reason)
	assert.Empty(t, h.gm.WildStatus().Spawn.Attempts)

	_, err = h.gm.GiveBalls(ctx, "a", "poke", 1)
	require.NoError(t, err)
	h.roller.push(0.1)
	result, err = h.gm.AttemptWildCatch(ctx, "a", "Ay", "pokemon")
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, 0, result.RemainingBalls)
}

func TestWildCatchSharesHourlyLimit(t *testing.T) {
	// Setup
	h := newHarness(t)
	ctx := context.Background()
	spawnWithBroadcaster(t, h)

	for i := 0; i < 3; i++ {
		_, err := h.gm.StartEncounter(ctx, "a")
		require.NoError(t, err)
		h.roller.push(0.9)
		_, err = h.gm.AttemptCatch(ctx, "a", "poke")
		require.NoError(t, err)
		h.clock.Advance(5 * time.Minute)
	}

	result, err := h.gm.AttemptWildCatch(ctx, "a", "Ay", "pokemon")
	require.NoError(t, err)
	assert.Equal(t, types.ReasonCatchLimitReached, result.Reason)
	assert.Positive(t, result.Remaining)

	// A limit rejection leaves the user free to try once the window rolls
	h.clock.Advance(time.Hour)
	h.roller.push(0.9)
	result, err = h.gm.AttemptWildCatch(ctx, "a", "Ay", "pokemon")
	require.NoError(t, err)
	assert.Equal(t, types.ReasonNone, result.Reason)
}

func TestConcurrentWildCatchHasOneWinner(t *testing.T) {
	// Setup
	h := newHarness(t)
	ctx := context.Background()
	spawnWithBroadcaster(t, h)

	// Every roll succeeds, so only the claim gate decides
	h.gm.roller = FixedRoller{Value: 0}

	const users = 32
	results := make([]*types.WildCatchResult, users)
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("user-%d", i)
			result, err := h.gm.AttemptWildCatch(ctx, id, id, "pokemon")
			if assert.NoError(t, err) {
				results[i] = result
			}
		}(i)
	}
	wg.Wait()

	winners := 0
	var winnerID string
	for i, r := range results {
		require.NotNil(t, r)
		if r.Success() {
			winners++
			winnerID = fmt.Sprintf("user-%d", i)
			continue
		}
		assert.Equal(t, types.ReasonNoPokemonAvailable, r.Reason)
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, winnerID, h.gm.WildStatus().Spawn.Winner.UserID)

	summary, err := h.gm.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalCreatures)
}

func TestNewSpawnResetsAttempts(t *testing.T) {
	// Setup
	h := newHarness(t)
	ctx := context.Background()
	first := spawnWithBroadcaster(t, h)

	h.roller.push(0.9)
	_, err := h.gm.AttemptWildCatch(ctx, "a", "Ay", "pokemon")
	require.NoError(t, err)

	h.clock.Advance(30 * time.Minute)
	second, err := h.gm.ForceSpawn(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Spawn.ID, second.Spawn.ID)
	assert.Empty(t, second.Spawn.Attempts)

	h.roller.push(0.9)
	result, err := h.gm.AttemptWildCatch(ctx, "a", "Ay", "pokemon")
	require.NoError(t, err)
	assert.Equal(t, types.ReasonNone, result.Reason)
	assert.Equal(t, second.Spawn.ID, result.SpawnID)
}

func TestClearAndSetChannel(t *testing.T) {
	// Setup
	h := newHarness(t)
	ctx := context.Background()
	spawnWithBroadcaster(t, h)
	require.True(t, h.gm.WildStatus().Available)

	require.NoError(t, h.gm.ClearWild(ctx))
	status := h.gm.WildStatus()
	assert.False(t, status.Available)
	assert.Nil(t, status.Spawn)

	require.NoError(t, h.gm.SetSpawnChannel(ctx, "#safari-zone"))
	assert.Equal(t, "safari-zone", h.gm.WildStatus().SpawnChannel)
}

func TestRestoreWildSpawn(t *testing.T) {
	// Setup
	h := newHarness(t)
	ctx := context.Background()
	spawned := spawnWithBroadcaster(t, h)

	restored := NewGameManager(h.gm.config, h.gm.catalog, h.store, h.roller)
	require.NoError(t, restored.Restore(ctx))

	status := restored.WildStatus()
	assert.True(t, status.Available)
	assert.Equal(t, spawned.Spawn.ID, status.Spawn.ID)
}

func TestSpawnWithoutDestination(t *testing.T) {
	// Setup
	h := newHarness(t)
	ctx := context.Background()

	// Test case 1: no broadcaster at all
	_, err := h.gm.ForceSpawn(ctx)
	assert.ErrorIs(t, err, interfaces.ErrDestinationUnavailable)

	// Test case 2: channel not found
	b := &MockBroadcaster{}
	b.On("ResolveDestination", "pokemon").Return(types.Destination{}, interfaces.ErrDestinationUnavailable)
	h.gm.SetBroadcaster(b)
	_, err = h.gm.ForceSpawn(ctx)
	assert.ErrorIs(t, err, interfaces.ErrDestinationUnavailable)
	assert.False(t, h.gm.WildStatus().Available)
	b.AssertNotCalled(t, "AnnounceSpawn", mock.Anything, mock.Anything)
}

func TestAnnounceFailureKeepsSpawn(t *testing.T) {
	h := newHarness(t)
	b := &MockBroadcaster{}
	b.On("ResolveDestination", "pokemon").Return(pokemonChannel, nil)
	b.On("AnnounceSpawn", pokemonChannel, mock.Anything).Return(errors.New("rate limited"))
	h.gm.SetBroadcaster(b)

	result, err := h.gm.ForceSpawn(context.Background())
	require.NoError(t, err)
	assert.True(t, h.gm.WildStatus().Available)
	assert.Equal(t, result.Spawn.ID, h.gm.WildStatus().Spawn.ID)
}

// MockSpawner is a mock implementation of Spawner
type MockSpawner struct {
	mock.Mock
}

func (m *MockSpawner) SpawnWild(ctx context.Context) (*types.SpawnResult, error) {
	args := m.Called()
	if r := args.Get(0); r != nil {
		return r.(*types.SpawnResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestSchedulerToleratesFailures(t *testing.T) {
	// Setup
	spawner := &MockSpawner{}
	spawner.On("SpawnWild").Return(nil, interfaces.ErrDestinationUnavailable).Times(12)
	spawner.On("SpawnWild").Return(&types.SpawnResult{
		Spawn:       &types.WildSpawn{ID: "s1", Species: types.Species{Name: "Pikachu"}},
		Destination: pokemonChannel,
	}, nil).Once()
	spawner.On("SpawnWild").Panic("boom").Once()

	s := NewSpawnScheduler(spawner, time.Minute)

	for i := 0; i < 12; i++ {
		s.Tick()
	}
	assert.Equal(t, 12, s.Failures())

	// Test case 1: a success resets the counter
	s.Tick()
	assert.Equal(t, 0, s.Failures())

	// Test case 2: a panicking tick is contained
	assert.NotPanics(t, s.Tick)
	spawner.AssertExpectations(t)
}

func TestSchedulerStartStop(t *testing.T) {
	spawner := &MockSpawner{}
	spawner.On("SpawnWild").Return(nil, interfaces.ErrDestinationUnavailable)

	s := NewSpawnScheduler(spawner, 5*time.Millisecond)
	s.Start()
	assert.Eventually(t, func() bool { return s.Failures() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
}
