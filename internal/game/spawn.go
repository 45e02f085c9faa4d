package game

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/legion-bot/internal/interfaces"
	"github.com/user/legion-bot/internal/types"
	"go.uber.org/zap"
)

// WildSpawnKey is the store key of the spawn record
const WildSpawnKey = "wild_spawn"

// WildAttemptFunc runs the player side of a wild catch while the spawn lock
// is held. It receives a copy of the live spawn. A result with a Reason, or
// an error, leaves the spawn untouched.
type WildAttemptFunc func(spawn *types.WildSpawn) (*types.WildCatchResult, error)

// WildSpawnCoordinator owns the wild spawn record. Every read and write of
// the record happens under mu, so claiming the winner is atomic.
type WildSpawnCoordinator struct {
	mu     sync.Mutex
	state  *types.WildSpawnState
	store  interfaces.Store
	key    string
	now    func() time.Time
	logger *zap.Logger
}

// NewWildSpawnCoordinator creates an idle coordinator announcing to channel
func NewWildSpawnCoordinator(store interfaces.Store, channel string) *WildSpawnCoordinator {
	return &WildSpawnCoordinator{
		state:  &types.WildSpawnState{SpawnChannel: channel},
		store:  store,
		key:    WildSpawnKey,
		now:    time.Now,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for the coordinator
func (c *WildSpawnCoordinator) SetLogger(logger *zap.Logger) {
	c.logger = logger
}

// Restore loads a persisted record, keeping the configured channel when the
// stored one is empty
func (c *WildSpawnCoordinator) Restore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok, err := c.store.LoadWildSpawn(ctx, c.key)
	if err != nil {
		return fmt.Errorf("failed to load wild spawn: %w", err)
	}
	if !ok {
		return nil
	}
	if state.SpawnChannel == "" {
		state.SpawnChannel = c.state.SpawnChannel
	}
	c.state = state
	return nil
}

// Channel returns the configured broadcast channel name
func (c *WildSpawnCoordinator) Channel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.SpawnChannel
}

// Spawn replaces the current spawn with a new instance. Attempts start empty.
func (c *WildSpawnCoordinator) Spawn(ctx context.Context, species types.Species, dest types.Destination) (*types.WildSpawn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	spawn := &types.WildSpawn{
		ID:        uuid.New().String(),
		Species:   species.Snapshot(),
		SpawnedAt: now,
		Channel:   dest,
		Attempts:  make(map[string]types.WildAttempt),
	}

	next := c.state.Clone()
	next.Current = spawn
	next.LastSpawnAt = now
	if err := c.commit(ctx, next); err != nil {
		return nil, err
	}

	c.logger.Info("Wild spawn created",
		zap.String("spawn_id", spawn.ID),
		zap.String("species", spawn.Species.Name),
		zap.String("rarity", string(spawn.Species.Rarity)),
		zap.String("channel", dest.Name))
	return spawn.Clone(), nil
}

// TryCatch gates an attempt against the live spawn and, if the gates pass,
// runs attempt and records its outcome. The check-winner-and-claim step
// runs entirely under the spawn lock.
func (c *WildSpawnCoordinator) TryCatch(ctx context.Context, userID, displayName, channel string, attempt WildAttemptFunc) (*types.WildCatchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	spawn := c.state.Current
	if spawn == nil || spawn.Resolved() {
		return &types.WildCatchResult{Reason: types.ReasonNoPokemonAvailable}, nil
	}

	result := &types.WildCatchResult{
		SpawnID: spawn.ID,
		Channel: spawn.Channel.Name,
	}
	if channel != "" && !strings.EqualFold(channel, spawn.Channel.Name) {
		result.Reason = types.ReasonWrongChannel
		return result, nil
	}
	if _, tried := spawn.Attempts[userID]; tried {
		result.Reason = types.ReasonAlreadyAttempted
		return result, nil
	}

	outcome, err := attempt(spawn.Clone())
	if err != nil {
		return nil, err
	}
	outcome.SpawnID = spawn.ID
	outcome.Channel = spawn.Channel.Name
	if outcome.Reason != types.ReasonNone || outcome.Trace == nil {
		return outcome, nil
	}

	// The player side is already committed from here on. The in-memory
	// record is updated first so a failed save can never let a second
	// winner through.
	now := c.now()
	spawn.Attempts[userID] = types.WildAttempt{
		DisplayName: displayName,
		AttemptedAt: now,
		Success:     outcome.Trace.Success,
	}
	if outcome.Trace.Success {
		spawn.Winner = &types.WildWinner{
			UserID:      userID,
			DisplayName: displayName,
			CaughtAt:    now,
		}
		winner := *spawn.Winner
		outcome.Winner = &winner
	}

	if err := c.store.SaveWildSpawn(ctx, c.key, c.state.Clone()); err != nil {
		c.logger.Error("Failed to persist wild spawn after attempt",
			zap.String("spawn_id", spawn.ID),
			zap.String("user_id", userID),
			zap.Error(err))
		return outcome, fmt.Errorf("failed to save wild spawn: %w", err)
	}
	return outcome, nil
}

// Status returns a snapshot of the record
func (c *WildSpawnCoordinator) Status() types.WildStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := types.WildStatus{
		LastSpawnAt:  c.state.LastSpawnAt,
		SpawnChannel: c.state.SpawnChannel,
	}
	if c.state.Current != nil {
		status.Spawn = c.state.Current.Clone()
		status.Available = !c.state.Current.Resolved()
	}
	return status
}

// Clear drops the current spawn
func (c *WildSpawnCoordinator) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.state.Clone()
	next.Current = nil
	return c.commit(ctx, next)
}

// SetChannel changes the broadcast channel name used by later spawns
func (c *WildSpawnCoordinator) SetChannel(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.state.Clone()
	next.SpawnChannel = strings.TrimPrefix(strings.TrimSpace(name), "#")
	return c.commit(ctx, next)
}

// commit persists next and swaps it in. Callers hold mu.
func (c *WildSpawnCoordinator) commit(ctx context.Context, next *types.WildSpawnState) error {
	if err := c.store.SaveWildSpawn(ctx, c.key, next); err != nil {
		return fmt.Errorf("failed to save wild spawn: %w", err)
	}
	c.state = next
	return nil
}
