package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/legion-bot/config"
	"github.com/user/legion-bot/internal/interfaces"
	"github.com/user/legion-bot/internal/types"
	"go.uber.org/zap"
)

// ErrNoSpawnableSpecies is returned when the catalog has no Common or
// Uncommon species to spawn
var ErrNoSpawnableSpecies = errors.New("no common or uncommon species to spawn")

// MinLeaderboardEncounters is the encounter floor for the catch-rate board
const MinLeaderboardEncounters = 10

// GameManager handles the game state and operations
type GameManager struct {
	config      config.GameConfig
	catalog     interfaces.Catalog
	store       interfaces.Store
	broadcaster interfaces.Broadcaster
	roller      Roller
	now         func() time.Time

	// Per-player locks serialize mutations of one profile. The cache is
	// written through: a profile enters it only after the store accepted it.
	locks     *keyedMutex
	cacheLock sync.RWMutex
	cache     map[string]*types.PlayerProfile

	wild      *WildSpawnCoordinator
	scheduler *SpawnScheduler
	Logger    *zap.Logger
}

// Ensure GameManager satisfies the interfaces.GameManager interface
var _ interfaces.GameManager = (*GameManager)(nil)

// NewGameManager creates a new game manager
func NewGameManager(cfg config.GameConfig, catalog interfaces.Catalog, store interfaces.Store, roller Roller) *GameManager {
	gm := &GameManager{
		config:  cfg,
		catalog: catalog,
		store:   store,
		roller:  roller,
		now:     time.Now,
		locks:   newKeyedMutex(),
		cache:   make(map[string]*types.PlayerProfile),
		wild:    NewWildSpawnCoordinator(store, cfg.SpawnChannel),
		Logger:  zap.NewNop(), // Will be set by the server
	}
	gm.scheduler = NewSpawnScheduler(gm, cfg.SpawnInterval())
	return gm
}

// SetLogger sets the logger for the game manager and its subsystems
func (gm *GameManager) SetLogger(logger *zap.Logger) {
	gm.Logger = logger
	gm.wild.SetLogger(logger)
	gm.scheduler.SetLogger(logger)
}

// SetBroadcaster sets where wild spawns are announced
func (gm *GameManager) SetBroadcaster(b interfaces.Broadcaster) {
	gm.broadcaster = b
}

// SetClock replaces the time source
func (gm *GameManager) SetClock(now func() time.Time) {
	gm.now = now
	gm.wild.now = now
}

// Restore reloads persisted wild spawn state
func (gm *GameManager) Restore(ctx context.Context) error {
	return gm.wild.Restore(ctx)
}

// StartSpawnScheduler starts the wild spawn timer
func (gm *GameManager) StartSpawnScheduler() {
	gm.scheduler.Start()
}

// StopSpawnScheduler stops the wild spawn timer
func (gm *GameManager) StopSpawnScheduler() {
	gm.scheduler.Stop()
}

// loadPlayer returns the cached profile, loading or creating it on a miss.
// Callers hold the player's lock and must not mutate the result.
func (gm *GameManager) loadPlayer(ctx context.Context, userID string) (*types.PlayerProfile, error) {
	gm.cacheLock.RLock()
	player, ok := gm.cache[userID]
	gm.cacheLock.RUnlock()
	if ok {
		return player, nil
	}

	player, found, err := gm.store.LoadPlayer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load player: %w", err)
	}
	if found {
		player.Normalize()
		gm.cachePlayer(player)
		return player, nil
	}

	player = types.NewPlayerProfile(userID, gm.config.StartingCoins, gm.config.StartingBalls, gm.now())
	if err := gm.commit(ctx, player); err != nil {
		return nil, err
	}
	gm.Logger.Info("Registered new player", zap.String("user_id", userID))
	return player, nil
}

// commit writes the profile through to the store, then to the cache
func (gm *GameManager) commit(ctx context.Context, player *types.PlayerProfile) error {
	player.UpdatedAt = gm.now()
	if err := gm.store.SavePlayer(ctx, player); err != nil {
		return fmt.Errorf("failed to save player: %w", err)
	}
	gm.cachePlayer(player)
	return nil
}

func (gm *GameManager) cachePlayer(player *types.PlayerProfile) {
	gm.cacheLock.Lock()
	gm.cache[player.UserID] = player
	gm.cacheLock.Unlock()
}

// GetPlayer returns a copy of a player's profile, creating it if needed
func (gm *GameManager) GetPlayer(ctx context.Context, userID string) (*types.PlayerProfile, error) {
	unlock := gm.locks.Lock(userID)
	defer unlock()

	player, err := gm.loadPlayer(ctx, userID)
	if err != nil {
		return nil, err
	}
	return player.Clone(), nil
}

// StartEncounter draws a personal encounter if the cooldown allows it. A
// pending encounter is replaced without penalty.
func (gm *GameManager) StartEncounter(ctx context.Context, userID string) (*types.EncounterResult, error) {
	unlock := gm.locks.Lock(userID)
	defer unlock()

	current, err := gm.loadPlayer(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := gm.now()
	if wait := EncounterWait(current, now, gm.config.EncounterCooldown()); wait > 0 {
		return &types.EncounterResult{
			Reason:          types.ReasonCooldownActive,
			Remaining:       wait,
			TotalEncounters: current.Stats.TotalEncounters,
		}, nil
	}

	species, ok := gm.catalog.WeightedRandomByRarity()
	if !ok {
		return &types.EncounterResult{Reason: types.ReasonNoPokemonAvailable}, nil
	}

	player := current.Clone()
	player.Encounter = &types.Encounter{Species: species.Snapshot(), StartedAt: now}
	player.LastEncounterAt = now
	player.Stats.TotalEncounters++
	if err := gm.commit(ctx, player); err != nil {
		return nil, err
	}

	gm.Logger.Info("Encounter started",
		zap.String("user_id", userID),
		zap.String("species", species.Name),
		zap.String("rarity", string(species.Rarity)))

	return &types.EncounterResult{
		Species:         &species,
		TotalEncounters: player.Stats.TotalEncounters,
	}, nil
}

// AttemptCatch throws a ball at the player's pending encounter. Checks run
// in a fixed order and a rejected attempt never touches the inventory.
func (gm *GameManager) AttemptCatch(ctx context.Context, userID, ball string) (*types.CatchResult, error) {
	unlock := gm.locks.Lock(userID)
	defer unlock()

	current, err := gm.loadPlayer(ctx, userID)
	if err != nil {
		return nil, err
	}
	player := current.Clone()
	now := gm.now()

	if player.Encounter == nil {
		return &types.CatchResult{Reason: types.ReasonNoEncounter}, nil
	}
	if player.Encounter.Attempted {
		return &types.CatchResult{Reason: types.ReasonAlreadyAttempted}, nil
	}
	if strings.TrimSpace(ball) == "" {
		ball = string(types.BallPoke)
	}
	tier, ok := types.ParseBallTier(ball)
	if !ok {
		return &types.CatchResult{Reason: types.ReasonInvalidBallType}, nil
	}
	if limit := CatchLimit(player, now, gm.config.CatchLimitPerHour); limit.Remaining <= 0 {
		return &types.CatchResult{Reason: types.ReasonCatchLimitReached, Remaining: limit.ResetIn, Ball: tier}, nil
	}
	if !player.Inventory.UseBall(tier) {
		return &types.CatchResult{Reason: types.ReasonNoPokeball, Ball: tier}, nil
	}

	player.Encounter.Attempted = true
	species := player.Encounter.Species
	trace := ResolveWithBall(species, tier, gm.roller)
	RecordCatchAttempt(player, now)

	result := &types.CatchResult{Ball: tier, Trace: &trace}
	if trace.Success {
		creature := player.AppendCreature(species, tier, types.SourceEncounter, now)
		player.Stats.TotalCaught++
		player.Encounter = nil
		result.Creature = &creature
	}

	if err := gm.commit(ctx, player); err != nil {
		return nil, err
	}

	gm.logTrace("Catch attempt resolved", userID, trace)

	result.RemainingBalls = player.Inventory.Count(tier)
	result.RemainingCatches = CatchLimit(player.Clone(), now, gm.config.CatchLimitPerHour).Remaining
	return result, nil
}

// AttemptWildCatch throws a basic ball at the current wild spawn. The
// player lock is taken before the spawn lock.
func (gm *GameManager) AttemptWildCatch(ctx context.Context, userID, displayName, channel string) (*types.WildCatchResult, error) {
	unlock := gm.locks.Lock(userID)
	defer unlock()

	current, err := gm.loadPlayer(ctx, userID)
	if err != nil {
		return nil, err
	}

	return gm.wild.TryCatch(ctx, userID, displayName, channel, func(spawn *types.WildSpawn) (*types.WildCatchResult, error) {
		player := current.Clone()
		now := gm.now()
		species := spawn.Species

		if limit := CatchLimit(player, now, gm.config.CatchLimitPerHour); limit.Remaining <= 0 {
			return &types.WildCatchResult{Reason: types.ReasonCatchLimitReached, Remaining: limit.ResetIn}, nil
		}
		if !player.Inventory.UseBall(types.BallPoke) {
			return &types.WildCatchResult{Reason: types.ReasonNoPokeball}, nil
		}

		trace := ResolveWithBall(species, types.BallPoke, gm.roller)
		RecordCatchAttempt(player, now)

		result := &types.WildCatchResult{Species: &species, Trace: &trace}
		if trace.Success {
			creature := player.AppendCreature(species, types.BallPoke, types.SourceWildSpawn, now)
			player.Stats.TotalCaught++
			result.Creature = &creature
		}

		if err := gm.commit(ctx, player); err != nil {
			return nil, err
		}

		gm.logTrace("Wild catch attempt resolved", userID, trace, zap.String("spawn_id", spawn.ID))
		result.RemainingBalls = player.Inventory.Count(types.BallPoke)
		return result, nil
	})
}

// BuyBalls purchases quantity balls of the named tier
func (gm *GameManager) BuyBalls(ctx context.Context, userID, ball string, quantity int) (*types.PurchaseResult, error) {
	tier, ok := types.ParseBallTier(ball)
	if !ok {
		return &types.PurchaseResult{Reason: types.ReasonInvalidBallType, Quantity: quantity}, nil
	}

	unlock := gm.locks.Lock(userID)
	defer unlock()

	current, err := gm.loadPlayer(ctx, userID)
	if err != nil {
		return nil, err
	}
	player := current.Clone()

	result := Purchase(player, tier, quantity)
	if result.Reason != types.ReasonNone {
		return &result, nil
	}
	if err := gm.commit(ctx, player); err != nil {
		return nil, err
	}

	gm.Logger.Info("Shop purchase",
		zap.String("user_id", userID),
		zap.String("tier", string(tier)),
		zap.Int("quantity", quantity),
		zap.Int("total_cost", result.TotalCost),
		zap.Int("balance", result.Balance))
	return &result, nil
}

// ClaimDaily grants the daily bonus once per DailyInterval
func (gm *GameManager) ClaimDaily(ctx context.Context, userID string) (*types.DailyClaimResult, error) {
	unlock := gm.locks.Lock(userID)
	defer unlock()

	current, err := gm.loadPlayer(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := gm.now()
	if wait := DailyWait(current, now); wait > 0 {
		return &types.DailyClaimResult{
			Reason:    types.ReasonCooldownActive,
			Remaining: wait,
			Balance:   current.Coins,
		}, nil
	}

	player := current.Clone()
	player.AddCoins(gm.config.DailyBonus)
	player.LastDailyClaimAt = now
	if err := gm.commit(ctx, player); err != nil {
		return nil, err
	}

	return &types.DailyClaimResult{Granted: gm.config.DailyBonus, Balance: player.Coins}, nil
}

// CatchLimit reports the player's hourly catch allowance
func (gm *GameManager) CatchLimit(ctx context.Context, userID string) (*types.CatchLimitStatus, error) {
	unlock := gm.locks.Lock(userID)
	defer unlock()

	current, err := gm.loadPlayer(ctx, userID)
	if err != nil {
		return nil, err
	}
	status := CatchLimit(current.Clone(), gm.now(), gm.config.CatchLimitPerHour)
	return &status, nil
}

// SetPartySlot puts a collection entry into a 1-based party slot
func (gm *GameManager) SetPartySlot(ctx context.Context, userID string, slot, collectionID int) (*types.PartyResult, error) {
	return gm.updateParty(ctx, userID, func(p *types.PlayerProfile) types.Reason {
		return p.SetPartySlot(slot, collectionID)
	})
}

// ClearPartySlot empties a 1-based party slot
func (gm *GameManager) ClearPartySlot(ctx context.Context, userID string, slot int) (*types.PartyResult, error) {
	return gm.updateParty(ctx, userID, func(p *types.PlayerProfile) types.Reason {
		return p.ClearPartySlot(slot)
	})
}

func (gm *GameManager) updateParty(ctx context.Context, userID string, change func(*types.PlayerProfile) types.Reason) (*types.PartyResult, error) {
	unlock := gm.locks.Lock(userID)
	defer unlock()

	current, err := gm.loadPlayer(ctx, userID)
	if err != nil {
		return nil, err
	}
	player := current.Clone()

	if reason := change(player); reason != types.ReasonNone {
		return &types.PartyResult{Reason: reason, Members: current.PartyMembers()}, nil
	}
	if err := gm.commit(ctx, player); err != nil {
		return nil, err
	}
	return &types.PartyResult{Members: player.PartyMembers()}, nil
}

// WildStatus returns the current wild spawn view
func (gm *GameManager) WildStatus() types.WildStatus {
	return gm.wild.Status()
}

// SpawnWild resolves the broadcast destination, draws a species and
// announces it. Timer ticks and forced spawns both come through here.
func (gm *GameManager) SpawnWild(ctx context.Context) (*types.SpawnResult, error) {
	if gm.broadcaster == nil {
		return nil, fmt.Errorf("no broadcaster configured: %w", interfaces.ErrDestinationUnavailable)
	}

	channel := gm.wild.Channel()
	dest, err := gm.broadcaster.ResolveDestination(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve channel %q: %w", channel, err)
	}

	species, ok := gm.catalog.CommonOrUncommonRandom()
	if !ok {
		return nil, ErrNoSpawnableSpecies
	}

	spawn, err := gm.wild.Spawn(ctx, species, dest)
	if err != nil {
		return nil, err
	}

	if err := gm.broadcaster.AnnounceSpawn(ctx, dest, spawn); err != nil {
		gm.Logger.Error("Failed to announce wild spawn",
			zap.String("spawn_id", spawn.ID),
			zap.String("channel", dest.Name),
			zap.Error(err))
	}
	return &types.SpawnResult{Spawn: spawn, Destination: dest}, nil
}

// ForceSpawn triggers a spawn outside the timer
func (gm *GameManager) ForceSpawn(ctx context.Context) (*types.SpawnResult, error) {
	return gm.SpawnWild(ctx)
}

// ClearWild removes the current wild spawn
func (gm *GameManager) ClearWild(ctx context.Context) error {
	return gm.wild.Clear(ctx)
}

// SetSpawnChannel changes the channel future spawns are announced in
func (gm *GameManager) SetSpawnChannel(ctx context.Context, name string) error {
	return gm.wild.SetChannel(ctx, name)
}

// GiveBalls credits balls to a player without charging them
func (gm *GameManager) GiveBalls(ctx context.Context, userID, ball string, count int) (*types.PurchaseResult, error) {
	tier, ok := types.ParseBallTier(ball)
	if !ok {
		return &types.PurchaseResult{Reason: types.ReasonInvalidBallType, Quantity: count}, nil
	}
	if count <= 0 || count > MaxPurchaseQuantity {
		return &types.PurchaseResult{Reason: types.ReasonInvalidQuantity, Tier: tier, Quantity: count}, nil
	}

	unlock := gm.locks.Lock(userID)
	defer unlock()

	current, err := gm.loadPlayer(ctx, userID)
	if err != nil {
		return nil, err
	}
	player := current.Clone()
	player.Inventory.AddBalls(tier, count)
	if err := gm.commit(ctx, player); err != nil {
		return nil, err
	}

	gm.Logger.Info("Gave balls to player",
		zap.String("user_id", userID),
		zap.String("tier", string(tier)),
		zap.Int("count", count))
	return &types.PurchaseResult{
		Tier:      tier,
		Quantity:  count,
		Balance:   player.Coins,
		BallCount: player.Inventory.Count(tier),
	}, nil
}

// GiveCoins credits coins to a player
func (gm *GameManager) GiveCoins(ctx context.Context, userID string, amount int) (*types.CoinGrantResult, error) {
	if amount <= 0 {
		return &types.CoinGrantResult{Reason: types.ReasonInvalidQuantity}, nil
	}

	unlock := gm.locks.Lock(userID)
	defer unlock()

	current, err := gm.loadPlayer(ctx, userID)
	if err != nil {
		return nil, err
	}
	player := current.Clone()
	player.AddCoins(amount)
	if err := gm.commit(ctx, player); err != nil {
		return nil, err
	}

	gm.Logger.Info("Gave coins to player",
		zap.String("user_id", userID),
		zap.Int("amount", amount),
		zap.Int("balance", player.Coins))
	return &types.CoinGrantResult{Granted: amount, Balance: player.Coins}, nil
}

// Summary aggregates statistics over every stored player
func (gm *GameManager) Summary(ctx context.Context) (*types.PlayerSummary, error) {
	players, err := gm.store.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	summary := &types.PlayerSummary{
		TotalPlayers:       len(players),
		RarityDistribution: make(map[types.Rarity]int, len(types.Rarities)),
	}
	for _, r := range types.Rarities {
		summary.RarityDistribution[r] = 0
	}

	totalCaught := 0
	for _, p := range players {
		summary.TotalCreatures += len(p.Collection)
		summary.TotalEncounters += p.Stats.TotalEncounters
		totalCaught += p.Stats.TotalCaught
		for _, c := range p.Collection {
			summary.RarityDistribution[c.Species.Rarity]++
		}
	}
	if summary.TotalEncounters > 0 {
		summary.AverageCatchRate = float64(totalCaught) / float64(summary.TotalEncounters) * 100
	}
	return summary, nil
}

// Leaderboard ranks players on the chosen board. The catch-rate board
// only includes players with at least MinLeaderboardEncounters encounters.
func (gm *GameManager) Leaderboard(ctx context.Context, kind types.LeaderboardKind, limit int) ([]types.LeaderboardEntry, error) {
	players, err := gm.store.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	entries := make([]types.LeaderboardEntry, 0, len(players))
	for _, p := range players {
		var score float64
		switch kind {
		case types.LeaderboardCatchRate:
			if p.Stats.TotalEncounters < MinLeaderboardEncounters {
				continue
			}
			score = p.CatchRate()
		case types.LeaderboardPower:
			score = float64(CollectionPower(p))
		case types.LeaderboardRarity:
			score = float64(RarityScore(p))
		default:
			score = float64(len(p.Collection))
		}
		entries = append(entries, types.LeaderboardEntry{UserID: p.UserID, Score: score})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// CatalogStats describes the loaded catalog
func (gm *GameManager) CatalogStats() types.CatalogStats {
	return gm.catalog.Stats()
}

func (gm *GameManager) logTrace(msg, userID string, trace types.CatchTrace, extra ...zap.Field) {
	fields := append([]zap.Field{
		zap.String("user_id", userID),
		zap.String("species", trace.SpeciesName),
		zap.String("ball", string(trace.Ball)),
		zap.Float64("base_probability", trace.BaseProbability),
		zap.String("modifier", trace.Modifier.String()),
		zap.Float64("final_probability", trace.FinalProbability),
		zap.Float64("roll", trace.Roll),
		zap.Bool("success", trace.Success),
	}, extra...)
	gm.Logger.Info(msg, fields...)
}
