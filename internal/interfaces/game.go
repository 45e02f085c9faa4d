package interfaces

import (
	"context"
	"errors"

	"github.com/user/legion-bot/internal/types"
)

// ErrDestinationUnavailable is returned when a broadcast destination
// cannot be resolved by name
var ErrDestinationUnavailable = errors.New("broadcast destination unavailable")

// Catalog is the read-only species registry
type Catalog interface {
	ByID(id int) (types.Species, bool)
	ByName(name string) (types.Species, bool)
	ByRarity(rarity types.Rarity) []types.Species
	ByGeneration(generation int) []types.Species
	Search(query string, limit int) []types.Species
	WeightedRandomByRarity() (types.Species, bool)
	CommonOrUncommonRandom() (types.Species, bool)
	Stats() types.CatalogStats
}

// Store persists player profiles and the wild spawn singleton
type Store interface {
	LoadPlayer(ctx context.Context, userID string) (*types.PlayerProfile, bool, error)
	SavePlayer(ctx context.Context, player *types.PlayerProfile) error
	ListPlayers(ctx context.Context) ([]*types.PlayerProfile, error)
	LoadWildSpawn(ctx context.Context, key string) (*types.WildSpawnState, bool, error)
	SaveWildSpawn(ctx context.Context, key string, state *types.WildSpawnState) error
}

// Broadcaster locates the wild spawn destination and announces spawns to it
type Broadcaster interface {
	ResolveDestination(ctx context.Context, name string) (types.Destination, error)
	AnnounceSpawn(ctx context.Context, dest types.Destination, spawn *types.WildSpawn) error
}

// MessageSender delivers a plain message to one recipient
type MessageSender interface {
	SendMessage(phoneNumber, recipient, message string) (string, error)
}

// GameManager is the intent surface the command layer drives
type GameManager interface {
	GetPlayer(ctx context.Context, userID string) (*types.PlayerProfile, error)
	StartEncounter(ctx context.Context, userID string) (*types.EncounterResult, error)
	AttemptCatch(ctx context.Context, userID, ball string) (*types.CatchResult, error)
	AttemptWildCatch(ctx context.Context, userID, displayName, channel string) (*types.WildCatchResult, error)
	BuyBalls(ctx context.Context, userID, ball string, quantity int) (*types.PurchaseResult, error)
	ClaimDaily(ctx context.Context, userID string) (*types.DailyClaimResult, error)
	CatchLimit(ctx context.Context, userID string) (*types.CatchLimitStatus, error)
	SetPartySlot(ctx context.Context, userID string, slot, collectionID int) (*types.PartyResult, error)
	ClearPartySlot(ctx context.Context, userID string, slot int) (*types.PartyResult, error)
	WildStatus() types.WildStatus
	ForceSpawn(ctx context.Context) (*types.SpawnResult, error)
	ClearWild(ctx context.Context) error
	SetSpawnChannel(ctx context.Context, name string) error
	GiveBalls(ctx context.Context, userID, ball string, count int) (*types.PurchaseResult, error)
	GiveCoins(ctx context.Context, userID string, amount int) (*types.CoinGrantResult, error)
	Summary(ctx context.Context) (*types.PlayerSummary, error)
	Leaderboard(ctx context.Context, kind types.LeaderboardKind, limit int) ([]types.LeaderboardEntry, error)
	CatalogStats() types.CatalogStats
}
