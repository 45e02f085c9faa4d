package types

import (
	"strings"
	"time"
)

// Reason tags an expected rejection. The empty Reason means the request
// went through.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonCooldownActive     Reason = "cooldown_active"
	ReasonNoEncounter        Reason = "no_encounter"
	ReasonAlreadyAttempted   Reason = "already_attempted"
	ReasonNoPokeball         Reason = "no_pokeball"
	ReasonInsufficientFunds  Reason = "insufficient_funds"
	ReasonCatchLimitReached  Reason = "catch_limit_reached"
	ReasonInvalidBallType    Reason = "invalid_ball_type"
	ReasonInvalidQuantity    Reason = "invalid_quantity"
	ReasonNoPokemonAvailable Reason = "no_pokemon_available"
	ReasonNotFound           Reason = "not_found"
	ReasonInvalidSlot        Reason = "invalid_slot"
	ReasonWrongChannel       Reason = "wrong_channel"
)

// CatchTrace is the auditable record of one catch resolution
type CatchTrace struct {
	SpeciesName      string       `json:"species_name"`
	Ball             BallTier     `json:"ball"`
	BaseProbability  float64      `json:"base_probability"`
	Modifier         BallModifier `json:"modifier"`
	FinalProbability float64      `json:"final_probability"`
	Roll             float64      `json:"roll"`
	Success          bool         `json:"success"`
}

// EncounterResult answers StartEncounter
type EncounterResult struct {
	Reason          Reason        `json:"reason,omitempty"`
	Remaining       time.Duration `json:"remaining,omitempty"`
	Species         *Species      `json:"species,omitempty"`
	TotalEncounters int           `json:"total_encounters"`
}

// CatchResult answers AttemptCatch
type CatchResult struct {
	Reason           Reason          `json:"reason,omitempty"`
	Remaining        time.Duration   `json:"remaining,omitempty"`
	Ball             BallTier        `json:"ball,omitempty"`
	Trace            *CatchTrace     `json:"trace,omitempty"`
	Creature         *CaughtCreature `json:"creature,omitempty"`
	RemainingBalls   int             `json:"remaining_balls"`
	RemainingCatches int             `json:"remaining_catches"`
}

// Success reports whether the creature was caught
func (r *CatchResult) Success() bool {
	return r.Reason == ReasonNone && r.Trace != nil && r.Trace.Success
}

// WildCatchResult answers AttemptWildCatch
type WildCatchResult struct {
	Reason         Reason          `json:"reason,omitempty"`
	Remaining      time.Duration   `json:"remaining,omitempty"`
	SpawnID        string          `json:"spawn_id,omitempty"`
	Channel        string          `json:"channel,omitempty"`
	Species        *Species        `json:"species,omitempty"`
	Trace          *CatchTrace     `json:"trace,omitempty"`
	Creature       *CaughtCreature `json:"creature,omitempty"`
	Winner         *WildWinner     `json:"winner,omitempty"`
	RemainingBalls int             `json:"remaining_balls"`
}

// Success reports whether this attempt won the spawn
func (r *WildCatchResult) Success() bool {
	return r.Reason == ReasonNone && r.Trace != nil && r.Trace.Success
}

// PurchaseResult answers BuyBalls
type PurchaseResult struct {
	Reason    Reason   `json:"reason,omitempty"`
	Tier      BallTier `json:"tier,omitempty"`
	Quantity  int      `json:"quantity"`
	TotalCost int      `json:"total_cost"`
	Balance   int      `json:"balance"`
	Shortfall int      `json:"shortfall,omitempty"`
	BallCount int      `json:"ball_count"`
}

// DailyClaimResult answers ClaimDaily
type DailyClaimResult struct {
	Reason    Reason        `json:"reason,omitempty"`
	Remaining time.Duration `json:"remaining,omitempty"`
	Granted   int           `json:"granted"`
	Balance   int           `json:"balance"`
}

// CoinGrantResult answers an admin coin grant
type CoinGrantResult struct {
	Reason  Reason `json:"reason,omitempty"`
	Granted int    `json:"granted"`
	Balance int    `json:"balance"`
}

// PartyResult answers party slot changes
type PartyResult struct {
	Reason  Reason                     `json:"reason,omitempty"`
	Members [PartySize]*CaughtCreature `json:"members"`
}

// CatchLimitStatus is the rolling-window view of the hourly catch cap
type CatchLimitStatus struct {
	Max       int           `json:"max"`
	Remaining int           `json:"remaining"`
	ResetIn   time.Duration `json:"reset_in,omitempty"`
}

// SpawnResult is produced by a timer tick or a forced spawn
type SpawnResult struct {
	Spawn       *WildSpawn  `json:"spawn"`
	Destination Destination `json:"destination"`
}

// WildStatus is the public view of the wild spawn singleton
type WildStatus struct {
	Available    bool       `json:"available"`
	Spawn        *WildSpawn `json:"spawn,omitempty"`
	LastSpawnAt  time.Time  `json:"last_spawn"`
	SpawnChannel string     `json:"spawn_channel"`
}

// PlayerSummary aggregates every stored profile
type PlayerSummary struct {
	TotalPlayers       int            `json:"total_players"`
	TotalCreatures     int            `json:"total_pokemon_caught"`
	TotalEncounters    int            `json:"total_encounters"`
	AverageCatchRate   float64        `json:"average_catch_rate"`
	RarityDistribution map[Rarity]int `json:"rarity_distribution"`
}

// LeaderboardKind selects how players are scored
type LeaderboardKind string

const (
	LeaderboardCollection LeaderboardKind = "pokemon"
	LeaderboardPower      LeaderboardKind = "power"
	LeaderboardRarity     LeaderboardKind = "rarity"
	LeaderboardCatchRate  LeaderboardKind = "catch_rate"
)

// LeaderboardKinds lists every board
var LeaderboardKinds = []LeaderboardKind{LeaderboardCollection, LeaderboardPower, LeaderboardRarity, LeaderboardCatchRate}

// ParseLeaderboardKind matches a board name, defaulting to the collection board
func ParseLeaderboardKind(name string) (LeaderboardKind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "pokemon", "collection", "count":
		return LeaderboardCollection, true
	case "power":
		return LeaderboardPower, true
	case "rarity":
		return LeaderboardRarity, true
	case "catch_rate", "catchrate", "rate":
		return LeaderboardCatchRate, true
	}
	return "", false
}

// LeaderboardEntry is one ranked user
type LeaderboardEntry struct {
	UserID string  `json:"user_id"`
	Score  float64 `json:"score"`
}

// CatalogStats describes the loaded catalog
type CatalogStats struct {
	Total       int            `json:"total_pokemon"`
	Generations map[int]int    `json:"generation_counts"`
	Rarities    map[Rarity]int `json:"rarity_counts"`
}
