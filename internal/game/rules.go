package game

import (
	"time"

	"github.com/user/legion-bot/internal/types"
)

const (
	// CatchWindow is the trailing window the hourly catch limit counts over
	CatchWindow = time.Hour

	// DailyInterval is the time between daily bonus claims
	DailyInterval = 24 * time.Hour

	// MaxPurchaseQuantity caps a single shop order
	MaxPurchaseQuantity = 100
)

// EncounterWait returns how long the player must still wait before a new
// encounter. Zero means an encounter is permitted.
func EncounterWait(p *types.PlayerProfile, now time.Time, cooldown time.Duration) time.Duration {
	if p.LastEncounterAt.IsZero() {
		return 0
	}
	return nonNegative(cooldown - now.Sub(p.LastEncounterAt))
}

// DailyWait returns the time left before the daily bonus can be claimed
func DailyWait(p *types.PlayerProfile, now time.Time) time.Duration {
	if p.LastDailyClaimAt.IsZero() {
		return 0
	}
	return nonNegative(DailyInterval - now.Sub(p.LastDailyClaimAt))
}

// PruneCatchHistory drops attempts older than the catch window
func PruneCatchHistory(p *types.PlayerProfile, now time.Time) {
	cutoff := now.Add(-CatchWindow)
	kept := p.CatchHistory[:0]
	for _, at := range p.CatchHistory {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	p.CatchHistory = kept
}

// CatchLimit reports the player's standing against the hourly limit.
// The profile's history is pruned as a side effect.
func CatchLimit(p *types.PlayerProfile, now time.Time, max int) types.CatchLimitStatus {
	PruneCatchHistory(p, now)
	status := types.CatchLimitStatus{Max: max, Remaining: max - len(p.CatchHistory)}
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	if len(p.CatchHistory) > 0 && status.Remaining == 0 {
		oldest := p.CatchHistory[0]
		for _, at := range p.CatchHistory[1:] {
			if at.Before(oldest) {
				oldest = at
			}
		}
		status.ResetIn = nonNegative(oldest.Add(CatchWindow).Sub(now))
	}
	return status
}

// RecordCatchAttempt counts one resolved attempt against the limit
func RecordCatchAttempt(p *types.PlayerProfile, now time.Time) {
	p.CatchHistory = append(p.CatchHistory, now)
}

// Purchase debits the player for quantity balls of tier and credits the
// balls afterwards. Nothing changes when the order is rejected.
func Purchase(p *types.PlayerProfile, tier types.BallTier, quantity int) types.PurchaseResult {
	result := types.PurchaseResult{Tier: tier, Quantity: quantity, Balance: p.Coins, BallCount: p.Inventory.Count(tier)}

	item, ok := types.ShopCatalog[tier]
	if !ok {
		result.Reason = types.ReasonInvalidBallType
		return result
	}
	if quantity <= 0 || quantity > MaxPurchaseQuantity {
		result.Reason = types.ReasonInvalidQuantity
		return result
	}

	result.TotalCost = item.Price * quantity
	if !p.SpendCoins(result.TotalCost) {
		result.Reason = types.ReasonInsufficientFunds
		result.Shortfall = result.TotalCost - p.Coins
		return result
	}
	p.Inventory.AddBalls(tier, quantity)

	result.Balance = p.Coins
	result.BallCount = p.Inventory.Count(tier)
	return result
}

// rarityPoints scores one creature on the rarity board
var rarityPoints = map[types.Rarity]int{
	types.RarityUncommon:  25,
	types.RarityRare:      50,
	types.RarityLegendary: 100,
}

// pseudoLegendaryTotal earns a creature a rarity bonus
const pseudoLegendaryTotal = 600

// CollectionPower sums HP, Attack and Defense over the collection
func CollectionPower(p *types.PlayerProfile) int {
	total := 0
	for _, c := range p.Collection {
		total += c.Species.Stats.HP + c.Species.Stats.Attack + c.Species.Stats.Defense
	}
	return total
}

// RarityScore weights the collection by rarity tier
func RarityScore(p *types.PlayerProfile) int {
	score := 0
	for _, c := range p.Collection {
		score += rarityPoints[c.Species.Rarity]
		total := c.Species.Stats.Total
		if total == 0 {
			total = c.Species.Stats.Sum()
		}
		if total >= pseudoLegendaryTotal {
			score += 25
		}
	}
	return score
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
