package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/legion-bot/internal/types"
)

var epoch = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestEncounterWaitMonotonic(t *testing.T) {
	p := types.NewPlayerProfile("u", 100, 5, epoch)
	cooldown := 5 * time.Minute

	// Test case 1: a fresh player has no wait
	assert.Zero(t, EncounterWait(p, epoch, cooldown))

	p.LastEncounterAt = epoch
	for offset := time.Duration(0); offset < cooldown; offset += 17 * time.Second {
		assert.Positive(t, EncounterWait(p, epoch.Add(offset), cooldown), "offset %v", offset)
	}

	// Test case 2: once the window has passed, every later time is permitted
	for offset := cooldown; offset < 2*cooldown; offset += 13 * time.Second {
		assert.Zero(t, EncounterWait(p, epoch.Add(offset), cooldown), "offset %v", offset)
	}
}

func TestDailyWait(t *testing.T) {
	p := types.NewPlayerProfile("u", 100, 5, epoch)
	assert.Zero(t, DailyWait(p, epoch))

	p.LastDailyClaimAt = epoch
	assert.Equal(t, 24*time.Hour, DailyWait(p, epoch))
	assert.Equal(t, time.Hour, DailyWait(p, epoch.Add(23*time.Hour)))
	assert.Zero(t, DailyWait(p, epoch.Add(24*time.Hour)))
}

func TestCatchLimitRollingWindow(t *testing.T) {
	p := types.NewPlayerProfile("u", 100, 5, epoch)

	status := CatchLimit(p, epoch, 3)
	assert.Equal(t, 3, status.Remaining)
	assert.Zero(t, status.ResetIn)

	RecordCatchAttempt(p, epoch)
	RecordCatchAttempt(p, epoch.Add(10*time.Minute))
	RecordCatchAttempt(p, epoch.Add(20*time.Minute))

	// Test case 1: limit reached, reset when the oldest attempt ages out
	status = CatchLimit(p, epoch.Add(30*time.Minute), 3)
	assert.Equal(t, 0, status.Remaining)
	assert.Equal(t, 30*time.Minute, status.ResetIn)

	// Test case 2: the oldest attempt leaves the window
	status = CatchLimit(p, epoch.Add(61*time.Minute), 3)
	assert.Equal(t, 1, status.Remaining)
	assert.Len(t, p.CatchHistory, 2)
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, ""},
		{-time.Second, ""},
		{500 * time.Millisecond, "1s"},
		{45 * time.Second, "45s"},
		{4*time.Minute + 30*time.Second, "4m 30s"},
		{5 * time.Minute, "5m 0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatRemaining(tt.in), "%v", tt.in)
	}
}

func TestFormatDailyRemaining(t *testing.T) {
	assert.Equal(t, "", FormatDailyRemaining(0))
	assert.Equal(t, "23h 59m", FormatDailyRemaining(23*time.Hour+59*time.Minute))
	assert.Equal(t, "42m", FormatDailyRemaining(42*time.Minute))
	assert.Equal(t, "1m", FormatDailyRemaining(10*time.Second))
}

func TestPurchaseRejectsInsufficientFunds(t *testing.T) {
	p := types.NewPlayerProfile("u", 150, 5, epoch)

	result := Purchase(p, types.BallPoke, 2)
	assert.Equal(t, types.ReasonInsufficientFunds, result.Reason)
	assert.Equal(t, 200, result.TotalCost)
	assert.Equal(t, 50, result.Shortfall)
	assert.Equal(t, 150, p.Coins)
	assert.Equal(t, 5, p.Inventory.Count(types.BallPoke))
}

func TestPurchaseQuantityBounds(t *testing.T) {
	p := types.NewPlayerProfile("u", 1_000_000, 0, epoch)

	for _, qty := range []int{0, -3, MaxPurchaseQuantity + 1} {
		result := Purchase(p, types.BallPoke, qty)
		assert.Equal(t, types.ReasonInvalidQuantity, result.Reason, "qty %d", qty)
	}
	assert.Equal(t, 1_000_000, p.Coins)

	result := Purchase(p, types.BallTier("plasma"), 1)
	assert.Equal(t, types.ReasonInvalidBallType, result.Reason)
}

func TestPurchaseDebitsThenCredits(t *testing.T) {
	p := types.NewPlayerProfile("u", 2500, 0, epoch)

	result := Purchase(p, types.BallGreat, 2)
	require.Equal(t, types.ReasonNone, result.Reason)
	assert.Equal(t, 2000, result.TotalCost)
	assert.Equal(t, 500, result.Balance)
	assert.Equal(t, 2, result.BallCount)
	assert.Equal(t, 500, p.Coins)
	assert.Equal(t, 2, p.Inventory.Count(types.BallGreat))
}
