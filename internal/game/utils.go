package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Roller is the randomness source for catches and catalog draws
type Roller interface {
	Float64() float64
	Intn(n int) int
}

// DiceRoller handles random draws for the game
type DiceRoller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewDiceRoller creates a new dice roller with a seeded random number generator
func NewDiceRoller() *DiceRoller {
	return NewSeededDiceRoller(time.Now().UnixNano())
}

// NewSeededDiceRoller creates a reproducible dice roller
func NewSeededDiceRoller(seed int64) *DiceRoller {
	return &DiceRoller{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Float64 draws uniformly from [0,1)
func (dr *DiceRoller) Float64() float64 {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return dr.rng.Float64()
}

// Intn draws uniformly from [0,n)
func (dr *DiceRoller) Intn(n int) int {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return dr.rng.Intn(n)
}

// FixedRoller always returns the same roll. Used for forced outcomes.
type FixedRoller struct {
	Value float64
}

func (f FixedRoller) Float64() float64 { return f.Value }

func (f FixedRoller) Intn(n int) int {
	idx := int(f.Value * float64(n))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// FormatRemaining renders a wait as "Xm Ys" or "Xs". Partial seconds round
// up so an active wait never renders as zero. Expired waits render empty.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	secs := int((d + time.Second - 1) / time.Second)
	minutes, seconds := secs/60, secs%60
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// FormatDailyRemaining renders the daily bonus wait as "Xh Ym" or "Ym"
func FormatDailyRemaining(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	totalMinutes := int((d + time.Minute - 1) / time.Minute)
	hours, minutes := totalMinutes/60, totalMinutes%60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
