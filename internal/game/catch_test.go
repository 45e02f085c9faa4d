package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/user/legion-bot/internal/types"
)

func TestResolveCatchBasicScenario(t *testing.T) {
	// Test case 1: roll under the threshold succeeds
	trace := ResolveCatch(0.55, types.Multiplicative(1.0), 0.40)
	assert.True(t, trace.Success)
	assert.InDelta(t, 0.55, trace.FinalProbability, 1e-9)
	assert.Equal(t, 0.40, trace.Roll)

	// Test case 2: roll over the threshold fails
	trace = ResolveCatch(0.55, types.Multiplicative(1.0), 0.60)
	assert.False(t, trace.Success)
}

func TestResolveCatchMasterBall(t *testing.T) {
	for _, base := range []float64{0, 0.01, 0.5, 1} {
		trace := ResolveCatch(base, types.Guaranteed(), 0.999)
		assert.True(t, trace.Success, "base %v", base)
		assert.Equal(t, 1.0, trace.FinalProbability)
	}
}

func TestResolveCatchIsDeterministic(t *testing.T) {
	bases := []float64{0, 0.1, 0.33, 0.55, 0.8, 1}
	factors := []float64{1.0, 1.5, 2.0}
	rolls := []float64{0, 0.2, 0.5, 0.66, 0.9, 0.9999}

	for _, p := range bases {
		for _, f := range factors {
			for _, r := range rolls {
				want := r <= math.Min(math.Max(p*f, 0), 1)
				first := ResolveCatch(p, types.Multiplicative(f), r)
				second := ResolveCatch(p, types.Multiplicative(f), r)
				assert.Equal(t, want, first.Success, "p=%v f=%v r=%v", p, f, r)
				assert.Equal(t, first, second)
			}
		}
	}
}

func TestFinalProbabilityClamps(t *testing.T) {
	assert.Equal(t, 1.0, FinalProbability(0.8, types.Multiplicative(2.0)))
	assert.Equal(t, 0.0, FinalProbability(-0.5, types.Multiplicative(1.0)))
	assert.Equal(t, 0.0, FinalProbability(math.NaN(), types.Multiplicative(1.0)))
	assert.InDelta(t, 0.75, FinalProbability(0.5, types.Multiplicative(1.5)), 1e-9)
}

func TestResolveWithBallUsesShopModifier(t *testing.T) {
	species := types.Species{Name: "Pikachu", CatchRate: 0.4}

	trace := ResolveWithBall(species, types.BallGreat, FixedRoller{Value: 0.59})
	assert.True(t, trace.Success)
	assert.Equal(t, "Pikachu", trace.SpeciesName)
	assert.Equal(t, types.BallGreat, trace.Ball)
	assert.InDelta(t, 0.6, trace.FinalProbability, 1e-9)

	trace = ResolveWithBall(species, types.BallPoke, FixedRoller{Value: 0.59})
	assert.False(t, trace.Success)
}
