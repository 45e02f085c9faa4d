package game

import (
	"math"

	"github.com/user/legion-bot/internal/types"
)

// FinalProbability applies a ball modifier to a base catch probability.
// A guaranteed modifier is always 1. Anything else is clamped into [0,1].
func FinalProbability(base float64, mod types.BallModifier) float64 {
	if mod.Guaranteed {
		return 1
	}
	return clampProbability(base * mod.Factor)
}

// ResolveCatch decides a catch for an already drawn roll. It has no other
// inputs, so a fixed roll always gives the same answer.
func ResolveCatch(base float64, mod types.BallModifier, roll float64) types.CatchTrace {
	final := FinalProbability(base, mod)
	return types.CatchTrace{
		BaseProbability:  base,
		Modifier:         mod,
		FinalProbability: final,
		Roll:             roll,
		Success:          mod.Guaranteed || roll <= final,
	}
}

// ResolveWithBall looks up the ball's modifier and draws the roll
func ResolveWithBall(species types.Species, ball types.BallTier, roller Roller) types.CatchTrace {
	trace := ResolveCatch(species.CatchRate, types.ShopCatalog[ball].Modifier, roller.Float64())
	trace.SpeciesName = species.Name
	trace.Ball = ball
	return trace
}

func clampProbability(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
