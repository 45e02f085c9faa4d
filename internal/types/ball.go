package types

import (
	"fmt"
	"strings"
)

// BallTier identifies a consumable ball type
type BallTier string

const (
	BallPoke   BallTier = "poke"
	BallGreat  BallTier = "great"
	BallUltra  BallTier = "ultra"
	BallMaster BallTier = "master"
)

// BallTiers lists tiers in shop order
var BallTiers = []BallTier{BallPoke, BallGreat, BallUltra, BallMaster}

// ParseBallTier normalizes user input, accepting legacy aliases
func ParseBallTier(name string) (BallTier, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "poke", "normal", "pokeball", "poke_ball":
		return BallPoke, true
	case "great", "great_ball", "greatball":
		return BallGreat, true
	case "ultra", "ultra_ball", "ultraball":
		return BallUltra, true
	case "master", "master_ball", "masterball":
		return BallMaster, true
	}
	return "", false
}

// BallModifier is either a multiplicative factor or a guaranteed capture
type BallModifier struct {
	Factor     float64 `json:"factor,omitempty"`
	Guaranteed bool    `json:"guaranteed,omitempty"`
}

// Multiplicative builds a factor modifier
func Multiplicative(factor float64) BallModifier {
	return BallModifier{Factor: factor}
}

// Guaranteed builds the always-capture modifier
func Guaranteed() BallModifier {
	return BallModifier{Guaranteed: true}
}

func (m BallModifier) String() string {
	if m.Guaranteed {
		return "guaranteed"
	}
	return fmt.Sprintf("%gx", m.Factor)
}

// ShopItem is one row of the static shop table
type ShopItem struct {
	Tier        BallTier     `json:"tier"`
	Name        string       `json:"name"`
	Price       int          `json:"price"`
	Modifier    BallModifier `json:"modifier"`
	Description string       `json:"description"`
}

// ShopCatalog maps every tier to its price and catch effect
var ShopCatalog = map[BallTier]ShopItem{
	BallPoke: {
		Tier:        BallPoke,
		Name:        "Poké Ball",
		Price:       100,
		Modifier:    Multiplicative(1.0),
		Description: "Basic ball with standard catch rate",
	},
	BallGreat: {
		Tier:        BallGreat,
		Name:        "Great Ball",
		Price:       1000,
		Modifier:    Multiplicative(1.5),
		Description: "Enhanced ball with 1.5x catch rate",
	},
	BallUltra: {
		Tier:        BallUltra,
		Name:        "Ultra Ball",
		Price:       10000,
		Modifier:    Multiplicative(2.0),
		Description: "Advanced ball with 2x catch rate",
	},
	BallMaster: {
		Tier:        BallMaster,
		Name:        "Master Ball",
		Price:       50000,
		Modifier:    Guaranteed(),
		Description: "Legendary ball with guaranteed catch",
	},
}

// ShopItems returns the shop rows in tier order
func ShopItems() []ShopItem {
	items := make([]ShopItem, 0, len(BallTiers))
	for _, tier := range BallTiers {
		items = append(items, ShopCatalog[tier])
	}
	return items
}
