package types

import "strings"

// Rarity is the tier a species is drawn from
type Rarity string

const (
	RarityCommon    Rarity = "Common"
	RarityUncommon  Rarity = "Uncommon"
	RarityRare      Rarity = "Rare"
	RarityLegendary Rarity = "Legendary"
)

// Rarities lists every tier in ascending order of scarcity
var Rarities = []Rarity{RarityCommon, RarityUncommon, RarityRare, RarityLegendary}

// ParseRarity matches a rarity name case-insensitively
func ParseRarity(name string) (Rarity, bool) {
	for _, r := range Rarities {
		if strings.EqualFold(string(r), strings.TrimSpace(name)) {
			return r, true
		}
	}
	return "", false
}

// ElementTypes is the fixed set of type tags a species may carry
var ElementTypes = []string{
	"Normal", "Fire", "Water", "Electric", "Grass", "Ice",
	"Fighting", "Poison", "Ground", "Flying", "Psychic", "Bug",
	"Rock", "Ghost", "Dragon", "Dark", "Steel", "Fairy",
}

// ParseElementType returns the canonical spelling of a type tag
func ParseElementType(name string) (string, bool) {
	for _, t := range ElementTypes {
		if strings.EqualFold(t, strings.TrimSpace(name)) {
			return t, true
		}
	}
	return "", false
}

// IsElementType reports whether name is one of ElementTypes
func IsElementType(name string) bool {
	_, ok := ParseElementType(name)
	return ok
}

// BaseStats is the six-stat block of a species
type BaseStats struct {
	HP        int `json:"hp"`
	Attack    int `json:"attack"`
	Defense   int `json:"defense"`
	SpAttack  int `json:"sp_attack"`
	SpDefense int `json:"sp_defense"`
	Speed     int `json:"speed"`
	Total     int `json:"total"`
}

// Sum returns the derived total of the six stats
func (s BaseStats) Sum() int {
	return s.HP + s.Attack + s.Defense + s.SpAttack + s.SpDefense + s.Speed
}

// Species is a catalog entry. It is never mutated after load.
type Species struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Types       []string  `json:"types"`
	Rarity      Rarity    `json:"rarity"`
	CatchRate   float64   `json:"catch_rate"`
	Generation  int       `json:"generation"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	SpriteURL   string    `json:"sprite_url"`
	Stats       BaseStats `json:"stats"`
}

// Snapshot returns a deep copy so callers can hold it past catalog reloads
func (s Species) Snapshot() Species {
	cp := s
	cp.Types = append([]string(nil), s.Types...)
	return cp
}
