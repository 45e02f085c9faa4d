package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/user/legion-bot/internal/types"
)

// record is one entry of the keyed-by-id dataset
type record struct {
	Name        string          `json:"name"`
	Types       json.RawMessage `json:"types"`
	Rarity      string          `json:"rarity"`
	CatchRate   float64         `json:"catch_rate"`
	Generation  int             `json:"generation"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	SpriteURL   string          `json:"sprite_url"`
	Stats       types.BaseStats `json:"stats"`
}

// LoadFile reads the species dataset from path
func LoadFile(path string) ([]types.Species, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a dataset keyed by species id
func Parse(data []byte) ([]types.Species, error) {
	var raw map[string]record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog data: %w", err)
	}

	species := make([]types.Species, 0, len(raw))
	for key, rec := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid species id %q: %w", key, err)
		}
		s, err := rec.toSpecies(id)
		if err != nil {
			return nil, err
		}
		species = append(species, s)
	}
	return species, nil
}

func (r record) toSpecies(id int) (types.Species, error) {
	// Types may be a single string or a list
	var typeTags []string
	if len(r.Types) > 0 {
		if err := json.Unmarshal(r.Types, &typeTags); err != nil {
			var single string
			if err := json.Unmarshal(r.Types, &single); err != nil {
				return types.Species{}, fmt.Errorf("species %d: invalid types: %w", id, err)
			}
			typeTags = []string{single}
		}
	}
	for i, tag := range typeTags {
		if canonical, ok := types.ParseElementType(tag); ok {
			typeTags[i] = canonical
		}
	}

	rarity, ok := types.ParseRarity(r.Rarity)
	if !ok {
		return types.Species{}, fmt.Errorf("species %d: unknown rarity %q", id, r.Rarity)
	}

	stats := r.Stats
	if stats.Total == 0 {
		stats.Total = stats.Sum()
	}

	s := types.Species{
		ID:          id,
		Name:        r.Name,
		Types:       typeTags,
		Rarity:      rarity,
		CatchRate:   r.CatchRate,
		Generation:  r.Generation,
		Description: r.Description,
		ImageURL:    r.ImageURL,
		SpriteURL:   r.SpriteURL,
		Stats:       stats,
	}
	if err := Validate(s); err != nil {
		return types.Species{}, err
	}
	return s, nil
}

// Validate checks the fields the engine relies on
func Validate(s types.Species) error {
	if s.Name == "" {
		return fmt.Errorf("species %d: missing name", s.ID)
	}
	if len(s.Types) < 1 || len(s.Types) > 2 {
		return fmt.Errorf("species %d (%s): must have 1 or 2 types, got %d", s.ID, s.Name, len(s.Types))
	}
	for _, t := range s.Types {
		if !types.IsElementType(t) {
			return fmt.Errorf("species %d (%s): unknown type %q", s.ID, s.Name, t)
		}
	}
	if s.CatchRate < 0 || s.CatchRate > 1 {
		return fmt.Errorf("species %d (%s): catch rate %v outside [0,1]", s.ID, s.Name, s.CatchRate)
	}
	return nil
}
