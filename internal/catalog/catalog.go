// Package catalog holds the static species registry the game draws from.
package catalog

import (
	"errors"
	"sort"
	"strings"

	"github.com/user/legion-bot/internal/interfaces"
	"github.com/user/legion-bot/internal/types"
)

// ErrEmptyCatalog is returned when a dataset contains no species
var ErrEmptyCatalog = errors.New("catalog has no species")

// RarityWeights is the tier table used by WeightedRandomByRarity
var RarityWeights = []struct {
	Rarity types.Rarity
	Weight float64
}{
	{types.RarityCommon, 0.60},
	{types.RarityUncommon, 0.30},
	{types.RarityRare, 0.08},
	{types.RarityLegendary, 0.02},
}

// wildCommonShare is the chance a wild spawn is drawn from Common
const wildCommonShare = 0.7

// Rand is the randomness the catalog needs for draws
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Catalog is an immutable in-memory species registry
type Catalog struct {
	byID     map[int]types.Species
	ordered  []types.Species
	byRarity map[types.Rarity][]types.Species
	rng      Rand
}

var _ interfaces.Catalog = (*Catalog)(nil)

// New indexes species. Duplicate ids keep the last entry.
func New(species []types.Species, rng Rand) (*Catalog, error) {
	if len(species) == 0 {
		return nil, ErrEmptyCatalog
	}
	c := &Catalog{
		byID:     make(map[int]types.Species, len(species)),
		byRarity: make(map[types.Rarity][]types.Species),
		rng:      rng,
	}
	for _, s := range species {
		c.byID[s.ID] = s.Snapshot()
	}
	ids := make([]int, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		s := c.byID[id]
		c.ordered = append(c.ordered, s)
		c.byRarity[s.Rarity] = append(c.byRarity[s.Rarity], s)
	}
	return c, nil
}

// ByID returns the species with the given id
func (c *Catalog) ByID(id int) (types.Species, bool) {
	s, ok := c.byID[id]
	if !ok {
		return types.Species{}, false
	}
	return s.Snapshot(), true
}

// ByName matches a species name case-insensitively
func (c *Catalog) ByName(name string) (types.Species, bool) {
	name = strings.TrimSpace(name)
	for _, s := range c.ordered {
		if strings.EqualFold(s.Name, name) {
			return s.Snapshot(), true
		}
	}
	return types.Species{}, false
}

// ByRarity lists every species of a tier
func (c *Catalog) ByRarity(rarity types.Rarity) []types.Species {
	return snapshots(c.byRarity[rarity])
}

// ByGeneration lists every species introduced in a generation
func (c *Catalog) ByGeneration(generation int) []types.Species {
	result := make([]types.Species, 0)
	for _, s := range c.ordered {
		if s.Generation == generation {
			result = append(result, s.Snapshot())
		}
	}
	return result
}

// Search returns up to limit species whose name contains query
func (c *Catalog) Search(query string, limit int) []types.Species {
	query = strings.ToLower(strings.TrimSpace(query))
	result := make([]types.Species, 0)
	if query == "" || limit <= 0 {
		return result
	}
	for _, s := range c.ordered {
		if strings.Contains(strings.ToLower(s.Name), query) {
			result = append(result, s.Snapshot())
			if len(result) >= limit {
				break
			}
		}
	}
	return result
}

// WeightedRandomByRarity picks a tier from RarityWeights, then a species
// within it. An empty tier falls back to the whole population.
func (c *Catalog) WeightedRandomByRarity() (types.Species, bool) {
	pool := c.byRarity[c.pickRarity(c.rng.Float64())]
	if len(pool) == 0 {
		pool = c.ordered
	}
	return c.pick(pool)
}

// CommonOrUncommonRandom is the wild spawn draw. Rare and Legendary are
// never returned.
func (c *Catalog) CommonOrUncommonRandom() (types.Species, bool) {
	common := c.byRarity[types.RarityCommon]
	uncommon := c.byRarity[types.RarityUncommon]
	switch {
	case len(common) == 0 && len(uncommon) == 0:
		return types.Species{}, false
	case len(common) > 0 && c.rng.Float64() < wildCommonShare:
		return c.pick(common)
	case len(uncommon) > 0:
		return c.pick(uncommon)
	default:
		return c.pick(common)
	}
}

// Stats counts species per generation and rarity
func (c *Catalog) Stats() types.CatalogStats {
	stats := types.CatalogStats{
		Total:       len(c.ordered),
		Generations: make(map[int]int),
		Rarities:    make(map[types.Rarity]int, len(types.Rarities)),
	}
	for _, r := range types.Rarities {
		stats.Rarities[r] = 0
	}
	for _, s := range c.ordered {
		stats.Generations[s.Generation]++
		stats.Rarities[s.Rarity]++
	}
	return stats
}

// Generations lists the generations present, ascending
func (c *Catalog) Generations() []int {
	seen := make(map[int]struct{})
	for _, s := range c.ordered {
		seen[s.Generation] = struct{}{}
	}
	gens := make([]int, 0, len(seen))
	for g := range seen {
		gens = append(gens, g)
	}
	sort.Ints(gens)
	return gens
}

// Len is the number of species loaded
func (c *Catalog) Len() int {
	return len(c.ordered)
}

func (c *Catalog) pickRarity(roll float64) types.Rarity {
	cumulative := 0.0
	for _, w := range RarityWeights {
		cumulative += w.Weight
		if roll < cumulative {
			return w.Rarity
		}
	}
	return RarityWeights[len(RarityWeights)-1].Rarity
}

func (c *Catalog) pick(pool []types.Species) (types.Species, bool) {
	if len(pool) == 0 {
		return types.Species{}, false
	}
	return pool[c.rng.Intn(len(pool))].Snapshot(), true
}

func snapshots(in []types.Species) []types.Species {
	out := make([]types.Species, 0, len(in))
	for _, s := range in {
		out = append(out, s.Snapshot())
	}
	return out
}
