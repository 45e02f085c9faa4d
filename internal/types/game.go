package types

import (
	"strings"
	"time"
)

// PartySize is the number of active squad slots
const PartySize = 6

// CatchSource records which flow produced a caught creature
type CatchSource string

const (
	SourceEncounter CatchSource = "encounter"
	SourceWildSpawn CatchSource = "wild_spawn"
)

// Inventory maps each ball tier to the number held
type Inventory map[BallTier]int

// Count returns how many balls of tier are held
func (inv Inventory) Count(tier BallTier) int {
	return inv[tier]
}

// HasBall reports whether at least one ball of tier is held
func (inv Inventory) HasBall(tier BallTier) bool {
	return inv[tier] > 0
}

// UseBall consumes one ball, returning false without change if none are held
func (inv Inventory) UseBall(tier BallTier) bool {
	if inv[tier] <= 0 {
		return false
	}
	inv[tier]--
	return true
}

// AddBalls credits count balls of tier. Non-positive counts are ignored.
func (inv Inventory) AddBalls(tier BallTier, count int) {
	if count <= 0 {
		return
	}
	inv[tier] += count
}

// Encounter is a personal creature waiting for a catch attempt
type Encounter struct {
	Species   Species   `json:"species"`
	Attempted bool      `json:"attempted"`
	StartedAt time.Time `json:"started_at"`
}

// CaughtCreature is an immutable snapshot of a species at capture time
type CaughtCreature struct {
	ID       int         `json:"id"`
	Species  Species     `json:"species"`
	CaughtAt time.Time   `json:"caught_at"`
	Ball     BallTier    `json:"caught_with"`
	Source   CatchSource `json:"caught_from"`
}

// PlayerStats holds lifetime counters
type PlayerStats struct {
	TotalCaught     int       `json:"total_caught"`
	TotalEncounters int       `json:"total_encounters"`
	JoinedAt        time.Time `json:"join_date"`
}

// PlayerProfile is the persisted state of one user
type PlayerProfile struct {
	UserID           string           `json:"user_id"`
	Coins            int              `json:"pokecoins"`
	Inventory        Inventory        `json:"pokeballs"`
	LastEncounterAt  time.Time        `json:"last_encounter"`
	Encounter        *Encounter       `json:"current_encounter,omitempty"`
	CatchHistory     []time.Time      `json:"catch_history"`
	LastDailyClaimAt time.Time        `json:"last_daily_claim"`
	Stats            PlayerStats      `json:"stats"`
	Collection       []CaughtCreature `json:"pokemon"`
	NextCollectionID int              `json:"next_collection_id"`
	Party            [PartySize]int   `json:"party"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// NewPlayerProfile creates a profile with the starting balance and balls
func NewPlayerProfile(userID string, coins, balls int, now time.Time) *PlayerProfile {
	inv := Inventory{}
	for _, tier := range BallTiers {
		inv[tier] = 0
	}
	inv[BallPoke] = balls
	return &PlayerProfile{
		UserID:           userID,
		Coins:            coins,
		Inventory:        inv,
		CatchHistory:     make([]time.Time, 0),
		Stats:            PlayerStats{JoinedAt: now},
		Collection:       make([]CaughtCreature, 0),
		NextCollectionID: 1,
		UpdatedAt:        now,
	}
}

// Normalize repairs fields a decoded document may be missing
func (p *PlayerProfile) Normalize() {
	if p.Inventory == nil {
		p.Inventory = Inventory{}
	}
	if p.CatchHistory == nil {
		p.CatchHistory = make([]time.Time, 0)
	}
	if p.Collection == nil {
		p.Collection = make([]CaughtCreature, 0)
	}
	next := 1
	for _, c := range p.Collection {
		if c.ID >= next {
			next = c.ID + 1
		}
	}
	if p.NextCollectionID < next {
		p.NextCollectionID = next
	}
}

// Clone returns a deep copy safe to mutate independently
func (p *PlayerProfile) Clone() *PlayerProfile {
	cp := *p
	cp.Inventory = make(Inventory, len(p.Inventory))
	for k, v := range p.Inventory {
		cp.Inventory[k] = v
	}
	if p.Encounter != nil {
		enc := *p.Encounter
		enc.Species = p.Encounter.Species.Snapshot()
		cp.Encounter = &enc
	}
	cp.CatchHistory = append(make([]time.Time, 0, len(p.CatchHistory)), p.CatchHistory...)
	cp.Collection = make([]CaughtCreature, len(p.Collection))
	for i, c := range p.Collection {
		c.Species = c.Species.Snapshot()
		cp.Collection[i] = c
	}
	return &cp
}

// AddCoins credits amount and returns the new balance
func (p *PlayerProfile) AddCoins(amount int) int {
	if amount > 0 {
		p.Coins += amount
	}
	return p.Coins
}

// SpendCoins debits amount only if the balance covers it
func (p *PlayerProfile) SpendCoins(amount int) bool {
	if amount < 0 || p.Coins < amount {
		return false
	}
	p.Coins -= amount
	return true
}

// AppendCreature adds a snapshot to the collection and returns its id.
// Ids come from a monotonic counter, never from the collection length.
func (p *PlayerProfile) AppendCreature(species Species, ball BallTier, source CatchSource, at time.Time) CaughtCreature {
	if p.NextCollectionID < 1 {
		p.NextCollectionID = 1
	}
	creature := CaughtCreature{
		ID:       p.NextCollectionID,
		Species:  species.Snapshot(),
		CaughtAt: at,
		Ball:     ball,
		Source:   source,
	}
	p.NextCollectionID++
	p.Collection = append(p.Collection, creature)
	return creature
}

// FindCreatureByID looks up a collection id
func (p *PlayerProfile) FindCreatureByID(id int) (CaughtCreature, bool) {
	for _, c := range p.Collection {
		if c.ID == id {
			return c, true
		}
	}
	return CaughtCreature{}, false
}

// FindCreatureByName returns the first creature whose name matches
func (p *PlayerProfile) FindCreatureByName(name string) (CaughtCreature, bool) {
	for _, c := range p.Collection {
		if strings.EqualFold(c.Species.Name, strings.TrimSpace(name)) {
			return c, true
		}
	}
	return CaughtCreature{}, false
}

// SetPartySlot places a collection id into a 1-based slot
func (p *PlayerProfile) SetPartySlot(slot, id int) Reason {
	if slot < 1 || slot > PartySize {
		return ReasonInvalidSlot
	}
	if _, ok := p.FindCreatureByID(id); !ok {
		return ReasonNotFound
	}
	p.Party[slot-1] = id
	return ReasonNone
}

// ClearPartySlot empties a 1-based slot
func (p *PlayerProfile) ClearPartySlot(slot int) Reason {
	if slot < 1 || slot > PartySize {
		return ReasonInvalidSlot
	}
	p.Party[slot-1] = 0
	return ReasonNone
}

// PartyMembers resolves the party slots, leaving nil for empty ones
func (p *PlayerProfile) PartyMembers() [PartySize]*CaughtCreature {
	var members [PartySize]*CaughtCreature
	for i, id := range p.Party {
		if id == 0 {
			continue
		}
		if c, ok := p.FindCreatureByID(id); ok {
			members[i] = &c
		}
	}
	return members
}

// CatchRate is caught over encounters as a percentage
func (p *PlayerProfile) CatchRate() float64 {
	if p.Stats.TotalEncounters == 0 {
		return 0
	}
	return float64(p.Stats.TotalCaught) / float64(p.Stats.TotalEncounters) * 100
}

// CollectionByRarity groups the collection by tier
func (p *PlayerProfile) CollectionByRarity() map[Rarity][]CaughtCreature {
	grouped := make(map[Rarity][]CaughtCreature, len(Rarities))
	for _, r := range Rarities {
		grouped[r] = make([]CaughtCreature, 0)
	}
	for _, c := range p.Collection {
		grouped[c.Species.Rarity] = append(grouped[c.Species.Rarity], c)
	}
	return grouped
}
