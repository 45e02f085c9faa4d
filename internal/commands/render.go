package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/user/legion-bot/internal/game"
	"github.com/user/legion-bot/internal/types"
)

// Embed colors
const (
	ColorInfo    = 0x3498db
	ColorSuccess = 0x2ecc71
	ColorFailure = 0xe74c3c
	ColorWarning = 0xf1c40f
	ColorWild    = 0x9b59b6
)

// rarityColors tints species cards by tier
var rarityColors = map[types.Rarity]int{
	types.RarityCommon:    0x95a5a6,
	types.RarityUncommon:  0x2ecc71,
	types.RarityRare:      0x3498db,
	types.RarityLegendary: 0xf39c12,
}

// Field is one name/value pair of a reply
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Reply is a gateway-neutral response. Discord renders it as an embed,
// WhatsApp as formatted text.
type Reply struct {
	Title       string
	Description string
	Fields      []Field
	Color       int
	ImageURL    string
	Ephemeral   bool
}

// Text renders the reply as chat text
func (r Reply) Text() string {
	var b strings.Builder
	if r.Title != "" {
		b.WriteString("*" + r.Title + "*\n")
	}
	if r.Description != "" {
		b.WriteString(r.Description)
		b.WriteString("\n")
	}
	if len(r.Fields) > 0 {
		b.WriteString("\n")
		for _, f := range r.Fields {
			fmt.Fprintf(&b, "*%s*: %s\n", f.Name, f.Value)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Reply) add(name, value string, inline bool) {
	r.Fields = append(r.Fields, Field{Name: name, Value: value, Inline: inline})
}

func failure(title, description string) Reply {
	return Reply{Title: title, Description: description, Color: ColorFailure}
}

// reasonMessage turns a rejection into an actionable sentence
func reasonMessage(reason types.Reason, prefix string) string {
	switch reason {
	case types.ReasonNoEncounter:
		return fmt.Sprintf("You have no wild Pokemon in front of you. Use `%sencounter` first.", prefix)
	case types.ReasonAlreadyAttempted:
		return "You already threw a ball at this Pokemon."
	case types.ReasonNoPokeball:
		return fmt.Sprintf("You are out of balls. Visit `%sshop`.", prefix)
	case types.ReasonInsufficientFunds:
		return "You cannot afford that."
	case types.ReasonInvalidBallType:
		return "Unknown ball type. Try poke, great, ultra or master."
	case types.ReasonInvalidQuantity:
		return fmt.Sprintf("Quantity must be between 1 and %d.", game.MaxPurchaseQuantity)
	case types.ReasonNoPokemonAvailable:
		return "There is no wild Pokemon to catch right now."
	case types.ReasonNotFound:
		return "Nothing matched."
	case types.ReasonInvalidSlot:
		return fmt.Sprintf("Party slots go from 1 to %d.", types.PartySize)
	case types.ReasonWrongChannel:
		return "The wild Pokemon is not in this channel."
	case types.ReasonCatchLimitReached:
		return "You reached the hourly catch limit."
	case types.ReasonCooldownActive:
		return "You need to wait a little longer."
	default:
		return string(reason)
	}
}

func speciesLine(s types.Species) string {
	return fmt.Sprintf("#%03d %s (%s, %s)", s.ID, s.Name, strings.Join(s.Types, "/"), s.Rarity)
}

func renderSpecies(s types.Species) Reply {
	r := Reply{
		Title:       fmt.Sprintf("#%03d %s", s.ID, s.Name),
		Description: s.Description,
		Color:       rarityColors[s.Rarity],
		ImageURL:    s.ImageURL,
	}
	r.add("Type", strings.Join(s.Types, " / "), true)
	r.add("Rarity", string(s.Rarity), true)
	r.add("Catch rate", fmt.Sprintf("%.0f%%", s.CatchRate*100), true)
	r.add("Generation", fmt.Sprintf("%d", s.Generation), true)
	st := s.Stats
	r.add("Stats", fmt.Sprintf("HP %d | Atk %d | Def %d | SpA %d | SpD %d | Spe %d | Total %d",
		st.HP, st.Attack, st.Defense, st.SpAttack, st.SpDefense, st.Speed, st.Total), false)
	return r
}

func renderEncounter(res *types.EncounterResult, prefix string) Reply {
	if res.Reason == types.ReasonCooldownActive {
		return Reply{
			Title:       "Still resting",
			Description: fmt.Sprintf("You can look for Pokemon again in %s.", game.FormatRemaining(res.Remaining)),
			Color:       ColorWarning,
		}
	}
	if res.Reason != types.ReasonNone {
		return failure("No encounter", reasonMessage(res.Reason, prefix))
	}
	s := *res.Species
	r := renderSpecies(s)
	r.Title = fmt.Sprintf("A wild %s appeared!", s.Name)
	r.Description = fmt.Sprintf("Throw a ball with `%scatch [poke|great|ultra|master]`.", prefix)
	return r
}

func renderTrace(r *Reply, trace *types.CatchTrace) {
	if trace == nil {
		return
	}
	r.add("Chance", fmt.Sprintf("%.1f%%", trace.FinalProbability*100), true)
}

func renderCatch(res *types.CatchResult, prefix string) Reply {
	switch res.Reason {
	case types.ReasonNone:
	case types.ReasonCatchLimitReached:
		return Reply{
			Title:       "Catch limit reached",
			Description: fmt.Sprintf("%s Try again in %s.", reasonMessage(res.Reason, prefix), game.FormatRemaining(res.Remaining)),
			Color:       ColorWarning,
		}
	default:
		return failure("Cannot throw", reasonMessage(res.Reason, prefix))
	}

	var r Reply
	name := res.Trace.SpeciesName
	if res.Success() {
		r = Reply{
			Title:       fmt.Sprintf("Gotcha! %s was caught!", name),
			Description: fmt.Sprintf("Added to your collection as #%d.", res.Creature.ID),
			Color:       ColorSuccess,
		}
	} else {
		r = Reply{
			Title:       fmt.Sprintf("%s broke free and fled!", name),
			Description: fmt.Sprintf("Use `%sencounter` to find another one.", prefix),
			Color:       ColorFailure,
		}
	}
	renderTrace(&r, res.Trace)
	r.add(fmt.Sprintf("%s balls left", types.ShopCatalog[res.Ball].Name), fmt.Sprintf("%d", res.RemainingBalls), true)
	r.add("Catches left this hour", fmt.Sprintf("%d", res.RemainingCatches), true)
	return r
}

func renderWildCatch(res *types.WildCatchResult, mention string, prefix string) Reply {
	switch res.Reason {
	case types.ReasonNone:
	case types.ReasonCatchLimitReached:
		return Reply{
			Title:       "Catch limit reached",
			Description: fmt.Sprintf("%s Try again in %s.", reasonMessage(res.Reason, prefix), game.FormatRemaining(res.Remaining)),
			Color:       ColorWarning,
		}
	case types.ReasonWrongChannel:
		if res.Channel != "" {
			return failure("Wrong channel", fmt.Sprintf("The wild Pokemon is waiting in #%s.", res.Channel))
		}
		return failure("Wrong channel", reasonMessage(res.Reason, prefix))
	default:
		return failure("Cannot throw", reasonMessage(res.Reason, prefix))
	}

	var r Reply
	if res.Success() {
		r = Reply{
			Title:       fmt.Sprintf("%s caught the wild %s!", mention, res.Species.Name),
			Description: "First come, first served. This one is gone.",
			Color:       ColorSuccess,
		}
	} else {
		r = Reply{
			Title:       fmt.Sprintf("The wild %s dodged %s's ball!", res.Species.Name, mention),
			Description: "It is still out there for everyone else.",
			Color:       ColorFailure,
		}
	}
	renderTrace(&r, res.Trace)
	r.add("Poke balls left", fmt.Sprintf("%d", res.RemainingBalls), true)
	return r
}

// RenderSpawnAnnouncement is what gateways post when a wild spawn appears
func RenderSpawnAnnouncement(spawn *types.WildSpawn, prefix string) Reply {
	r := renderSpecies(spawn.Species)
	r.Title = fmt.Sprintf("A wild %s appeared!", spawn.Species.Name)
	r.Description = fmt.Sprintf("First trainer to catch it keeps it! Use `%swildcatch`.", prefix)
	r.Color = ColorWild
	return r
}

func renderWildStatus(st types.WildStatus, prefix string) Reply {
	r := Reply{Title: "Wild Pokemon", Color: ColorWild}
	switch {
	case st.Spawn == nil:
		r.Description = "No wild Pokemon has appeared yet."
	case st.Spawn.Resolved():
		r.Description = fmt.Sprintf("%s was already caught by %s.", st.Spawn.Species.Name, st.Spawn.Winner.DisplayName)
	default:
		r.Description = fmt.Sprintf("A wild %s is waiting! Use `%swildcatch`.", st.Spawn.Species.Name, prefix)
		r.add("Attempts", fmt.Sprintf("%d", len(st.Spawn.Attempts)), true)
	}
	r.add("Channel", "#"+st.SpawnChannel, true)
	if !st.LastSpawnAt.IsZero() {
		r.add("Last spawn", st.LastSpawnAt.UTC().Format("2006-01-02 15:04 MST"), true)
	}
	return r
}

func renderShop(balance int) Reply {
	r := Reply{Title: "Poke Mart", Color: ColorInfo, Description: fmt.Sprintf("You have %d coins.", balance)}
	for _, item := range types.ShopItems() {
		r.add(fmt.Sprintf("%s (%s)", item.Name, item.Tier), fmt.Sprintf("%d coins, %s", item.Price, item.Description), false)
	}
	return r
}

func renderPurchase(res *types.PurchaseResult, prefix string) Reply {
	if res.Reason == types.ReasonInsufficientFunds {
		return failure("Not enough coins", fmt.Sprintf("That costs %d coins and you have %d. You need %d more.",
			res.TotalCost, res.Balance, res.Shortfall))
	}
	if res.Reason != types.ReasonNone {
		return failure("Purchase failed", reasonMessage(res.Reason, prefix))
	}
	r := Reply{
		Title:       "Purchase complete",
		Description: fmt.Sprintf("Bought %d %s for %d coins.", res.Quantity, types.ShopCatalog[res.Tier].Name, res.TotalCost),
		Color:       ColorSuccess,
	}
	r.add("Balance", fmt.Sprintf("%d coins", res.Balance), true)
	r.add("In bag", fmt.Sprintf("%d", res.BallCount), true)
	return r
}

func renderDaily(res *types.DailyClaimResult) Reply {
	if res.Reason == types.ReasonCooldownActive {
		return Reply{
			Title:       "Already claimed",
			Description: fmt.Sprintf("Your next daily bonus is ready in %s.", game.FormatDailyRemaining(res.Remaining)),
			Color:       ColorWarning,
		}
	}
	r := Reply{Title: "Daily bonus", Description: fmt.Sprintf("You received %d coins!", res.Granted), Color: ColorSuccess}
	r.add("Balance", fmt.Sprintf("%d coins", res.Balance), true)
	return r
}

func renderInventory(p *types.PlayerProfile) Reply {
	r := Reply{Title: "Your bag", Color: ColorInfo, Description: fmt.Sprintf("%d coins", p.Coins)}
	for _, tier := range types.BallTiers {
		r.add(types.ShopCatalog[tier].Name, fmt.Sprintf("%d", p.Inventory.Count(tier)), true)
	}
	return r
}

// collectionPreview caps entries listed per rarity tier
const collectionPreview = 10

func renderCollection(p *types.PlayerProfile, prefix string) Reply {
	if len(p.Collection) == 0 {
		return Reply{
			Title:       "Your collection",
			Description: fmt.Sprintf("Your collection is empty. Use `%sencounter` to find Pokemon.", prefix),
			Color:       ColorInfo,
		}
	}
	r := Reply{Title: "Your collection", Color: ColorInfo, Description: fmt.Sprintf("%d Pokemon caught.", len(p.Collection))}
	grouped := p.CollectionByRarity()
	for i := len(types.Rarities) - 1; i >= 0; i-- {
		rarity := types.Rarities[i]
		entries := grouped[rarity]
		if len(entries) == 0 {
			continue
		}
		lines := make([]string, 0, collectionPreview+1)
		for j, c := range entries {
			if j == collectionPreview {
				lines = append(lines, fmt.Sprintf("... and %d more", len(entries)-collectionPreview))
				break
			}
			lines = append(lines, fmt.Sprintf("#%d %s", c.ID, c.Species.Name))
		}
		r.add(fmt.Sprintf("%s (%d)", rarity, len(entries)), strings.Join(lines, "\n"), false)
	}
	return r
}

func renderParty(members [types.PartySize]*types.CaughtCreature) Reply {
	r := Reply{Title: "Your party", Color: ColorInfo}
	for i, m := range members {
		value := "empty"
		if m != nil {
			value = fmt.Sprintf("#%d %s", m.ID, m.Species.Name)
		}
		r.add(fmt.Sprintf("Slot %d", i+1), value, true)
	}
	return r
}

func renderLimit(st *types.CatchLimitStatus) Reply {
	r := Reply{
		Title:       "Catch limit",
		Description: fmt.Sprintf("%d of %d catches left this hour.", st.Remaining, st.Max),
		Color:       ColorInfo,
	}
	if st.Remaining == 0 {
		r.Color = ColorWarning
		r.add("Resets in", game.FormatRemaining(st.ResetIn), true)
	}
	return r
}

func renderStats(p *types.PlayerProfile) Reply {
	r := Reply{Title: "Trainer stats", Color: ColorInfo}
	r.add("Encounters", fmt.Sprintf("%d", p.Stats.TotalEncounters), true)
	r.add("Caught", fmt.Sprintf("%d", p.Stats.TotalCaught), true)
	r.add("Catch rate", fmt.Sprintf("%.1f%%", p.CatchRate()), true)
	r.add("Collection", fmt.Sprintf("%d", len(p.Collection)), true)
	r.add("Coins", fmt.Sprintf("%d", p.Coins), true)
	return r
}

var leaderboardTitles = map[types.LeaderboardKind]string{
	types.LeaderboardCollection: "Top collectors",
	types.LeaderboardPower:      "Most powerful teams",
	types.LeaderboardRarity:     "Rarest collections",
	types.LeaderboardCatchRate:  "Best catch rates",
}

func renderLeaderboard(kind types.LeaderboardKind, entries []types.LeaderboardEntry, mention func(string) string) Reply {
	r := Reply{Title: leaderboardTitles[kind], Color: ColorInfo}
	if len(entries) == 0 {
		r.Description = "Nobody qualifies yet."
		return r
	}
	lines := make([]string, 0, len(entries))
	for i, e := range entries {
		score := fmt.Sprintf("%.0f", e.Score)
		if kind == types.LeaderboardCatchRate {
			score = fmt.Sprintf("%.1f%%", e.Score)
		}
		lines = append(lines, fmt.Sprintf("%d. %s: %s", i+1, mention(e.UserID), score))
	}
	r.Description = strings.Join(lines, "\n")
	return r
}

func renderCatalogStats(st types.CatalogStats) Reply {
	r := Reply{Title: "Pokedex", Description: fmt.Sprintf("%d species loaded.", st.Total), Color: ColorInfo}
	for _, rarity := range types.Rarities {
		r.add(string(rarity), fmt.Sprintf("%d", st.Rarities[rarity]), true)
	}
	gens := make([]int, 0, len(st.Generations))
	for g := range st.Generations {
		gens = append(gens, g)
	}
	sort.Ints(gens)
	for _, g := range gens {
		r.add(fmt.Sprintf("Gen %d", g), fmt.Sprintf("%d", st.Generations[g]), true)
	}
	return r
}

func renderSummary(s *types.PlayerSummary, cat types.CatalogStats) Reply {
	r := Reply{Title: "Database stats", Color: ColorInfo}
	r.add("Players", fmt.Sprintf("%d", s.TotalPlayers), true)
	r.add("Pokemon caught", fmt.Sprintf("%d", s.TotalCreatures), true)
	r.add("Encounters", fmt.Sprintf("%d", s.TotalEncounters), true)
	r.add("Average catch rate", fmt.Sprintf("%.1f%%", s.AverageCatchRate), true)
	r.add("Species", fmt.Sprintf("%d", cat.Total), true)
	for _, rarity := range types.Rarities {
		r.add(string(rarity)+" caught", fmt.Sprintf("%d", s.RarityDistribution[rarity]), true)
	}
	return r
}
