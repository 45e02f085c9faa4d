// Package commands turns chat commands into GameManager intents and
// renders the outcomes. It is shared by the Discord and WhatsApp gateways.
package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/user/legion-bot/internal/interfaces"
	"github.com/user/legion-bot/internal/types"
)

// Context describes who issued a command and where
type Context interface {
	UserID() string
	DisplayName() string
	// ChannelName is the human-readable channel the command came from.
	// Empty when the gateway has no channel notion (direct messages).
	ChannelName() string
	IsAdmin() bool
	Mention(userID string) string
}

// Invocation is a parsed command
type Invocation struct {
	Name string
	Args []string
}

// ParseCommand splits a prefixed chat line into a command and its args
func ParseCommand(prefix, text string) (Invocation, bool) {
	text = strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return Invocation{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(text, prefix))
	if len(fields) == 0 {
		return Invocation{}, false
	}
	return Invocation{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}

// OptionKind is the type of a slash command option
type OptionKind int

const (
	OptionString OptionKind = iota
	OptionInteger
	OptionUser
)

// Option describes one positional argument
type Option struct {
	Name        string
	Description string
	Kind        OptionKind
	Required    bool
	Choices     []string
}

// Spec describes one command
type Spec struct {
	Name        string
	Aliases     []string
	Description string
	Options     []Option
	Admin       bool

	run func(ctx context.Context, r *Router, c Context, args []string) (Reply, error)
}

// Usage renders the command with its arguments
func (s Spec) Usage(prefix string) string {
	var b strings.Builder
	b.WriteString(prefix + s.Name)
	for _, o := range s.Options {
		if o.Required {
			fmt.Fprintf(&b, " <%s>", o.Name)
		} else {
			fmt.Fprintf(&b, " [%s]", o.Name)
		}
	}
	return b.String()
}

const (
	// DefaultSearchLimit caps search results
	DefaultSearchLimit = 10

	// DefaultLeaderboardSize is the number of ranked entries shown
	DefaultLeaderboardSize = 10
)

// Router dispatches commands to the game and throttles each user
type Router struct {
	game    interfaces.GameManager
	catalog interfaces.Catalog
	prefix  string
	specs   []Spec
	byName  map[string]*Spec

	limit    rate.Limit
	burst    int
	limMu    sync.Mutex
	limiters map[string]*rate.Limiter

	Logger *zap.Logger
}

// NewRouter creates a router. Each user may issue burst commands at once
// and one more every second after that.
func NewRouter(gm interfaces.GameManager, catalog interfaces.Catalog, prefix string) *Router {
	r := &Router{
		game:     gm,
		catalog:  catalog,
		prefix:   prefix,
		limit:    rate.Every(time.Second),
		burst:    3,
		limiters: make(map[string]*rate.Limiter),
		Logger:   zap.NewNop(),
	}
	r.specs = builtinSpecs()
	r.byName = make(map[string]*Spec)
	for i := range r.specs {
		spec := &r.specs[i]
		r.byName[spec.Name] = spec
		for _, alias := range spec.Aliases {
			r.byName[alias] = spec
		}
	}
	return r
}

// SetLogger sets the logger for the router
func (r *Router) SetLogger(logger *zap.Logger) {
	r.Logger = logger
}

// SetRateLimit changes the per-user throttle
func (r *Router) SetRateLimit(limit rate.Limit, burst int) {
	r.limMu.Lock()
	defer r.limMu.Unlock()
	r.limit = limit
	r.burst = burst
	r.limiters = make(map[string]*rate.Limiter)
}

// Prefix returns the text command prefix
func (r *Router) Prefix() string {
	return r.prefix
}

// Commands returns every command, for help and slash registration
func (r *Router) Commands() []Spec {
	out := make([]Spec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Lookup finds a command by name or alias
func (r *Router) Lookup(name string) (Spec, bool) {
	spec, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return Spec{}, false
	}
	return *spec, true
}

func (r *Router) allow(userID string) bool {
	r.limMu.Lock()
	lim, ok := r.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(r.limit, r.burst)
		r.limiters[userID] = lim
	}
	r.limMu.Unlock()
	return lim.Allow()
}

// Dispatch runs a command. Unknown commands report false so gateways can
// stay silent on chatter that merely shares the prefix.
func (r *Router) Dispatch(ctx context.Context, c Context, inv Invocation) (Reply, bool) {
	spec, ok := r.byName[inv.Name]
	if !ok {
		return Reply{}, false
	}
	if spec.Admin && !c.IsAdmin() {
		return Reply{Title: "Not allowed", Description: "This command is for administrators.", Color: ColorFailure, Ephemeral: true}, true
	}
	if !r.allow(c.UserID()) {
		return Reply{Title: "Slow down", Description: "You are sending commands too quickly.", Color: ColorWarning, Ephemeral: true}, true
	}

	reply, err := spec.run(ctx, r, c, inv.Args)
	if err != nil {
		r.Logger.Error("Command failed",
			zap.String("command", spec.Name),
			zap.String("user_id", c.UserID()),
			zap.Error(err))
		return Reply{Title: "Something went wrong", Description: "Please try again in a moment.", Color: ColorFailure, Ephemeral: true}, true
	}
	return reply, true
}

// Handle parses and dispatches a text line
func (r *Router) Handle(ctx context.Context, c Context, text string) (Reply, bool) {
	inv, ok := ParseCommand(r.prefix, text)
	if !ok {
		return Reply{}, false
	}
	return r.Dispatch(ctx, c, inv)
}

// ParseUserRef strips chat mention syntax such as <@123>, <@!123> or @123
func ParseUserRef(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = strings.TrimPrefix(ref, "<@")
	ref = strings.TrimPrefix(ref, "!")
	ref = strings.TrimSuffix(ref, ">")
	return strings.TrimPrefix(ref, "@")
}

func usageReply(spec Spec, prefix string) Reply {
	return Reply{Title: "Usage", Description: "`" + spec.Usage(prefix) + "`", Color: ColorWarning, Ephemeral: true}
}

func builtinSpecs() []Spec {
	return []Spec{
		{Name: "help", Aliases: []string{"commands"}, Description: "List the available commands", run: runHelp},
		{Name: "encounter", Aliases: []string{"pokemon", "hunt"}, Description: "Look for a wild Pokemon", run: runEncounter},
		{Name: "catch", Description: "Throw a ball at your encounter", run: runCatch,
			Options: []Option{{Name: "ball", Description: "Ball type", Choices: ballChoices()}}},
		{Name: "wildcatch", Aliases: []string{"wc"}, Description: "Try to catch the shared wild Pokemon", run: runWildCatch},
		{Name: "wildstatus", Aliases: []string{"wild"}, Description: "Show the shared wild Pokemon", run: runWildStatus},
		{Name: "shop", Aliases: []string{"mart"}, Description: "Show ball prices", run: runShop},
		{Name: "buy", Description: "Buy balls", run: runBuy,
			Options: []Option{
				{Name: "ball", Description: "Ball type", Required: true, Choices: ballChoices()},
				{Name: "quantity", Description: "How many", Kind: OptionInteger},
			}},
		{Name: "daily", Description: "Claim your daily coins", run: runDaily},
		{Name: "inventory", Aliases: []string{"balls", "bag"}, Description: "Show your balls and coins", run: runInventory},
		{Name: "collection", Aliases: []string{"pc"}, Description: "Show your caught Pokemon", run: runCollection},
		{Name: "party", Aliases: []string{"team"}, Description: "Show your party", run: runParty},
		{Name: "setparty", Description: "Put a Pokemon into a party slot", run: runSetParty,
			Options: []Option{
				{Name: "slot", Description: "Slot 1-6", Kind: OptionInteger, Required: true},
				{Name: "id", Description: "Collection number", Kind: OptionInteger, Required: true},
			}},
		{Name: "clearparty", Description: "Empty a party slot", run: runClearParty,
			Options: []Option{{Name: "slot", Description: "Slot 1-6", Kind: OptionInteger, Required: true}}},
		{Name: "limit", Aliases: []string{"catchlimit"}, Description: "Show your hourly catch allowance", run: runLimit},
		{Name: "stats", Aliases: []string{"profile"}, Description: "Show your trainer stats", run: runStats},
		{Name: "pokedex", Aliases: []string{"info", "dex"}, Description: "Look up a species", run: runPokedex,
			Options: []Option{{Name: "pokemon", Description: "Name or number", Required: true}}},
		{Name: "search", Description: "Search species by name", run: runSearch,
			Options: []Option{{Name: "query", Description: "Part of a name", Required: true}}},
		{Name: "leaderboard", Aliases: []string{"top", "lb"}, Description: "Show the rankings", run: runLeaderboard,
			Options: []Option{{Name: "kind", Description: "Ranking", Choices: leaderboardChoices()}}},

		{Name: "spawn", Aliases: []string{"forcespawn"}, Description: "Force a wild spawn", Admin: true, run: runSpawn},
		{Name: "clearwild", Description: "Remove the current wild spawn", Admin: true, run: runClearWild},
		{Name: "setchannel", Description: "Set the wild spawn channel", Admin: true, run: runSetChannel,
			Options: []Option{{Name: "channel", Description: "Channel name", Required: true}}},
		{Name: "give", Aliases: []string{"giveballs"}, Description: "Give balls to a trainer", Admin: true, run: runGiveBalls,
			Options: []Option{
				{Name: "user", Description: "Trainer", Kind: OptionUser, Required: true},
				{Name: "ball", Description: "Ball type", Required: true, Choices: ballChoices()},
				{Name: "count", Description: "How many", Kind: OptionInteger, Required: true},
			}},
		{Name: "givecoins", Description: "Give coins to a trainer", Admin: true, run: runGiveCoins,
			Options: []Option{
				{Name: "user", Description: "Trainer", Kind: OptionUser, Required: true},
				{Name: "amount", Description: "Coins", Kind: OptionInteger, Required: true},
			}},
		{Name: "dbstats", Description: "Show player and catalog statistics", Admin: true, run: runDBStats},
	}
}

func ballChoices() []string {
	out := make([]string, 0, len(types.BallTiers))
	for _, t := range types.BallTiers {
		out = append(out, string(t))
	}
	return out
}

func leaderboardChoices() []string {
	out := make([]string, 0, len(types.LeaderboardKinds))
	for _, k := range types.LeaderboardKinds {
		out = append(out, string(k))
	}
	return out
}

func runHelp(_ context.Context, r *Router, c Context, _ []string) (Reply, error) {
	reply := Reply{Title: "Commands", Color: ColorInfo, Ephemeral: true}
	for _, spec := range r.specs {
		if spec.Admin && !c.IsAdmin() {
			continue
		}
		reply.add("`"+spec.Usage(r.prefix)+"`", spec.Description, false)
	}
	return reply, nil
}

func runEncounter(ctx context.Context, r *Router, c Context, _ []string) (Reply, error) {
	res, err := r.game.StartEncounter(ctx, c.UserID())
	if err != nil {
		return Reply{}, err
	}
	return renderEncounter(res, r.prefix), nil
}

func runCatch(ctx context.Context, r *Router, c Context, args []string) (Reply, error) {
	ball := ""
	if len(args) > 0 {
		ball = args[0]
	}
	res, err := r.game.AttemptCatch(ctx, c.UserID(), ball)
	if err != nil {
		return Reply{}, err
	}
	return renderCatch(res, r.prefix), nil
}

func runWildCatch(ctx context.Context, r *Router, c Context, _ []string) (Reply, error) {
	res, err := r.game.AttemptWildCatch(ctx, c.UserID(), c.DisplayName(), c.ChannelName())
	if err != nil && res == nil {
		return Reply{}, err
	}
	if err != nil {
		// The catch stands even though the spawn record failed to save
		r.Logger.Error("Wild catch recorded with persistence error",
			zap.String("user_id", c.UserID()),
			zap.Error(err))
	}
	return renderWildCatch(res, c.Mention(c.UserID()), r.prefix), nil
}

func runWildStatus(_ context.Context, r *Router, _ Context, _ []string) (Reply, error) {
	return renderWildStatus(r.game.WildStatus(), r.prefix), nil
}

func runShop(ctx context.Context, r *Router, c Context, _ []string) (Reply, error) {
	p, err := r.game.GetPlayer(ctx, c.UserID())
	if err != nil {
		return Reply{}, err
	}
	return renderShop(p.Coins), nil
}

func runBuy(ctx context.Context, r *Router, c Context, args []string) (Reply, error) {
	spec, _ := r.Lookup("buy")
	if len(args) == 0 {
		return usageReply(spec, r.prefix), nil
	}
	qty := 1
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return usageReply(spec, r.prefix), nil
		}
		qty = n
	}
	res, err := r.game.BuyBalls(ctx, c.UserID(), args[0], qty)
	if err != nil {
		return Reply{}, err
	}
	return renderPurchase(res, r.prefix), nil
}

func runDaily(ctx context.Context, r *Router, c Context, _ []string) (Reply, error) {
	res, err := r.game.ClaimDaily(ctx, c.UserID())
	if err != nil {
		return Reply{}, err
	}
	return renderDaily(res), nil
}

func runInventory(ctx context.Context, r *Router, c Context, _ []string) (Reply, error) {
	p, err := r.game.GetPlayer(ctx, c.UserID())
	if err != nil {
		return Reply{}, err
	}
	return renderInventory(p), nil
}

func runCollection(ctx context.Context, r *Router, c Context, _ []string) (Reply, error) {
	p, err := r.game.GetPlayer(ctx, c.UserID())
	if err != nil {
		return Reply{}, err
	}
	return renderCollection(p, r.prefix), nil
}

func runParty(ctx context.Context, r *Router, c Context, _ []string) (Reply, error) {
	p, err := r.game.GetPlayer(ctx, c.UserID())
	if err != nil {
		return Reply{}, err
	}
	return renderParty(p.PartyMembers()), nil
}

func runSetParty(ctx context.Context, r *Router, c Context, args []string) (Reply, error) {
	spec, _ := r.Lookup("setparty")
	ints, ok := parseInts(args, 2)
	if !ok {
		return usageReply(spec, r.prefix), nil
	}
	res, err := r.game.SetPartySlot(ctx, c.UserID(), ints[0], ints[1])
	if err != nil {
		return Reply{}, err
	}
	if res.Reason != types.ReasonNone {
		return failure("Party unchanged", reasonMessage(res.Reason, r.prefix)), nil
	}
	return renderParty(res.Members), nil
}

func runClearParty(ctx context.Context, r *Router, c Context, args []string) (Reply, error) {
	spec, _ := r.Lookup("clearparty")
	ints, ok := parseInts(args, 1)
	if !ok {
		return usageReply(spec, r.prefix), nil
	}
	res, err := r.game.ClearPartySlot(ctx, c.UserID(), ints[0])
	if err != nil {
		return Reply{}, err
	}
	if res.Reason != types.ReasonNone {
		return failure("Party unchanged", reasonMessage(res.Reason, r.prefix)), nil
	}
	return renderParty(res.Members), nil
}

func runLimit(ctx context.Context, r *Router, c Context, _ []string) (Reply, error) {
	st, err := r.game.CatchLimit(ctx, c.UserID())
	if err != nil {
		return Reply{}, err
	}
	return renderLimit(st), nil
}

func runStats(ctx context.Context, r *Router, c Context, _ []string) (Reply, error) {
	p, err := r.game.GetPlayer(ctx, c.UserID())
	if err != nil {
		return Reply{}, err
	}
	return renderStats(p), nil
}

func runPokedex(_ context.Context, r *Router, _ Context, args []string) (Reply, error) {
	spec, _ := r.Lookup("pokedex")
	if len(args) == 0 {
		return usageReply(spec, r.prefix), nil
	}
	query := strings.Join(args, " ")
	var (
		s  types.Species
		ok bool
	)
	if id, err := strconv.Atoi(strings.TrimPrefix(query, "#")); err == nil {
		s, ok = r.catalog.ByID(id)
	} else {
		s, ok = r.catalog.ByName(query)
	}
	if !ok {
		return failure("Not found", fmt.Sprintf("No Pokemon called %q. Try `%ssearch`.", query, r.prefix)), nil
	}
	return renderSpecies(s), nil
}

func runSearch(_ context.Context, r *Router, _ Context, args []string) (Reply, error) {
	spec, _ := r.Lookup("search")
	if len(args) == 0 {
		return usageReply(spec, r.prefix), nil
	}
	query := strings.Join(args, " ")
	found := r.catalog.Search(query, DefaultSearchLimit)
	if len(found) == 0 {
		return failure("Not found", reasonMessage(types.ReasonNotFound, r.prefix)), nil
	}
	lines := make([]string, 0, len(found))
	for _, s := range found {
		lines = append(lines, speciesLine(s))
	}
	return Reply{Title: fmt.Sprintf("Results for %q", query), Description: strings.Join(lines, "\n"), Color: ColorInfo}, nil
}

func runLeaderboard(ctx context.Context, r *Router, c Context, args []string) (Reply, error) {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	kind, ok := types.ParseLeaderboardKind(name)
	if !ok {
		return failure("Unknown ranking", "Choose one of: "+strings.Join(leaderboardChoices(), ", ")), nil
	}
	entries, err := r.game.Leaderboard(ctx, kind, DefaultLeaderboardSize)
	if err != nil {
		return Reply{}, err
	}
	return renderLeaderboard(kind, entries, c.Mention), nil
}

func runSpawn(ctx context.Context, r *Router, c Context, _ []string) (Reply, error) {
	res, err := r.game.ForceSpawn(ctx)
	if err != nil {
		r.Logger.Warn("Forced spawn failed", zap.String("user_id", c.UserID()), zap.Error(err))
		return failure("Spawn failed", err.Error()), nil
	}
	return Reply{
		Title:       "Spawned",
		Description: fmt.Sprintf("A wild %s appeared in #%s.", res.Spawn.Species.Name, res.Destination.Name),
		Color:       ColorSuccess,
		Ephemeral:   true,
	}, nil
}

func runClearWild(ctx context.Context, r *Router, _ Context, _ []string) (Reply, error) {
	if err := r.game.ClearWild(ctx); err != nil {
		return Reply{}, err
	}
	return Reply{Title: "Cleared", Description: "The wild Pokemon is gone.", Color: ColorSuccess, Ephemeral: true}, nil
}

func runSetChannel(ctx context.Context, r *Router, _ Context, args []string) (Reply, error) {
	spec, _ := r.Lookup("setchannel")
	if len(args) == 0 {
		return usageReply(spec, r.prefix), nil
	}
	if err := r.game.SetSpawnChannel(ctx, args[0]); err != nil {
		return Reply{}, err
	}
	status := r.game.WildStatus()
	return Reply{
		Title:       "Spawn channel set",
		Description: fmt.Sprintf("Wild Pokemon will now appear in #%s.", status.SpawnChannel),
		Color:       ColorSuccess,
		Ephemeral:   true,
	}, nil
}

func runGiveBalls(ctx context.Context, r *Router, c Context, args []string) (Reply, error) {
	spec, _ := r.Lookup("give")
	if len(args) < 3 {
		return usageReply(spec, r.prefix), nil
	}
	count, err := strconv.Atoi(args[2])
	if err != nil {
		return usageReply(spec, r.prefix), nil
	}
	target := ParseUserRef(args[0])
	if target == "" {
		return usageReply(spec, r.prefix), nil
	}
	res, err := r.game.GiveBalls(ctx, target, args[1], count)
	if err != nil {
		return Reply{}, err
	}
	if res.Reason != types.ReasonNone {
		return failure("Nothing given", reasonMessage(res.Reason, r.prefix)), nil
	}
	return Reply{
		Title:       "Balls given",
		Description: fmt.Sprintf("Gave %d %s to %s. They now have %d.", res.Quantity, types.ShopCatalog[res.Tier].Name, c.Mention(target), res.BallCount),
		Color:       ColorSuccess,
	}, nil
}

func runGiveCoins(ctx context.Context, r *Router, c Context, args []string) (Reply, error) {
	spec, _ := r.Lookup("givecoins")
	if len(args) < 2 {
		return usageReply(spec, r.prefix), nil
	}
	amount, err := strconv.Atoi(args[1])
	if err != nil {
		return usageReply(spec, r.prefix), nil
	}
	target := ParseUserRef(args[0])
	if target == "" {
		return usageReply(spec, r.prefix), nil
	}
	res, err := r.game.GiveCoins(ctx, target, amount)
	if err != nil {
		return Reply{}, err
	}
	if res.Reason != types.ReasonNone {
		return failure("Nothing given", "Amount must be positive."), nil
	}
	return Reply{
		Title:       "Coins given",
		Description: fmt.Sprintf("Gave %d coins to %s. They now have %d.", res.Granted, c.Mention(target), res.Balance),
		Color:       ColorSuccess,
	}, nil
}

func runDBStats(ctx context.Context, r *Router, _ Context, _ []string) (Reply, error) {
	summary, err := r.game.Summary(ctx)
	if err != nil {
		return Reply{}, err
	}
	return renderSummary(summary, r.game.CatalogStats()), nil
}

func parseInts(args []string, n int) ([]int, bool) {
	if len(args) < n {
		return nil, false
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := strconv.Atoi(args[i])
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
