package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/user/legion-bot/internal/catalog"
	"github.com/user/legion-bot/internal/types"
)

// MockGameManager is a mock implementation of interfaces.GameManager
type MockGameManager struct {
	mock.Mock
}

func (m *MockGameManager) GetPlayer(ctx context.Context, userID string) (*types.PlayerProfile, error) {
	args := m.Called(userID)
	p, _ := args.Get(0).(*types.PlayerProfile)
	return p, args.Error(1)
}

func (m *MockGameManager) StartEncounter(ctx context.Context, userID string) (*types.EncounterResult, error) {
	args := m.Called(userID)
	res, _ := args.Get(0).(*types.EncounterResult)
	return res, args.Error(1)
}

func (m *MockGameManager) AttemptCatch(ctx context.Context, userID, ball string) (*types.CatchResult, error) {
	args := m.Called(userID, ball)
	res, _ := args.Get(0).(*types.CatchResult)
	return res, args.Error(1)
}

func (m *MockGameManager) AttemptWildCatch(ctx context.Context, userID, displayName, channel string) (*types.WildCatchResult, error) {
	args := m.Called(userID, displayName, channel)
	res, _ := args.Get(0).(*types.WildCatchResult)
	return res, args.Error(1)
}

func (m *MockGameManager) BuyBalls(ctx context.Context, userID, ball string, quantity int) (*types.PurchaseResult, error) {
	args := m.Called(userID, ball, quantity)
	res, _ := args.Get(0).(*types.PurchaseResult)
	return res, args.Error(1)
}

func (m *MockGameManager) ClaimDaily(ctx context.Context, userID string) (*types.DailyClaimResult, error) {
	args := m.Called(userID)
	res, _ := args.Get(0).(*types.DailyClaimResult)
	return res, args.Error(1)
}

func (m *MockGameManager) CatchLimit(ctx context.Context, userID string) (*types.CatchLimitStatus, error) {
	args := m.Called(userID)
	res, _ := args.Get(0).(*types.CatchLimitStatus)
	return res, args.Error(1)
}

func (m *MockGameManager) SetPartySlot(ctx context.Context, userID string, slot, collectionID int) (*types.PartyResult, error) {
	args := m.Called(userID, slot, collectionID)
	res, _ := args.Get(0).(*types.PartyResult)
	return res, args.Error(1)
}

func (m *MockGameManager) ClearPartySlot(ctx context.Context, userID string, slot int) (*types.PartyResult, error) {
	args := m.Called(userID, slot)
	res, _ := args.Get(0).(*types.PartyResult)
	return res, args.Error(1)
}

func (m *MockGameManager) WildStatus() types.WildStatus {
	args := m.Called()
	return args.Get(0).(types.WildStatus)
}

func (m *MockGameManager) ForceSpawn(ctx context.Context) (*types.SpawnResult, error) {
	args := m.Called()
	res, _ := args.Get(0).(*types.SpawnResult)
	return res, args.Error(1)
}

func (m *MockGameManager) ClearWild(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *MockGameManager) SetSpawnChannel(ctx context.Context, name string) error {
	return m.Called(name).Error(0)
}

func (m *MockGameManager) GiveBalls(ctx context.Context, userID, ball string, count int) (*types.PurchaseResult, error) {
	args := m.Called(userID, ball, count)
	res, _ := args.Get(0).(*types.PurchaseResult)
	return res, args.Error(1)
}

func (m *MockGameManager) GiveCoins(ctx context.Context, userID string, amount int) (*types.CoinGrantResult, error) {
	args := m.Called(userID, amount)
	res, _ := args.Get(0).(*types.CoinGrantResult)
	return res, args.Error(1)
}

func (m *MockGameManager) Summary(ctx context.Context) (*types.PlayerSummary, error) {
	args := m.Called()
	res, _ := args.Get(0).(*types.PlayerSummary)
	return res, args.Error(1)
}

func (m *MockGameManager) Leaderboard(ctx context.Context, kind types.LeaderboardKind, limit int) ([]types.LeaderboardEntry, error) {
	args := m.Called(kind, limit)
	res, _ := args.Get(0).([]types.LeaderboardEntry)
	return res, args.Error(1)
}

func (m *MockGameManager) CatalogStats() types.CatalogStats {
	return m.Called().Get(0).(types.CatalogStats)
}

// fakeContext is a fixed command origin
type fakeContext struct {
	user    string
	name    string
	channel string
	admin   bool
}

func (f fakeContext) UserID() string      { return f.user }
func (f fakeContext) DisplayName() string { return f.name }
func (f fakeContext) ChannelName() string { return f.channel }
func (f fakeContext) IsAdmin() bool       { return f.admin }
func (f fakeContext) Mention(id string) string {
	return "<@" + id + ">"
}

var pikachu = types.Species{ID: 25, Name: "Pikachu", Types: []string{"Electric"}, Rarity: types.RarityUncommon, CatchRate: 0.55, Generation: 1}

func newTestRouter(t *testing.T) (*Router, *MockGameManager) {
	t.Helper()
	cat, err := catalog.New([]types.Species{
		pikachu,
		{ID: 26, Name: "Raichu", Types: []string{"Electric"}, Rarity: types.RarityRare, CatchRate: 0.3, Generation: 1},
	}, nil)
	require.NoError(t, err)
	gm := new(MockGameManager)
	return NewRouter(gm, cat, "!"), gm
}

func TestParseCommand(t *testing.T) {
	inv, ok := ParseCommand("!", "  !Catch great  ")
	require.True(t, ok)
	assert.Equal(t, "catch", inv.Name)
	assert.Equal(t, []string{"great"}, inv.Args)

	_, ok = ParseCommand("!", "catch great")
	assert.False(t, ok)
	_, ok = ParseCommand("!", "!")
	assert.False(t, ok)
}

func TestParseUserRef(t *testing.T) {
	assert.Equal(t, "123", ParseUserRef("<@123>"))
	assert.Equal(t, "123", ParseUserRef("<@!123>"))
	assert.Equal(t, "5511999", ParseUserRef("@5511999"))
	assert.Equal(t, "ash", ParseUserRef("ash"))
}

func TestDispatchUnknownCommandIsSilent(t *testing.T) {
	router, gm := newTestRouter(t)

	_, handled := router.Handle(context.Background(), fakeContext{user: "ash"}, "!dance")
	assert.False(t, handled)
	gm.AssertExpectations(t)
}

func TestCatchDefaultsToEmptyBall(t *testing.T) {
	// Setup
	router, gm := newTestRouter(t)
	trace := &types.CatchTrace{SpeciesName: "Pikachu", FinalProbability: 0.55, Roll: 0.2, Success: true, Ball: types.BallPoke}
	gm.On("AttemptCatch", "ash", "").Return(&types.CatchResult{
		Ball:             types.BallPoke,
		Trace:            trace,
		Creature:         &types.CaughtCreature{ID: 1, Species: pikachu},
		RemainingBalls:   4,
		RemainingCatches: 2,
	}, nil)

	reply, handled := router.Handle(context.Background(), fakeContext{user: "ash"}, "!catch")
	require.True(t, handled)
	assert.Equal(t, ColorSuccess, reply.Color)
	assert.Contains(t, reply.Title, "Pikachu was caught")
	gm.AssertExpectations(t)
}

func TestCatchRejectionsRenderActionableMessages(t *testing.T) {
	// Setup
	router, gm := newTestRouter(t)
	ctx := context.Background()

	// Test case 1: limit reached shows the reset time
	gm.On("AttemptCatch", "ash", "great").Return(&types.CatchResult{
		Reason:    types.ReasonCatchLimitReached,
		Remaining: 12*time.Minute + 5*time.Second,
	}, nil).Once()
	reply, _ := router.Handle(ctx, fakeContext{user: "ash"}, "!catch great")
	assert.Contains(t, reply.Description, "12m 5s")

	// Test case 2: no encounter points at the encounter command
	gm.On("AttemptCatch", "ash", "").Return(&types.CatchResult{Reason: types.ReasonNoEncounter}, nil).Once()
	reply, _ = router.Handle(ctx, fakeContext{user: "ash"}, "!catch")
	assert.Contains(t, reply.Description, "!encounter")
	gm.AssertExpectations(t)
}

func TestEncounterCooldownMessage(t *testing.T) {
	router, gm := newTestRouter(t)
	gm.On("StartEncounter", "ash").Return(&types.EncounterResult{
		Reason:    types.ReasonCooldownActive,
		Remaining: 4*time.Minute + 30*time.Second,
	}, nil)

	reply, _ := router.Handle(context.Background(), fakeContext{user: "ash"}, "!pokemon")
	assert.Contains(t, reply.Description, "4m 30s")
	assert.Equal(t, ColorWarning, reply.Color)
}

func TestWildCatchPassesChannelAndName(t *testing.T) {
	// Setup
	router, gm := newTestRouter(t)
	c := fakeContext{user: "42", name: "Misty", channel: "pokemon"}
	gm.On("AttemptWildCatch", "42", "Misty", "pokemon").Return(&types.WildCatchResult{
		Species: &pikachu,
		Trace:   &types.CatchTrace{SpeciesName: "Pikachu", Success: true, FinalProbability: 0.55},
		Winner:  &types.WildWinner{UserID: "42", DisplayName: "Misty"},
	}, nil)

	reply, handled := router.Handle(context.Background(), c, "!wildcatch")
	require.True(t, handled)
	assert.Equal(t, "<@42> caught the wild Pikachu!", reply.Title)
	gm.AssertExpectations(t)
}

func TestWildCatchWrongChannel(t *testing.T) {
	router, gm := newTestRouter(t)
	gm.On("AttemptWildCatch", "42", "Misty", "general").Return(&types.WildCatchResult{
		Reason:  types.ReasonWrongChannel,
		Channel: "pokemon",
	}, nil)

	reply, _ := router.Handle(context.Background(), fakeContext{user: "42", name: "Misty", channel: "general"}, "!wc")
	assert.Contains(t, reply.Description, "#pokemon")
}

func TestBuyParsesQuantity(t *testing.T) {
	// Setup
	router, gm := newTestRouter(t)
	ctx := context.Background()
	gm.On("BuyBalls", "ash", "great", 2).Return(&types.PurchaseResult{
		Tier: types.BallGreat, Quantity: 2, TotalCost: 2000, Balance: 500, BallCount: 2,
	}, nil).Once()
	gm.On("BuyBalls", "ash", "ultra", 1).Return(&types.PurchaseResult{
		Reason: types.ReasonInsufficientFunds, Tier: types.BallUltra, Quantity: 1, TotalCost: 10000, Balance: 500, Shortfall: 9500,
	}, nil).Once()

	// Test case 1: explicit quantity
	reply, _ := router.Handle(ctx, fakeContext{user: "ash"}, "!buy great 2")
	assert.Equal(t, ColorSuccess, reply.Color)

	// Test case 2: quantity defaults to one and the shortfall is shown
	reply, _ = router.Handle(ctx, fakeContext{user: "ash"}, "!buy ultra")
	assert.Contains(t, reply.Description, "9500")

	// Test case 3: bad quantity shows usage without calling the game
	reply, _ = router.Handle(ctx, fakeContext{user: "ash"}, "!buy poke lots")
	assert.Equal(t, "Usage", reply.Title)
	gm.AssertExpectations(t)
}

func TestDailyCooldownMessage(t *testing.T) {
	router, gm := newTestRouter(t)
	gm.On("ClaimDaily", "ash").Return(&types.DailyClaimResult{
		Reason:    types.ReasonCooldownActive,
		Remaining: 5*time.Hour + 3*time.Minute,
	}, nil)

	reply, _ := router.Handle(context.Background(), fakeContext{user: "ash"}, "!daily")
	assert.Contains(t, reply.Description, "5h 3m")
}

func TestAdminCommandsRequireAdmin(t *testing.T) {
	// Setup
	router, gm := newTestRouter(t)
	ctx := context.Background()

	// Test case 1: non-admin is refused without touching the game
	reply, handled := router.Handle(ctx, fakeContext{user: "ash"}, "!spawn")
	require.True(t, handled)
	assert.Equal(t, "Not allowed", reply.Title)

	// Test case 2: admin gives balls to a mentioned user
	gm.On("GiveBalls", "123", "master", 1).Return(&types.PurchaseResult{
		Tier: types.BallMaster, Quantity: 1, BallCount: 1,
	}, nil)
	reply, _ = router.Handle(ctx, fakeContext{user: "oak", admin: true}, "!give <@!123> master 1")
	assert.Equal(t, "Balls given", reply.Title)

	// Test case 3: admin gives coins
	gm.On("GiveCoins", "123", 500).Return(&types.CoinGrantResult{Granted: 500, Balance: 600}, nil)
	reply, _ = router.Handle(ctx, fakeContext{user: "oak", admin: true}, "!givecoins <@123> 500")
	assert.Contains(t, reply.Description, "600")
	gm.AssertExpectations(t)
}

func TestGiveRejectsEmptyTarget(t *testing.T) {
	// Setup
	router, gm := newTestRouter(t)
	ctx := context.Background()
	admin := fakeContext{user: "oak", admin: true}

	// Test case 1: a bare mention never reaches the game
	reply, handled := router.Handle(ctx, admin, "!give <@> master 1")
	require.True(t, handled)
	assert.Equal(t, "Usage", reply.Title)

	// Test case 2: same for coins
	reply, _ = router.Handle(ctx, admin, "!givecoins <@!> 500")
	assert.Equal(t, "Usage", reply.Title)

	gm.AssertNotCalled(t, "GiveBalls", mock.Anything, mock.Anything, mock.Anything)
	gm.AssertNotCalled(t, "GiveCoins", mock.Anything, mock.Anything)
}

func TestForcedSpawnFailureIsReported(t *testing.T) {
	router, gm := newTestRouter(t)
	gm.On("ForceSpawn").Return(nil, errors.New("broadcast destination unavailable"))

	reply, _ := router.Handle(context.Background(), fakeContext{user: "oak", admin: true}, "!spawn")
	assert.Equal(t, "Spawn failed", reply.Title)
	assert.Contains(t, reply.Description, "unavailable")
}

func TestGameErrorRendersGenericFailure(t *testing.T) {
	router, gm := newTestRouter(t)
	gm.On("ClaimDaily", "ash").Return(nil, errors.New("disk full"))

	reply, handled := router.Handle(context.Background(), fakeContext{user: "ash"}, "!daily")
	require.True(t, handled)
	assert.Equal(t, "Something went wrong", reply.Title)
	assert.NotContains(t, reply.Description, "disk full")
}

func TestLeaderboardKinds(t *testing.T) {
	// Setup
	router, gm := newTestRouter(t)
	ctx := context.Background()
	gm.On("Leaderboard", types.LeaderboardPower, DefaultLeaderboardSize).Return([]types.LeaderboardEntry{
		{UserID: "1", Score: 363},
	}, nil)

	// Test case 1: named board
	reply, _ := router.Handle(ctx, fakeContext{user: "ash"}, "!leaderboard power")
	assert.Equal(t, "Most powerful teams", reply.Title)
	assert.Contains(t, reply.Description, "1. <@1>: 363")

	// Test case 2: unknown board
	reply, _ = router.Handle(ctx, fakeContext{user: "ash"}, "!leaderboard speed")
	assert.Equal(t, "Unknown ranking", reply.Title)
	gm.AssertExpectations(t)
}

func TestPokedexAndSearchUseCatalog(t *testing.T) {
	router, _ := newTestRouter(t)
	ctx := context.Background()

	reply, _ := router.Handle(ctx, fakeContext{user: "ash"}, "!pokedex pikachu")
	assert.Equal(t, "#025 Pikachu", reply.Title)

	reply, _ = router.Handle(ctx, fakeContext{user: "ash"}, "!info #26")
	assert.Equal(t, "#026 Raichu", reply.Title)

	reply, _ = router.Handle(ctx, fakeContext{user: "ash"}, "!search chu")
	assert.Contains(t, reply.Description, "Pikachu")
	assert.Contains(t, reply.Description, "Raichu")

	reply, _ = router.Handle(ctx, fakeContext{user: "ash"}, "!pokedex missingno")
	assert.Equal(t, "Not found", reply.Title)
}

func TestRateLimitPerUser(t *testing.T) {
	// Setup
	router, _ := newTestRouter(t)
	router.SetRateLimit(rate.Every(time.Hour), 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		reply, _ := router.Handle(ctx, fakeContext{user: "ash"}, "!search chu")
		assert.NotEqual(t, "Slow down", reply.Title)
	}
	reply, _ := router.Handle(ctx, fakeContext{user: "ash"}, "!search chu")
	assert.Equal(t, "Slow down", reply.Title)

	// Another user has their own budget
	reply, _ = router.Handle(ctx, fakeContext{user: "misty"}, "!search chu")
	assert.NotEqual(t, "Slow down", reply.Title)
}

func TestHelpHidesAdminCommands(t *testing.T) {
	router, _ := newTestRouter(t)
	ctx := context.Background()

	reply, _ := router.Handle(ctx, fakeContext{user: "ash"}, "!help")
	for _, f := range reply.Fields {
		assert.NotContains(t, f.Name, "!spawn")
	}

	reply, _ = router.Handle(ctx, fakeContext{user: "oak", admin: true}, "!help")
	names := make([]string, 0, len(reply.Fields))
	for _, f := range reply.Fields {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "`!spawn`")
}

func TestReplyText(t *testing.T) {
	r := Reply{Title: "Daily bonus", Description: "You received 100 coins!"}
	r.add("Balance", "200 coins", true)
	assert.Equal(t, "*Daily bonus*\nYou received 100 coins!\n\n*Balance*: 200 coins", r.Text())
}
