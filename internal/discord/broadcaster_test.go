package discord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/legion-bot/internal/commands"
	"github.com/user/legion-bot/internal/interfaces"
	"github.com/user/legion-bot/internal/types"
)

func newTestBroadcaster(t *testing.T, guildID string) (*Broadcaster, *[]*discordgo.MessageEmbed) {
	t.Helper()
	state := discordgo.NewState()
	require.NoError(t, state.GuildAdd(&discordgo.Guild{
		ID: "g1",
		Channels: []*discordgo.Channel{
			{ID: "c1", GuildID: "g1", Name: "general", Type: discordgo.ChannelTypeGuildText},
			{ID: "c2", GuildID: "g1", Name: "Pokemon", Type: discordgo.ChannelTypeGuildVoice},
		},
	}))
	require.NoError(t, state.GuildAdd(&discordgo.Guild{
		ID: "g2",
		Channels: []*discordgo.Channel{
			{ID: "c3", GuildID: "g2", Name: "Pokemon", Type: discordgo.ChannelTypeGuildText},
		},
	}))

	sent := &[]*discordgo.MessageEmbed{}
	b := &Broadcaster{
		state: state,
		send: func(channelID string, embed *discordgo.MessageEmbed) error {
			*sent = append(*sent, embed)
			return nil
		},
		guildID: guildID,
		prefix:  "!",
		logger:  zap.NewNop(),
	}
	return b, sent
}

func TestResolveDestination(t *testing.T) {
	// Setup
	b, _ := newTestBroadcaster(t, "")
	ctx := context.Background()

	// Test case 1: case-insensitive, voice channels skipped
	dest, err := b.ResolveDestination(ctx, "#pokemon")
	require.NoError(t, err)
	assert.Equal(t, types.Destination{ID: "c3", Name: "Pokemon"}, dest)

	// Test case 2: missing channel is an unavailable destination
	_, err = b.ResolveDestination(ctx, "trading")
	assert.True(t, errors.Is(err, interfaces.ErrDestinationUnavailable))
}

func TestResolveDestinationRestrictedToGuild(t *testing.T) {
	b, _ := newTestBroadcaster(t, "g1")

	_, err := b.ResolveDestination(context.Background(), "pokemon")
	assert.ErrorIs(t, err, interfaces.ErrDestinationUnavailable)

	dest, err := b.ResolveDestination(context.Background(), "GENERAL")
	require.NoError(t, err)
	assert.Equal(t, "c1", dest.ID)
}

func TestAnnounceSpawn(t *testing.T) {
	// Setup
	b, sent := newTestBroadcaster(t, "")
	spawn := &types.WildSpawn{
		ID:        "s1",
		Species:   types.Species{ID: 25, Name: "Pikachu", Types: []string{"Electric"}, Rarity: types.RarityUncommon, ImageURL: "https://img/25.png"},
		SpawnedAt: time.Now(),
	}

	err := b.AnnounceSpawn(context.Background(), types.Destination{ID: "c3", Name: "Pokemon"}, spawn)
	require.NoError(t, err)
	require.Len(t, *sent, 1)
	embed := (*sent)[0]
	assert.Equal(t, "A wild Pikachu appeared!", embed.Title)
	assert.Contains(t, embed.Description, "!wildcatch")
	assert.Equal(t, commands.ColorWild, embed.Color)
	require.NotNil(t, embed.Thumbnail)
	assert.Equal(t, "https://img/25.png", embed.Thumbnail.URL)
}

func TestAnnounceSpawnSendFailure(t *testing.T) {
	b, _ := newTestBroadcaster(t, "")
	b.send = func(string, *discordgo.MessageEmbed) error { return errors.New("missing access") }

	err := b.AnnounceSpawn(context.Background(), types.Destination{ID: "c3"}, &types.WildSpawn{ID: "s1"})
	assert.ErrorContains(t, err, "missing access")
}

func TestOptionArgs(t *testing.T) {
	spec := commands.Spec{
		Name: "give",
		Options: []commands.Option{
			{Name: "user", Kind: commands.OptionUser},
			{Name: "ball"},
			{Name: "count", Kind: commands.OptionInteger},
		},
	}
	opts := []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "count", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(3)},
		{Name: "ball", Type: discordgo.ApplicationCommandOptionString, Value: "great"},
		{Name: "user", Type: discordgo.ApplicationCommandOptionUser, Value: "123"},
	}

	assert.Equal(t, []string{"123", "great", "3"}, optionArgs(spec, opts))

	// A missing option ends the positional list
	assert.Equal(t, []string{"123"}, optionArgs(spec, opts[2:]))
}

func TestSlashCommands(t *testing.T) {
	router := commands.NewRouter(nil, nil, "!")
	cmds := slashCommands(router.Commands())

	byName := make(map[string]*discordgo.ApplicationCommand, len(cmds))
	for _, c := range cmds {
		byName[c.Name] = c
	}

	buy := byName["buy"]
	require.NotNil(t, buy)
	require.Len(t, buy.Options, 2)
	assert.True(t, buy.Options[0].Required)
	assert.Len(t, buy.Options[0].Choices, len(types.BallTiers))
	assert.Equal(t, discordgo.ApplicationCommandOptionInteger, buy.Options[1].Type)
	assert.Nil(t, buy.DefaultMemberPermissions)

	spawn := byName["spawn"]
	require.NotNil(t, spawn)
	require.NotNil(t, spawn.DefaultMemberPermissions)
}

func TestToEmbed(t *testing.T) {
	reply := commands.Reply{Title: "Daily bonus", Description: "You received 100 coins!", Color: commands.ColorSuccess,
		Fields: []commands.Field{{Name: "Balance", Value: "200 coins", Inline: true}}}

	embed := toEmbed(reply)
	assert.Equal(t, "Daily bonus", embed.Title)
	require.Len(t, embed.Fields, 1)
	assert.True(t, embed.Fields[0].Inline)
	assert.Nil(t, embed.Thumbnail)
}

func TestGateNameIsNeverEmpty(t *testing.T) {
	// Test case 1: guild text channel keeps its name
	assert.Equal(t, "pokemon", gateName(&discordgo.Channel{Name: "pokemon", Type: discordgo.ChannelTypeGuildText}, nil))

	// Test case 2: DMs
	assert.Equal(t, directMessageChannel, gateName(&discordgo.Channel{Type: discordgo.ChannelTypeDM}, nil))
	assert.Equal(t, directMessageChannel, gateName(&discordgo.Channel{Type: discordgo.ChannelTypeGroupDM}, nil))

	// Test case 3: failed lookups still fail the spawn channel gate
	assert.Equal(t, unresolvedChannel, gateName(nil, errors.New("unknown channel")))
	assert.Equal(t, unresolvedChannel, gateName(&discordgo.Channel{Type: discordgo.ChannelTypeGuildText}, nil))
	assert.NotEqual(t, "pokemon", gateName(nil, errors.New("unknown channel")))
}
