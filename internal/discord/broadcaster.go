package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/user/legion-bot/internal/commands"
	"github.com/user/legion-bot/internal/interfaces"
	"github.com/user/legion-bot/internal/types"
)

// embedSender posts an embed to a channel
type embedSender func(channelID string, embed *discordgo.MessageEmbed) error

// Broadcaster announces wild spawns in a guild text channel found by name
type Broadcaster struct {
	state   *discordgo.State
	send    embedSender
	guildID string
	prefix  string
	logger  *zap.Logger
}

var _ interfaces.Broadcaster = (*Broadcaster)(nil)

// NewBroadcaster creates a broadcaster over the session's cached guilds.
// guildID restricts the lookup to one guild when set.
func NewBroadcaster(s *discordgo.Session, guildID, prefix string, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		state: s.State,
		send: func(channelID string, embed *discordgo.MessageEmbed) error {
			_, err := s.ChannelMessageSendEmbed(channelID, embed)
			return err
		},
		guildID: guildID,
		prefix:  prefix,
		logger:  logger,
	}
}

// ResolveDestination finds a text channel by name, ignoring case and a
// leading '#'
func (b *Broadcaster) ResolveDestination(_ context.Context, name string) (types.Destination, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "#")

	b.state.RLock()
	defer b.state.RUnlock()

	for _, guild := range b.state.Guilds {
		if b.guildID != "" && guild.ID != b.guildID {
			continue
		}
		for _, ch := range guild.Channels {
			if ch.Type != discordgo.ChannelTypeGuildText {
				continue
			}
			if strings.EqualFold(ch.Name, name) {
				return types.Destination{ID: ch.ID, Name: ch.Name}, nil
			}
		}
	}
	return types.Destination{}, fmt.Errorf("channel #%s not found in %d guild(s): %w",
		name, len(b.state.Guilds), interfaces.ErrDestinationUnavailable)
}

// AnnounceSpawn posts the spawn card
func (b *Broadcaster) AnnounceSpawn(_ context.Context, dest types.Destination, spawn *types.WildSpawn) error {
	embed := toEmbed(commands.RenderSpawnAnnouncement(spawn, b.prefix))
	if err := b.send(dest.ID, embed); err != nil {
		return fmt.Errorf("failed to send spawn announcement: %w", err)
	}
	b.logger.Info("Announced wild spawn",
		zap.String("spawn_id", spawn.ID),
		zap.String("channel_id", dest.ID),
		zap.String("channel", dest.Name))
	return nil
}

// toEmbed renders a reply as a Discord embed
func toEmbed(r commands.Reply) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       r.Title,
		Description: r.Description,
		Color:       r.Color,
	}
	for _, f := range r.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if r.ImageURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: r.ImageURL}
	}
	return embed
}
