// Package discord connects the command router to a Discord bot account.
package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/user/legion-bot/config"
	"github.com/user/legion-bot/internal/commands"
)

// commandTimeout bounds one command's game work
const commandTimeout = 15 * time.Second

// Bot handles the Discord gateway connection
type Bot struct {
	session     *discordgo.Session
	router      *commands.Router
	config      config.DiscordConfig
	broadcaster *Broadcaster
	logger      *zap.Logger
	registered  []*discordgo.ApplicationCommand
}

// NewBot creates a bot. The gateway is not opened until Start.
func NewBot(cfg config.DiscordConfig, router *commands.Router, logger *zap.Logger) (*Bot, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("discord token is not configured")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	b := &Bot{
		session:     session,
		router:      router,
		config:      cfg,
		broadcaster: NewBroadcaster(session, cfg.GuildID, router.Prefix(), logger),
		logger:      logger,
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onInteractionCreate)
	return b, nil
}

// Broadcaster returns the spawn broadcaster bound to this session
func (b *Bot) Broadcaster() *Broadcaster {
	return b.broadcaster
}

// Start opens the gateway and registers slash commands
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}
	if !b.config.SlashCommands {
		return nil
	}
	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.config.GuildID, slashCommands(b.router.Commands()))
	if err != nil {
		b.logger.Error("Failed to register slash commands", zap.Error(err))
		return nil
	}
	b.registered = registered
	b.logger.Info("Registered slash commands",
		zap.Int("count", len(registered)),
		zap.String("guild_id", b.config.GuildID))
	return nil
}

// Stop closes the gateway
func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("Discord bot connected",
		zap.String("user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	inv, ok := commands.ParseCommand(b.router.Prefix(), m.Content)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	o := b.messageOrigin(m)
	reply, handled := b.router.Dispatch(ctx, o, inv)
	if !handled {
		return
	}

	b.logger.Debug("Handled prefix command",
		zap.String("command", inv.Name),
		zap.String("user_id", o.userID),
		zap.String("channel", o.channel))

	if _, err := s.ChannelMessageSendEmbed(m.ChannelID, toEmbed(reply)); err != nil {
		b.logger.Error("Failed to send reply",
			zap.String("channel_id", m.ChannelID),
			zap.Error(err))
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	spec, ok := b.router.Lookup(data.Name)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	o := b.interactionOrigin(i)
	inv := commands.Invocation{Name: spec.Name, Args: optionArgs(spec, data.Options)}
	reply, handled := b.router.Dispatch(ctx, o, inv)
	if !handled {
		return
	}

	resp := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{toEmbed(reply)}}
	if reply.Ephemeral {
		resp.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: resp,
	})
	if err != nil {
		b.logger.Error("Failed to respond to interaction",
			zap.String("command", spec.Name),
			zap.String("user_id", o.userID),
			zap.Error(err))
	}
}
