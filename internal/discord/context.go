package discord

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/user/legion-bot/internal/commands"
)

// directMessageChannel is reported for DMs. '@' cannot appear in a guild
// channel name, so wild catches from DMs never pass the channel gate.
const directMessageChannel = "@me"

// unresolvedChannel is reported when the channel cannot be looked up
const unresolvedChannel = "@unknown"

// adminPermissions grant admin commands without the admin role
const adminPermissions = discordgo.PermissionAdministrator | discordgo.PermissionManageServer

// origin is the commands.Context for both prefix messages and slash
// interactions. Fields are resolved once when the event arrives.
type origin struct {
	userID      string
	displayName string
	channel     string
	admin       bool
}

var _ commands.Context = origin{}

func (o origin) UserID() string      { return o.userID }
func (o origin) DisplayName() string { return o.displayName }
func (o origin) ChannelName() string { return o.channel }
func (o origin) IsAdmin() bool       { return o.admin }

func (o origin) Mention(userID string) string {
	return "<@" + userID + ">"
}

// messageOrigin resolves who sent a prefix command
func (b *Bot) messageOrigin(m *discordgo.MessageCreate) origin {
	o := origin{
		userID:      m.Author.ID,
		displayName: m.Author.Username,
		channel:     b.channelName(m.ChannelID),
	}
	var roles []string
	if m.Member != nil {
		if m.Member.Nick != "" {
			o.displayName = m.Member.Nick
		}
		roles = m.Member.Roles
	}
	if m.GuildID != "" {
		perms, err := b.session.UserChannelPermissions(m.Author.ID, m.ChannelID)
		o.admin = (err == nil && perms&adminPermissions != 0) ||
			hasRoleNamed(b.session.State, m.GuildID, roles, b.config.AdminRole)
	}
	return o
}

// interactionOrigin resolves who invoked a slash command
func (b *Bot) interactionOrigin(i *discordgo.InteractionCreate) origin {
	o := origin{channel: b.channelName(i.ChannelID)}
	switch {
	case i.Member != nil && i.Member.User != nil:
		o.userID = i.Member.User.ID
		o.displayName = i.Member.User.Username
		if i.Member.Nick != "" {
			o.displayName = i.Member.Nick
		}
		o.admin = i.Member.Permissions&adminPermissions != 0 ||
			hasRoleNamed(b.session.State, i.GuildID, i.Member.Roles, b.config.AdminRole)
	case i.User != nil:
		o.userID = i.User.ID
		o.displayName = i.User.Username
	}
	return o
}

func (b *Bot) channelName(channelID string) string {
	ch, err := b.session.State.Channel(channelID)
	if err != nil {
		ch, err = b.session.Channel(channelID)
		if err != nil {
			b.logger.Debug("Channel lookup failed",
				zap.String("channel_id", channelID),
				zap.Error(err))
		}
	}
	return gateName(ch, err)
}

// gateName is the name checked against the spawn channel. It is never
// empty, since an empty name means the caller is not channel gated.
func gateName(ch *discordgo.Channel, err error) string {
	if err != nil || ch == nil {
		return unresolvedChannel
	}
	if ch.Type == discordgo.ChannelTypeDM || ch.Type == discordgo.ChannelTypeGroupDM {
		return directMessageChannel
	}
	if ch.Name == "" {
		return unresolvedChannel
	}
	return ch.Name
}

// hasRoleNamed reports whether any of roleIDs carries the given name
func hasRoleNamed(state *discordgo.State, guildID string, roleIDs []string, name string) bool {
	if name == "" {
		return false
	}
	for _, id := range roleIDs {
		role, err := state.Role(guildID, id)
		if err == nil && strings.EqualFold(role.Name, name) {
			return true
		}
	}
	return false
}

// optionArgs lays slash options out as positional args in the order the
// command declares them. Parsing stops at the first missing option.
func optionArgs(spec commands.Spec, opts []*discordgo.ApplicationCommandInteractionDataOption) []string {
	byName := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		byName[o.Name] = o
	}
	args := make([]string, 0, len(spec.Options))
	for _, decl := range spec.Options {
		o, ok := byName[decl.Name]
		if !ok {
			break
		}
		switch o.Type {
		case discordgo.ApplicationCommandOptionInteger:
			args = append(args, strconv.FormatInt(o.IntValue(), 10))
		case discordgo.ApplicationCommandOptionString:
			args = append(args, o.StringValue())
		default:
			if s, ok := o.Value.(string); ok {
				args = append(args, s)
			}
		}
	}
	return args
}

// slashCommands builds the application commands for every router command
func slashCommands(specs []commands.Spec) []*discordgo.ApplicationCommand {
	adminPerm := int64(discordgo.PermissionManageServer)
	out := make([]*discordgo.ApplicationCommand, 0, len(specs))
	for _, spec := range specs {
		cmd := &discordgo.ApplicationCommand{
			Name:        spec.Name,
			Description: spec.Description,
		}
		if spec.Admin {
			cmd.DefaultMemberPermissions = &adminPerm
		}
		for _, opt := range spec.Options {
			option := &discordgo.ApplicationCommandOption{
				Name:        opt.Name,
				Description: opt.Description,
				Required:    opt.Required,
			}
			switch opt.Kind {
			case commands.OptionInteger:
				option.Type = discordgo.ApplicationCommandOptionInteger
			case commands.OptionUser:
				option.Type = discordgo.ApplicationCommandOptionUser
			default:
				option.Type = discordgo.ApplicationCommandOptionString
			}
			for _, choice := range opt.Choices {
				option.Choices = append(option.Choices, &discordgo.ApplicationCommandOptionChoice{Name: choice, Value: choice})
			}
			cmd.Options = append(cmd.Options, option)
		}
		out = append(out, cmd)
	}
	return out
}
