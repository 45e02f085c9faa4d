package whatsapp

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/user/legion-bot/internal/commands"
	"github.com/user/legion-bot/internal/interfaces"
	"github.com/user/legion-bot/internal/types"
)

// chatOrigin is the commands.Context for a WhatsApp sender. WhatsApp has
// no channel names, so wild catches are not channel gated here.
type chatOrigin struct {
	userID      string
	displayName string
	admin       bool
}

var _ commands.Context = chatOrigin{}

func (o chatOrigin) UserID() string      { return o.userID }
func (o chatOrigin) DisplayName() string { return o.displayName }
func (o chatOrigin) ChannelName() string { return "" }
func (o chatOrigin) IsAdmin() bool       { return o.admin }

func (o chatOrigin) Mention(userID string) string {
	return "@" + userID
}

// GroupBroadcaster announces wild spawns in a fixed group chat
type GroupBroadcaster struct {
	cm       *ClientManager
	groupJID string
	prefix   string
	logger   *zap.Logger
}

var _ interfaces.Broadcaster = (*GroupBroadcaster)(nil)

// NewGroupBroadcaster creates a broadcaster for the configured group
func NewGroupBroadcaster(cm *ClientManager, groupJID, prefix string, logger *zap.Logger) *GroupBroadcaster {
	return &GroupBroadcaster{cm: cm, groupJID: groupJID, prefix: prefix, logger: logger}
}

// ResolveDestination maps the spawn channel name onto the configured group.
// It is unavailable until a paired client is online.
func (g *GroupBroadcaster) ResolveDestination(_ context.Context, name string) (types.Destination, error) {
	if g.groupJID == "" {
		return types.Destination{}, fmt.Errorf("no spawn group configured: %w", interfaces.ErrDestinationUnavailable)
	}
	jid, err := parseJID(g.groupJID)
	if err != nil {
		return types.Destination{}, fmt.Errorf("%v: %w", err, interfaces.ErrDestinationUnavailable)
	}
	if g.cm.connectedClient() == nil {
		return types.Destination{}, fmt.Errorf("no connected whatsapp client: %w", interfaces.ErrDestinationUnavailable)
	}
	return types.Destination{ID: jid.String(), Name: name}, nil
}

// AnnounceSpawn posts the spawn card as text
func (g *GroupBroadcaster) AnnounceSpawn(ctx context.Context, dest types.Destination, spawn *types.WildSpawn) error {
	client := g.cm.connectedClient()
	if client == nil {
		return fmt.Errorf("no connected whatsapp client: %w", interfaces.ErrDestinationUnavailable)
	}
	jid, err := parseJID(dest.ID)
	if err != nil {
		return err
	}
	text := commands.RenderSpawnAnnouncement(spawn, g.prefix).Text()
	if _, err := sendText(ctx, client, jid, text); err != nil {
		return err
	}
	g.logger.Info("Announced wild spawn",
		zap.String("spawn_id", spawn.ID),
		zap.String("group", dest.ID))
	return nil
}
