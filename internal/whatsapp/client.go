package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waTypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/user/legion-bot/config"
	"github.com/user/legion-bot/internal/commands"
	"github.com/user/legion-bot/internal/interfaces"
)

// commandTimeout bounds one command's game work
const commandTimeout = 15 * time.Second

// ClientManager handles WhatsApp client connections and routes incoming
// text commands to the game
type ClientManager struct {
	clients map[string]*ClientInfo
	router  *commands.Router
	config  config.Config
	admins  map[string]bool
	logger  *zap.Logger
	mutex   sync.RWMutex
}

// ClientInfo holds information about a WhatsApp client connection
type ClientInfo struct {
	UUID        string
	PhoneNumber string
	Client      *whatsmeow.Client
	Store       *store.Device
}

var _ interfaces.MessageSender = (*ClientManager)(nil)

// NewClientManager creates a new WhatsApp client manager and restores the
// most recent session of every paired phone number
func NewClientManager(router *commands.Router, cfg config.Config, logger *zap.Logger) *ClientManager {
	cm := newClientManager(router, cfg, logger)
	cm.restoreExistingSessions()
	return cm
}

func newClientManager(router *commands.Router, cfg config.Config, logger *zap.Logger) *ClientManager {
	admins := make(map[string]bool, len(cfg.WhatsApp.Admins))
	for _, phone := range cfg.WhatsApp.Admins {
		admins[normalizePhone(phone)] = true
	}
	return &ClientManager{
		clients: make(map[string]*ClientInfo),
		router:  router,
		config:  cfg,
		admins:  admins,
		logger:  logger,
	}
}

// sessionDBPath is the whatsmeow device store for one pairing
func (cm *ClientManager) sessionDBPath(phoneNumber, sessionID string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on",
		filepath.Join(cm.config.WhatsApp.StoreDir, sessionFilename(phoneNumber, sessionID)))
}

// openDevice opens a device store, creating a fresh device when the
// database holds none
func openDevice(dbPath string, level string) (*store.Device, error) {
	container, err := sqlstore.New("sqlite3", dbPath, waLog.Stdout("Database", level, true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	device, err := container.GetFirstDevice()
	if err != nil || device == nil {
		device = container.NewDevice()
	}
	return device, nil
}

// newClient builds a client whose events are handled by this manager
func (cm *ClientManager) newClient(device *store.Device) *whatsmeow.Client {
	store.DeviceProps.RequireFullSync = proto.Bool(false)
	store.DeviceProps.Os = proto.String(cm.config.WhatsApp.ClientName)

	client := whatsmeow.NewClient(device, waLog.Stdout("Client", "INFO", true))
	client.AddEventHandler(func(evt interface{}) {
		cm.handleWhatsAppEvent(client, evt)
	})
	return client
}

func (cm *ClientManager) register(sessionID, phoneNumber string, client *whatsmeow.Client) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	if old, exists := cm.clients[phoneNumber]; exists && old.Client != client {
		old.Client.Disconnect()
	}
	cm.clients[phoneNumber] = &ClientInfo{
		UUID:        sessionID,
		PhoneNumber: phoneNumber,
		Client:      client,
		Store:       client.Store,
	}
}

// restoreExistingSessions reconnects the newest session per phone number
// and removes older session files
func (cm *ClientManager) restoreExistingSessions() {
	if err := os.MkdirAll(cm.config.WhatsApp.StoreDir, 0755); err != nil {
		cm.logger.Error("Failed to create store directory", zap.Error(err))
		return
	}

	files, err := listSessionFiles(cm.config.WhatsApp.StoreDir)
	if err != nil {
		cm.logger.Error("Failed to scan for existing sessions", zap.Error(err))
		return
	}

	for phoneNumber, group := range groupLatestSessions(files) {
		for _, stale := range group.stale {
			if err := os.Remove(stale.path); err != nil {
				cm.logger.Error("Failed to remove old session file",
					zap.String("file", stale.path),
					zap.Error(err))
				continue
			}
			cm.logger.Info("Removed old session file", zap.String("file", stale.path))
		}

		latest := group.latest
		device, err := openDevice(cm.sessionDBPath(phoneNumber, latest.SessionID), "INFO")
		if err != nil {
			cm.logger.Error("Failed to open session",
				zap.String("phone_number", phoneNumber),
				zap.Error(err))
			continue
		}
		if device.ID == nil {
			cm.logger.Info("Session requires QR code login", zap.String("phone_number", phoneNumber))
			continue
		}

		client := cm.newClient(device)
		cm.register(latest.SessionID, phoneNumber, client)

		go func(phone string, cli *whatsmeow.Client) {
			if err := cli.Connect(); err != nil {
				cm.logger.Error("Failed to connect restored client",
					zap.String("phone_number", phone),
					zap.Error(err))
				return
			}
			cm.logger.Info("Successfully connected restored client", zap.String("phone_number", phone))
		}(phoneNumber, client)
	}
}

// SetupClient initializes a client for a session, reusing its stored device
func (cm *ClientManager) SetupClient(sessionID, phoneNumber string) (*whatsmeow.Client, error) {
	if err := os.MkdirAll(cm.config.WhatsApp.StoreDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	device, err := openDevice(cm.sessionDBPath(phoneNumber, sessionID), "INFO")
	if err != nil {
		return nil, err
	}
	client := cm.newClient(device)
	cm.register(sessionID, phoneNumber, client)
	return client, nil
}

// GetClient retrieves a WhatsApp client by phone number, reconnecting a
// paired client that dropped
func (cm *ClientManager) GetClient(phoneNumber string) (*whatsmeow.Client, bool) {
	cm.mutex.RLock()
	clientInfo, exists := cm.clients[phoneNumber]
	cm.mutex.RUnlock()
	if !exists {
		return nil, false
	}

	if !clientInfo.Client.IsConnected() && clientInfo.Store.ID != nil {
		if err := clientInfo.Client.Connect(); err != nil {
			cm.logger.Error("Failed to connect client",
				zap.String("phone_number", phoneNumber),
				zap.Error(err))
			return nil, false
		}
		cm.logger.Info("Successfully reconnected client", zap.String("phone_number", phoneNumber))
	}
	return clientInfo.Client, true
}

// connectedClient returns any logged-in client, used for broadcasts
func (cm *ClientManager) connectedClient() *whatsmeow.Client {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	for _, info := range cm.clients {
		if info.Client != nil && info.Client.IsConnected() && info.Client.IsLoggedIn() {
			return info.Client
		}
	}
	return nil
}

// Disconnect closes a specific WhatsApp connection
func (cm *ClientManager) Disconnect(phoneNumber string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	clientInfo, exists := cm.clients[phoneNumber]
	if !exists {
		return fmt.Errorf("client not found for phone number: %s", phoneNumber)
	}
	clientInfo.Client.Disconnect()
	delete(cm.clients, phoneNumber)
	return nil
}

// DisconnectAll closes all WhatsApp connections
func (cm *ClientManager) DisconnectAll() {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	for phoneNumber, clientInfo := range cm.clients {
		if clientInfo.Client != nil {
			clientInfo.Client.Disconnect()
			cm.logger.Info("Disconnected client", zap.String("phone_number", phoneNumber))
		}
	}
	cm.clients = make(map[string]*ClientInfo)
}

// SendMessage sends a text message from the client paired to phoneNumber
func (cm *ClientManager) SendMessage(phoneNumber, recipient, message string) (string, error) {
	client, exists := cm.GetClient(phoneNumber)
	if !exists {
		return "", fmt.Errorf("client not found for phone number: %s", phoneNumber)
	}
	recipientJID, err := parseJID(recipient)
	if err != nil {
		return "", err
	}
	return sendText(context.Background(), client, recipientJID, message)
}

func sendText(ctx context.Context, client *whatsmeow.Client, to waTypes.JID, text string) (string, error) {
	resp, err := client.SendMessage(ctx, to, &waProto.Message{Conversation: proto.String(text)})
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return resp.ID, nil
}

func (cm *ClientManager) handleWhatsAppEvent(client *whatsmeow.Client, evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		cm.handleIncomingMessage(client, v)
	case *events.Connected:
		cm.logger.Info("WhatsApp client connected")
	case *events.Disconnected:
		cm.logger.Info("WhatsApp client disconnected")
	case *events.LoggedOut:
		cm.logger.Warn("WhatsApp client logged out", zap.Any("reason", v.Reason))
	}
}

func (cm *ClientManager) handleIncomingMessage(client *whatsmeow.Client, message *events.Message) {
	if message.Info.IsFromMe {
		return
	}
	content := messageText(message.Message)
	if content == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	sender := message.Info.Sender.User
	reply, handled := cm.processCommand(ctx, sender, message.Info.PushName, content)
	if !handled {
		return
	}

	cm.logger.Debug("Handled chat command",
		zap.String("sender", sender),
		zap.String("chat", message.Info.Chat.String()))

	if _, err := sendText(ctx, client, message.Info.Chat, reply.Text()); err != nil {
		cm.logger.Error("Failed to send response",
			zap.String("sender", sender),
			zap.Error(err))
	}
}

// processCommand runs one chat line through the command router
func (cm *ClientManager) processCommand(ctx context.Context, sender, pushName, content string) (commands.Reply, bool) {
	o := chatOrigin{
		userID:      normalizePhone(sender),
		displayName: pushName,
		admin:       cm.admins[normalizePhone(sender)],
	}
	if o.displayName == "" {
		o.displayName = o.userID
	}
	return cm.router.Handle(ctx, o, content)
}

// messageText extracts the text of a plain or extended text message
func messageText(msg *waProto.Message) string {
	if msg == nil {
		return ""
	}
	if text := msg.GetConversation(); text != "" {
		return text
	}
	return msg.GetExtendedTextMessage().GetText()
}

// parseJID converts a phone number or full JID string to a JID
func parseJID(jidString string) (waTypes.JID, error) {
	if !strings.ContainsRune(jidString, '@') {
		jidString = normalizePhone(jidString) + "@" + waTypes.DefaultUserServer
	}
	jid, err := waTypes.ParseJID(jidString)
	if err != nil {
		return waTypes.JID{}, fmt.Errorf("invalid jid %q: %w", jidString, err)
	}
	return jid, nil
}

// normalizePhone strips formatting from a phone number
func normalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
}
