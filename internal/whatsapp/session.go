package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/user/legion-bot/config"
)

// ErrAlreadyLoggedIn is returned when pairing a number that is already paired
var ErrAlreadyLoggedIn = errors.New("client already logged in")

// qrTimeout bounds the wait for the first pairing code
const qrTimeout = 60 * time.Second

// sessionFilename names the device database of one pairing
func sessionFilename(phoneNumber, sessionID string) string {
	return fmt.Sprintf("store_%s_%s.db", phoneNumber, sessionID)
}

// sessionFile is one device database found on disk
type sessionFile struct {
	path        string
	PhoneNumber string
	SessionID   string
	modTime     time.Time
}

// parseSessionFilename splits store_<phone>_<session>.db
func parseSessionFilename(name string) (phoneNumber, sessionID string, ok bool) {
	if !strings.HasPrefix(name, "store_") || !strings.HasSuffix(name, ".db") {
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimSuffix(strings.TrimPrefix(name, "store_"), ".db"), "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func listSessionFiles(dir string) ([]sessionFile, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "store_*.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to list session files: %w", err)
	}
	files := make([]sessionFile, 0, len(matches))
	for _, match := range matches {
		phone, session, ok := parseSessionFilename(filepath.Base(match))
		if !ok {
			continue
		}
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		files = append(files, sessionFile{path: match, PhoneNumber: phone, SessionID: session, modTime: info.ModTime()})
	}
	return files, nil
}

// sessionGroup is the newest session of a phone number plus older ones
type sessionGroup struct {
	latest sessionFile
	stale  []sessionFile
}

func groupLatestSessions(files []sessionFile) map[string]sessionGroup {
	byPhone := make(map[string][]sessionFile)
	for _, f := range files {
		byPhone[f.PhoneNumber] = append(byPhone[f.PhoneNumber], f)
	}
	groups := make(map[string]sessionGroup, len(byPhone))
	for phone, list := range byPhone {
		sort.SliceStable(list, func(i, j int) bool { return list[i].modTime.After(list[j].modTime) })
		groups[phone] = sessionGroup{latest: list[0], stale: list[1:]}
	}
	return groups
}

// QRCode is a pairing code ready to be scanned
type QRCode struct {
	SessionID string `json:"session_id"`
	Code      string `json:"qr_code"`
	ImagePath string `json:"image_path"`
}

// QRCodeManager handles QR code generation and authentication
type QRCodeManager struct {
	clientManager *ClientManager
	sessions      *SessionManager
	config        config.Config
	logger        *zap.Logger
}

// NewQRCodeManager creates a new QR code manager
func NewQRCodeManager(clientManager *ClientManager, sessions *SessionManager, cfg config.Config, logger *zap.Logger) *QRCodeManager {
	return &QRCodeManager{
		clientManager: clientManager,
		sessions:      sessions,
		config:        cfg,
		logger:        logger,
	}
}

// GenerateQRCode starts a new pairing for phoneNumber and returns the
// first code, also written as a PNG under the store directory
func (qm *QRCodeManager) GenerateQRCode(ctx context.Context, phoneNumber string) (*QRCode, error) {
	phoneNumber = normalizePhone(phoneNumber)
	if phoneNumber == "" {
		return nil, fmt.Errorf("phone number is required")
	}
	if client, exists := qm.clientManager.GetClient(phoneNumber); exists && client.IsLoggedIn() {
		return nil, ErrAlreadyLoggedIn
	}

	sessionID := uuid.New().String()
	client, err := qm.clientManager.SetupClient(sessionID, phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to set up client: %w", err)
	}

	qrChan, err := client.GetQRChannel(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get QR channel: %w", err)
	}
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	qrDir := filepath.Join(qm.config.WhatsApp.StoreDir, "qrcodes")
	if err := os.MkdirAll(qrDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create QR code directory: %w", err)
	}

	timer := time.NewTimer(qrTimeout)
	defer timer.Stop()

	select {
	case evt := <-qrChan:
		if evt.Event != "code" {
			return nil, fmt.Errorf("unexpected QR event: %s", evt.Event)
		}
		qrPath := filepath.Join(qrDir, fmt.Sprintf("%s_%s.png", phoneNumber, sessionID))
		if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 256, qrPath); err != nil {
			return nil, fmt.Errorf("failed to generate QR code image: %w", err)
		}
		if err := qm.sessions.SaveSession(SessionInfo{ID: sessionID, PhoneNumber: phoneNumber, CreatedAt: time.Now()}); err != nil {
			qm.logger.Warn("Failed to save session info", zap.Error(err))
		}

		qm.logger.Info("QR code generated",
			zap.String("phone_number", phoneNumber),
			zap.String("session_id", sessionID),
			zap.String("path", qrPath))
		return &QRCode{SessionID: sessionID, Code: evt.Code, ImagePath: qrPath}, nil
	case <-timer.C:
		return nil, fmt.Errorf("timeout waiting for QR code")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SessionManager handles WhatsApp session files
type SessionManager struct {
	storeDir string
	logger   *zap.Logger
}

// NewSessionManager creates a new session manager
func NewSessionManager(storeDir string, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		storeDir: storeDir,
		logger:   logger,
	}
}

// SessionInfo holds information about a WhatsApp session
type SessionInfo struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	JID         string    `json:"jid,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListSessions returns every session database in the store directory.
// JID is empty for sessions that never finished pairing.
func (sm *SessionManager) ListSessions() ([]SessionInfo, error) {
	if err := os.MkdirAll(sm.storeDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	files, err := listSessionFiles(sm.storeDir)
	if err != nil {
		return nil, err
	}

	sessions := make([]SessionInfo, 0, len(files))
	for _, f := range files {
		info := SessionInfo{ID: f.SessionID, PhoneNumber: f.PhoneNumber, CreatedAt: f.modTime}
		device, err := openDevice("file:"+f.path+"?_foreign_keys=on", "ERROR")
		if err != nil {
			sm.logger.Warn("Failed to open session database", zap.String("path", f.path), zap.Error(err))
		} else if device.ID != nil {
			info.JID = device.ID.String()
		}
		sessions = append(sessions, info)
	}
	return sessions, nil
}

// SaveSession persists session information next to the device database
func (sm *SessionManager) SaveSession(session SessionInfo) error {
	sessionsDir := filepath.Join(sm.storeDir, "sessions")
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	path := filepath.Join(sessionsDir, fmt.Sprintf("%s_%s.json", session.PhoneNumber, session.ID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// DeleteSession removes a WhatsApp session's database and info file
func (sm *SessionManager) DeleteSession(phoneNumber, sessionID string) error {
	dbPath := filepath.Join(sm.storeDir, sessionFilename(phoneNumber, sessionID))
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session database: %w", err)
	}
	infoPath := filepath.Join(sm.storeDir, "sessions", fmt.Sprintf("%s_%s.json", phoneNumber, sessionID))
	if err := os.Remove(infoPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session info: %w", err)
	}
	return nil
}
