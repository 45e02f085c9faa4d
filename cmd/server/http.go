package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/user/legion-bot/config"
	"github.com/user/legion-bot/internal/interfaces"
	"github.com/user/legion-bot/internal/types"
	"github.com/user/legion-bot/internal/whatsapp"
)

// adminTokenHeader carries the admin token for admin routes
const adminTokenHeader = "X-Admin-Token"

func setupHTTPServer(cfg config.Config, gm interfaces.GameManager, clientManager *whatsapp.ClientManager, qrManager *whatsapp.QRCodeManager, sessionManager *whatsapp.SessionManager, logger *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newRouter(cfg, gm, clientManager, qrManager, sessionManager, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newRouter(cfg config.Config, gm interfaces.GameManager, clientManager *whatsapp.ClientManager, qrManager *whatsapp.QRCodeManager, sessionManager *whatsapp.SessionManager, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	health := func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("Health check request received",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr))
		w.Write([]byte("OK"))
	}
	router.Get("/health", health)
	router.Get("/healthcheck", health)

	router.Get("/wild", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, gm.WildStatus())
	})

	router.Get("/players/summary", func(w http.ResponseWriter, r *http.Request) {
		summary, err := gm.Summary(r.Context())
		if err != nil {
			logger.Error("Failed to build player summary", zap.Error(err))
			http.Error(w, "Failed to build summary", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	})

	router.Get("/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		kind, ok := types.ParseLeaderboardKind(r.URL.Query().Get("kind"))
		if !ok {
			http.Error(w, "Unknown leaderboard kind", http.StatusBadRequest)
			return
		}
		limit := 10
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "Invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		entries, err := gm.Leaderboard(r.Context(), kind, limit)
		if err != nil {
			logger.Error("Failed to build leaderboard", zap.Error(err))
			http.Error(w, "Failed to build leaderboard", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"kind": kind, "entries": entries})
	})

	router.With(requireAdminToken(cfg.Server.AdminToken)).Post("/admin/spawn", func(w http.ResponseWriter, r *http.Request) {
		result, err := gm.ForceSpawn(r.Context())
		if errors.Is(err, interfaces.ErrDestinationUnavailable) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		if err != nil {
			logger.Error("Forced spawn failed", zap.Error(err))
			http.Error(w, "Spawn failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	if clientManager != nil {
		mountWhatsAppRoutes(router, cfg, clientManager, qrManager, sessionManager, logger)
	}
	return router
}

// requireAdminToken rejects requests without the configured token. An
// empty token disables the admin routes.
func requireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, "Admin API disabled", http.StatusForbidden)
				return
			}
			got := r.Header.Get(adminTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func mountWhatsAppRoutes(router chi.Router, cfg config.Config, clientManager *whatsapp.ClientManager, qrManager *whatsapp.QRCodeManager, sessionManager *whatsapp.SessionManager, logger *zap.Logger) {
	// Serve QR code images
	qrDir := filepath.Join(cfg.WhatsApp.StoreDir, "qrcodes")
	router.Get("/qrcodes/*", func(w http.ResponseWriter, r *http.Request) {
		http.StripPrefix("/qrcodes/", http.FileServer(http.Dir(qrDir))).ServeHTTP(w, r)
	})

	router.Post("/qr", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PhoneNumber string `json:"phone_number"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PhoneNumber == "" {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		// Pairing outlives the request timeout middleware
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()

		qr, err := qrManager.GenerateQRCode(ctx, req.PhoneNumber)
		if errors.Is(err, whatsapp.ErrAlreadyLoggedIn) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			logger.Error("Failed to generate QR code",
				zap.String("phone_number", req.PhoneNumber),
				zap.Error(err))
			http.Error(w, "Failed to generate QR code", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, qr)
	})

	router.Get("/sessions", func(w http.ResponseWriter, r *http.Request) {
		sessions, err := sessionManager.ListSessions()
		if err != nil {
			logger.Error("Failed to list sessions", zap.Error(err))
			http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, sessions)
	})

	router.With(requireAdminToken(cfg.Server.AdminToken)).Delete("/sessions/{phone_number}/{session_id}", func(w http.ResponseWriter, r *http.Request) {
		phoneNumber := chi.URLParam(r, "phone_number")
		sessionID := chi.URLParam(r, "session_id")

		if err := clientManager.Disconnect(phoneNumber); err != nil {
			logger.Debug("No connected client for session", zap.String("phone_number", phoneNumber))
		}
		if err := sessionManager.DeleteSession(phoneNumber, sessionID); err != nil {
			logger.Error("Failed to delete session",
				zap.String("phone_number", phoneNumber),
				zap.String("session_id", sessionID),
				zap.Error(err))
			http.Error(w, "Failed to delete session", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	router.With(requireAdminToken(cfg.Server.AdminToken)).Post("/whatsapp/send", sendMessageHandler(clientManager, logger))
}

// sendMessageHandler relays an operator message through a paired number
func sendMessageHandler(sender interfaces.MessageSender, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PhoneNumber string `json:"phone_number"`
			Recipient   string `json:"recipient"`
			Message     string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PhoneNumber == "" || req.Recipient == "" || req.Message == "" {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		id, err := sender.SendMessage(req.PhoneNumber, req.Recipient, req.Message)
		if err != nil {
			logger.Error("Failed to send message",
				zap.String("phone_number", req.PhoneNumber),
				zap.String("recipient", req.Recipient),
				zap.Error(err))
			http.Error(w, "Failed to send message", http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message_id": id})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
