// Command legion-bot runs the monster catching game on Discord and WhatsApp.
//
// Usage:
//
//	legion-bot serve --config ./config/config.json
//	legion-bot catalog stats
//	legion-bot players summary
//	legion-bot spawn --server http://localhost:8080
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/user/legion-bot/config"
	"github.com/user/legion-bot/internal/catalog"
	"github.com/user/legion-bot/internal/commands"
	"github.com/user/legion-bot/internal/discord"
	"github.com/user/legion-bot/internal/game"
	"github.com/user/legion-bot/internal/interfaces"
	"github.com/user/legion-bot/internal/storage"
	"github.com/user/legion-bot/internal/whatsapp"
)

// shutdownTimeout bounds graceful HTTP shutdown
const shutdownTimeout = 10 * time.Second

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "legion-bot",
		Short:         "Monster catching game bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./config/config.json", "Path to configuration file")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(catalogCmd(&configPath))
	root.AddCommand(playersCmd(&configPath))
	root.AddCommand(spawnCmd(&configPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// app holds the wired engine shared by every subcommand
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	catalog *catalog.Catalog
	store   storage.Store
	game    *game.GameManager
	router  *commands.Router
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := setupLogger(cfg.Server.LogLevel)

	species, err := catalog.LoadFile(cfg.Game.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	cat, err := catalog.New(species, game.NewDiceRoller())
	if err != nil {
		return nil, fmt.Errorf("failed to index catalog: %w", err)
	}
	logger.Info("Loaded catalog", zap.Int("species", cat.Len()), zap.String("path", cfg.Game.CatalogPath))

	store, err := storage.NewByEngine(ctx, cfg.Database.Engine, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	logger.Info("Opened store", zap.String("engine", cfg.Database.Engine))

	gm := game.NewGameManager(cfg.Game, cat, store, game.NewDiceRoller())
	gm.SetLogger(logger)
	if err := gm.Restore(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to restore wild spawn: %w", err)
	}

	router := commands.NewRouter(gm, cat, cfg.Discord.Prefix)
	router.SetLogger(logger)

	return &app{cfg: cfg, logger: logger, catalog: cat, store: store, game: gm, router: router}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("Failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// gateways are the chat connections started by serve
type gateways struct {
	bot      *discord.Bot
	whatsapp *whatsapp.ClientManager
	qr       *whatsapp.QRCodeManager
	sessions *whatsapp.SessionManager
}

// startGateways opens the configured chat connections and picks the spawn
// broadcaster: Discord when a token is set, otherwise the WhatsApp group
func (a *app) startGateways() (*gateways, error) {
	gw := &gateways{}
	var broadcaster interfaces.Broadcaster

	if a.cfg.Discord.Enabled() {
		bot, err := discord.NewBot(a.cfg.Discord, a.router, a.logger)
		if err != nil {
			return nil, err
		}
		if err := bot.Start(); err != nil {
			return nil, err
		}
		gw.bot = bot
		broadcaster = bot.Broadcaster()
	}

	if a.cfg.WhatsApp.Enabled {
		gw.whatsapp = whatsapp.NewClientManager(a.router, a.cfg, a.logger)
		gw.sessions = whatsapp.NewSessionManager(a.cfg.WhatsApp.StoreDir, a.logger)
		gw.qr = whatsapp.NewQRCodeManager(gw.whatsapp, gw.sessions, a.cfg, a.logger)
		if broadcaster == nil && a.cfg.WhatsApp.SpawnGroupJID != "" {
			broadcaster = whatsapp.NewGroupBroadcaster(gw.whatsapp, a.cfg.WhatsApp.SpawnGroupJID, a.router.Prefix(), a.logger)
		}
	}

	if broadcaster == nil {
		a.logger.Warn("No spawn broadcaster configured, wild spawns will not be announced")
	} else {
		a.game.SetBroadcaster(broadcaster)
	}
	return gw, nil
}

func (gw *gateways) stop(logger *zap.Logger) {
	if gw.bot != nil {
		if err := gw.bot.Stop(); err != nil {
			logger.Error("Failed to close discord session", zap.Error(err))
		}
	}
	if gw.whatsapp != nil {
		gw.whatsapp.DisconnectAll()
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat gateways, the spawn timer and the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			gw, err := a.startGateways()
			if err != nil {
				return err
			}
			defer gw.stop(a.logger)

			server := setupHTTPServer(a.cfg, a.game, gw.whatsapp, gw.qr, gw.sessions, a.logger)
			go func() {
				a.logger.Info("Starting HTTP server", zap.String("port", a.cfg.Server.Port))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("HTTP server stopped", zap.Error(err))
				}
			}()

			a.game.StartSpawnScheduler()
			defer a.game.StopSpawnScheduler()

			waitForShutdown(a.logger)

			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("HTTP server shutdown failed", zap.Error(err))
			}
			return nil
		},
	}
}

func catalogCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the species catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print species counts per rarity and generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			species, err := catalog.LoadFile(cfg.Game.CatalogPath)
			if err != nil {
				return err
			}
			cat, err := catalog.New(species, game.NewDiceRoller())
			if err != nil {
				return err
			}
			return printJSON(cmd, cat.Stats())
		},
	})
	return cmd
}

func playersCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "players",
		Short: "Inspect stored players",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Print store-wide player statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.game.Summary(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		},
	})
	return cmd
}

func spawnCmd(configPath *string) *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "spawn",
		Short: "Ask the running server to force one wild spawn",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if serverURL == "" {
				serverURL = "http://localhost:" + cfg.Server.Port
			}

			result, err := newSpawnClient(serverURL, cfg.Server.AdminToken).ForceSpawn(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "Base URL of the running server (default http://localhost:<server.port>)")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func waitForShutdown(logger *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
}
