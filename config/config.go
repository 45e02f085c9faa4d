package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Discord configuration
	Discord DiscordConfig `json:"discord"`

	// WhatsApp configuration
	WhatsApp WhatsAppConfig `json:"whatsapp"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// Game configuration
	Game GameConfig `json:"game"`

	// Server configuration
	Server ServerConfig `json:"server"`
}

// DiscordConfig holds Discord gateway configuration
type DiscordConfig struct {
	// Bot token, normally supplied through the environment
	Token string `json:"token,omitempty" env:"DISCORD_BOT_TOKEN"`

	// Prefix for text commands
	Prefix string `json:"prefix"`

	// Register slash commands on startup
	SlashCommands bool `json:"slash_commands"`

	// Guild to register slash commands in, empty for global
	GuildID string `json:"guild_id" env:"DISCORD_GUILD_ID"`

	// Role name whose members may run admin commands
	AdminRole string `json:"admin_role"`
}

// Enabled reports whether a Discord session should be opened
func (d DiscordConfig) Enabled() bool {
	return d.Token != ""
}

// WhatsAppConfig holds WhatsApp specific configuration
type WhatsAppConfig struct {
	// Enable the WhatsApp gateway
	Enabled bool `json:"enabled" env:"LEGION_WHATSAPP_ENABLED"`

	// Path to store WhatsApp session data
	StoreDir string `json:"store_dir"`

	// Client device name
	ClientName string `json:"client_name"`

	// Group JID that receives wild spawn announcements
	SpawnGroupJID string `json:"spawn_group_jid"`

	// Phone numbers allowed to run admin commands
	Admins []string `json:"admins"`
}

// DatabaseConfig holds database specific configuration
type DatabaseConfig struct {
	// Store engine (json, sqlite, postgres)
	Engine string `json:"engine" env:"LEGION_STORE_ENGINE"`

	// Engine specific location: file path or connection string
	DSN string `json:"dsn" env:"LEGION_STORE_DSN"`
}

// GameConfig holds game specific configuration
type GameConfig struct {
	// Minutes between personal encounters, clamped to 1-60
	EncounterCooldownMinutes int `json:"encounter_cooldown_minutes"`

	// Catch attempts allowed in a rolling hour
	CatchLimitPerHour int `json:"catch_limit_per_hour"`

	// Coins granted by the daily bonus
	DailyBonus int `json:"daily_bonus"`

	// Starting coins for new players
	StartingCoins int `json:"starting_coins"`

	// Starting basic balls for new players
	StartingBalls int `json:"starting_balls"`

	// Minutes between wild spawns
	SpawnIntervalMinutes int `json:"spawn_interval_minutes"`

	// Name of the channel wild spawns are announced in
	SpawnChannel string `json:"spawn_channel" env:"LEGION_SPAWN_CHANNEL"`

	// Path to the species dataset
	CatalogPath string `json:"catalog_path" env:"LEGION_CATALOG_PATH"`
}

// EncounterCooldown returns the personal encounter window
func (g GameConfig) EncounterCooldown() time.Duration {
	minutes := g.EncounterCooldownMinutes
	if minutes < 1 {
		minutes = 1
	}
	if minutes > 60 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

// SpawnInterval returns the wild spawn period
func (g GameConfig) SpawnInterval() time.Duration {
	if g.SpawnIntervalMinutes < 1 {
		return time.Minute
	}
	return time.Duration(g.SpawnIntervalMinutes) * time.Minute
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	// Server port
	Port string `json:"port" env:"PORT"`

	// Log level (debug, info, warn, error)
	LogLevel string `json:"log_level" env:"LEGION_LOG_LEVEL"`

	// Token required by admin HTTP routes
	AdminToken string `json:"admin_token,omitempty" env:"LEGION_ADMIN_TOKEN"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Discord: DiscordConfig{
			Prefix:        "!",
			SlashCommands: true,
			AdminRole:     "Admin",
		},
		WhatsApp: WhatsAppConfig{
			Enabled:    false,
			StoreDir:   "./whatsapp-store",
			ClientName: "LEGION BOT",
		},
		Database: DatabaseConfig{
			Engine: "json",
			DSN:    "./data/pokemon_players.json",
		},
		Game: GameConfig{
			EncounterCooldownMinutes: 5,
			CatchLimitPerHour:        3,
			DailyBonus:               100,
			StartingCoins:            100,
			StartingBalls:            5,
			SpawnIntervalMinutes:     30,
			SpawnChannel:             "pokemon",
			CatalogPath:              "./assets/data/pokemon_master_database.json",
		},
		Server: ServerConfig{
			Port:     "8080",
			LogLevel: "info",
		},
	}
}

// Load reads the config file, then applies .env and process environment
// overrides on top of it
func Load(path string) (Config, error) {
	// A missing .env is fine
	_ = godotenv.Load(".env")

	cfg, err := LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from a file
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return config, err
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := SaveConfig(config, path); err != nil {
			return config, err
		}
		return config, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return config, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves configuration to a file
func SaveConfig(config Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(config)
}
