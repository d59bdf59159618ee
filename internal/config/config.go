package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration values for the bot
type Config struct {
	// Discord
	DiscordToken     string `env:"DISCORD_TOKEN"`
	GuildID          string `env:"GUILD_ID"`
	ControlChannelID string `env:"CONTROL_CHANNEL_ID"`
	AlertChannelID   string `env:"ALERT_CHANNEL_ID"`
	EventsChannelID  string `env:"EVENTS_CHANNEL_ID"`

	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/bot.db"`

	// Game detection
	PollingIntervalSeconds int  `env:"GAME_CHECK_INTERVAL" envDefault:"30"`
	AutoProvisionGames     bool `env:"AUTO_PROVISION_GAMES" envDefault:"true"`
	ForgetUnobserved       bool `env:"FORGET_UNOBSERVED_MEMBERS" envDefault:"false"`

	// Game artwork
	ImageLookupTimeout time.Duration `env:"IMAGE_LOOKUP_TIMEOUT" envDefault:"5s"`
	ImageCacheTTL      time.Duration `env:"IMAGE_CACHE_TTL" envDefault:"6h"`
	SteamStoreURL      string        `env:"STEAM_STORE_URL" envDefault:"https://store.steampowered.com"`
	IGDBClientID       string        `env:"IGDB_CLIENT_ID"`
	IGDBAccessToken    string        `env:"IGDB_ACCESS_TOKEN"`

	// Observability
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsAddr string `env:"METRICS_ADDR"`
}

// Load reads configuration from the environment, after loading a .env file if one exists.
// It does not require the Discord credential; call Validate before connecting.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.PollingIntervalSeconds <= 0 {
		return nil, fmt.Errorf("invalid GAME_CHECK_INTERVAL: %d", cfg.PollingIntervalSeconds)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	return cfg, nil
}

// Validate checks the settings the bot cannot start without
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DiscordToken) == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	return nil
}

// PollingInterval returns the presence sampling period
func (c *Config) PollingInterval() time.Duration {
	return time.Duration(c.PollingIntervalSeconds) * time.Second
}

// IGDBEnabled reports whether IGDB credentials were provided
func (c *Config) IGDBEnabled() bool {
	return c.IGDBClientID != "" && c.IGDBAccessToken != ""
}
