package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration values for the bot
type Config struct {
	// Discord
	DiscordToken string `envconfig:"DISCORD_BOT_TOKEN"`

	// Storage
	DataDir string `envconfig:"DATA_DIR" default:"./data"`

	// Ops HTTP server (health + metrics)
	OpsAddr string `envconfig:"OPS_ADDR" default:":8080"`

	// Timer poller
	TimerPollSeconds int `envconfig:"TIMER_POLL_SECONDS" default:"30"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	if cfg.TimerPollSeconds <= 0 {
		return nil, fmt.Errorf("TIMER_POLL_SECONDS must be positive")
	}

	return &cfg, nil
}
