package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DISCORD_TOKEN string `env:"DISCORD_TOKEN"`

	COMMAND_PREFIX  string `env:"COMMAND_PREFIX" envDefault:"!"`
	COMMAND_KEYWORD string `env:"COMMAND_KEYWORD" envDefault:"music"`
	SHORT_ALIAS     bool   `env:"SHORT_ALIAS" envDefault:"true"`

	VOTE_PERCENTAGE float64       `env:"VOTE_PERCENTAGE" envDefault:"0.6"`
	HISTORY_LIMIT   int           `env:"HISTORY_LIMIT" envDefault:"50"`
	TRACK_GAP       time.Duration `env:"TRACK_GAP" envDefault:"2s"`
	STATUS_INTERVAL time.Duration `env:"STATUS_INTERVAL" envDefault:"10s"`
	CACHE_TTL       time.Duration `env:"CACHE_TTL" envDefault:"10m"`

	MODERATOR_ROLE string  `env:"MODERATOR_ROLE" envDefault:"DJ"`
	COMMAND_RATE   float64 `env:"COMMAND_RATE" envDefault:"1"`
	COMMAND_BURST  int     `env:"COMMAND_BURST" envDefault:"3"`

	PHRASES_FILE string `env:"PHRASES_FILE"`
	LOG_LEVEL    int    `env:"LOG_LEVEL" envDefault:"2"`
	FFMPEG_PATH  string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
}

// Load reads envPath into the environment, if it exists, and parses the
// configuration from the environment. Variables already set win over the file.
func Load(envPath string) (Config, error) {
	if envPath == "" {
		envPath = ".env"
	}

	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	var config Config
	if err := env.Parse(&config); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if c.DISCORD_TOKEN == "" {
		return errors.New("DISCORD_TOKEN is required")
	}

	if c.COMMAND_PREFIX == "" {
		return errors.New("COMMAND_PREFIX is required")
	}

	if c.COMMAND_KEYWORD == "" {
		return errors.New("COMMAND_KEYWORD is required")
	}

	if c.VOTE_PERCENTAGE <= 0 || c.VOTE_PERCENTAGE > 1 {
		return fmt.Errorf("VOTE_PERCENTAGE must be in (0, 1], got %v", c.VOTE_PERCENTAGE)
	}

	if c.HISTORY_LIMIT <= 0 {
		return errors.New("HISTORY_LIMIT must be positive")
	}

	if c.TRACK_GAP < 0 {
		return errors.New("TRACK_GAP must not be negative")
	}

	if c.STATUS_INTERVAL <= 0 {
		return errors.New("STATUS_INTERVAL must be positive")
	}

	if c.COMMAND_RATE <= 0 || c.COMMAND_BURST <= 0 {
		return errors.New("COMMAND_RATE and COMMAND_BURST must be positive")
	}

	return nil
}
