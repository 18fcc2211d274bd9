// Package config loads bot settings from the environment and an optional .env
// file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required,notEmpty"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"json"`
	StoragePath   string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"warden.db"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	LocaleDefault string `env:"LOCALE_DEFAULT" envDefault:"en"`

	// OpsAddr empty disables the operator API.
	OpsAddr string `env:"OPS_ADDR" envDefault:"127.0.0.1:8787"`

	AutosaveInterval time.Duration `env:"SANCTION_AUTOSAVE_INTERVAL" envDefault:"1m"`
	// SyncWorkers bounds how many guilds get their slash commands synced at once.
	SyncWorkers      int           `env:"SYNC_WORKERS" envDefault:"4"`

	GuildBlacklist    []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	InitSlashCommands bool     `env:"INIT_SLASH_COMMANDS" envDefault:"true"`
	// CommandCacheDir empty re-registers every command on each start.
	CommandCacheDir   string   `env:"COMMAND_CACHE_DIR" envDefault:"data/commands"`
}

// Load reads .env files if present, then parses the environment. Variables
// already set in the environment win over the files.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case "json", "sqlite":
	default:
		return fmt.Errorf("STORAGE_DRIVER must be json or sqlite, got %q", c.StorageDriver)
	}
	if c.AutosaveInterval < 0 {
		return fmt.Errorf("SANCTION_AUTOSAVE_INTERVAL must not be negative")
	}
	if c.SyncWorkers < 1 {
		return fmt.Errorf("SYNC_WORKERS must be at least 1, got %d", c.SyncWorkers)
	}
	return nil
}

// Blacklisted reports whether the guild is on the blacklist.
func (c *Config) Blacklisted(guildID int64) bool {
	id := strconv.FormatInt(guildID, 10)
	for _, g := range c.GuildBlacklist {
		if g == id {
			return true
		}
	}
	return false
}
