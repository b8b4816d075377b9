// Package config provides configuration management using viper.
// It supports loading from YAML files, a .env file and environment variable
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"bingo-bot/internal/game/bingo"
)

// Supported chat platforms.
const (
	PlatformTelegram = "telegram"
	PlatformDiscord  = "discord"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Games     GamesConfig     `mapstructure:"games"`
}

// BotConfig holds chat platform configuration.
type BotConfig struct {
	Platform     string  `mapstructure:"platform"`
	Token        string  `mapstructure:"token"`
	DiscordToken string  `mapstructure:"discord_token"`
	SendRate     float64 `mapstructure:"send_rate"`
	SendBurst    int     `mapstructure:"send_burst"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AdminConfig holds admin user configuration.
// IDs are platform user IDs as strings.
type AdminConfig struct {
	IDs []string `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
// Chats are Telegram chat IDs or Discord channel IDs as strings.
type WhitelistConfig struct {
	Chats []string `mapstructure:"chats"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
// An empty Addr disables the endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// GamesConfig holds game-specific configuration.
type GamesConfig struct {
	Bingo BingoConfig `mapstructure:"bingo"`
}

// BingoConfig holds bingo game configuration.
type BingoConfig struct {
	ScoreLimit           int    `mapstructure:"score_limit"`
	TurnTimeoutSeconds   int    `mapstructure:"turn_timeout_seconds"`
	MaxRetries           int    `mapstructure:"max_retries"`
	IdleRounds           int    `mapstructure:"idle_rounds"`
	NotifyTimeoutSeconds int    `mapstructure:"notify_timeout_seconds"`
	Renderer             string `mapstructure:"renderer"`
	AutoPlayerName       string `mapstructure:"auto_player_name"`
}

// Engine converts the settings into the engine's configuration.
// max_retries: 0 disables retries and idle_rounds: 0 never abandons idle games.
func (b BingoConfig) Engine() bingo.Config {
	retries := b.MaxRetries
	if retries <= 0 {
		retries = bingo.NoRetries
	}
	idle := b.IdleRounds
	if idle <= 0 {
		idle = bingo.NeverIdle
	}
	return bingo.Config{
		ScoreLimit:     b.ScoreLimit,
		TurnTimeout:    time.Duration(b.TurnTimeoutSeconds) * time.Second,
		MaxRetries:     retries,
		IdleRounds:     idle,
		NotifyTimeout:  time.Duration(b.NotifyTimeoutSeconds) * time.Second,
		AutoPlayerName: b.AutoPlayerName,
	}
}

// NewRenderer returns the renderer named by the settings.
func (b BingoConfig) NewRenderer() bingo.Renderer {
	if b.Renderer == "image" {
		return bingo.ImageRenderer{}
	}
	return bingo.TextRenderer{}
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory. A .env file in the
// working directory is loaded into the environment first if present.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DATABASE_HOST, GAMES_BINGO_SCORE_LIMIT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.platform", PlatformTelegram)
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.discord_token", "")
	v.SetDefault("bot.send_rate", 20)
	v.SetDefault("bot.send_burst", 5)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "bingo")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "bingo")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("admin.ids", []string{})
	v.SetDefault("whitelist.chats", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("metrics.addr", ":9090")

	// Game defaults
	v.SetDefault("games.bingo.score_limit", bingo.DefaultScoreLimit)
	v.SetDefault("games.bingo.turn_timeout_seconds", int(bingo.DefaultTurnTimeout/time.Second))
	v.SetDefault("games.bingo.max_retries", bingo.DefaultMaxRetries)
	v.SetDefault("games.bingo.idle_rounds", bingo.DefaultIdleRounds)
	v.SetDefault("games.bingo.notify_timeout_seconds", int(bingo.DefaultNotifyTimeout/time.Second))
	v.SetDefault("games.bingo.renderer", "text")
	v.SetDefault("games.bingo.auto_player_name", bingo.DefaultAutoPlayerName)
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Bot.Platform {
	case PlatformTelegram, PlatformDiscord:
	default:
		return fmt.Errorf("unknown bot platform %q", c.Bot.Platform)
	}
	if s := c.Games.Bingo.ScoreLimit; s < 1 || s > bingo.MaxLines {
		return fmt.Errorf("games.bingo.score_limit must be between 1 and %d, got %d", bingo.MaxLines, s)
	}
	if t := c.Games.Bingo.TurnTimeoutSeconds; t < 1 {
		return fmt.Errorf("games.bingo.turn_timeout_seconds must be positive, got %d", t)
	}
	switch c.Games.Bingo.Renderer {
	case "text", "image":
	default:
		return fmt.Errorf("unknown bingo renderer %q", c.Games.Bingo.Renderer)
	}
	return nil
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID string) bool {
	return slices.Contains(c.Admin.IDs, userID)
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID string) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	return slices.Contains(c.Whitelist.Chats, chatID)
}
