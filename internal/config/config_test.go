package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"bingo-bot/internal/game/bingo"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, PlatformTelegram, cfg.Bot.Platform)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, bingo.DefaultScoreLimit, cfg.Games.Bingo.ScoreLimit)
	assert.Equal(t, "text", cfg.Games.Bingo.Renderer)

	ec := cfg.Games.Bingo.Engine()
	assert.Equal(t, bingo.DefaultTurnTimeout, ec.TurnTimeout)
	assert.Equal(t, bingo.DefaultMaxRetries, ec.MaxRetries)
	assert.Equal(t, bingo.DefaultAutoPlayerName, ec.AutoPlayerName)
}

func TestLoadFile(t *testing.T) {
	dir := writeConfig(t, `
bot:
  platform: discord
  discord_token: abc
admin:
  ids: ["42"]
whitelist:
  chats: ["-100", "200"]
games:
  bingo:
    score_limit: 3
    turn_timeout_seconds: 45
    renderer: image
`)
	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, PlatformDiscord, cfg.Bot.Platform)
	assert.Equal(t, "abc", cfg.Bot.DiscordToken)
	assert.True(t, cfg.IsAdmin("42"))
	assert.False(t, cfg.IsAdmin("43"))
	assert.True(t, cfg.IsChatAllowed("-100"))
	assert.False(t, cfg.IsChatAllowed("-101"))
	assert.Equal(t, 3, cfg.Games.Bingo.Engine().ScoreLimit)
	assert.Equal(t, 45*time.Second, cfg.Games.Bingo.Engine().TurnTimeout)
	assert.IsType(t, bingo.ImageRenderer{}, cfg.Games.Bingo.NewRenderer())
}

func TestLoadDisablesRetriesAndIdleAbandon(t *testing.T) {
	cfg, err := Load(writeConfig(t, "games:\n  bingo:\n    max_retries: 0\n    idle_rounds: 0\n"))
	require.NoError(t, err)

	ec := cfg.Games.Bingo.Engine()
	assert.Equal(t, bingo.NoRetries, ec.MaxRetries)
	assert.Equal(t, bingo.NeverIdle, ec.IdleRounds)

	defaults, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, bingo.DefaultIdleRounds, defaults.Games.Bingo.Engine().IdleRounds)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("GAMES_BINGO_SCORE_LIMIT", "2")

	cfg, err := Load(writeConfig(t, "games:\n  bingo:\n    score_limit: 4\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Bot.Token)
	assert.Equal(t, 2, cfg.Games.Bingo.ScoreLimit)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown platform", "bot:\n  platform: irc\n"},
		{"score limit too high", "games:\n  bingo:\n    score_limit: 13\n"},
		{"zero timeout", "games:\n  bingo:\n    turn_timeout_seconds: 0\n"},
		{"unknown renderer", "games:\n  bingo:\n    renderer: ascii\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5433, Name: "n"}
	assert.Equal(t, "postgres://u:p@h:5433/n?sslmode=disable", d.DSN())
}

// TestWhitelistEmptyAllowsAllProperty checks that an empty whitelist lets
// every chat through.
func TestWhitelistEmptyAllowsAllProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := &Config{}
		chat := rapid.String().Draw(t, "chat")
		if !cfg.IsChatAllowed(chat) {
			t.Fatalf("empty whitelist rejected chat %q", chat)
		}
	})
}
