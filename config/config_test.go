package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SobeSobe/internal/game/table"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SOBE_JWT_SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Lobby.PlayerTTL)
	assert.Equal(t, table.DefaultRules(), cfg.Rules())
	assert.Equal(t, "s3cret", C.JWT.Secret)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: redis
redis:
  addr: cache:6379
  db: 2
jwt:
  secret: from-file
  ttl: 1h
lobby:
  player_ttl: 30s
game:
  starting_points: 15
  dealer_rotation: dealer-successor
`)
	t.Setenv("SOBE_GAME_BUY_IN", "50")
	t.Setenv("SOBE_REDIS_ADDR", "redis:6380")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr, "env wins over the file")
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 30*time.Second, cfg.Lobby.PlayerTTL)

	rules := cfg.Rules()
	assert.Equal(t, 15, rules.StartingPoints)
	assert.Equal(t, 50, rules.BuyIn)
	assert.Equal(t, table.RotateDealerSuccessor, rules.DealerRotation)
	assert.Equal(t, 5, rules.HandSize)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"no secret":       "store:\n  driver: memory\n",
		"unknown driver":  "jwt:\n  secret: x\nstore:\n  driver: mongo\n",
		"postgres no dsn": "jwt:\n  secret: x\nstore:\n  driver: postgres\n",
		"bad rotation":    "jwt:\n  secret: x\ngame:\n  dealer_rotation: clockwise\n",
		"zero points":     "jwt:\n  secret: x\ngame:\n  starting_points: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}
