package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/puzzlegame/internal/services/lifecycle"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.Log.Level)
	assert.Equal(t, StorageMemory, cfg.Storage.Type)
	assert.Equal(t, 720*time.Hour, cfg.Owner.TTL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Empty(t, cfg.Telemetry.Endpoint)

	policy, err := cfg.CompletionPolicy()
	require.NoError(t, err)
	assert.Equal(t, lifecycle.CompletionIdempotent, policy)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PUZZLE_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORAGE_TYPE", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/p.db")
	t.Setenv("COMPLETION_POLICY", "strict")
	t.Setenv("OWNER_TOKEN_SECRET", "0123456789abcdef0123")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
	assert.Equal(t, StorageSQLite, cfg.Storage.Type)
	assert.Equal(t, "/tmp/p.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "http://collector:4318", cfg.Telemetry.Endpoint)

	policy, err := cfg.CompletionPolicy()
	require.NoError(t, err)
	assert.Equal(t, lifecycle.CompletionStrict, policy)
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("PUZZLE_PORT", "not-an-int")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "parse env:"), err.Error())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown storage", map[string]string{"STORAGE_TYPE": "mongo"}, "STORAGE_TYPE"},
		{"postgres without url", map[string]string{"STORAGE_TYPE": "postgres"}, "DATABASE_URL"},
		{"unknown policy", map[string]string{"COMPLETION_POLICY": "lenient"}, "COMPLETION_POLICY"},
		{"short owner secret", map[string]string{"OWNER_TOKEN_SECRET": "short"}, "OWNER_TOKEN_SECRET"},
		{"port out of range", map[string]string{"PUZZLE_PORT": "70000"}, "PUZZLE_PORT"},
		{"zero hub cleanup", map[string]string{"SSE_HUB_CLEANUP_INTERVAL": "0s"}, "SSE_HUB_CLEANUP_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
