package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./data/location_database.json", cfg.Gazetteer.Path)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 7200, cfg.Cache.TTLSec)
	assert.True(t, cfg.Cache.FlushOnStart)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, 30, cfg.LLM.ConnectTimeoutSec)
	assert.Equal(t, 90, cfg.LLM.ReadTimeoutSec)
	assert.Equal(t, 3, cfg.LLM.MaxAttempts)
	assert.Equal(t, 2, cfg.LLM.BackoffBaseSec)
	assert.True(t, cfg.LLM.VerifySSL)
	assert.Equal(t, 0.5, cfg.Refine.MinConfidence)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CAMPUS_CARD_SERVER_PORT", "9090")
	t.Setenv("CAMPUS_CARD_CACHE_BACKEND", "redis")
	t.Setenv("CAMPUS_CARD_LLM_MAXATTEMPTS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 5, cfg.LLM.MaxAttempts)
}

func TestLoadProviderKeyFallback(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-provider")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-provider", cfg.LLM.APIKey)

	t.Setenv("CAMPUS_CARD_LLM_APIKEY", "sk-prefixed")

	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-prefixed", cfg.LLM.APIKey)
}
