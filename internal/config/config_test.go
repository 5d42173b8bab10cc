package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("GEMINI_API_KEY", "")

	envFound, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, envFound)

	assert.Equal(t, "9100", AppConfig.HTTPPort)
	assert.Equal(t, "http://127.0.0.1:9100", AppConfig.ServerURL)
	assert.Equal(t, 60*time.Second, AppConfig.RequestTimeout)
	assert.Equal(t, 4, AppConfig.RevealChunkSize)
	assert.Equal(t, 20*time.Millisecond, AppConfig.RevealInterval)
	assert.NotEmpty(t, AppConfig.IdentityFile)
	assert.Error(t, AppConfig.ValidateServer())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("ASSISTANT_SERVER_URL", "http://assistant:8080")
	t.Setenv("ASSISTANT_REQUEST_TIMEOUT", "5s")
	t.Setenv("ASSISTANT_REVEAL_CHUNK", "8")
	t.Setenv("ASSISTANT_REVEAL_INTERVAL", "not-a-duration")

	_, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://assistant:8080", AppConfig.ServerURL)
	assert.Equal(t, 5*time.Second, AppConfig.RequestTimeout)
	assert.Equal(t, 8, AppConfig.RevealChunkSize)
	assert.Equal(t, 20*time.Millisecond, AppConfig.RevealInterval)
	assert.NoError(t, AppConfig.ValidateServer())
}
