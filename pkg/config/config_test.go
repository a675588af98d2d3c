package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkolev/warrantyhub/pkg/observability"
)

func TestGetEnv(t *testing.T) {
	t.Run("returns env value when set", func(t *testing.T) {
		t.Setenv("TEST_VAR", "custom")
		assert.Equal(t, "custom", getEnv("TEST_VAR", "default"))
	})

	t.Run("returns default when env not set", func(t *testing.T) {
		assert.Equal(t, "default", getEnv("TEST_VAR_NOT_SET", "default"))
	})
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_BOOL_ONE", "1")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_BAD", "not-a-number")
	t.Setenv("TEST_DURATION", "90s")

	assert.True(t, getEnvBool("TEST_BOOL", false))
	assert.True(t, getEnvBool("TEST_BOOL_ONE", false))
	assert.False(t, getEnvBool("TEST_BOOL_NOT_SET", false))
	assert.Equal(t, 42, getEnvInt("TEST_INT", 0))
	assert.Equal(t, 7, getEnvInt("TEST_INT_BAD", 7))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DURATION", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("TEST_DURATION_NOT_SET", time.Minute))
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults with required values", func(t *testing.T) {
		t.Setenv("WHUB_POSTGRES_URL", "postgres://localhost/warrantyhub")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, "s3", cfg.Blob.Type)
		assert.Equal(t, 10, cfg.Auth.BcryptCost)
		assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL)
		assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	})

	t.Run("missing postgres URL fails validation", func(t *testing.T) {
		os.Unsetenv("WHUB_POSTGRES_URL")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("filesystem blob store requires a root", func(t *testing.T) {
		t.Setenv("WHUB_POSTGRES_URL", "postgres://localhost/warrantyhub")
		t.Setenv("WHUB_BLOB_TYPE", "filesystem")

		_, err := LoadConfig()
		require.Error(t, err)

		t.Setenv("WHUB_FILESYSTEM_ROOT", "/tmp/blobs")
		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/blobs", cfg.Blob.FilesystemRoot)
	})

	t.Run("unknown blob type rejected", func(t *testing.T) {
		t.Setenv("WHUB_POSTGRES_URL", "postgres://localhost/warrantyhub")
		t.Setenv("WHUB_BLOB_TYPE", "carrier-pigeon")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}
