package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "restforge API", cfg.Title)
	assert.Equal(t, "/api", cfg.API.Prefix)
	assert.Equal(t, 20, cfg.API.DefaultLimit)
	assert.Equal(t, "hybrid", cfg.API.SerializationMode)
	assert.Equal(t, DefaultDump(), cfg.API.Dump)
	assert.Equal(t, 6000, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Docs.Enabled)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("API_PREFIX", "/v2")
	t.Setenv("API_READ_ONLY", "true")
	t.Setenv("API_STRICT", "true")
	t.Setenv("API_SERIALIZATION_TYPE", "json")
	t.Setenv("API_CONVERT_TO_CAMEL_CASE", "true")
	t.Setenv("API_ALLOW_CASCADE_DELETE", "true")
	t.Setenv("API_PAGINATION_SIZE_DEFAULT", "10")
	t.Setenv("API_PAGINATION_SIZE_MAX", "50")
	t.Setenv("API_RATE_LIMIT", "9")
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("AUTH_METHOD", "jwt")
	t.Setenv("AUTH_SECRET", "hush")
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("SERVER_PORT", "8080")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/v2", cfg.API.Prefix)
	assert.True(t, cfg.API.ReadOnly)
	assert.True(t, cfg.API.Strict)
	assert.Equal(t, "json", cfg.API.SerializationMode)
	assert.True(t, cfg.API.CamelCase)
	assert.True(t, cfg.API.CascadeDelete)
	assert.Equal(t, 10, cfg.API.DefaultLimit)
	assert.Equal(t, 50, cfg.API.MaxLimit)
	assert.Equal(t, 9, cfg.RateLimit.RequestsPerMinute)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "jwt", cfg.Auth.Method)
	assert.Equal(t, "hush", cfg.Auth.Secret)
	assert.Equal(t, "postgres://localhost/app", cfg.Database.URL)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvAliases(t *testing.T) {
	t.Setenv("API_SERIALIZATION_MODE", "none")
	t.Setenv("API_DEFAULT_LIMIT", "5")
	t.Setenv("API_AUTHENTICATE_METHOD", "basic")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "none", cfg.API.SerializationMode)
	assert.Equal(t, 5, cfg.API.DefaultLimit)
	assert.Equal(t, "basic", cfg.Auth.Method)
}

func TestLoadEnvDumpToggles(t *testing.T) {
	t.Setenv("API_DUMP_DATETIME", "false")
	t.Setenv("API_DUMP_STATUS_CODE", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.API.Dump.Datetime)
	assert.False(t, cfg.API.Dump.StatusCode)
	assert.True(t, cfg.API.Dump.APIVersion)
	assert.True(t, cfg.API.Dump.TotalCount)
}

func TestLoadValidation(t *testing.T) {
	t.Run("prefix must start with slash", func(t *testing.T) {
		t.Setenv("API_PREFIX", "api")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("default limit within max", func(t *testing.T) {
		t.Setenv("API_PAGINATION_SIZE_DEFAULT", "200")
		t.Setenv("API_PAGINATION_SIZE_MAX", "100")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("jwt requires secret", func(t *testing.T) {
		t.Setenv("AUTH_METHOD", "jwt")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown auth method", func(t *testing.T) {
		t.Setenv("AUTH_METHOD", "oauth")
		_, err := Load()
		assert.Error(t, err)
	})
}
