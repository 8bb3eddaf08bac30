package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LIBRARY_API_URL", "")
	t.Setenv("LIBRARY_STATE_DIR", "/tmp/library-state")
	t.Setenv("LIBRARY_HTTP_TIMEOUT", "")
	t.Setenv("LOG_LEVEL", "")

	cfg := Load()

	assert.Equal(t, defaultAPIURL, cfg.APIURL)
	assert.Equal(t, defaultTimeout, cfg.HTTPTimeout)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, filepath.Join("/tmp/library-state", "session.db"), cfg.SessionDBPath())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LIBRARY_API_URL", "https://library.example.com/api/")
	t.Setenv("LIBRARY_HTTP_TIMEOUT", "3s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	assert.Equal(t, "https://library.example.com/api", cfg.APIURL)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvDurationDefault_Invalid(t *testing.T) {
	t.Setenv("SOME_TIMEOUT", "soon")
	assert.Equal(t, time.Minute, EnvDurationDefault("SOME_TIMEOUT", time.Minute))

	t.Setenv("SOME_TIMEOUT", "-5s")
	assert.Equal(t, time.Minute, EnvDurationDefault("SOME_TIMEOUT", time.Minute))
}
