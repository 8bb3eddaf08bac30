package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAPIURL  = "http://localhost:8000/api"
	defaultTimeout = 10 * time.Second
	sessionDBFile  = "session.db"
)

type Config struct {
	APIURL      string
	StateDir    string
	HTTPTimeout time.Duration
	LogLevel    string
}

// Load reads .env (if present) and then the process environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Printf("notice: .env not loaded: %v", err)
	}

	return Config{
		APIURL:      strings.TrimRight(EnvDefault("LIBRARY_API_URL", defaultAPIURL), "/"),
		StateDir:    EnvDefault("LIBRARY_STATE_DIR", defaultStateDir()),
		HTTPTimeout: EnvDurationDefault("LIBRARY_HTTP_TIMEOUT", defaultTimeout),
		LogLevel:    EnvDefault("LOG_LEVEL", "warn"),
	}
}

// SessionDBPath is where the durable session triple lives.
func (c Config) SessionDBPath() string {
	return filepath.Join(c.StateDir, sessionDBFile)
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".library"
	}
	return filepath.Join(home, ".library")
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
