package testsupport

import (
	"path/filepath"
	"testing"

	"airpost/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Submit is disabled so tests never attempt live posting by accident.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Options.Submit = false

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithSubmit enables live posting on the test config.
func WithSubmit() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Options.Submit = true
		cfg.Lemmy.Instance = "lemmy.test"
		cfg.Lemmy.Community = "anime"
		cfg.Lemmy.Username = "bot"
		cfg.Lemmy.Password = "secret"
	}
}

// WithMegathreadCapacity overrides the episodes-per-megathread limit.
func WithMegathreadCapacity(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Options.MegathreadEpisodes = n
	}
}
