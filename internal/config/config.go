package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Options contains the knobs that drive the posting pipeline.
type Options struct {
	Days               int  `toml:"days"`
	PostDelayMinutes   int  `toml:"post_delay_minutes"`
	EpisodeRetention   int  `toml:"episode_retention_days"`
	MinUpvotes         int  `toml:"min_upvotes"`
	MinComments        int  `toml:"min_comments"`
	EngagementLagHours int  `toml:"engagement_lag_hours"`
	DisableInactive    bool `toml:"disable_inactive"`
	MegathreadEpisodes int  `toml:"megathread_episodes"`
	Ratelimit          int  `toml:"ratelimit"`
	Submit             bool `toml:"submit"`
}

// Discovery contains configuration for automatic show admission.
type Discovery struct {
	Enabled        bool     `toml:"enabled"`
	ShowTypes      []string `toml:"show_types"`
	Countries      []string `toml:"countries"`
	AllowNSFW      bool     `toml:"allow_nsfw"`
	DefaultEnabled bool     `toml:"default_enabled"`
}

// AniList contains configuration for the metadata lookup service.
type AniList struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Lemmy contains configuration for the discussion platform.
type Lemmy struct {
	Instance       string `toml:"instance"`
	Community      string `toml:"community"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Post contains the standalone discussion post templates.
type Post struct {
	Title            string            `toml:"title"`
	TitleWithEN      string            `toml:"title_with_en"`
	MovieTitle       string            `toml:"movie_title"`
	MovieTitleWithEN string            `toml:"movie_title_with_en"`
	Body             string            `toml:"body"`
	Formats          map[string]string `toml:"formats"`
}

// Megathread contains the rolling megathread templates and capacity.
type Megathread struct {
	Title       string `toml:"title"`
	TitleWithEN string `toml:"title_with_en"`
	Body        string `toml:"body"`
	Comment     string `toml:"comment"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for airpost.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Options: pipeline thresholds and timing
//   - Discovery: automatic show admission filters
//   - AniList: metadata lookup endpoint
//   - Lemmy: discussion platform credentials
//   - Post / Megathread: discussion text templates
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Options    Options    `toml:"options"`
	Discovery  Discovery  `toml:"discovery"`
	AniList    AniList    `toml:"anilist"`
	Lemmy      Lemmy      `toml:"lemmy"`
	Post       Post       `toml:"post"`
	Megathread Megathread `toml:"megathread"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/airpost/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("airpost.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the path of the SQLite state store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "airpost.db")
}

// LockPath returns the path of the run lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "airpost.lock")
}

// PostDelay returns how long after an episode airs before it becomes due.
func (c *Config) PostDelay() time.Duration {
	return time.Duration(c.Options.PostDelayMinutes) * time.Minute
}

// EpisodeRetention returns how long an unposted episode is kept past its air time.
func (c *Config) EpisodeRetention() time.Duration {
	return time.Duration(c.Options.EpisodeRetention) * 24 * time.Hour
}

// EngagementLag returns the minimum thread age before engagement counts are trusted.
func (c *Config) EngagementLag() time.Duration {
	return time.Duration(c.Options.EngagementLagHours) * time.Hour
}

// LookaheadWindow returns the schedule lookup window.
func (c *Config) LookaheadWindow() time.Duration {
	return time.Duration(c.Options.Days) * 24 * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
