package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOptions(); err != nil {
		return err
	}
	if err := c.validateDiscovery(); err != nil {
		return err
	}
	if err := c.validateTemplates(); err != nil {
		return err
	}
	return c.validateLogging()
}

// ValidateSubmit checks the platform credentials needed for live posting.
// Called by the run path only when submit mode is in effect, so a dry-run
// configuration does not need credentials at all.
func (c *Config) ValidateSubmit() error {
	if !c.Options.Submit {
		return nil
	}
	return c.validateLemmy()
}

func (c *Config) validateOptions() error {
	if err := ensurePositiveMap(map[string]int{
		"options.days":                   c.Options.Days,
		"options.episode_retention_days": c.Options.EpisodeRetention,
		"options.megathread_episodes":    c.Options.MegathreadEpisodes,
	}); err != nil {
		return err
	}
	if c.Options.PostDelayMinutes < 0 {
		return errors.New("options.post_delay_minutes must not be negative")
	}
	if c.Options.MinUpvotes < 0 || c.Options.MinComments < 0 {
		return errors.New("options.min_upvotes and options.min_comments must not be negative")
	}
	if c.Options.EngagementLagHours < 0 {
		return errors.New("options.engagement_lag_hours must not be negative")
	}
	if c.Options.Ratelimit <= 0 {
		return errors.New("options.ratelimit must be positive")
	}
	return nil
}

func (c *Config) validateDiscovery() error {
	if !c.Discovery.Enabled {
		return nil
	}
	if len(c.Discovery.ShowTypes) == 0 {
		return errors.New("discovery.show_types must be set when discovery.enabled is true")
	}
	if len(c.Discovery.Countries) == 0 {
		return errors.New("discovery.countries must be set when discovery.enabled is true")
	}
	return nil
}

func (c *Config) validateLemmy() error {
	for key, value := range map[string]string{
		"lemmy.instance":  c.Lemmy.Instance,
		"lemmy.community": c.Lemmy.Community,
		"lemmy.username":  c.Lemmy.Username,
		"lemmy.password":  c.Lemmy.Password,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set when options.submit is true", key)
		}
	}
	return nil
}

func (c *Config) validateTemplates() error {
	for key, value := range map[string]string{
		"post.title":         c.Post.Title,
		"post.body":          c.Post.Body,
		"megathread.title":   c.Megathread.Title,
		"megathread.body":    c.Megathread.Body,
		"megathread.comment": c.Megathread.Comment,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
