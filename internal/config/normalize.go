package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDiscovery()
	c.normalizeEndpoints()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDiscovery() {
	types := make([]string, 0, len(c.Discovery.ShowTypes))
	for _, t := range c.Discovery.ShowTypes {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			types = append(types, t)
		}
	}
	c.Discovery.ShowTypes = types

	countries := make([]string, 0, len(c.Discovery.Countries))
	for _, country := range c.Discovery.Countries {
		country = strings.ToUpper(strings.TrimSpace(country))
		if country != "" {
			countries = append(countries, country)
		}
	}
	c.Discovery.Countries = countries
}

func (c *Config) normalizeEndpoints() {
	c.AniList.BaseURL = strings.TrimRight(strings.TrimSpace(c.AniList.BaseURL), "/")
	if c.AniList.BaseURL == "" {
		c.AniList.BaseURL = defaultAniListBaseURL
	}
	if c.AniList.RequestTimeout <= 0 {
		c.AniList.RequestTimeout = defaultRequestTimeout
	}

	c.Lemmy.Instance = strings.TrimSpace(c.Lemmy.Instance)
	c.Lemmy.Community = strings.TrimSpace(c.Lemmy.Community)
	c.Lemmy.Username = strings.TrimSpace(c.Lemmy.Username)
	if c.Lemmy.RequestTimeout <= 0 {
		c.Lemmy.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
