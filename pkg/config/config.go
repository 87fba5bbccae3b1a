package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/harrisonrobin/taskcal/pkg/colors"
	"github.com/harrisonrobin/taskcal/pkg/source"
)

const (
	xdgAppName = "taskcal"
	configFile = "config.yaml"

	DefaultCalendar     = "Tasks"
	DefaultListen       = ":8080"
	DefaultTimezone     = "UTC"
	DefaultSyncCron     = "*/15 * * * *"
	DefaultBackfillDays = 30
	DefaultHorizonDays  = 90
)

// Source is the tasks endpoint to read from.
type Source struct {
	URL string `yaml:"url"`
	// DataType "tasks" marks the endpoint as a tasks source whatever its URL.
	DataType string            `yaml:"data_type,omitempty"`
	Data     map[string]string `yaml:"data,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
}

type Config struct {
	Calendar     string         `yaml:"calendar"`
	Listen       string         `yaml:"listen"`
	Timezone     string         `yaml:"timezone"`
	SyncCron     string         `yaml:"sync_cron"`
	BackfillDays int            `yaml:"backfill_days"`
	HorizonDays  int            `yaml:"horizon_days"`
	AcceptScript string         `yaml:"accept_script,omitempty"`
	Source       Source         `yaml:"source"`
	Palette      colors.Palette `yaml:"palette"`
}

// Default returns a config with every optional field filled in.
func Default() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// GetConfigDir is where the config, OAuth credentials and sync state live.
func GetConfigDir() (string, error) {
	xdgHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(xdgHome, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the config at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// Normalize fills empty fields with defaults.
func (c *Config) Normalize() {
	if c.Calendar == "" {
		c.Calendar = DefaultCalendar
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.SyncCron == "" {
		c.SyncCron = DefaultSyncCron
	}
	if c.BackfillDays <= 0 {
		c.BackfillDays = DefaultBackfillDays
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	c.Palette = c.Palette.WithDefaults()
}

// Validate checks the palette, schedule and timezone.
func (c *Config) Validate() error {
	if err := c.Palette.Validate(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.SyncCron); err != nil {
		return fmt.Errorf("invalid sync_cron %q: %w", c.SyncCron, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// SourceOptions builds the fetcher options for the configured source.
func (c *Config) SourceOptions() source.Options {
	return source.Options{
		URL:      c.Source.URL,
		DataType: c.Source.DataType,
		Data:     c.Source.Data,
		Header:   c.Source.Headers,
	}
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
