package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFeedColor is stamped onto events from feeds with no configured
// color.
const DefaultFeedColor = "#3b82f6"

// FeedConfig describes a single subscribed calendar feed.
type FeedConfig struct {
	// Name is the label shown next to the feed's events.
	Name string `yaml:"name" json:"name"`
	// URL is the ICS endpoint. Feeds with an empty URL are skipped.
	URL string `yaml:"url" json:"url"`
	// Color is a CSS color for the feed's events.
	Color string `yaml:"color" json:"color"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the dashboard.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the dashboard and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as the display calendar.
	// Empty means the host's local timezone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls the first column of the calendar grid:
	// "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a cron-style schedule (e.g. "*/5 * * * *") for
	// background feed refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// WeeksAhead is the number of future weeks shown on the grid.
	WeeksAhead int `yaml:"weeks_ahead" json:"weeks_ahead"`

	// CacheDir is the base directory for the feed HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// SettingsPath is where the dashboard's settings document lives.
	SettingsPath string `yaml:"settings_path" json:"settings_path"`

	// Feeds is the list of subscribed calendar feeds.
	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     "",
		WeekStart:    "sunday",
		RefreshCron:  "*/5 * * * *",
		WeeksAhead:   4,
		CacheDir:     "./data/feed-cache",
		SettingsPath: "./data/settings.json",
		Feeds:        []FeedConfig{},
		BasicAuth:    nil,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	switch c.WeekStart {
	case "sunday", "monday":
	default:
		c.WeekStart = "sunday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/5 * * * *"
	}
	if c.WeeksAhead <= 0 {
		c.WeeksAhead = 4
	}
	if c.CacheDir == "" {
		c.CacheDir = "./data/feed-cache"
	}
	if c.SettingsPath == "" {
		c.SettingsPath = "./data/settings.json"
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	for i := range c.Feeds {
		if c.Feeds[i].Color == "" {
			c.Feeds[i].Color = DefaultFeedColor
		}
	}
}

// Load loads configuration from the given YAML path. A missing file is a
// first run: the default config is written (0600) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration to path atomically (temp file + rename)
// with 0600 permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".homeboard-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
