package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"querycal/internal/calendar"
)

// Source kinds.
const (
	SourceICS  = "ics"
	SourceJSON = "json"
	SourceCSV  = "csv"
)

// ICSConfig describes a single ICS subscription feed.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup, logging and the
	// "calendar" column of produced rows.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// SourceConfig selects where query results come from.
type SourceConfig struct {
	// Kind is one of "ics", "json" or "csv".
	Kind string `yaml:"kind" json:"kind"`

	// ICS feeds, used when Kind is "ics".
	ICS []ICSConfig `yaml:"ics,omitempty" json:"ics,omitempty"`

	// URL or Path locate the JSON/CSV document. URL wins when both are set.
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// RowsPath is a gjson path selecting the row array inside a JSON
	// document, e.g. "query_result.data.rows". Empty means the document
	// itself is the array.
	RowsPath string `yaml:"rows_path,omitempty" json:"rows_path,omitempty"`

	// HorizonDays / BackfillDays bound ICS recurrence expansion.
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days"`
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// CacheDir holds the ICS HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for timestamps without an offset.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron schedule (e.g. "*/15 * * * *") for re-fetching
	// the source.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Source SourceConfig `yaml:"source" json:"source"`

	// Calendar holds the editor options: column mapping and display flags.
	Calendar calendar.Options `yaml:"calendar" json:"calendar"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen   = "127.0.0.1:8080"
	defaultTimezone = "UTC"
	defaultRefresh  = "*/15 * * * *"
	defaultCacheDir = "./var/ics-cache"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		RefreshCron: defaultRefresh,
		Source: SourceConfig{
			Kind:         SourceICS,
			ICS:          []ICSConfig{},
			HorizonDays:  30,
			BackfillDays: 7,
			CacheDir:     defaultCacheDir,
		},
		Calendar: calendar.DefaultOptions(),
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}

	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	if c.Source.Kind == "" {
		c.Source.Kind = SourceICS
	}
	if c.Source.ICS == nil {
		c.Source.ICS = []ICSConfig{}
	}
	if c.Source.HorizonDays <= 0 {
		c.Source.HorizonDays = 30
	}
	if c.Source.BackfillDays < 0 {
		c.Source.BackfillDays = 0
	}
	if c.Source.CacheDir == "" {
		c.Source.CacheDir = defaultCacheDir
	}

	c.Calendar.Normalize()
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceICS:
	case SourceJSON, SourceCSV:
		if c.Source.URL == "" && c.Source.Path == "" {
			return errors.Errorf("source %s: url or path is required", c.Source.Kind)
		}
	default:
		return errors.Errorf("unknown source kind %q", c.Source.Kind)
	}
	return errors.Wrap(c.Calendar.Validate(), "calendar options")
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is decoded over the defaults and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, errors.Wrap(err, "read config")
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
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
		return errors.Wrap(err, "create config dir")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}

	tmp, err := os.CreateTemp(dir, ".querycal-config-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp config")
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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

	return errors.Wrap(os.Rename(tmpName, path), "replace config")
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
