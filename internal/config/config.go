package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ICSConfig describes a single ICS subscription whose events are merged into
// the calendar document.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Category is assigned to every event of this feed that has no
	// CATEGORIES property of its own.
	Category string `yaml:"category" json:"category"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// CaptureConfig controls the headless-browser PNG capture of /calendar.
type CaptureConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	OutputPath string `yaml:"output_path" json:"output_path"`
	Width      int    `yaml:"width" json:"width"`
	Height     int    `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone the grid is laid out in. Empty means the
	// local zone of the host.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CalendarSource and CategoriesSource are file paths or http(s) URLs of
	// the two JSON documents.
	CalendarSource   string `yaml:"calendar_source" json:"calendar_source"`
	CategoriesSource string `yaml:"categories_source" json:"categories_source"`

	// CacheDir holds ETag/Last-Modified metadata and bodies of remote sources.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used to reload the documents.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// TickInterval is the period of the live maintenance counters.
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// ICSBackfillDays / ICSHorizonDays bound recurrence expansion of ICS
	// feeds around the current time.
	ICSBackfillDays int `yaml:"ics_backfill_days" json:"ics_backfill_days"`
	ICSHorizonDays  int `yaml:"ics_horizon_days" json:"ics_horizon_days"`

	// CategoryClasses adds or overrides category → bar class mappings.
	CategoryClasses map[string]string `yaml:"category_classes" json:"category_classes"`

	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen           = "127.0.0.1:8080"
	defaultLogLevel         = "info"
	defaultCalendarSource   = "./assets/calendar.json"
	defaultCategoriesSource = "./assets/categories.json"
	defaultCacheDir         = "./var/cache"
	defaultRefreshCron      = "*/15 * * * *"
	defaultTickInterval     = time.Second
	defaultBackfillDays     = 400
	defaultHorizonDays      = 60
	defaultCapturePath      = "./var/preview.png"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:           defaultListen,
		LogLevel:         defaultLogLevel,
		CalendarSource:   defaultCalendarSource,
		CategoriesSource: defaultCategoriesSource,
		CacheDir:         defaultCacheDir,
		RefreshCron:      defaultRefreshCron,
		TickInterval:     defaultTickInterval,
		ICS:              []ICSConfig{},
		ICSBackfillDays:  defaultBackfillDays,
		ICSHorizonDays:   defaultHorizonDays,
		CategoryClasses:  map[string]string{},
		Capture: CaptureConfig{
			OutputPath: defaultCapturePath,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.CalendarSource == "" {
		c.CalendarSource = defaultCalendarSource
	}
	if c.CategoriesSource == "" {
		c.CategoriesSource = defaultCategoriesSource
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.ICSBackfillDays < 0 {
		c.ICSBackfillDays = 0
	}
	if c.ICSHorizonDays <= 0 {
		c.ICSHorizonDays = defaultHorizonDays
	}
	if c.CategoryClasses == nil {
		c.CategoryClasses = map[string]string{}
	}
	if c.Capture.OutputPath == "" {
		c.Capture.OutputPath = defaultCapturePath
	}
}

// Location resolves Timezone. An empty or unknown zone yields time.Local
// together with the lookup error, if any.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
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

// Save writes the given configuration to the specified path atomically via a
// temp file in the same directory, with 0600 permissions.
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

	tmp, err := os.CreateTemp(dir, ".calgrid-config-*.tmp")
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

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
