package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// TokenEnv names the environment variable that supplies a Google access
// token when the config file does not carry one.
const TokenEnv = "MEMOCAL_GOOGLE_TOKEN"

// GoogleConfig describes the optional Google Calendar sync target.
type GoogleConfig struct {
	// CalendarID is the target calendar ("primary" by default).
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`
	// AccessToken is an OAuth2 access token obtained out of band. Empty
	// means anonymous/local-only mode.
	AccessToken string `yaml:"access_token" json:"-"`
	// RequestsPerSecond throttles calls to the Calendar API.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
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

	// Timezone is the IANA timezone all wall-clock times are resolved in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Locale selects the temporal grammar ("ja").
	Locale string `yaml:"locale" json:"locale"`

	// DebounceMillis is the quiescence delay before an extraction pass.
	DebounceMillis int `yaml:"debounce_ms" json:"debounce_ms"`

	// DefaultDurationMinutes is added to a start time when a mention has no end.
	DefaultDurationMinutes int `yaml:"default_duration_minutes" json:"default_duration_minutes"`

	// DefaultTitle is used when no title can be derived from the note.
	DefaultTitle string `yaml:"default_title" json:"default_title"`

	// DefaultTarget is the sync target used when a request does not name one:
	//   - "google" (default; falls back to file export without a credential)
	//   - "file"
	DefaultTarget string `yaml:"default_target" json:"default_target"`

	// ExportDir is where calendar files for the file target are written.
	ExportDir string `yaml:"export_dir" json:"export_dir"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used to re-list remote events into the session.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// ListWindowDays bounds how far ahead remote events are listed.
	ListWindowDays int `yaml:"list_window_days" json:"list_window_days"`

	// LogLevel is one of "debug", "info", "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	Google GoogleConfig `yaml:"google" json:"google"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                 "127.0.0.1:8080",
		Timezone:               "Asia/Tokyo",
		Locale:                 "ja",
		DebounceMillis:         500,
		DefaultDurationMinutes: 60,
		DefaultTitle:           "予定",
		DefaultTarget:          "google",
		ExportDir:              "./var/exports",
		RefreshCron:            "*/15 * * * *",
		ListWindowDays:         30,
		LogLevel:               "info",
		Google: GoogleConfig{
			CalendarID:        "primary",
			RequestsPerSecond: 5,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.Locale == "" {
		c.Locale = def.Locale
	}
	if c.DebounceMillis <= 0 {
		c.DebounceMillis = def.DebounceMillis
	}
	if c.DefaultDurationMinutes <= 0 {
		c.DefaultDurationMinutes = def.DefaultDurationMinutes
	}
	if c.DefaultTitle == "" {
		c.DefaultTitle = def.DefaultTitle
	}
	switch c.DefaultTarget {
	case "google", "file":
		// ok
	case "apple":
		c.DefaultTarget = "file"
	default:
		c.DefaultTarget = def.DefaultTarget
	}
	if c.ExportDir == "" {
		c.ExportDir = def.ExportDir
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.ListWindowDays <= 0 {
		c.ListWindowDays = def.ListWindowDays
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Google.CalendarID == "" {
		c.Google.CalendarID = def.Google.CalendarID
	}
	if c.Google.RequestsPerSecond <= 0 {
		c.Google.RequestsPerSecond = def.Google.RequestsPerSecond
	}
}

// Debounce returns the debounce delay as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMillis) * time.Millisecond
}

// DefaultDuration returns the default event length.
func (c *Config) DefaultDuration() time.Duration {
	return time.Duration(c.DefaultDurationMinutes) * time.Minute
}

// Location resolves Timezone, falling back to time.Local when the name is
// unknown to the tz database.
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

// GoogleToken returns the configured access token, preferring the config
// file and falling back to the TokenEnv environment variable.
func (c *Config) GoogleToken() string {
	if c.Google.AccessToken != "" {
		return c.Google.AccessToken
	}
	return os.Getenv(TokenEnv)
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
			// First run: create default config file.
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

// Save writes the given configuration to the specified path atomically
// (temp file in the same directory, then rename) with 0600 permissions.
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

	tmp, err := os.CreateTemp(dir, ".memocal-config-*.tmp")
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
