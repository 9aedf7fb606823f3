// Package config provides configuration loading for patronlink.
//
// Configuration is read from a single YAML file. Tiers may additionally be
// declared with ROLE_IDS_<TIER> environment variables holding a " - "
// separated list of Discord role IDs.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/bodgit/patronlink/avatar"
	"gopkg.in/yaml.v3"
)

const (
	// EnvTierPrefix prefixes environment variables declaring tiers.
	EnvTierPrefix = "ROLE_IDS_"

	roleSeparator = " - "
)

// Config is the patronlink configuration.
type Config struct {
	// Database is the path of the sqlite link database.
	Database string `yaml:"database"`

	// State is the path of the export checkpoint database.
	State string `yaml:"state"`

	// Interval is the time between sync cycles.
	// Default: 5m
	Interval time.Duration `yaml:"interval"`

	// StartupDelay is the time before the first sync cycle.
	// Default: 5s
	StartupDelay time.Duration `yaml:"startup_delay"`

	// BusyTimeout is how long a sync cycle may run before another one is
	// allowed to start anyway.
	// Default: 10m
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// TempDir holds images between encoding and uploading. Empty means the
	// system default.
	TempDir string `yaml:"temp_dir"`

	// Workers is the number of concurrent uploads.
	// Default: 2
	Workers int `yaml:"workers"`

	// Avatars lists the avatar IDs images are uploaded to, in chain order.
	// The first is the one read by the consumer.
	Avatars []string `yaml:"avatars"`

	// Tiers lists the exported tiers in order.
	Tiers []Tier `yaml:"tiers"`

	Upload UploadConfig `yaml:"upload"`
	Log    LogConfig    `yaml:"log"`
}

// Tier maps a tier name to the Discord roles granting it.
type Tier struct {
	Name  string   `yaml:"name"`
	Roles []string `yaml:"roles"`
}

// UploadConfig configures where images are uploaded. URL takes precedence
// over Directory.
type UploadConfig struct {
	// Directory stores images locally as <avatar id>.png.
	Directory string `yaml:"directory"`

	// URL is a template with "{id}" replaced by the avatar ID. Images are
	// sent with PUT.
	URL string `yaml:"url"`

	// Timeout bounds each upload request.
	// Default: 1m
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Directory receives a log file per run. Empty disables file logging.
	Directory string `yaml:"directory"`

	// Timezone is used for log file timestamps.
	// Default: Local
	Timezone string `yaml:"timezone"`

	// Level is one of debug, info, warn or error.
	// Default: info
	Level string `yaml:"level"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Database:     "patronlink.db",
		State:        "patronlink.state",
		Interval:     5 * time.Minute,
		StartupDelay: 5 * time.Second,
		BusyTimeout:  10 * time.Minute,
		Workers:      2,
		Upload: UploadConfig{
			Timeout: time.Minute,
		},
		Log: LogConfig{
			Timezone: "Local",
			Level:    "info",
		},
	}
}

// Load reads the configuration file at path over the defaults, adds any
// tiers from environ and validates the result. An empty path skips the file.
func Load(path string, environ []string) (*Config, error) {
	c := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	c.AddEnvironmentTiers(environ)

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// AddEnvironmentTiers adds roles from ROLE_IDS_<TIER> variables in environ,
// appending to an existing tier of the same name or adding a new tier.
// Variables are applied in sorted order.
func (c *Config) AddEnvironmentTiers(environ []string) {
	var vars []string
	for _, kv := range environ {
		if strings.HasPrefix(kv, EnvTierPrefix) {
			vars = append(vars, kv)
		}
	}
	sort.Strings(vars)

	for _, kv := range vars {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		name := strings.TrimPrefix(k, EnvTierPrefix)
		if name == "" {
			continue
		}

		var roles []string
		for _, r := range strings.Split(v, roleSeparator) {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}

		c.addTier(name, roles)
	}
}

func (c *Config) addTier(name string, roles []string) {
	for i := range c.Tiers {
		if c.Tiers[i].Name == name {
			c.Tiers[i].Roles = append(c.Tiers[i].Roles, roles...)
			return
		}
	}
	c.Tiers = append(c.Tiers, Tier{Name: name, Roles: roles})
}

// Validate checks the configuration for mistakes.
func (c *Config) Validate() error {
	var errs []error

	if c.Database == "" {
		errs = append(errs, errors.New("config: database is not set"))
	}
	if c.State == "" {
		errs = append(errs, errors.New("config: state is not set"))
	}
	if c.Interval <= 0 {
		errs = append(errs, errors.New("config: interval must be positive"))
	}
	if c.Workers < 1 {
		errs = append(errs, errors.New("config: workers must be at least 1"))
	}

	if len(c.Avatars) == 0 {
		errs = append(errs, errors.New("config: no avatars"))
	}
	seen := make(map[string]struct{})
	for _, a := range c.Avatars {
		if _, err := avatar.ParseID(a); err != nil {
			errs = append(errs, fmt.Errorf("config: avatar %q: %w", a, err))
		}
		if _, ok := seen[a]; ok {
			errs = append(errs, fmt.Errorf("config: avatar %q listed twice", a))
		}
		seen[a] = struct{}{}
	}

	if len(c.Tiers) == 0 {
		errs = append(errs, errors.New("config: no tiers"))
	}
	names := make(map[string]struct{})
	for _, t := range c.Tiers {
		if t.Name == "" || strings.ContainsAny(t.Name, ".\n") {
			errs = append(errs, fmt.Errorf("config: invalid tier name %q", t.Name))
		}
		if _, ok := names[t.Name]; ok {
			errs = append(errs, fmt.Errorf("config: tier %q listed twice", t.Name))
		}
		names[t.Name] = struct{}{}
		if len(t.Roles) == 0 {
			errs = append(errs, fmt.Errorf("config: tier %q has no roles", t.Name))
		}
	}

	if c.Upload.Directory == "" && c.Upload.URL == "" {
		errs = append(errs, errors.New("config: no upload directory or url"))
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("config: timezone: %w", err))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, fmt.Errorf("config: level: %w", err))
	}

	return errors.Join(errs...)
}

// Slots returns the parsed avatar IDs.
func (c *Config) Slots() ([]avatar.ID, error) {
	slots := make([]avatar.ID, 0, len(c.Avatars))
	for _, a := range c.Avatars {
		id, err := avatar.ParseID(a)
		if err != nil {
			return nil, err
		}
		slots = append(slots, id)
	}
	return slots, nil
}

// Location returns the log timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Log.Timezone)
}

// Level returns the log level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.Log.Level))
	return l, err
}
