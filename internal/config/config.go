// Package config loads the application configuration for the binaries: a
// YAML file with environment-variable overrides, so container deployments
// can run without any file at all.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"church-attendance/internal/ccb"
)

// UpstreamConfig holds the upstream API connection settings.
type UpstreamConfig struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	PageSize       int    `yaml:"page_size"`
	Concurrency    int    `yaml:"concurrency"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	DetailPath     string `yaml:"detail_path"`
}

// HarvestConfig holds default harvest parameters used when the caller does
// not override them.
type HarvestConfig struct {
	GroupPrefix string `yaml:"group_prefix"`
	Attendance  bool   `yaml:"attendance"`
	Attendees   bool   `yaml:"attendees"`
}

// ServerConfig holds the web server settings.
type ServerConfig struct {
	Port            string `yaml:"port"`
	CacheDir        string `yaml:"cache_dir"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes"`
	// RefreshCron is a cron-style schedule for background cache refresh of
	// the default query. Empty disables the refresh.
	RefreshCron string `yaml:"refresh"`
}

// Config is the top-level application configuration.
type Config struct {
	Upstream UpstreamConfig `yaml:"upstream"`
	Harvest  HarvestConfig  `yaml:"harvest"`
	Server   ServerConfig   `yaml:"server"`
}

// Load reads the YAML file at path (missing file is fine, empty path skips
// the file entirely), applies environment overrides, and fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Run on env + defaults.
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Upstream.BaseURL, "CCB_BASE_URL")
	setString(&c.Upstream.Username, "CCB_USERNAME")
	setString(&c.Upstream.Password, "CCB_PASSWORD")
	setString(&c.Upstream.DetailPath, "CCB_DETAIL_PATH")
	setInt(&c.Upstream.PageSize, "CCB_PAGE_SIZE")
	setInt(&c.Upstream.Concurrency, "CCB_CONCURRENCY")
	setInt(&c.Upstream.TimeoutSeconds, "CCB_TIMEOUT_SECONDS")

	setString(&c.Harvest.GroupPrefix, "HARVEST_GROUP_PREFIX")

	setString(&c.Server.Port, "PORT")
	setString(&c.Server.CacheDir, "CACHE_DIR")
	setString(&c.Server.RefreshCron, "REFRESH_CRON")
}

func (c *Config) normalize() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.CacheDir == "" {
		c.Server.CacheDir = "cache"
	}
	if c.Server.CacheTTLMinutes <= 0 {
		c.Server.CacheTTLMinutes = 60
	}
}

// CCB converts the upstream section into a client config. Validation of
// required fields stays with ccb.Config.Validate.
func (c *Config) CCB() ccb.Config {
	return ccb.Config{
		BaseURL:     c.Upstream.BaseURL,
		Username:    c.Upstream.Username,
		Password:    c.Upstream.Password,
		PageSize:    c.Upstream.PageSize,
		Concurrency: c.Upstream.Concurrency,
		Timeout:     time.Duration(c.Upstream.TimeoutSeconds) * time.Second,
		DetailPath:  c.Upstream.DetailPath,
	}
}

// CacheTTL returns the server cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Server.CacheTTLMinutes) * time.Minute
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
