package ccb

import "time"

const (
	// DefaultPageSize is the per_page value sent when none is configured.
	DefaultPageSize = 200
	// DefaultConcurrency is the number of pagination workers.
	DefaultConcurrency = 5
	// DefaultTimeout bounds each outbound request.
	DefaultTimeout = 20 * time.Second
	// DefaultMaxPages is a hard ceiling against runaway pagination.
	DefaultMaxPages = 200
	// DefaultDetailPath is the upstream UI page a deep link points at.
	DefaultDetailPath = "/event_detail.php"
)

// Config holds everything needed to talk to the upstream API. It is treated
// as immutable for the duration of a harvest run.
type Config struct {
	BaseURL  string
	Username string
	Password string

	PageSize    int
	Concurrency int
	Timeout     time.Duration
	MaxPages    int

	// DetailPath overrides the upstream UI path used for deep links.
	DetailPath string
}

// Validate checks that the config can produce an authenticated request.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return &ConfigError{Field: "base URL"}
	}
	if c.Username == "" {
		return &ConfigError{Field: "username"}
	}
	if c.Password == "" {
		return &ConfigError{Field: "password"}
	}
	return nil
}

// withDefaults returns a copy with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.DetailPath == "" {
		c.DetailPath = DefaultDetailPath
	}
	return c
}
