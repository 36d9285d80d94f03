package ccb

import (
	"fmt"
	"time"
)

// ConfigError indicates the client configuration is unusable. It is raised
// before any network activity happens.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ccb: missing configuration: %s", e.Field)
}

// TimeoutError indicates a guarded call exceeded its deadline. The underlying
// call's eventual result was discarded.
type TimeoutError struct {
	Label    string
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("ccb: %s timed out after %s", e.Label, e.Duration)
}

// HTTPError indicates the upstream answered with a non-2xx status.
type HTTPError struct {
	Status int
	Body   string // excerpt of the response body
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("ccb: upstream returned status %d: %s", e.Status, e.Body)
}

// APIError indicates the upstream answered 200 but embedded a business error
// in the response document. The upstream conflates transport and business
// failures, so both layers are always checked.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ccb: upstream API error: %s", e.Message)
}

// ParseError indicates the response body was not usable XML.
type ParseError struct {
	Service string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ccb: parsing %s response: %v", e.Service, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
