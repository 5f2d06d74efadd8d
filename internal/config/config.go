// Package config reads the front end settings from the environment.
//
// An optional .env file in the working directory is loaded first; values
// already present in the environment win over it.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

const (
	defaultPort           = 8080
	defaultAPIBaseURL     = "http://localhost:8000/api"
	defaultDataBaseURL    = "http://localhost:8000/data"
	defaultRequestTimeout = 5 * time.Minute
	defaultSessionTTL     = 12 * time.Hour
	defaultLogLevel       = "info"
)

var (
	// ErrInvalidPort is returned when PORT is not a usable TCP port
	ErrInvalidPort = errors.New("PORT must be between 1 and 65535")
	// ErrInvalidURL is returned when a base URL is not absolute http(s)
	ErrInvalidURL = errors.New("base URL must be an absolute http or https URL")
	// ErrInvalidDuration is returned when a duration is malformed or not positive
	ErrInvalidDuration = errors.New("duration must be positive, e.g. 90s or 5m")
	// ErrInvalidLogLevel is returned when LOG_LEVEL is not recognized
	ErrInvalidLogLevel = errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
)

// Config holds all settings.
type Config struct {
	Port int

	// APIBaseURL is the root of the image service REST API.
	APIBaseURL string
	// DataBaseURL is the root that serves generated_images/ and control_images/.
	DataBaseURL string

	RequestTimeout time.Duration
	SessionTTL     time.Duration

	LogLevel string
}

// Load reads .env if present and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, applying defaults for unset keys.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	c := &Config{
		APIBaseURL:  strings.TrimRight(get("API_BASE_URL", defaultAPIBaseURL), "/"),
		DataBaseURL: strings.TrimRight(get("DATA_BASE_URL", defaultDataBaseURL), "/"),
		LogLevel:    strings.ToLower(get("LOG_LEVEL", defaultLogLevel)),
	}

	port, err := strconv.Atoi(get("PORT", strconv.Itoa(defaultPort)))
	if err != nil || port < 1 || port > 65535 {
		return nil, ErrInvalidPort
	}
	c.Port = port

	if c.RequestTimeout, err = duration(get("REQUEST_TIMEOUT", ""), defaultRequestTimeout); err != nil {
		return nil, fmt.Errorf("REQUEST_TIMEOUT: %w", err)
	}
	if c.SessionTTL, err = duration(get("SESSION_TTL", ""), defaultSessionTTL); err != nil {
		return nil, fmt.Errorf("SESSION_TTL: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks URLs and the log level.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{"API_BASE_URL": c.APIBaseURL, "DATA_BASE_URL": c.DataBaseURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s %q: %w", name, raw, ErrInvalidURL)
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return ErrInvalidLogLevel
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func duration(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, ErrInvalidDuration
	}
	return d, nil
}
