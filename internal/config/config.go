// Package config loads threadkeep settings from a YAML file, an optional
// .env file and THREADKEEP_* environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "THREADKEEP_"

// Defaults.
const (
	DefaultDatabase     = "threadkeep.db"
	DefaultPollInterval = 10 * time.Second
	DefaultMemoSize     = 256
	DefaultBaseDelay    = time.Second
	DefaultMaxDelay     = 30 * time.Second
)

// Config holds every threadkeep setting.
type Config struct {
	ServerURL string `yaml:"server_url"`
	// WSURL is the push endpoint. Empty derives it from ServerURL.
	WSURL    string `yaml:"ws_url"`
	Token    string `yaml:"token"`
	UserID   string `yaml:"user_id"`
	Database string `yaml:"database"`

	PollInterval time.Duration `yaml:"poll_interval"`
	MemoSize     int           `yaml:"memo_size"`
	// MetricsAddr enables the Prometheus endpoint when set, e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr"`

	Reconnect Reconnect `yaml:"reconnect"`
}

// Reconnect bounds push connection retries.
type Reconnect struct {
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
	// MaxAttempts caps consecutive failed attempts; 0 retries forever.
	MaxAttempts int `yaml:"max_attempts"`
}

// Default returns a config with every default applied.
func Default() *Config {
	return &Config{
		Database:     DefaultDatabase,
		PollInterval: DefaultPollInterval,
		MemoSize:     DefaultMemoSize,
		Reconnect: Reconnect{
			BaseDelay: DefaultBaseDelay,
			MaxDelay:  DefaultMaxDelay,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file. Unknown keys in the
// file are an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
		return nil
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("SERVER_URL", &c.ServerURL)
	str("WS_URL", &c.WSURL)
	str("TOKEN", &c.Token)
	str("USER_ID", &c.UserID)
	str("DATABASE", &c.Database)
	str("METRICS_ADDR", &c.MetricsAddr)

	return errors.Join(
		dur("POLL_INTERVAL", &c.PollInterval),
		num("MEMO_SIZE", &c.MemoSize),
		dur("RECONNECT_BASE_DELAY", &c.Reconnect.BaseDelay),
		dur("RECONNECT_MAX_DELAY", &c.Reconnect.MaxDelay),
		num("RECONNECT_MAX_ATTEMPTS", &c.Reconnect.MaxAttempts),
	)
}

// Validate checks value ranges and URL schemes. It does not require the
// server settings; see RequireServer.
func (c *Config) Validate() error {
	var errs []error
	if c.Database == "" {
		errs = append(errs, errors.New("database must be set"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.MemoSize < 1 {
		errs = append(errs, fmt.Errorf("memo_size must be at least 1, got %d", c.MemoSize))
	}
	if c.Reconnect.BaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("reconnect.base_delay must be positive, got %s", c.Reconnect.BaseDelay))
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		errs = append(errs, fmt.Errorf("reconnect.max_delay %s is below base_delay %s", c.Reconnect.MaxDelay, c.Reconnect.BaseDelay))
	}
	if c.Reconnect.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("reconnect.max_attempts must not be negative, got %d", c.Reconnect.MaxAttempts))
	}
	if c.ServerURL != "" {
		if err := checkScheme("server_url", c.ServerURL, "http", "https"); err != nil {
			errs = append(errs, err)
		}
	}
	if c.WSURL != "" {
		if err := checkScheme("ws_url", c.WSURL, "ws", "wss"); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RequireServer checks the settings needed to talk to the server.
func (c *Config) RequireServer() error {
	var errs []error
	if c.ServerURL == "" {
		errs = append(errs, errors.New("server_url must be set"))
	}
	if c.UserID == "" {
		errs = append(errs, errors.New("user_id must be set"))
	}
	return errors.Join(errs...)
}

// PushURL returns the push endpoint: WSURL, or ServerURL with a ws scheme
// and the /ws path.
func (c *Config) PushURL() (string, error) {
	if c.WSURL != "" {
		return c.WSURL, nil
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", fmt.Errorf("server_url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("server_url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func checkScheme(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("%s: missing host in %q", field, raw)
			}
			return nil
		}
	}
	return fmt.Errorf("%s: scheme must be one of %s, got %q", field, strings.Join(schemes, ", "), u.Scheme)
}
