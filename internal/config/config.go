// Package config loads and persists the coder-audit configuration file and
// resolves the deployment URL and session token for a run.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bjornrobertsson/coder-audit-simple/internal/keychain"
)

const (
	configDirName  = ".coder-audit"
	configFileName = "config.yaml"
	tokenFileName  = "token"

	// localTokenFile is the token file the original scripts read from the
	// working directory; it is still honored first among files.
	localTokenFile = "audit-token.txt"
)

type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Audit     AuditConfig     `yaml:"audit" json:"audit"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Dashboard DashboardConfig `yaml:"dashboard" json:"dashboard"`
}

type ServerConfig struct {
	// URL is the Coder deployment, e.g. https://coder.example.com. A bare
	// FQDN is accepted. CODER_URL overrides it.
	URL string `yaml:"url" json:"url"`
	// TokenFile is an explicit token file path ("" = default lookup order).
	TokenFile string `yaml:"tokenFile,omitempty" json:"tokenFile,omitempty"`
}

type AuditConfig struct {
	// PageSize is the audit pagination page size.
	PageSize int `yaml:"pageSize" json:"pageSize"`
	// Window is the default lookback for commands without explicit
	// --start/--end, as a Go duration string.
	Window string `yaml:"window" json:"window"`
}

type OutputConfig struct {
	Colors bool `yaml:"colors" json:"colors"`
	// Limit is the default number of sessions shown by last.
	Limit int `yaml:"limit" json:"limit"`
}

type DashboardConfig struct {
	RefreshInterval string `yaml:"refreshInterval" json:"refreshInterval"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "http://localhost:7080",
		},
		Audit: AuditConfig{
			PageSize: 100,
			Window:   "720h", // 30 days
		},
		Output: OutputConfig{
			Colors: true,
			Limit:  20,
		},
		Dashboard: DashboardConfig{
			RefreshInterval: "5s",
		},
	}
}

func FilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

func Load() (*Config, error) {
	path, err := FilePath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return Default(), nil
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func Save(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}
	path, err := FilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// EnsureExists writes the default config file if none is present and returns
// its path.
func EnsureExists() (string, error) {
	path, err := FilePath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err := Save(Default()); err != nil {
		return "", err
	}
	return path, nil
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.Audit.PageSize < 1 || c.Audit.PageSize > 1000 {
		return fmt.Errorf("audit.pageSize must be between 1 and 1000")
	}
	if _, err := parsePositiveDuration(c.Audit.Window, "audit.window"); err != nil {
		return err
	}
	if c.Output.Limit < 1 || c.Output.Limit > 10000 {
		return fmt.Errorf("output.limit must be between 1 and 10000")
	}
	if _, err := parsePositiveDuration(c.Dashboard.RefreshInterval, "dashboard.refreshInterval"); err != nil {
		return err
	}
	return nil
}

// ResolvedURL applies the CODER_URL override over server.url.
func (c *Config) ResolvedURL() string {
	if v := strings.TrimSpace(os.Getenv("CODER_URL")); v != "" {
		return v
	}
	return c.Server.URL
}

// ResolveToken finds the session token: CODER_SESSION_TOKEN, CODER_TOKEN, an
// explicit server.tokenFile, the system keychain, ./audit-token.txt, then
// ~/.coder-audit/token. An empty result with nil error means no token was
// found anywhere.
func (c *Config) ResolveToken() (string, error) {
	if v := strings.TrimSpace(os.Getenv("CODER_SESSION_TOKEN")); v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(os.Getenv("CODER_TOKEN")); v != "" {
		return v, nil
	}
	if c.Server.TokenFile != "" {
		b, err := os.ReadFile(c.Server.TokenFile)
		if err != nil {
			return "", fmt.Errorf("read token file %s: %w", c.Server.TokenFile, err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	if keychain.Available() {
		if v, err := keychain.Get(keychain.Service, keychain.TokenAccount); err == nil && v != "" {
			return strings.TrimSpace(v), nil
		}
	}
	if b, err := os.ReadFile(localTokenFile); err == nil {
		return strings.TrimSpace(string(b)), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	if b, err := os.ReadFile(filepath.Join(home, configDirName, tokenFileName)); err == nil {
		return strings.TrimSpace(string(b)), nil
	}
	return "", nil
}

// WindowDuration returns audit.window as a duration, defaulting to 30 days.
func (c *Config) WindowDuration() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.Audit.Window))
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// RefreshIntervalDuration returns the dashboard refresh interval, defaulting
// to 5 seconds.
func (c *Config) RefreshIntervalDuration() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.Dashboard.RefreshInterval))
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

func (c *Config) SetByKey(key, value string) error {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return fmt.Errorf("key cannot be empty")
	}
	v := strings.TrimSpace(value)
	switch k {
	case "server.url":
		c.Server.URL = v
	case "server.tokenfile", "server.token_file":
		c.Server.TokenFile = v
	case "audit.pagesize", "audit.page_size":
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("audit.pageSize must be an integer")
		}
		c.Audit.PageSize = n
	case "audit.window":
		c.Audit.Window = v
	case "output.colors":
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("output.colors must be true or false")
		}
		c.Output.Colors = b
	case "output.limit":
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("output.limit must be an integer")
		}
		c.Output.Limit = n
	case "dashboard.refreshinterval", "dashboard.refresh_interval":
		c.Dashboard.RefreshInterval = v
	default:
		return fmt.Errorf("unsupported key %q", key)
	}
	c.normalize()
	return c.Validate()
}

func (c *Config) GetByKey(key string) (any, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return nil, fmt.Errorf("key cannot be empty")
	}
	switch k {
	case "server.url":
		return c.Server.URL, nil
	case "server.tokenfile", "server.token_file":
		return c.Server.TokenFile, nil
	case "audit.pagesize", "audit.page_size":
		return c.Audit.PageSize, nil
	case "audit.window":
		return c.Audit.Window, nil
	case "output.colors":
		return c.Output.Colors, nil
	case "output.limit":
		return c.Output.Limit, nil
	case "dashboard.refreshinterval", "dashboard.refresh_interval":
		return c.Dashboard.RefreshInterval, nil
	default:
		return nil, fmt.Errorf("unsupported key %q", key)
	}
}

func (c *Config) ToYAML() (string, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Config) ToJSON() (string, error) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Config) normalize() {
	c.Server.URL = strings.TrimSpace(c.Server.URL)
	c.Server.TokenFile = strings.TrimSpace(c.Server.TokenFile)
	c.Audit.Window = strings.TrimSpace(c.Audit.Window)
	c.Dashboard.RefreshInterval = strings.TrimSpace(c.Dashboard.RefreshInterval)
}

func parsePositiveDuration(v, key string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return d, nil
}
