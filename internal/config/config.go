package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/riptide-proxy/autostart-tui/internal/ctxlog"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// DefaultURL is the autostart endpoint of a proxy on localhost.
const DefaultURL = "ws://localhost/___riptide_proxy_ws"

type Config struct {
	URL       string          `yaml:"url"`
	Project   string          `yaml:"project"`
	Services  []string        `yaml:"services"`
	PageURL   string          `yaml:"page_url"`
	Reload    ReloadConfig    `yaml:"reload"`
	Transport TransportConfig `yaml:"transport"`
	Log       LogConfig       `yaml:"log"`
	UI        UIConfig        `yaml:"ui"`
}

// ReloadConfig controls what happens after a successful start.
type ReloadConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
	// Exit quits the program once the reload has finished.
	Exit bool `yaml:"exit"`
}

type TransportConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// File receives log output while the TUI owns the terminal. Empty
	// discards it.
	File string `yaml:"file"`
}

type UIConfig struct {
	Animate   bool `yaml:"animate"`
	AltScreen bool `yaml:"alt_screen"`
}

func defaultConfig() *Config {
	return &Config{
		URL: DefaultURL,
		Reload: ReloadConfig{
			Enabled: true,
			Timeout: 10 * time.Second,
			Exit:    true,
		},
		Transport: TransportConfig{
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "WARN",
		},
		UI: UIConfig{
			Animate: true,
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads a YAML config from path on fsys. Fields missing from the file
// keep their defaults.
func Load(fsys afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(fsys afero.Fs, path string) (*Config, error) {
	cfg, err := Load(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// Validate reports every problem with the config at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if strings.TrimSpace(c.Project) == "" {
		result = multierror.Append(result, errors.New("project is required"))
	}

	if u, err := url.Parse(c.URL); err != nil {
		result = multierror.Append(result, fmt.Errorf("url: %w", err))
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		result = multierror.Append(result, fmt.Errorf("url %q: scheme must be ws or wss", c.URL))
	} else if u.Host == "" {
		result = multierror.Append(result, fmt.Errorf("url %q: missing host", c.URL))
	}

	if len(c.Services) == 0 {
		result = multierror.Append(result, errors.New("at least one service is required"))
	}
	seen := make(map[string]bool, len(c.Services))
	for _, s := range c.Services {
		switch {
		case strings.TrimSpace(s) == "":
			result = multierror.Append(result, errors.New("service names must not be empty"))
		case seen[s]:
			result = multierror.Append(result, fmt.Errorf("service %q listed twice", s))
		}
		seen[s] = true
	}

	if c.PageURL != "" {
		if u, err := url.Parse(c.PageURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			result = multierror.Append(result, fmt.Errorf("page_url %q: must be an http or https URL", c.PageURL))
		}
	}

	if c.Reload.Timeout <= 0 {
		result = multierror.Append(result, errors.New("reload.timeout must be positive"))
	}
	if c.Transport.PingInterval < 0 {
		result = multierror.Append(result, errors.New("transport.ping_interval must not be negative"))
	}
	if c.Transport.WriteTimeout <= 0 {
		result = multierror.Append(result, errors.New("transport.write_timeout must be positive"))
	}
	if _, ok := ctxlog.ParseLevel(c.Log.Level); !ok {
		result = multierror.Append(result, fmt.Errorf("log.level %q: want DEBUG, INFO, WARN or ERROR", c.Log.Level))
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
