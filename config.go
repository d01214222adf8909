// Configuration loading: YAML file as the base layer with environment
// variable overrides, feeding client construction through Options().
package netq

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds file-loadable defaults for the protocol clients. All fields
// are optional; zero values fall back to the built-in defaults.
type Config struct {
	// TimeoutSeconds bounds connects and individual operations.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// CACert is the path to a PEM bundle used as the TLS root pool.
	CACert string `yaml:"ca_cert"`

	// Proxy routes connections through a proxy URL (socks5, socks5h, http).
	Proxy string `yaml:"proxy"`

	// Username and Password are default credentials.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	Tor     TorConfig     `yaml:"tor"`
	Logging LoggingConfig `yaml:"logging"`
}

// TorConfig holds the Tor routing endpoints.
type TorConfig struct {
	// SocksAddr is the local SOCKS endpoint Tor listens on.
	SocksAddr string `yaml:"socks_addr"`

	// CheckURL is the exit-check endpoint probed by IsTorRunning.
	CheckURL string `yaml:"check_url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. Environment variables always take precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg
}

// LoadConfigFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the file
// does not exist or cannot be parsed.
func LoadConfigFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	return cfg, nil
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.TimeoutSeconds = 30
	c.Tor.SocksAddr = "localhost:9050"
	c.Tor.CheckURL = "https://check.torproject.org"
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("NETQ_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("NETQ_CA_CERT"); v != "" {
		c.CACert = v
	}
	if v := os.Getenv("NETQ_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv("NETQ_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("NETQ_TOR_SOCKS_ADDR"); v != "" {
		c.Tor.SocksAddr = v
	}
	if v := os.Getenv("NETQ_TOR_CHECK_URL"); v != "" {
		c.Tor.CheckURL = v
	}
	if v := os.Getenv("NETQ_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// Options translates the configuration into client construction options.
//
// Example:
//
//	cfg, err := netq.LoadConfigFile("netq.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := netq.NewHTTPClient(cfg.Options()...)
func (c *Config) Options() []Option {
	var opts []Option
	if c.TimeoutSeconds > 0 {
		opts = append(opts, WithTimeout(time.Duration(c.TimeoutSeconds)*time.Second))
	}
	if c.CACert != "" {
		opts = append(opts, WithCACert(c.CACert))
	}
	if c.Proxy != "" {
		opts = append(opts, WithProxy(c.Proxy))
	}
	if c.Username != "" || c.Password != "" {
		opts = append(opts, WithCredentials(c.Username, c.Password))
	}
	if c.Logging.Level != "" {
		opts = append(opts, WithLogger(c.Logger()))
	}
	return opts
}

// Logger builds a text slog.Logger on stderr at the configured level.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
