package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Broker BrokerConfig `yaml:"broker"`
	Client ClientConfig `yaml:"client"`
	Log    LogConfig    `yaml:"log"`
}

type BrokerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// ClientBuffer is the per-connection outbound queue. A client whose queue
	// is full is disconnected.
	ClientBuffer   int `yaml:"client_buffer"`
	MaxConnections int `yaml:"max_connections"`
	// HistoryLimit is the number of posts kept per topic.
	HistoryLimit int `yaml:"history_limit"`
}

type ClientConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	AuthToken   string        `yaml:"auth_token"`
	ProfileDir  string        `yaml:"profile_dir"`
	Profile     string        `yaml:"profile"`
	OpTimeout   time.Duration `yaml:"op_timeout"`
	MaxInFlight int           `yaml:"max_in_flight"`
	AutoListen  bool          `yaml:"auto_listen"`
	MailboxSize int           `yaml:"mailbox_size"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// File is where the terminal client logs. Empty means the default state
	// directory.
	File string `yaml:"file"`
}

func defaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			Host:           "127.0.0.1",
			Port:           5000,
			ClientBuffer:   64,
			MaxConnections: 1000,
			HistoryLimit:   100,
		},
		Client: ClientConfig{
			Host:        "127.0.0.1",
			Port:        5000,
			OpTimeout:   10 * time.Second,
			MaxInFlight: 8,
			AutoListen:  true,
			MailboxSize: 256,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads path over the defaults. A missing file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		errs = append(errs, fmt.Errorf("broker.port %d out of range", c.Broker.Port))
	}
	if c.Broker.ClientBuffer < 1 {
		errs = append(errs, fmt.Errorf("broker.client_buffer must be positive, got %d", c.Broker.ClientBuffer))
	}
	if c.Broker.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("broker.max_connections must not be negative, got %d", c.Broker.MaxConnections))
	}
	if c.Broker.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("broker.history_limit must not be negative, got %d", c.Broker.HistoryLimit))
	}
	if c.Client.Host == "" {
		errs = append(errs, errors.New("client.host is empty"))
	}
	if c.Client.Port < 1 || c.Client.Port > 65535 {
		errs = append(errs, fmt.Errorf("client.port %d out of range", c.Client.Port))
	}
	if c.Client.OpTimeout < 0 {
		errs = append(errs, fmt.Errorf("client.op_timeout must not be negative, got %s", c.Client.OpTimeout))
	}
	if c.Client.MaxInFlight < 1 {
		errs = append(errs, fmt.Errorf("client.max_in_flight must be positive, got %d", c.Client.MaxInFlight))
	}
	if c.Client.MailboxSize < 1 {
		errs = append(errs, fmt.Errorf("client.mailbox_size must be positive, got %d", c.Client.MailboxSize))
	}
	switch c.Log.Level {
	case "", "trace", "debug", "info", "warn", "error", "disabled":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not a known level", c.Log.Level))
	}
	return errors.Join(errs...)
}

// GenerateToken returns a random 32-character hex token for broker auth.
func GenerateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
