// Package config loads the efbridge YAML configuration.
//
// The file only seeds the settings database on first run (port, destination,
// auto start) and configures the process itself (listen address, log level,
// optional Redis and metrics endpoints). Fields left out of the file keep
// the values of Default.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// DefaultPort is the port the simulator bridge expects when nothing else is
// configured.
const DefaultPort = 48578

type Config struct {
	ListenHost  string `yaml:"listen_host"`
	Port        uint16 `yaml:"port"`
	Destination string `yaml:"destination"`
	SettingsDB  string `yaml:"settings_db"`
	AutoStart   bool   `yaml:"auto_start"`

	// RedisAddr enables port propagation over Redis when set.
	RedisAddr string `yaml:"redis_addr"`
	RedisKey  string `yaml:"redis_key"`

	// MetricsAddr enables the Prometheus endpoint when set.
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel         string        `yaml:"log_level"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	// Watch reloads the file when it changes.
	Watch bool `yaml:"watch"`
}

func Default() Config {
	dest := "."
	if dir, err := os.UserConfigDir(); err == nil {
		dest = filepath.Join(dir, "msfs2024-vfrnav")
	}
	return Config{
		ListenHost:       "0.0.0.0",
		Port:             DefaultPort,
		Destination:      dest,
		SettingsDB:       filepath.Join(dest, "settings.db"),
		AutoStart:        true,
		RedisKey:         "efb:server_port",
		LogLevel:         "info",
		HandshakeTimeout: 10 * time.Second,
	}
}

// Load reads path over Default. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.ListenHost == "" {
		errs = append(errs, errors.New("listen_host is empty"))
	} else if c.ListenHost != "localhost" && net.ParseIP(c.ListenHost) == nil {
		errs = append(errs, fmt.Errorf("listen_host %q is not an IP address", c.ListenHost))
	}
	if c.Destination == "" {
		errs = append(errs, errors.New("destination is empty"))
	}
	if c.SettingsDB == "" {
		errs = append(errs, errors.New("settings_db is empty"))
	}
	if c.RedisAddr != "" && c.RedisKey == "" {
		errs = append(errs, errors.New("redis_key is required with redis_addr"))
	}
	if c.HandshakeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("handshake_timeout must be positive, got %s", c.HandshakeTimeout))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level, info when invalid.
func (c Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
