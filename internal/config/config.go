// Package config provides Viper-based configuration loading for the
// space-scrap session server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP/websocket listener settings.
type ServerConfig struct {
	// Host is the bind address for the listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the listener.
	Port int `mapstructure:"port"`
	// ReadHeaderTimeout bounds how long the server waits for request headers.
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	// ShutdownTimeout bounds graceful shutdown on termination.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AllowedOrigins lists CORS origins permitted to reach the API and
	// to upgrade websocket connections. Empty means same-origin only.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns the "host:port" listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SessionConfig holds room coordination settings.
type SessionConfig struct {
	// GracePeriod is how long a disconnected seat is held before it is
	// permanently vacated.
	GracePeriod time.Duration `mapstructure:"grace_period"`
	// RoomCodeLength is the length of generated room codes.
	RoomCodeLength int `mapstructure:"room_code_length"`
	// MaxRooms caps the number of live rooms. Zero means unlimited.
	MaxRooms int `mapstructure:"max_rooms"`
	// MessageRate is the per-connection inbound message budget in
	// messages per second.
	MessageRate float64 `mapstructure:"message_rate"`
	// MessageBurst is the per-connection inbound burst allowance.
	MessageBurst int `mapstructure:"message_burst"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Session SessionConfig `mapstructure:"session"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error
// describing all violations.
func (c Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadHeaderTimeout < 0 {
		errs = append(errs, "server.read_header_timeout must not be negative")
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
	}
	if c.Session.GracePeriod <= 0 {
		errs = append(errs, fmt.Sprintf("session.grace_period must be positive, got %s", c.Session.GracePeriod))
	}
	if c.Session.RoomCodeLength < 4 || c.Session.RoomCodeLength > 12 {
		errs = append(errs, fmt.Sprintf("session.room_code_length must be 4-12, got %d", c.Session.RoomCodeLength))
	}
	if c.Session.MaxRooms < 0 {
		errs = append(errs, fmt.Sprintf("session.max_rooms must not be negative, got %d", c.Session.MaxRooms))
	}
	if c.Session.MessageRate <= 0 {
		errs = append(errs, fmt.Sprintf("session.message_rate must be positive, got %g", c.Session.MessageRate))
	}
	if c.Session.MessageBurst < 1 {
		errs = append(errs, fmt.Sprintf("session.message_burst must be >= 1, got %d", c.Session.MessageBurst))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, fmt.Sprintf("logging.format must be one of [json, console], got %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result. An empty path loads
// defaults and environment overrides only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with SCRAP_ prefix
	v.SetEnvPrefix("SCRAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_header_timeout", "5s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("session.grace_period", "60s")
	v.SetDefault("session.room_code_length", 6)
	v.SetDefault("session.max_rooms", 0)
	v.SetDefault("session.message_rate", 30.0)
	v.SetDefault("session.message_burst", 60)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
