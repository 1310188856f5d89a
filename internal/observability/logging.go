// Package observability provides logging utilities for the session server:
// the zap logger constructor and the shared structured-field builders that
// keep room, seat, and connection ids under consistent keys across packages.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JvstinNgvyen/space-scrap/internal/config"
)

// NewLogger creates a structured logger from the given logging configuration.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// RoomID is the structured-log field for a room's join code.
func RoomID(id string) zap.Field { return zap.String("room_id", id) }

// ConnID is the structured-log field for an ephemeral connection id.
func ConnID(id string) zap.Field { return zap.String("conn_id", id) }

// Slot is the structured-log field for a seat label.
func Slot(label fmt.Stringer) zap.Field { return zap.Stringer("slot", label) }
