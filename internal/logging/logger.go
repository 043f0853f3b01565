// Package logging constructs the process-wide zap logger.
package logging

import (
	"strings"

	"go.uber.org/zap"
)

// New builds a logger for the given mode. "prod" and "production" select the
// JSON production encoder; anything else gets the development console encoder.
func New(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}
