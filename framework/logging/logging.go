// Package logging builds the application's structured logger, bound into the
// root context as "core.logger" so anything can inject it.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/km-arc/go-loopback/framework/config"
)

// New builds a *zap.Logger from the app and log configuration: human-readable
// console output in local/testing, JSON in production. An unknown level falls
// back to info.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.App.Env == "production" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	log, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return log.Named(cfg.App.Name), nil
}
