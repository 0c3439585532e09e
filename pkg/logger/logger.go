// Package logger builds the structured SugaredLogger every ZipCache
// component logs through, tagged with the owning service name so log
// aggregation can separate one embedding application's cache instance from
// another's.
package logger

import (
	"go.uber.org/zap"
)

// New returns a production-configured SugaredLogger tagged with service.
// It falls back to zap's basic production config if building the preferred
// config fails, and as a last resort to a no-op logger rather than panic —
// a cache must never fail to start because its logger couldn't.
func New(service string) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	log, err := cfg.Build()
	if err != nil {
		log, err = zap.NewProduction()
		if err != nil {
			log = zap.NewNop()
		}
	}
	return log.Sugar().With("service", service)
}

// NewDevelopment returns a development-configured SugaredLogger:
// human-readable console output with debug-level output enabled. Intended for tests and
// local runs, not production deployments.
func NewDevelopment(service string) *zap.SugaredLogger {
	log, err := zap.NewDevelopment()
	if err != nil {
		return New(service)
	}
	return log.Sugar().With("service", service)
}
