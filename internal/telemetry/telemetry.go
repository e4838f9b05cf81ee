// Package telemetry provides a thin structured-logging wrapper used only at
// the CLI and capture boundaries. The parsing and analysis core
// (internal/plan, internal/textplan, internal/jsonstream, internal/yamlplan,
// internal/enrich, internal/analyzer, internal/comparator) stays logger-free:
// it takes data in, returns data or an error, and has no side effects of its
// own to log.
package telemetry

import (
	"go.uber.org/zap"
)

var log *zap.SugaredLogger = zap.NewNop().Sugar()

// Init installs a production or development zap logger depending on
// verbose, replacing the no-op default. Callers should defer the returned
// func to flush buffered log entries.
func Init(verbose bool) func() {
	var l *zap.Logger
	var err error
	if verbose {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		l, err = cfg.Build()
	}
	if err != nil {
		return func() {}
	}
	log = l.Sugar()
	return func() { _ = l.Sync() }
}

func Debugf(format string, args ...any) { log.Debugf(format, args...) }
func Infof(format string, args ...any)  { log.Infof(format, args...) }
func Warnf(format string, args ...any)  { log.Warnf(format, args...) }
func Errorf(format string, args ...any) { log.Errorf(format, args...) }
