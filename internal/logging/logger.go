// Package logging builds the logr.Logger used across jukebox, backed by zap.
package logging

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels passed to logger.V().
const (
	DEFAULT = 2
	VERBOSE = 3
	DEBUG   = 4
	TRACE   = 5
)

// NewLogger returns a zap-backed logger that emits V(n) lines for n <= verbosity.
// development switches to zap's human-readable console encoder.
func NewLogger(verbosity int, development bool) (logr.Logger, error) {
	cfg := uberzap.NewProductionConfig()
	if development {
		cfg = uberzap.NewDevelopmentConfig()
	}
	cfg.Level = uberzap.NewAtomicLevelAt(zapcore.Level(int8(-verbosity)))

	z, err := cfg.Build(uberzap.AddCaller())
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(z), nil
}

// Fatal logs err and exits. Only main packages call it.
func Fatal(logger logr.Logger, err error, msg string, keysAndValues ...interface{}) {
	logger.Error(err, msg, keysAndValues...)
	os.Exit(1)
}
