// Package logging provides the shared zap logger for vlt.
// Subsystems obtain named loggers via Named; the root logger defaults to a
// production config writing to stderr so command output stays clean.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	root = zap.NewNop()
)

// Init configures the process-wide logger. Debug mode switches to the
// development encoder at Debug level; VLT_DEBUG=1 has the same effect.
func Init(debug bool) error {
	if os.Getenv("VLT_DEBUG") == "1" {
		debug = true
	}

	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	root = logger
	mu.Unlock()
	return nil
}

// L returns the root logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Named returns a logger for a subsystem (oracle, store, delta, daemon, ...).
func Named(subsystem string) *zap.Logger {
	return L().Named(subsystem)
}

// Sync flushes buffered log entries. Safe to call at process exit.
func Sync() {
	_ = L().Sync()
}
