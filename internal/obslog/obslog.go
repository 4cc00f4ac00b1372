// Package obslog wraps zap so the rest of the codebase logs through one
// narrow surface instead of importing zap directly everywhere.
package obslog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.RWMutex
	logger  = zap.NewNop()
	sugared = logger.Sugar()
)

// Init installs the process-wide logger. verbose selects debug level over
// info; jsonOutput selects the production (JSON) encoder over a
// human-readable console encoder.
func Init(verbose, jsonOutput bool) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	var encoder zapcore.Encoder
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if jsonOutput {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	l := zap.New(core)

	mu.Lock()
	logger = l
	sugared = l.Sugar()
	mu.Unlock()
}

// L returns the process-wide structured logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) {
	mu.RLock()
	s := sugared
	mu.RUnlock()
	s.Infof(format, args...)
}

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) {
	mu.RLock()
	s := sugared
	mu.RUnlock()
	s.Warnf(format, args...)
}

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) {
	mu.RLock()
	s := sugared
	mu.RUnlock()
	s.Errorf(format, args...)
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() error {
	return L().Sync()
}
