package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	messageIDKey contextKey = "message_id"
)

// contextKeys are copied from a context onto log lines, in this order
var contextKeys = []contextKey{runIDKey, messageIDKey}

// ContextWithRunID tags ctx with the pipeline run identifier
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// ContextWithMessageID tags ctx with the triggering message identifier
func ContextWithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, messageIDKey, messageID)
}

// Options describes the process-wide logger as read from the environment
type Options struct {
	Level  string
	Format string
	File   string
}

var (
	globalMu     sync.RWMutex
	globalLogger Logger
)

// SetGlobalLogger replaces the process-wide logger
func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the process-wide logger, an INFO console logger on
// stdout until InitGlobalLogger or SetGlobalLogger runs
func GetGlobalLogger() Logger {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()
	if logger != nil {
		return logger
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = newZapAdapter(LogConfig{Level: InfoLevel, Format: ConsoleFormat})
	}
	return globalLogger
}

// InitGlobalLogger builds the process-wide logger. Lines are appended to
// opts.File when set, otherwise written to stdout.
func InitGlobalLogger(opts Options) error {
	var output io.Writer = os.Stdout
	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		output = file
	}

	cfg := LogConfig{
		Level:  ParseLevel(opts.Level),
		Format: ParseFormat(opts.Format),
		Output: output,
	}
	logger, err := NewZapLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	SetGlobalLogger(logger)

	logger.Debug("Logger initialized",
		String("level", cfg.Level.String()),
		String("format", string(cfg.Format)),
		String("log_file", opts.File),
	)
	return nil
}

// MustSync flushes the global logger. Call it before the process exits.
func MustSync() {
	if z, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = z.Sync()
	}
}

func Debug(msg string, fields ...Field) { GetGlobalLogger().Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { GetGlobalLogger().Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { GetGlobalLogger().Warn(msg, fields...) }

func Error(msg string, err error, fields ...Field) {
	GetGlobalLogger().Error(msg, err, fields...)
}

// WithContext is GetGlobalLogger().WithContext
func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithFields is GetGlobalLogger().WithFields
func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}
