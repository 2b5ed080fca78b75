// Package logging is the structured logger of pubsub2inbox. Every package
// logs through the Logger interface, backed by zap.
package logging

import (
	"context"
	"io"
	"strings"
	"time"
)

// LogLevel is the severity of a log line
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = map[LogLevel]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel reads LOG_LEVEL values case-insensitively. WARNING is an alias
// of WARN. Anything unknown is InfoLevel.
func ParseLevel(s string) LogLevel {
	s = strings.ToUpper(s)
	if s == "WARNING" {
		return WarnLevel
	}
	for level, name := range levelNames {
		if name == s {
			return level
		}
	}
	return InfoLevel
}

// Format selects the encoder of log lines
type Format string

const (
	// ConsoleFormat writes human readable tab separated lines
	ConsoleFormat Format = "console"
	// JSONFormat writes one object per line with Cloud Logging's severity key
	JSONFormat Format = "json"
)

// ParseFormat reads LOG_FORMAT, defaulting to ConsoleFormat
func ParseFormat(s string) Format {
	if strings.EqualFold(s, string(JSONFormat)) {
		return JSONFormat
	}
	return ConsoleFormat
}

// Field is a key/value pair attached to a log line
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field                 { return Field{Key: key, Value: value} }
func Int(key string, value int) Field                { return Field{Key: key, Value: value} }
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }
func Any(key string, value interface{}) Field        { return Field{Key: key, Value: value} }

// Err creates an error field under "error"
func Err(err error) Field { return Field{Key: "error", Value: err} }

// Logger is implemented by ZapAdapter
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
	// WithContext adds the run and message identifiers carried by ctx
	WithContext(ctx context.Context) Logger
}

// LogConfig configures a single logger. A nil Output means stdout.
type LogConfig struct {
	Level  LogLevel
	Format Format
	Output io.Writer
	Name   string
}
