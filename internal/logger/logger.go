package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger writes key/value records and redacts personal data unless running in dev mode at DEBUG.
type Logger struct {
	level *slog.LevelVar
	isDev bool
	slog  *slog.Logger
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
	once          sync.Once
)

// New builds a logger writing text records to w.
func New(w io.Writer, level LogLevel, isDev bool) *Logger {
	l := &Logger{level: new(slog.LevelVar), isDev: isDev}
	l.level.Set(level.slogLevel())
	l.slog = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       l.level,
		ReplaceAttr: l.replaceAttr,
	}))
	return l
}

// Initialize sets up the default logger instance. Records go to stdout and, when
// logFile is not empty, to a size-rotated file.
func Initialize(level LogLevel, isDev bool, logFile string) {
	once.Do(func() {
		var w io.Writer = os.Stdout
		if logFile != "" {
			w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
				Filename:   logFile,
				MaxSize:    10, // MB
				MaxBackups: 3,
				MaxAge:     30, // days
			})
		}
		SetDefault(New(w, level, isDev))
	})
}

// SetDefault replaces the package-level logger.
func SetDefault(l *Logger) {
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

// GetLogger returns the default logger instance
func GetLogger() *Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l == nil {
		Initialize(INFO, false, "")
		mu.RLock()
		l = defaultLogger
		mu.RUnlock()
	}
	return l
}

// SetLevel updates the log level
func SetLevel(level LogLevel) {
	GetLogger().level.Set(level.slogLevel())
}

func (l *Logger) redacting() bool {
	return !l.isDev || l.level.Level() > slog.LevelDebug
}

func (l *Logger) replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 || !l.redacting() {
		return a
	}
	switch a.Key {
	case slog.TimeKey, slog.LevelKey, slog.MessageKey:
		return a
	}
	return slog.Any(a.Key, redactValue(a.Key, a.Value.Any()))
}

// redactEmail redacts email addresses for privacy
func redactEmail(email string) string {
	if email == "" {
		return ""
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "****"
	}

	local := parts[0]
	domain := parts[1]

	if len(local) <= 2 {
		return "****@" + domain
	}

	return local[0:1] + "****" + local[len(local)-1:] + "@" + domain
}

// redactValue redacts sensitive values based on the key name
func redactValue(key string, value any) any {
	keyLower := strings.ToLower(key)

	if strings.Contains(keyLower, "password") || strings.Contains(keyLower, "credential") {
		return "[REDACTED]"
	}

	if s, ok := value.(string); ok {
		if strings.Contains(keyLower, "email") || strings.Contains(s, "@") {
			return redactEmail(s)
		}
	}

	return value
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.slog.Debug(msg, keysAndValues...)
}

// Info logs an info message
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.slog.Info(msg, keysAndValues...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.slog.Warn(msg, keysAndValues...)
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.slog.Error(msg, keysAndValues...)
}

// Package-level convenience functions

func Debug(msg string, keysAndValues ...any) {
	GetLogger().Debug(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...any) {
	GetLogger().Info(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...any) {
	GetLogger().Warn(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...any) {
	GetLogger().Error(msg, keysAndValues...)
}

// ParseLevel converts a string to a LogLevel
func ParseLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}
