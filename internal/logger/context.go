package logger

import (
	"context"
	"sync"
)

// contextKey is a private type so the logger key cannot collide.
type contextKey struct{}

var loggerKey = contextKey{}

// defaultLogger serves callers whose context carries no logger.
var (
	defaultLogger   *Logger
	defaultLoggerMu sync.RWMutex
)

func init() {
	defaultLogger = New(nil)
}

// GetDefault returns the process-wide default logger.
func GetDefault() *Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

func getDefaultLogger() *Logger {
	return GetDefault()
}

// SetDefaultLogger replaces the process-wide default logger. Call it once
// from main before any goroutines log.
func SetDefaultLogger(l *Logger) {
	if l != nil {
		defaultLoggerMu.Lock()
		defaultLogger = l
		defaultLoggerMu.Unlock()
	}
}

// WithContext attaches the logger to ctx for retrieval by FromContext.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*Logger); ok {
			return l
		}
	}
	return GetDefault()
}

// WithField returns a context whose logger carries one extra field.
func WithField(ctx context.Context, key string, value interface{}) context.Context {
	return FromContext(ctx).WithField(key, value).WithContext(ctx)
}

// WithFields returns a context whose logger carries the extra fields.
func WithFields(ctx context.Context, fields Fields) context.Context {
	return FromContext(ctx).WithFields(fields).WithContext(ctx)
}

// Tracing-field shorthands used on the ingestion path.

// SetPassID stamps the ingestion pass ID on the context's logger.
func SetPassID(ctx context.Context, id string) context.Context {
	return WithField(ctx, FieldPassID, id)
}

// SetFile stamps the source file path on the context's logger.
func SetFile(ctx context.Context, path string) context.Context {
	return WithField(ctx, FieldFile, path)
}

// SetTable stamps the table name on the context's logger.
func SetTable(ctx context.Context, name string) context.Context {
	return WithField(ctx, FieldTable, name)
}

// SetSource stamps the source format on the context's logger.
func SetSource(ctx context.Context, source string) context.Context {
	return WithField(ctx, FieldSource, source)
}
