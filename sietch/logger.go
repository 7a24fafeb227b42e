package sietch

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// QueryLogger defines the interface for logging repository operations
type QueryLogger interface {
	// LogQuery logs a query execution with timing and error information
	LogQuery(ctx context.Context, operation string, query string, args []any, duration time.Duration, err error)

	// LogOperation logs a high-level repository operation
	LogOperation(ctx context.Context, operation string, entityType string, duration time.Duration, err error)
}

// ZapLogger writes repository activity to a zap logger. Successful
// statements are logged at debug level, failures at error level.
type ZapLogger struct {
	log *zap.Logger
}

// NewZapLogger creates a query logger on top of log
func NewZapLogger(log *zap.Logger) *ZapLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapLogger{log: log.Named("sietch")}
}

// LogQuery implements QueryLogger
func (l *ZapLogger) LogQuery(_ context.Context, operation string, query string, args []any, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("query", query),
		zap.Int("args", len(args)),
		zap.Duration("duration", duration),
	}
	if err != nil {
		l.log.Error("query failed", append(fields, zap.Error(err))...)
		return
	}
	l.log.Debug("query", fields...)
}

// LogOperation implements QueryLogger
func (l *ZapLogger) LogOperation(_ context.Context, operation string, entityType string, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("entity", entityType),
		zap.Duration("duration", duration),
	}
	if err != nil {
		l.log.Warn("operation failed", append(fields, zap.Error(err))...)
		return
	}
	l.log.Debug("operation", fields...)
}

// NoOpLogger is a logger that does nothing (useful for disabling logging)
type NoOpLogger struct{}

// NewNoOpLogger creates a no-op logger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// LogQuery implements QueryLogger
func (l *NoOpLogger) LogQuery(context.Context, string, string, []any, time.Duration, error) {}

// LogOperation implements QueryLogger
func (l *NoOpLogger) LogOperation(context.Context, string, string, time.Duration, error) {}

// LoggableRepository is an optional interface for repositories that support logging
type LoggableRepository interface {
	// SetLogger sets the query logger for this repository
	SetLogger(logger QueryLogger)

	// GetLogger returns the current query logger
	GetLogger() QueryLogger
}

// instrumentation holds the hooks and logger shared by connectors
type instrumentation[T any, ID comparable] struct {
	hooks      *HookRegistry[T, ID]
	logger     QueryLogger
	entityType string
}

func newInstrumentation[T any, ID comparable](entityType string) instrumentation[T, ID] {
	return instrumentation[T, ID]{
		hooks:      NewHookRegistry[T, ID](),
		logger:     NewNoOpLogger(),
		entityType: entityType,
	}
}

// AddHook implements Hookable
func (i *instrumentation[T, ID]) AddHook(hook Hook[T, ID]) { i.hooks.AddHook(hook) }

// RemoveAllHooks implements Hookable
func (i *instrumentation[T, ID]) RemoveAllHooks() { i.hooks.RemoveAllHooks() }

// SetLogger implements LoggableRepository
func (i *instrumentation[T, ID]) SetLogger(logger QueryLogger) {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	i.logger = logger
}

// GetLogger implements LoggableRepository
func (i *instrumentation[T, ID]) GetLogger() QueryLogger { return i.logger }

func (i *instrumentation[T, ID]) logOperation(ctx context.Context, operation string, start time.Time, err error) {
	i.logger.LogOperation(ctx, operation, i.entityType, time.Since(start), err)
}

func (i *instrumentation[T, ID]) logQuery(ctx context.Context, operation, query string, args []any, start time.Time, err error) {
	i.logger.LogQuery(ctx, operation, query, args, time.Since(start), err)
}
