package log

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm's query logging through a LoggerService.
// Queries are logged at debug level; failed and slow queries at warn.
type GormLogger struct {
	log           LoggerService
	slowThreshold time.Duration
}

func NewGormLogger(log LoggerService, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{
		log:           log,
		slowThreshold: slowThreshold,
	}
}

// LogMode is a no-op, the level is owned by the LoggerService.
func (gl *GormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return gl
}

func (gl *GormLogger) Info(_ context.Context, msg string, data ...any) {
	gl.log.Debug(msg, data...)
}

func (gl *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	gl.log.Warn(msg, data...)
}

func (gl *GormLogger) Error(_ context.Context, msg string, data ...any) {
	gl.log.Error(msg, data...)
}

func (gl *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		gl.log.Warn("query failed after %s (rows: %d): %s: %v", elapsed, rows, sql, err)
	case gl.slowThreshold > 0 && elapsed > gl.slowThreshold:
		gl.log.Warn("slow query took %s (threshold %s, rows: %d): %s", elapsed, gl.slowThreshold, rows, sql)
	default:
		gl.log.Debug("query took %s (rows: %d): %s", elapsed, rows, sql)
	}
}
