// Package report renders migration events and summaries for people and
// monitoring systems.
package report

import (
	"github.com/xaenox/keep-migrate/internal/migrate"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogReporter writes every event as a structured log entry.
type LogReporter struct {
	logger *zap.Logger
}

func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func level(kind migrate.EventKind) zapcore.Level {
	switch kind {
	case migrate.EventNoteFailed, migrate.EventReminderFailed, migrate.EventLabelFailed, migrate.EventFlushFailed:
		return zapcore.ErrorLevel
	case migrate.EventRetry, migrate.EventAttachmentFailed, migrate.EventReminderUnmatched,
		migrate.EventDuplicateKey, migrate.EventLabelMissing:
		return zapcore.WarnLevel
	case migrate.EventNoteSkipped, migrate.EventFlush:
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func (r *LogReporter) Report(e migrate.Event) {
	ce := r.logger.Check(level(e.Kind), string(e.Kind))
	if ce == nil {
		return
	}

	fields := []zap.Field{zap.String("phase", string(e.Phase))}
	if e.Title != "" {
		fields = append(fields, zap.String("title", e.Title))
	}
	if e.Account != "" {
		fields = append(fields, zap.String("account", e.Account))
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
	}
	if e.Attempt > 0 {
		fields = append(fields, zap.Int("attempt", e.Attempt))
	}
	if e.Delay > 0 {
		fields = append(fields, zap.Duration("delay", e.Delay))
	}
	if e.Count > 0 {
		fields = append(fields, zap.Int("count", e.Count))
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}
	ce.Write(fields...)
}
