package audit

import (
	"context"
	"strings"
	"time"

	"levelbot/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

type Store interface {
	AddAuditLog(ctx context.Context, log storage.AuditLog) error
}

type Field struct {
	Name  string
	Value string
}

type Entry struct {
	storage.AuditLog
	Fields []Field
}

type Logger struct {
	store  Store
	logger *zap.Logger
	notify func(context.Context, Entry)
	now    func() time.Time
}

func NewLogger(store Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger, now: time.Now}
}

func (l *Logger) SetNotifier(notify func(context.Context, Entry)) {
	l.notify = notify
}

// Log persists an admin action, mirrors it to the notifier and the process log.
func (l *Logger) Log(ctx context.Context, level, guildID, userID, event string, fields ...Field) {
	entry := Entry{
		AuditLog: storage.AuditLog{
			GuildID:   guildID,
			UserID:    userID,
			Level:     level,
			Event:     event,
			Details:   formatFields(fields),
			CreatedAt: l.now(),
		},
		Fields: fields,
	}
	if l.store != nil {
		if err := l.store.AddAuditLog(ctx, entry.AuditLog); err != nil {
			l.logger.Warn("audit persist failed", zap.String("guild_id", guildID), zap.String("event", event), zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit",
		zap.String("level", level),
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("event", event),
		zap.String("details", entry.Details),
	)
}

func formatFields(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field.Name+": "+field.Value)
	}
	return strings.Join(parts, "; ")
}
