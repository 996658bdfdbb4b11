package analytics

import (
	"context"
	"sort"
	"time"

	"levelbot/internal/storage"

	"go.uber.org/zap"
)

type Store interface {
	AddCommandUsage(ctx context.Context, usage storage.CommandUsage) error
	CommandCounts(ctx context.Context, guildID string, since time.Time) (map[string]int, error)
	ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]storage.AuditLog, error)
}

type Service struct {
	store  Store
	logger *zap.Logger
}

func New(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

type CommandCount struct {
	Command string
	Count   int
}

type Report struct {
	Total      int
	ByCommand  []CommandCount
	AuditTotal int
	ByLevel    map[string]int
}

// Track records one command invocation. Failures are logged only.
func (s *Service) Track(ctx context.Context, guildID, userID, command string) {
	err := s.store.AddCommandUsage(ctx, storage.CommandUsage{
		GuildID:   guildID,
		UserID:    userID,
		Command:   command,
		CreatedAt: time.Now(),
	})
	if err != nil {
		s.logger.Warn("track command failed", zap.String("guild_id", guildID), zap.String("command", command), zap.Error(err))
	}
}

func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	counts, err := s.store.CommandCounts(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}
	logs, err := s.store.ListAuditLogs(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByLevel: make(map[string]int)}
	for command, count := range counts {
		report.Total += count
		report.ByCommand = append(report.ByCommand, CommandCount{Command: command, Count: count})
	}
	sort.Slice(report.ByCommand, func(i, j int) bool {
		if report.ByCommand[i].Count != report.ByCommand[j].Count {
			return report.ByCommand[i].Count > report.ByCommand[j].Count
		}
		return report.ByCommand[i].Command < report.ByCommand[j].Command
	})
	for _, log := range logs {
		report.AuditTotal++
		report.ByLevel[log.Level]++
	}
	return report, nil
}
