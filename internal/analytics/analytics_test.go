package analytics

import (
	"context"
	"testing"
	"time"

	"levelbot/internal/storage"

	"go.uber.org/zap"
)

func TestReport(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	service := New(store, zap.NewNop())
	service.Track(ctx, "g1", "u1", "level")
	service.Track(ctx, "g1", "u2", "level")
	service.Track(ctx, "g1", "u1", "leveling add_multiplier")
	service.Track(ctx, "g2", "u1", "level")

	if err := store.AddAuditLog(ctx, storage.AuditLog{GuildID: "g1", UserID: "u1", Level: "INFO", Event: "multiplier_added", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("add audit: %v", err)
	}

	report, err := service.Report(ctx, "g1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Total != 3 {
		t.Fatalf("expected 3 commands, got %d", report.Total)
	}
	if len(report.ByCommand) != 2 || report.ByCommand[0].Command != "level" || report.ByCommand[0].Count != 2 {
		t.Fatalf("unexpected breakdown: %+v", report.ByCommand)
	}
	if report.AuditTotal != 1 || report.ByLevel["INFO"] != 1 {
		t.Fatalf("unexpected audit totals: %+v", report)
	}
}
