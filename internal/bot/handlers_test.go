package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"levelbot/internal/config"
	core "levelbot/internal/leveling"
	"levelbot/internal/modules/audit"
	"levelbot/internal/settings"
	"levelbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type fixedClock struct{ now time.Time }

func (f fixedClock) NowForGuild(context.Context, string) time.Time { return f.now }

func newTestBot(t *testing.T) (*Bot, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.DefaultConfig()
	s := settings.New(store)
	clock := fixedClock{now: time.Date(2024, time.December, 25, 12, 0, 0, 0, time.UTC)}
	engine := core.NewEngine(cfg.Leveling, store, s, clock, zap.NewNop())
	return &Bot{
		cfg:      cfg,
		logger:   zap.NewNop(),
		store:    store,
		engine:   engine,
		settings: s,
		audit:    audit.NewLogger(store, zap.NewNop()),
	}, store
}

func stringOpt(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

func intOpt(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(value)}
}

func roleOpt(name, id string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionRole, Value: id}
}

func adminInvocation(options ...*discordgo.ApplicationCommandInteractionDataOption) invocation {
	return invocation{guildID: "g1", userID: "mod", admin: true, options: optionMap(options)}
}

func userMessage(t *testing.T, err error) string {
	t.Helper()
	var userErr *userError
	if !errors.As(err, &userErr) {
		t.Fatalf("expected user error, got %v", err)
	}
	return userErr.message
}

func TestAddMultiplierCommand(t *testing.T) {
	b, store := newTestBot(t)
	ctx := context.Background()

	inv := adminInvocation(stringOpt("name", "Winter"), intOpt("multiplier", 2), stringOpt("start_date", "12-20"), stringOpt("end_date", "01-05"))
	out, err := b.runLeveling(ctx, "add_multiplier", inv)
	if err != nil {
		t.Fatalf("add multiplier: %v", err)
	}
	if !strings.Contains(out.content, "Winter") {
		t.Fatalf("unexpected reply %q", out.content)
	}

	_, err = b.runLeveling(ctx, "add_multiplier", inv)
	if msg := userMessage(t, err); !strings.Contains(msg, "already exists") {
		t.Fatalf("unexpected duplicate message %q", msg)
	}

	logs, err := store.ListAuditLogs(ctx, "g1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(logs) != 1 || logs[0].Event != "leveling_add_multiplier" || logs[0].UserID != "mod" {
		t.Fatalf("expected one audit entry, got %+v", logs)
	}

	active, err := b.engine.ActiveMultipliers(ctx, "g1")
	if err != nil || len(active) != 1 {
		t.Fatalf("expected Winter active on Dec 25, got %+v %v", active, err)
	}
}

func TestAddMultiplierInvalidDates(t *testing.T) {
	b, _ := newTestBot(t)
	ctx := context.Background()

	_, err := b.runLeveling(ctx, "add_multiplier", adminInvocation(stringOpt("name", "Bad"), intOpt("multiplier", 2), stringOpt("start_date", "1-5"), stringOpt("end_date", "01-10")))
	if msg := userMessage(t, err); !strings.Contains(msg, "MM-DD") || !strings.Contains(msg, "start") {
		t.Fatalf("unexpected format message %q", msg)
	}

	_, err = b.runLeveling(ctx, "add_multiplier", adminInvocation(stringOpt("name", "Bad"), intOpt("multiplier", 2), stringOpt("start_date", "01-01"), stringOpt("end_date", "13-40")))
	if msg := userMessage(t, err); !strings.Contains(msg, "end") || !strings.Contains(msg, "13-40") {
		t.Fatalf("unexpected date message %q", msg)
	}
}

func TestRenameMultiplierMessages(t *testing.T) {
	b, _ := newTestBot(t)
	ctx := context.Background()
	for _, name := range []string{"A", "B"} {
		if _, err := b.engine.AddMultiplier(ctx, "g1", name, 2, "01-01", "01-31"); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	_, err := b.runLeveling(ctx, "change_multiplier_name", adminInvocation(stringOpt("old_name", "Missing"), stringOpt("new_name", "C")))
	if msg := userMessage(t, err); !strings.Contains(msg, "Missing") {
		t.Fatalf("expected missing name in message, got %q", msg)
	}
	_, err = b.runLeveling(ctx, "change_multiplier_name", adminInvocation(stringOpt("old_name", "A"), stringOpt("new_name", "B")))
	if msg := userMessage(t, err); !strings.Contains(msg, "**B**") {
		t.Fatalf("expected conflicting name in message, got %q", msg)
	}
	if _, err := b.runLeveling(ctx, "change_multiplier_name", adminInvocation(stringOpt("old_name", "A"), stringOpt("new_name", "C"))); err != nil {
		t.Fatalf("rename: %v", err)
	}
}

func TestRewardCommands(t *testing.T) {
	b, _ := newTestBot(t)
	ctx := context.Background()

	if _, err := b.runLeveling(ctx, "set_reward", adminInvocation(intOpt("level", 5), roleOpt("role", "r5"))); err != nil {
		t.Fatalf("set reward: %v", err)
	}
	rewards, err := b.engine.Rewards(ctx, "g1")
	if err != nil || len(rewards) != 1 || rewards[0].RoleID != "r5" {
		t.Fatalf("unexpected rewards %+v %v", rewards, err)
	}
	if _, err := b.runLeveling(ctx, "remove_reward", adminInvocation(intOpt("level", 5))); err != nil {
		t.Fatalf("remove reward: %v", err)
	}
	_, err = b.runLeveling(ctx, "remove_reward", adminInvocation(intOpt("level", 5)))
	if msg := userMessage(t, err); !strings.Contains(msg, "level 5") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestSetPerMessageRange(t *testing.T) {
	b, _ := newTestBot(t)
	ctx := context.Background()

	_, err := b.runLeveling(ctx, "set_per_message", adminInvocation(intOpt("initial_xp", 101), intOpt("extra_xp", 0), intOpt("extra_xp_trigger", 1)))
	userMessage(t, err)

	if _, err := b.runLeveling(ctx, "set_per_message", adminInvocation(intOpt("initial_xp", 5), intOpt("extra_xp", 1), intOpt("extra_xp_trigger", 10))); err != nil {
		t.Fatalf("set per message: %v", err)
	}
	curve, err := b.engine.Settings(ctx, "g1")
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if curve.InitialXP != 5 || curve.ExtraXP != 1 || curve.ExtraXPTrigger != 10 {
		t.Fatalf("unexpected curve %+v", curve)
	}
}

func TestDispatchRequiresManageServer(t *testing.T) {
	b, _ := newTestBot(t)
	ctx := context.Background()
	member := invocation{guildID: "g1", userID: "u1", options: optionMap(nil)}

	_, err := b.dispatch(ctx, "leveling", "set_xp_per_level", member, &discordgo.User{ID: "u1"})
	if msg := userMessage(t, err); !strings.Contains(msg, "Manage Server") {
		t.Fatalf("unexpected message %q", msg)
	}
	_, err = b.dispatch(ctx, "settings", "timezone", member, &discordgo.User{ID: "u1"})
	userMessage(t, err)

	out, err := b.dispatch(ctx, "leveling", "leaderboard", member, &discordgo.User{ID: "u1"})
	if err != nil || out.embed == nil {
		t.Fatalf("leaderboard must be public, got %+v %v", out, err)
	}
}

func TestLevelCommand(t *testing.T) {
	b, _ := newTestBot(t)
	ctx := context.Background()
	if _, err := b.engine.AddXP(ctx, "g1", "u1", 1250); err != nil {
		t.Fatalf("add xp: %v", err)
	}

	out, err := b.dispatch(ctx, "level", "", invocation{guildID: "g1", userID: "u1", options: optionMap(nil)}, &discordgo.User{ID: "u1", Username: "ann"})
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	if out.embed == nil || !strings.Contains(out.embed.Title, "ann") {
		t.Fatalf("unexpected embed %+v", out.embed)
	}
	if out.embed.Fields[0].Value != "1,250" || out.embed.Fields[1].Value != "2" {
		t.Fatalf("unexpected fields %q %q", out.embed.Fields[0].Value, out.embed.Fields[1].Value)
	}
}

func TestSettingsCommands(t *testing.T) {
	b, _ := newTestBot(t)
	ctx := context.Background()
	channel := &discordgo.ApplicationCommandInteractionDataOption{Name: "channel", Type: discordgo.ApplicationCommandOptionChannel, Value: "c9"}

	if _, err := b.runSettings(ctx, "leveling_channel", adminInvocation(channel)); err != nil {
		t.Fatalf("set channel: %v", err)
	}
	got, err := b.settings.Channel(ctx, "g1", settings.KeyLevelingChannel)
	if err != nil || got != "c9" {
		t.Fatalf("expected c9, got %q %v", got, err)
	}
	if _, err := b.runSettings(ctx, "leveling_channel", adminInvocation()); err != nil {
		t.Fatalf("clear channel: %v", err)
	}
	if got, _ := b.settings.Channel(ctx, "g1", settings.KeyLevelingChannel); got != "" {
		t.Fatalf("expected cleared channel, got %q", got)
	}

	_, err = b.runSettings(ctx, "timezone", adminInvocation(stringOpt("zone", "Mars/Olympus")))
	userMessage(t, err)
	if _, err := b.runSettings(ctx, "timezone", adminInvocation(stringOpt("zone", "Asia/Tokyo"))); err != nil {
		t.Fatalf("timezone: %v", err)
	}
}

func TestTranslatePassesUnexpectedErrors(t *testing.T) {
	storageErr := errors.New("disk gone")
	if got := translate(storageErr, "x"); got != storageErr {
		t.Fatalf("expected passthrough, got %v", got)
	}
}

func TestPageCount(t *testing.T) {
	cases := []struct{ total, size, want int }{
		{0, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
	}
	for _, tc := range cases {
		if got := pageCount(tc.total, tc.size); got != tc.want {
			t.Fatalf("pageCount(%d, %d) = %d, want %d", tc.total, tc.size, got, tc.want)
		}
	}
}
