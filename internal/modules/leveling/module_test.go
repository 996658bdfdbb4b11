package leveling

import (
	"context"
	"strings"
	"testing"
	"time"

	"levelbot/internal/config"
	core "levelbot/internal/leveling"
	"levelbot/internal/settings"
	"levelbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type fakeClock struct{ now time.Time }

func (f fakeClock) NowForGuild(context.Context, string) time.Time { return f.now }

type sent struct {
	channelID string
	content   string
	ttl       time.Duration
}

type fakeChannels struct {
	blocked map[string]bool
	sent    []sent
}

func (f *fakeChannels) CanSend(channelID string) bool {
	return !f.blocked[channelID]
}

func (f *fakeChannels) SendTemporary(channelID, content string, ttl time.Duration) error {
	f.sent = append(f.sent, sent{channelID: channelID, content: content, ttl: ttl})
	return nil
}

func newModule(t *testing.T, cfg config.LevelingConfig) (*Module, *fakeChannels, *settings.Settings) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s := settings.New(store)
	engine := core.NewEngine(cfg, store, s, fakeClock{now: time.Now()}, zap.NewNop())
	channels := &fakeChannels{blocked: map[string]bool{}}
	return New(cfg, engine, s, channels, zap.NewNop()), channels, s
}

func message(guildID, channelID, userID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		GuildID:   guildID,
		ChannelID: channelID,
		Content:   content,
		Author:    &discordgo.User{ID: userID},
	}}
}

func TestLevelUpNotice(t *testing.T) {
	cfg := config.DefaultConfig().Leveling
	cfg.XPPerLevel = 6
	module, channels, _ := newModule(t, cfg)
	ctx := context.Background()

	if _, err := module.HandleMessage(ctx, message("g1", "c1", "u1", "hi")); err != nil {
		t.Fatalf("first message: %v", err)
	}
	if len(channels.sent) != 0 {
		t.Fatalf("expected no notice before level up")
	}

	outcome, err := module.HandleMessage(ctx, message("g1", "c1", "u1", "hi"))
	if err != nil {
		t.Fatalf("second message: %v", err)
	}
	if !outcome.LeveledUp() || outcome.AfterLevel != 1 {
		t.Fatalf("expected level up, got %+v", outcome)
	}
	if len(channels.sent) != 1 {
		t.Fatalf("expected one notice, got %d", len(channels.sent))
	}
	notice := channels.sent[0]
	if notice.channelID != "c1" || notice.ttl != 5*time.Second || !strings.Contains(notice.content, "<@u1>") {
		t.Fatalf("unexpected notice: %+v", notice)
	}
}

func TestLevelUpUsesLevelingChannel(t *testing.T) {
	cfg := config.DefaultConfig().Leveling
	cfg.XPPerLevel = 3
	module, channels, s := newModule(t, cfg)
	ctx := context.Background()

	if err := s.SetString(ctx, "g1", settings.KeyLevelingChannel, "levels"); err != nil {
		t.Fatalf("set channel: %v", err)
	}
	if _, err := module.HandleMessage(ctx, message("g1", "c1", "u1", "hello")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(channels.sent) != 1 || channels.sent[0].channelID != "levels" {
		t.Fatalf("expected notice in leveling channel, got %+v", channels.sent)
	}
}

func TestSkipsBotsAndDirectMessages(t *testing.T) {
	module, _, _ := newModule(t, config.DefaultConfig().Leveling)
	ctx := context.Background()

	botMsg := message("g1", "c1", "b1", "beep")
	botMsg.Author.Bot = true
	outcome, err := module.HandleMessage(ctx, botMsg)
	if err != nil || outcome.Qualified {
		t.Fatalf("bot message must be ignored, got %+v %v", outcome, err)
	}

	outcome, err = module.HandleMessage(ctx, message("", "dm", "u1", "hello"))
	if err != nil || outcome.Qualified {
		t.Fatalf("direct message must be ignored, got %+v %v", outcome, err)
	}
}

func TestRateLimitedMessagesDoNotQualify(t *testing.T) {
	cfg := config.DefaultConfig().Leveling
	cfg.RateLimit = config.RateLimitConfig{Messages: 1, WindowSeconds: 60}
	module, _, _ := newModule(t, cfg)
	ctx := context.Background()

	first, err := module.HandleMessage(ctx, message("g1", "c1", "u1", "hello"))
	if err != nil || !first.Qualified {
		t.Fatalf("expected first message to qualify, got %+v %v", first, err)
	}
	second, err := module.HandleMessage(ctx, message("g1", "c1", "u1", "hello again"))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.Qualified {
		t.Fatalf("expected second message inside window to be rate limited")
	}
}

func TestNoNoticeWhenChannelBlocked(t *testing.T) {
	cfg := config.DefaultConfig().Leveling
	cfg.XPPerLevel = 3
	module, channels, _ := newModule(t, cfg)
	channels.blocked["c1"] = true

	outcome, err := module.HandleMessage(context.Background(), message("g1", "c1", "u1", "hello"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome.TotalXP != 3 {
		t.Fatalf("expected xp granted even without send permission, got %d", outcome.TotalXP)
	}
	if len(channels.sent) != 0 {
		t.Fatalf("expected no notice in a blocked channel")
	}
}
