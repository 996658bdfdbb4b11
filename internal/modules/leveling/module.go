package leveling

import (
	"context"
	"time"

	"levelbot/internal/config"
	"levelbot/internal/i18n"
	core "levelbot/internal/leveling"
	"levelbot/internal/settings"
	"levelbot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Channels is the part of the chat session the module posts through.
type Channels interface {
	CanSend(channelID string) bool
	SendTemporary(channelID, content string, ttl time.Duration) error
}

type Module struct {
	cfg      config.LevelingConfig
	engine   *core.Engine
	settings *settings.Settings
	channels Channels
	limiter  *utils.RateLimiter
	logger   *zap.Logger
	now      func() time.Time
}

func New(cfg config.LevelingConfig, engine *core.Engine, s *settings.Settings, channels Channels, logger *zap.Logger) *Module {
	return &Module{
		cfg:      cfg,
		engine:   engine,
		settings: s,
		channels: channels,
		limiter:  utils.NewRateLimiter(cfg.RateLimit.Messages, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second),
		logger:   logger,
		now:      time.Now,
	}
}

func (m *Module) HandleMessage(ctx context.Context, msg *discordgo.MessageCreate) (core.Outcome, error) {
	if msg == nil || msg.Message == nil || msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return core.Outcome{}, nil
	}
	if !m.limiter.Allow(msg.GuildID+":"+msg.Author.ID, m.now()) {
		m.logger.Debug("xp rate limited", zap.String("guild_id", msg.GuildID), zap.String("user_id", msg.Author.ID))
		return core.Outcome{}, nil
	}

	var roles []string
	if msg.Member != nil {
		roles = msg.Member.Roles
	}
	canSend := m.channels.CanSend(msg.ChannelID)

	outcome, err := m.engine.ProcessMessage(ctx, core.Message{
		GuildID: msg.GuildID,
		UserID:  msg.Author.ID,
		Bot:     msg.Author.Bot,
		Content: msg.Content,
		Roles:   roles,
		CanSend: canSend,
	})
	if err != nil {
		return outcome, err
	}
	if !outcome.LeveledUp() || !canSend {
		return outcome, nil
	}

	target := m.levelUpChannel(ctx, msg.GuildID, msg.ChannelID)
	content := i18n.Textf("leveling.level_up", msg.Author.Mention(), outcome.AfterLevel)
	ttl := time.Duration(m.cfg.LevelUpDeleteSeconds) * time.Second
	if err := m.channels.SendTemporary(target, content, ttl); err != nil {
		m.logger.Warn("level up notice failed", zap.String("guild_id", msg.GuildID), zap.String("channel_id", target), zap.Error(err))
	}
	return outcome, nil
}

// PruneRateLimits drops idle rate windows.
func (m *Module) PruneRateLimits() int {
	return m.limiter.Prune(m.now())
}

func (m *Module) levelUpChannel(ctx context.Context, guildID, sourceChannel string) string {
	channel, err := m.settings.Channel(ctx, guildID, settings.KeyLevelingChannel)
	if err != nil {
		m.logger.Warn("leveling channel lookup failed", zap.String("guild_id", guildID), zap.Error(err))
		return sourceChannel
	}
	if channel == "" || !m.channels.CanSend(channel) {
		return sourceChannel
	}
	return channel
}
