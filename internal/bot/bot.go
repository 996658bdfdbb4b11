package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"levelbot/internal/analytics"
	"levelbot/internal/config"
	"levelbot/internal/i18n"
	core "levelbot/internal/leveling"
	levelmodule "levelbot/internal/modules/leveling"
	"levelbot/internal/modules/audit"
	"levelbot/internal/settings"
	"levelbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/getsentry/raven-go"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	engine    *core.Engine
	settings  *settings.Settings
	audit     *audit.Logger
	analytics *analytics.Service
	session   *discordgo.Session
	gateway   *sessionGateway
	leveling  *levelmodule.Module
	scheduler *cron.Cron
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, engine *core.Engine, s *settings.Settings, auditLogger *audit.Logger, analyticsService *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		engine:    engine,
		settings:  s,
		audit:     auditLogger,
		analytics: analyticsService,
		session:   session,
		gateway:   &sessionGateway{session: session},
	}

	engine.SetRoleManager(b.gateway)
	b.leveling = levelmodule.New(cfg.Leveling, engine, s, b.gateway, logger)
	if b.audit != nil {
		b.audit.SetNotifier(func(ctx context.Context, entry audit.Entry) {
			if !b.cfg.Notifications.AuditToChannel {
				return
			}
			b.notifyAudit(ctx, entry)
		})
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	return b.startScheduler()
}

func (b *Bot) Close(ctx context.Context) {
	if b.scheduler != nil {
		select {
		case <-b.scheduler.Stop().Done():
		case <-ctx.Done():
		}
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if !b.cfg.Features.Leveling {
		return
	}
	if msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}

	ctx := context.Background()
	if _, err := b.leveling.HandleMessage(ctx, msg); err != nil {
		b.logger.Error("leveling message failed",
			zap.String("guild_id", msg.GuildID),
			zap.String("user_id", msg.Author.ID),
			zap.Error(err),
		)
		b.captureError(err, map[string]string{"guild_id": msg.GuildID, "handler": "message"})
	}
}

// loggingChannel resolves the guild's logging channel, falling back to the process default.
func (b *Bot) loggingChannel(ctx context.Context, guildID string) string {
	channelID, err := b.settings.Channel(ctx, guildID, settings.KeyLoggingChannel)
	if err != nil {
		b.logger.Warn("logging channel lookup failed", zap.String("guild_id", guildID), zap.Error(err))
	}
	if channelID == "" {
		channelID = b.cfg.DefaultLogChannel
	}
	return channelID
}

func (b *Bot) notifyAudit(ctx context.Context, entry audit.Entry) {
	if entry.GuildID == "" {
		return
	}
	channelID := b.loggingChannel(ctx, entry.GuildID)
	if channelID == "" {
		return
	}
	if !b.gateway.CanSend(channelID) {
		b.logger.Debug("logging channel not writable", zap.String("guild_id", entry.GuildID), zap.String("channel_id", channelID))
		return
	}
	if _, err := b.session.ChannelMessageSendEmbed(channelID, b.buildAuditEmbed(entry)); err != nil {
		b.logger.Warn("audit embed failed", zap.String("guild_id", entry.GuildID), zap.Error(err))
	}
}

func (b *Bot) buildAuditEmbed(entry audit.Entry) *discordgo.MessageEmbed {
	color := b.cfg.Notifications.EmbedColors.Action
	switch entry.Level {
	case audit.LevelWarn:
		color = b.cfg.Notifications.EmbedColors.Warning
	case audit.LevelCrit:
		color = b.cfg.Notifications.EmbedColors.Error
	}

	fields := make([]*discordgo.MessageEmbedField, 0, len(entry.Fields)+1)
	if entry.UserID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: i18n.Text("leveling.log.moderator"), Value: "<@" + entry.UserID + ">", Inline: true})
	}
	for _, field := range entry.Fields {
		value := field.Value
		if value == "" {
			value = "-"
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: field.Name, Value: value, Inline: true})
	}

	return &discordgo.MessageEmbed{
		Title:     auditTitle(entry.Event),
		Color:     color,
		Timestamp: entry.CreatedAt.Format(time.RFC3339),
		Fields:    fields,
		Footer:    &discordgo.MessageEmbedFooter{Text: entry.Event},
	}
}

func auditTitle(event string) string {
	if strings.HasPrefix(event, "settings_") {
		return i18n.Text("settings.log_title")
	}
	return i18n.Text("leveling.log.title")
}

func (b *Bot) startScheduler() error {
	b.scheduler = cron.New(cron.WithSeconds())
	if b.cfg.Notifications.DailyDigest {
		if _, err := b.scheduler.AddFunc(b.cfg.Notifications.DigestCron, b.sendDailyDigest); err != nil {
			return fmt.Errorf("schedule digest: %w", err)
		}
	}
	if _, err := b.scheduler.AddFunc("0 0 * * * *", b.housekeeping); err != nil {
		return fmt.Errorf("schedule housekeeping: %w", err)
	}
	b.scheduler.Start()
	return nil
}

func (b *Bot) housekeeping() {
	remaining := b.leveling.PruneRateLimits()
	if b.cfg.RetentionDays <= 0 {
		return
	}
	ctx := context.Background()
	before := time.Now().AddDate(0, 0, -b.cfg.RetentionDays)
	removed, err := b.store.CleanupAuditLogs(ctx, before)
	if err != nil {
		b.logger.Warn("audit cleanup failed", zap.Error(err))
		return
	}
	b.logger.Debug("housekeeping done", zap.Int64("audit_removed", removed), zap.Int("rate_windows", remaining))
}

func (b *Bot) sendDailyDigest() {
	ctx := context.Background()
	channels, err := b.store.GuildsWithSetting(ctx, settings.KeyLoggingChannel)
	if err != nil {
		b.logger.Warn("digest guild lookup failed", zap.Error(err))
		return
	}
	since := time.Now().Add(-24 * time.Hour)
	for guildID, channelID := range channels {
		if !b.gateway.CanSend(channelID) {
			continue
		}
		active, err := b.engine.ActiveMultipliers(ctx, guildID)
		if err != nil {
			b.logger.Warn("digest multipliers failed", zap.String("guild_id", guildID), zap.Error(err))
			continue
		}
		report, err := b.analytics.Report(ctx, guildID, since)
		if err != nil {
			b.logger.Warn("digest report failed", zap.String("guild_id", guildID), zap.Error(err))
			continue
		}
		if _, err := b.session.ChannelMessageSendEmbed(channelID, b.buildDigestEmbed(active, report)); err != nil {
			b.logger.Warn("digest send failed", zap.String("guild_id", guildID), zap.Error(err))
		}
	}
}

func (b *Bot) buildDigestEmbed(active []core.Multiplier, report analytics.Report) *discordgo.MessageEmbed {
	commandLines := make([]string, 0, len(report.ByCommand))
	for _, entry := range report.ByCommand {
		commandLines = append(commandLines, i18n.Textf("digest.command_row", entry.Command, humanize.Comma(int64(entry.Count))))
	}
	commands := strings.Join(commandLines, "\n")
	if commands == "" {
		commands = i18n.Text("digest.none")
	}

	return &discordgo.MessageEmbed{
		Title:       i18n.Text("digest.title"),
		Description: i18n.Text("digest.description"),
		Color:       b.cfg.Notifications.EmbedColors.Action,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: i18n.Text("digest.active"), Value: formatMultipliers(active, i18n.Text("digest.none")), Inline: false},
			{Name: i18n.Text("digest.commands"), Value: commands, Inline: false},
		},
	}
}

func formatMultipliers(multipliers []core.Multiplier, empty string) string {
	if len(multipliers) == 0 {
		return empty
	}
	lines := make([]string, 0, len(multipliers))
	for _, m := range multipliers {
		lines = append(lines, i18n.Textf("leveling.level.active_row", m.Name, m.Factor, m.Start, m.End))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) captureError(err error, tags map[string]string) {
	if err == nil || b.cfg.Sentry.DSN == "" {
		return
	}
	raven.CaptureError(err, tags)
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
	if err != nil {
		b.logger.Warn("interaction respond failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
	}
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
	if err != nil {
		b.logger.Warn("interaction respond failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
	}
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}
