package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"levelbot/internal/i18n"
	core "levelbot/internal/leveling"
	"levelbot/internal/modules/audit"
	"levelbot/internal/settings"
	"levelbot/internal/timezone"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// publicSubcommands are the /leveling subcommands open to every member.
var publicSubcommands = map[string]bool{
	"list":           true,
	"get_multiplier": true,
	"set_icon":       true,
	"leaderboard":    true,
}

type reply struct {
	content   string
	embed     *discordgo.MessageEmbed
	ephemeral bool
}

// userError carries a message meant for the invoking member.
type userError struct {
	message string
}

func (e *userError) Error() string {
	return e.message
}

type invocation struct {
	guildID  string
	userID   string
	admin    bool
	options  map[string]*discordgo.ApplicationCommandInteractionDataOption
	resolved *discordgo.ApplicationCommandInteractionDataResolved
}

func (inv invocation) str(name string) string {
	if opt := inv.options[name]; opt != nil {
		return strings.TrimSpace(opt.StringValue())
	}
	return ""
}

func (inv invocation) int(name string, fallback int) int {
	if opt := inv.options[name]; opt != nil {
		return int(opt.IntValue())
	}
	return fallback
}

// id returns the snowflake of a user, role or channel option.
func (inv invocation) id(name string) string {
	if opt := inv.options[name]; opt != nil {
		if value, ok := opt.Value.(string); ok {
			return value
		}
	}
	return ""
}

func (inv invocation) user(name string) *discordgo.User {
	id := inv.id(name)
	if id == "" {
		return nil
	}
	if inv.resolved != nil {
		if user := inv.resolved.Users[id]; user != nil {
			return user
		}
	}
	return &discordgo.User{ID: id}
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if interaction.GuildID == "" || interaction.Member == nil || interaction.Member.User == nil {
		b.respond(session, interaction, i18n.Text("errors.guild_only"), true)
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	command, sub, options := splitSubcommand(data)
	inv := invocation{
		guildID:  interaction.GuildID,
		userID:   interaction.Member.User.ID,
		admin:    isAdmin(interaction.Member),
		options:  optionMap(options),
		resolved: data.Resolved,
	}
	if b.analytics != nil {
		b.analytics.Track(ctx, inv.guildID, inv.userID, command)
	}

	out, err := b.dispatch(ctx, data.Name, sub, inv, interaction.Member.User)
	if err != nil {
		var userErr *userError
		if errors.As(err, &userErr) {
			b.respond(session, interaction, userErr.message, true)
			return
		}
		b.logger.Error("command failed",
			zap.String("guild_id", inv.guildID),
			zap.String("user_id", inv.userID),
			zap.String("command", command),
			zap.Error(err),
		)
		b.captureError(err, map[string]string{"guild_id": inv.guildID, "command": command})
		b.respond(session, interaction, i18n.Text("errors.generic"), true)
		return
	}
	if out.embed != nil {
		b.respondEmbed(session, interaction, out.embed, out.ephemeral)
		return
	}
	b.respond(session, interaction, out.content, out.ephemeral)
}

func (b *Bot) dispatch(ctx context.Context, name, sub string, inv invocation, invoker *discordgo.User) (reply, error) {
	switch name {
	case "level":
		if !b.cfg.Features.Leveling {
			break
		}
		target := inv.user("user")
		if target == nil {
			target = invoker
		}
		return b.runLevel(ctx, inv.guildID, target)
	case "leveling":
		if !b.cfg.Features.Leveling {
			break
		}
		if !publicSubcommands[sub] && !inv.admin {
			return reply{}, &userError{message: i18n.Text("errors.missing_permission")}
		}
		return b.runLeveling(ctx, sub, inv)
	case "settings":
		if !b.cfg.Features.Settings {
			break
		}
		if !inv.admin {
			return reply{}, &userError{message: i18n.Text("errors.missing_permission")}
		}
		return b.runSettings(ctx, sub, inv)
	}
	return reply{}, &userError{message: i18n.Text("errors.unknown_command")}
}

func (b *Bot) runLevel(ctx context.Context, guildID string, target *discordgo.User) (reply, error) {
	status, err := b.engine.Status(ctx, guildID, target.ID)
	if err != nil {
		return reply{}, err
	}
	name := target.Username
	if name == "" {
		name = target.Mention()
	}
	title := i18n.Textf("leveling.level.title", name)
	if status.Icon != "" {
		title = status.Icon + " " + title
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: i18n.Text("leveling.level.xp"), Value: humanize.Comma(status.XP), Inline: true},
		{Name: i18n.Text("leveling.level.level"), Value: strconv.Itoa(status.Level), Inline: true},
		{Name: i18n.Text("leveling.level.next"), Value: i18n.Textf("leveling.level.next_value", humanize.Comma(status.Remaining), status.NextLevel), Inline: true},
		{Name: i18n.Text("leveling.level.multiplier"), Value: i18n.Textf("leveling.level.multiplier_value", status.Multiplier), Inline: true},
		{Name: i18n.Text("leveling.level.active"), Value: formatMultipliers(status.Active, i18n.Text("leveling.level.none")), Inline: false},
	}
	return reply{embed: b.commandEmbed(title, "", b.cfg.Notifications.EmbedColors.Action, fields)}, nil
}

func (b *Bot) runLeveling(ctx context.Context, sub string, inv invocation) (reply, error) {
	switch sub {
	case "list":
		return b.runLevelingList(ctx, inv.guildID)
	case "set_per_message":
		initial, extra, trigger := inv.int("initial_xp", 0), inv.int("extra_xp", 0), inv.int("extra_xp_trigger", 1)
		before, err := b.engine.Settings(ctx, inv.guildID)
		if err != nil {
			return reply{}, err
		}
		if err := b.engine.SetPerMessage(ctx, inv.guildID, initial, extra, trigger); err != nil {
			if errors.Is(err, core.ErrOutOfRange) {
				return reply{}, &userError{message: i18n.Text("errors.per_message_range")}
			}
			return reply{}, err
		}
		b.logAction(ctx, inv, "leveling_set_per_message",
			audit.Field{Name: i18n.Text("leveling.list.initial_xp"), Value: fmt.Sprintf("%d -> %d", before.InitialXP, initial)},
			audit.Field{Name: i18n.Text("leveling.list.extra_xp"), Value: fmt.Sprintf("%d -> %d", before.ExtraXP, extra)},
			audit.Field{Name: i18n.Text("leveling.list.extra_xp_trigger"), Value: fmt.Sprintf("%d -> %d", before.ExtraXPTrigger, trigger)},
		)
		return reply{content: i18n.Text("leveling.success.set_per_message")}, nil
	case "multiplier":
		factor := inv.int("multiplier", 1)
		old, err := b.engine.SetFlatMultiplier(ctx, inv.guildID, factor)
		if err != nil {
			return reply{}, translate(err, "")
		}
		b.logAction(ctx, inv, "leveling_multiplier", changeFields(i18n.Text("leveling.list.xp_multiplier"), old, factor)...)
		return reply{content: i18n.Textf("leveling.success.set_flat_multiplier", old, factor)}, nil
	case "add_multiplier":
		name := inv.str("name")
		m, err := b.engine.AddMultiplier(ctx, inv.guildID, name, inv.int("multiplier", 1), inv.str("start_date"), inv.str("end_date"))
		if err != nil {
			return reply{}, translate(err, name)
		}
		b.logAction(ctx, inv, "leveling_add_multiplier",
			audit.Field{Name: i18n.Text("leveling.log.name"), Value: m.Name},
			audit.Field{Name: i18n.Text("leveling.log.multiplier"), Value: strconv.Itoa(m.Factor)},
			audit.Field{Name: i18n.Text("leveling.log.start"), Value: m.Start.String()},
			audit.Field{Name: i18n.Text("leveling.log.end"), Value: m.End.String()},
		)
		return reply{content: i18n.Textf("leveling.success.add_multiplier", m.Name)}, nil
	case "change_multiplier_name":
		oldName, newName := inv.str("old_name"), inv.str("new_name")
		if err := b.engine.RenameMultiplier(ctx, inv.guildID, oldName, newName); err != nil {
			if errors.Is(err, core.ErrAlreadyExists) {
				return reply{}, translate(err, newName)
			}
			return reply{}, translate(err, oldName)
		}
		b.logAction(ctx, inv, "leveling_change_multiplier_name", changeFields(i18n.Text("leveling.log.name"), oldName, newName)...)
		return reply{content: i18n.Textf("leveling.success.change_multiplier_name", oldName, newName)}, nil
	case "change_multiplier_multiplier":
		name, factor := inv.str("name"), inv.int("multiplier", 1)
		old, err := b.engine.SetMultiplierFactor(ctx, inv.guildID, name, factor)
		if err != nil {
			return reply{}, translate(err, name)
		}
		b.logAction(ctx, inv, "leveling_change_multiplier_multiplier",
			append([]audit.Field{{Name: i18n.Text("leveling.log.name"), Value: name}},
				changeFields(i18n.Text("leveling.log.multiplier"), old, factor)...)...)
		return reply{content: i18n.Textf("leveling.success.change_multiplier_multiplier", name, old, factor)}, nil
	case "change_multiplier_start_date":
		name, start := inv.str("name"), inv.str("start_date")
		old, err := b.engine.SetMultiplierStart(ctx, inv.guildID, name, start)
		if err != nil {
			return reply{}, translate(err, name)
		}
		b.logAction(ctx, inv, "leveling_change_multiplier_start_date",
			append([]audit.Field{{Name: i18n.Text("leveling.log.name"), Value: name}},
				changeFields(i18n.Text("leveling.log.start"), old, start)...)...)
		return reply{content: i18n.Textf("leveling.success.change_multiplier_start_date", name, old, start)}, nil
	case "change_multiplier_end_date":
		name, end := inv.str("name"), inv.str("end_date")
		old, err := b.engine.SetMultiplierEnd(ctx, inv.guildID, name, end)
		if err != nil {
			return reply{}, translate(err, name)
		}
		b.logAction(ctx, inv, "leveling_change_multiplier_end_date",
			append([]audit.Field{{Name: i18n.Text("leveling.log.name"), Value: name}},
				changeFields(i18n.Text("leveling.log.end"), old, end)...)...)
		return reply{content: i18n.Textf("leveling.success.change_multiplier_end_date", name, old, end)}, nil
	case "remove_multiplier":
		name := inv.str("name")
		removed, err := b.engine.RemoveMultiplier(ctx, inv.guildID, name)
		if err != nil {
			return reply{}, translate(err, name)
		}
		b.logAction(ctx, inv, "leveling_remove_multiplier",
			audit.Field{Name: i18n.Text("leveling.log.name"), Value: removed.Name},
			audit.Field{Name: i18n.Text("leveling.log.multiplier"), Value: strconv.Itoa(removed.Factor)},
		)
		return reply{content: i18n.Textf("leveling.success.remove_multiplier", removed.Name)}, nil
	case "get_multiplier":
		name := inv.str("name")
		m, err := b.engine.GetMultiplier(ctx, inv.guildID, name)
		if err != nil {
			return reply{}, translate(err, name)
		}
		return reply{embed: b.multiplierEmbed(ctx, inv.guildID, m), ephemeral: true}, nil
	case "set_xp_per_level":
		xp := inv.int("xp", 0)
		old, err := b.engine.SetXPPerLevel(ctx, inv.guildID, xp)
		if err != nil {
			return reply{}, translate(err, "")
		}
		b.logAction(ctx, inv, "leveling_set_xp_per_level", changeFields(i18n.Text("leveling.list.xp_per_level"), old, xp)...)
		return reply{content: i18n.Textf("leveling.success.set_xp_per_level", old, xp)}, nil
	case "set_reward":
		level, roleID := inv.int("level", 0), inv.id("role")
		old, err := b.engine.SetReward(ctx, inv.guildID, level, roleID)
		if err != nil {
			return reply{}, translate(err, "")
		}
		b.logAction(ctx, inv, "leveling_set_reward",
			audit.Field{Name: i18n.Text("leveling.log.level"), Value: strconv.Itoa(level)},
			audit.Field{Name: i18n.Text("leveling.log.old_value"), Value: roleMention(old)},
			audit.Field{Name: i18n.Text("leveling.log.new_value"), Value: roleMention(roleID)},
		)
		return reply{content: i18n.Textf("leveling.success.set_reward", level, roleID)}, nil
	case "remove_reward":
		level := inv.int("level", 0)
		old, err := b.engine.RemoveReward(ctx, inv.guildID, level)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return reply{}, &userError{message: i18n.Textf("errors.reward_not_found", level)}
			}
			return reply{}, translate(err, "")
		}
		b.logAction(ctx, inv, "leveling_remove_reward",
			audit.Field{Name: i18n.Text("leveling.log.level"), Value: strconv.Itoa(level)},
			audit.Field{Name: i18n.Text("leveling.log.role"), Value: roleMention(old)},
		)
		return reply{content: i18n.Textf("leveling.success.remove_reward", level)}, nil
	case "set_icon":
		icon := inv.str("icon")
		if err := b.engine.SetIcon(ctx, inv.userID, icon); err != nil {
			return reply{}, translate(err, "")
		}
		return reply{content: i18n.Textf("leveling.success.set_icon", icon), ephemeral: true}, nil
	case "leaderboard":
		return b.runLeaderboard(ctx, inv.guildID, inv.int("page", 1))
	}
	return reply{}, &userError{message: i18n.Text("errors.unknown_command")}
}

func (b *Bot) runLevelingList(ctx context.Context, guildID string) (reply, error) {
	curve, err := b.engine.Settings(ctx, guildID)
	if err != nil {
		return reply{}, err
	}
	multipliers, err := b.engine.ListMultipliers(ctx, guildID)
	if err != nil {
		return reply{}, err
	}
	rewards, err := b.engine.Rewards(ctx, guildID)
	if err != nil {
		return reply{}, err
	}

	rewardLines := make([]string, 0, len(rewards))
	for _, reward := range rewards {
		rewardLines = append(rewardLines, i18n.Textf("leveling.list.reward_row", reward.Level, reward.RoleID))
	}
	rewardText := strings.Join(rewardLines, "\n")
	if rewardText == "" {
		rewardText = i18n.Text("leveling.level.none")
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: i18n.Text("leveling.list.xp_per_level"), Value: humanize.Comma(int64(curve.XPPerLevel)), Inline: true},
		{Name: i18n.Text("leveling.list.initial_xp"), Value: strconv.Itoa(curve.InitialXP), Inline: true},
		{Name: i18n.Text("leveling.list.extra_xp"), Value: strconv.Itoa(curve.ExtraXP), Inline: true},
		{Name: i18n.Text("leveling.list.extra_xp_trigger"), Value: strconv.Itoa(curve.ExtraXPTrigger), Inline: true},
		{Name: i18n.Text("leveling.list.xp_multiplier"), Value: i18n.Textf("leveling.level.multiplier_value", curve.XPMultiplier), Inline: true},
		{Name: i18n.Text("leveling.list.multipliers"), Value: formatMultipliers(multipliers, i18n.Text("leveling.level.none")), Inline: false},
		{Name: i18n.Text("leveling.list.rewards"), Value: rewardText, Inline: false},
	}
	return reply{embed: b.commandEmbed(i18n.Text("leveling.list.title"), "", b.cfg.Notifications.EmbedColors.Action, fields), ephemeral: true}, nil
}

func (b *Bot) runLeaderboard(ctx context.Context, guildID string, page int) (reply, error) {
	size := b.cfg.Leveling.LeaderboardPageSize
	if size <= 0 {
		size = 10
	}
	if page < 1 {
		page = 1
	}
	board, err := b.engine.Leaderboard(ctx, guildID, (page-1)*size, size)
	if err != nil {
		return reply{}, err
	}

	lines := make([]string, 0, len(board.Entries))
	for _, entry := range board.Entries {
		lines = append(lines, i18n.Textf("leveling.leaderboard.row", entry.Rank, entry.UserID, entry.Level, humanize.Comma(entry.XP)))
	}
	description := strings.Join(lines, "\n")
	if description == "" {
		description = i18n.Text("leveling.leaderboard.empty")
	}
	embed := b.commandEmbed(i18n.Text("leveling.leaderboard.title"), description, b.cfg.Notifications.EmbedColors.Action, nil)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: i18n.Textf("leveling.leaderboard.footer", page, pageCount(board.Total, size))}
	return reply{embed: embed}, nil
}

func (b *Bot) multiplierEmbed(ctx context.Context, guildID string, m core.Multiplier) *discordgo.MessageEmbed {
	active := i18n.Text("leveling.multiplier.no")
	if m.ActiveAt(b.engine.NowForGuild(ctx, guildID)) {
		active = i18n.Text("leveling.multiplier.yes")
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: i18n.Text("leveling.multiplier.factor"), Value: i18n.Textf("leveling.level.multiplier_value", m.Factor), Inline: true},
		{Name: i18n.Text("leveling.multiplier.start"), Value: m.Start.String(), Inline: true},
		{Name: i18n.Text("leveling.multiplier.end"), Value: m.End.String(), Inline: true},
		{Name: i18n.Text("leveling.multiplier.active"), Value: active, Inline: true},
	}
	return b.commandEmbed(i18n.Textf("leveling.multiplier.title", m.Name), "", b.cfg.Notifications.EmbedColors.Action, fields)
}

func (b *Bot) runSettings(ctx context.Context, sub string, inv invocation) (reply, error) {
	switch sub {
	case "logging_channel", "leveling_channel":
		key := settings.KeyLoggingChannel
		if sub == "leveling_channel" {
			key = settings.KeyLevelingChannel
		}
		old, err := b.settings.Channel(ctx, inv.guildID, key)
		if err != nil {
			return reply{}, err
		}
		channelID := inv.id("channel")
		if channelID == "" {
			if err := b.settings.Clear(ctx, inv.guildID, key); err != nil {
				return reply{}, err
			}
			b.logAction(ctx, inv, "settings_"+sub, changeFields(sub, channelMention(old), "")...)
			return reply{content: i18n.Text("settings.channel_cleared")}, nil
		}
		if err := b.settings.SetString(ctx, inv.guildID, key, channelID); err != nil {
			return reply{}, err
		}
		b.logAction(ctx, inv, "settings_"+sub, changeFields(sub, channelMention(old), channelMention(channelID))...)
		return reply{content: i18n.Textf("settings."+sub, channelID)}, nil
	case "timezone":
		zone := inv.str("zone")
		if _, err := timezone.Load(zone); err != nil || zone == "" {
			return reply{}, &userError{message: i18n.Textf("errors.invalid_timezone", zone)}
		}
		old, err := b.settings.String(ctx, inv.guildID, settings.KeyTimezone, b.cfg.DefaultTimezone)
		if err != nil {
			return reply{}, err
		}
		if err := b.settings.SetString(ctx, inv.guildID, settings.KeyTimezone, zone); err != nil {
			return reply{}, err
		}
		b.logAction(ctx, inv, "settings_timezone", changeFields(sub, old, zone)...)
		return reply{content: i18n.Textf("settings.timezone", zone)}, nil
	}
	return reply{}, &userError{message: i18n.Text("errors.unknown_command")}
}

func (b *Bot) logAction(ctx context.Context, inv invocation, event string, fields ...audit.Field) {
	if b.audit == nil {
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, inv.guildID, inv.userID, event, fields...)
}

// translate turns validation failures into member-facing messages and
// passes anything else through.
func translate(err error, name string) error {
	var dateErr *core.DateError
	switch {
	case errors.As(err, &dateErr):
		if errors.Is(dateErr.Err, core.ErrInvalidDateFormat) {
			return &userError{message: i18n.Textf("errors.invalid_date_format", dateErr.Field)}
		}
		return &userError{message: i18n.Textf("errors.invalid_date", dateErr.Field, dateErr.Value)}
	case errors.Is(err, core.ErrAlreadyExists):
		return &userError{message: i18n.Textf("errors.exists", name)}
	case errors.Is(err, core.ErrNotFound):
		return &userError{message: i18n.Textf("errors.not_found", name)}
	case errors.Is(err, core.ErrInvalidName):
		return &userError{message: i18n.Text("errors.invalid_name")}
	case errors.Is(err, core.ErrInvalidIcon):
		return &userError{message: i18n.Text("errors.invalid_icon")}
	case errors.Is(err, core.ErrOutOfRange):
		return &userError{message: i18n.Text("errors.positive")}
	}
	return err
}

func splitSubcommand(data discordgo.ApplicationCommandInteractionData) (string, string, []*discordgo.ApplicationCommandInteractionDataOption) {
	options := data.Options
	if len(options) > 0 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return data.Name + " " + options[0].Name, options[0].Name, options[0].Options
	}
	return data.Name, "", options
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		out[opt.Name] = opt
	}
	return out
}

func isAdmin(member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	return member.Permissions&(discordgo.PermissionAdministrator|discordgo.PermissionManageServer) != 0
}

func changeFields(setting string, old, updated interface{}) []audit.Field {
	return []audit.Field{
		{Name: i18n.Text("leveling.log.setting"), Value: setting},
		{Name: i18n.Text("leveling.log.old_value"), Value: fmt.Sprint(old)},
		{Name: i18n.Text("leveling.log.new_value"), Value: fmt.Sprint(updated)},
	}
}

func roleMention(roleID string) string {
	if roleID == "" {
		return ""
	}
	return "<@&" + roleID + ">"
}

func channelMention(channelID string) string {
	if channelID == "" {
		return ""
	}
	return "<#" + channelID + ">"
}

func pageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 1
	}
	return (total + size - 1) / size
}
