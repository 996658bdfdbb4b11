package leveling

import (
	"context"
	"regexp"
	"strings"

	"levelbot/internal/settings"

	"github.com/forPelevin/gomoji"
)

var customEmojiPattern = regexp.MustCompile(`^<a?:[a-zA-Z0-9_]+:[0-9]+>$`)

type Status struct {
	GuildID     string
	UserID      string
	XP          int64
	Level       int
	NextLevel   int
	NextLevelXP int64
	Remaining   int64
	Multiplier  int
	Active      []Multiplier
	Icon        string
}

type LeaderboardEntry struct {
	Rank   int
	UserID string
	XP     int64
	Level  int
}

type Leaderboard struct {
	Entries []LeaderboardEntry
	Total   int
}

func (e *Engine) Status(ctx context.Context, guildID, userID string) (Status, error) {
	xp, err := e.GetXP(ctx, guildID, userID)
	if err != nil {
		return Status{}, err
	}
	perLevel, err := e.xpPerLevel(ctx, guildID)
	if err != nil {
		return Status{}, err
	}
	multiplier, err := e.CalcMultiplier(ctx, guildID)
	if err != nil {
		return Status{}, err
	}
	active, err := e.ActiveMultipliers(ctx, guildID)
	if err != nil {
		return Status{}, err
	}
	icon, err := e.Icon(ctx, userID)
	if err != nil {
		return Status{}, err
	}

	level := LevelForXP(xp, perLevel)
	next := XPForLevel(level+1, perLevel)
	return Status{
		GuildID:     guildID,
		UserID:      userID,
		XP:          xp,
		Level:       level,
		NextLevel:   level + 1,
		NextLevelXP: next,
		Remaining:   next - xp,
		Multiplier:  multiplier,
		Active:      active,
		Icon:        icon,
	}, nil
}

// Leaderboard ranks members by XP, highest first.
func (e *Engine) Leaderboard(ctx context.Context, guildID string, offset, limit int) (Leaderboard, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = e.cfg.LeaderboardPageSize
	}
	if limit <= 0 {
		limit = 10
	}
	perLevel, err := e.xpPerLevel(ctx, guildID)
	if err != nil {
		return Leaderboard{}, err
	}
	total, err := e.store.CountXP(ctx, guildID)
	if err != nil {
		return Leaderboard{}, wrapStorage("count xp", err)
	}
	records, err := e.store.TopXP(ctx, guildID, offset, limit)
	if err != nil {
		return Leaderboard{}, wrapStorage("top xp", err)
	}

	board := Leaderboard{Total: total, Entries: make([]LeaderboardEntry, 0, len(records))}
	for i, record := range records {
		board.Entries = append(board.Entries, LeaderboardEntry{
			Rank:   offset + i + 1,
			UserID: record.UserID,
			XP:     record.XP,
			Level:  LevelForXP(record.XP, perLevel),
		})
	}
	return board, nil
}

func (e *Engine) Icon(ctx context.Context, userID string) (string, error) {
	icon, err := e.settings.UserString(ctx, userID, settings.UserKeyIcon, "")
	if err != nil {
		return "", wrapStorage("get icon", err)
	}
	return icon, nil
}

// SetIcon accepts a single unicode emoji or a custom emoji mention.
func (e *Engine) SetIcon(ctx context.Context, userID, icon string) error {
	icon = strings.TrimSpace(icon)
	if !ValidIcon(icon) {
		return ErrInvalidIcon
	}
	if err := e.settings.SetUserString(ctx, userID, settings.UserKeyIcon, icon); err != nil {
		return wrapStorage("set icon", err)
	}
	return nil
}

func ValidIcon(icon string) bool {
	if icon == "" {
		return false
	}
	if customEmojiPattern.MatchString(icon) {
		return true
	}
	if _, err := gomoji.GetInfo(icon); err == nil {
		return true
	}
	found := gomoji.FindAll(icon)
	return len(found) == 1 && strings.TrimSpace(gomoji.RemoveEmojis(icon)) == ""
}
