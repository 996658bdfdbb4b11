package leveling

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"levelbot/internal/config"
	"levelbot/internal/settings"
	"levelbot/internal/storage"

	"go.uber.org/zap"
)

type Store interface {
	AddXP(ctx context.Context, guildID, userID string, amount int64) (int64, error)
	GetXP(ctx context.Context, guildID, userID string) (int64, error)
	TopXP(ctx context.Context, guildID string, offset, limit int) ([]storage.XPRecord, error)
	CountXP(ctx context.Context, guildID string) (int, error)
	CreateMultiplier(ctx context.Context, m storage.Multiplier) (storage.Multiplier, error)
	GetMultiplier(ctx context.Context, guildID, name string) (storage.Multiplier, error)
	ListMultipliers(ctx context.Context, guildID string) ([]storage.Multiplier, error)
	RenameMultiplier(ctx context.Context, guildID, oldName, newName string) error
	UpdateMultiplier(ctx context.Context, m storage.Multiplier) error
	DeleteMultiplier(ctx context.Context, guildID, name string) error
}

// Clock yields the current time in the guild's zone.
type Clock interface {
	NowForGuild(ctx context.Context, guildID string) time.Time
}

type Engine struct {
	cfg      config.LevelingConfig
	store    Store
	settings *settings.Settings
	clock    Clock
	roles    RoleManager
	logger   *zap.Logger
}

type CurveSettings struct {
	XPPerLevel     int
	InitialXP      int
	ExtraXP        int
	ExtraXPTrigger int
	XPMultiplier   int
}

const (
	MaxInitialXP      = 100
	MaxExtraXP        = 100
	MaxExtraXPTrigger = 4000
)

func NewEngine(cfg config.LevelingConfig, store Store, s *settings.Settings, clock Clock, logger *zap.Logger) *Engine {
	if cfg.XPPerLevel <= 0 {
		cfg.XPPerLevel = config.DefaultConfig().Leveling.XPPerLevel
	}
	if cfg.XPMultiplier <= 0 {
		cfg.XPMultiplier = 1
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		settings: s,
		clock:    clock,
		logger:   logger,
	}
}

func (e *Engine) WithClock(clock Clock) {
	e.clock = clock
}

func (e *Engine) SetRoleManager(roles RoleManager) {
	e.roles = roles
}

// NowForGuild is the guild-local time used for multiplier evaluation.
func (e *Engine) NowForGuild(ctx context.Context, guildID string) time.Time {
	return e.clock.NowForGuild(ctx, guildID)
}

func (e *Engine) AddXP(ctx context.Context, guildID, userID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrNegativeXP
	}
	total, err := e.store.AddXP(ctx, guildID, userID, amount)
	if err != nil {
		return 0, wrapStorage("add xp", err)
	}
	return total, nil
}

func (e *Engine) GetXP(ctx context.Context, guildID, userID string) (int64, error) {
	xp, err := e.store.GetXP(ctx, guildID, userID)
	if err != nil {
		return 0, wrapStorage("get xp", err)
	}
	return xp, nil
}

func (e *Engine) GetLevelForXP(ctx context.Context, guildID string, xp int64) (int, error) {
	perLevel, err := e.xpPerLevel(ctx, guildID)
	if err != nil {
		return 0, err
	}
	return LevelForXP(xp, perLevel), nil
}

func (e *Engine) GetXPForLevel(ctx context.Context, guildID string, level int) (int64, error) {
	perLevel, err := e.xpPerLevel(ctx, guildID)
	if err != nil {
		return 0, err
	}
	return XPForLevel(level, perLevel), nil
}

// Settings reads the guild's curve and per-message values, falling back to process defaults.
func (e *Engine) Settings(ctx context.Context, guildID string) (CurveSettings, error) {
	var out CurveSettings
	var err error
	if out.XPPerLevel, err = e.xpPerLevel(ctx, guildID); err != nil {
		return CurveSettings{}, err
	}
	if out.InitialXP, err = e.intSetting(ctx, guildID, settings.KeyInitialXP, e.cfg.InitialXP); err != nil {
		return CurveSettings{}, err
	}
	if out.ExtraXP, err = e.intSetting(ctx, guildID, settings.KeyExtraXP, e.cfg.ExtraXP); err != nil {
		return CurveSettings{}, err
	}
	if out.ExtraXPTrigger, err = e.intSetting(ctx, guildID, settings.KeyExtraXPTrigger, e.cfg.ExtraXPTrigger); err != nil {
		return CurveSettings{}, err
	}
	if out.XPMultiplier, err = e.CalcMultiplier(ctx, guildID); err != nil {
		return CurveSettings{}, err
	}
	return out, nil
}

func (e *Engine) SetPerMessage(ctx context.Context, guildID string, initial, extra, trigger int) error {
	if initial < 0 || initial > MaxInitialXP {
		return ErrOutOfRange
	}
	if extra < 0 || extra > MaxExtraXP {
		return ErrOutOfRange
	}
	if trigger < 1 || trigger > MaxExtraXPTrigger {
		return ErrOutOfRange
	}
	values := []struct {
		key   string
		value int
	}{
		{settings.KeyInitialXP, initial},
		{settings.KeyExtraXP, extra},
		{settings.KeyExtraXPTrigger, trigger},
	}
	for _, item := range values {
		if err := e.settings.SetInt(ctx, guildID, item.key, item.value); err != nil {
			return wrapStorage("set per message", err)
		}
	}
	return nil
}

// SetXPPerLevel stores a new curve step and returns the previous one.
func (e *Engine) SetXPPerLevel(ctx context.Context, guildID string, xp int) (int, error) {
	if xp <= 0 {
		return 0, ErrOutOfRange
	}
	old, err := e.xpPerLevel(ctx, guildID)
	if err != nil {
		return 0, err
	}
	if err := e.settings.SetInt(ctx, guildID, settings.KeyXPPerLevel, xp); err != nil {
		return 0, wrapStorage("set xp per level", err)
	}
	return old, nil
}

// CalcMultiplier returns the guild's flat multiplier. Named multipliers are listed
// by ActiveMultipliers and are not folded into this value.
func (e *Engine) CalcMultiplier(ctx context.Context, guildID string) (int, error) {
	value, err := e.intSetting(ctx, guildID, settings.KeyXPMultiplier, e.cfg.XPMultiplier)
	if err != nil {
		return 0, err
	}
	if value < 1 {
		return e.cfg.XPMultiplier, nil
	}
	return value, nil
}

func (e *Engine) SetFlatMultiplier(ctx context.Context, guildID string, multiplier int) (int, error) {
	if multiplier < 1 {
		return 0, ErrOutOfRange
	}
	old, err := e.CalcMultiplier(ctx, guildID)
	if err != nil {
		return 0, err
	}
	if err := e.settings.SetInt(ctx, guildID, settings.KeyXPMultiplier, multiplier); err != nil {
		return 0, wrapStorage("set multiplier", err)
	}
	return old, nil
}

func (e *Engine) AddMultiplier(ctx context.Context, guildID, name string, factor int, start, end string) (Multiplier, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Multiplier{}, ErrInvalidName
	}
	if factor < 1 {
		return Multiplier{}, ErrOutOfRange
	}
	year := e.clock.NowForGuild(ctx, guildID).Year()
	startDay, err := ParseMonthDay(start, year)
	if err != nil {
		return Multiplier{}, &DateError{Field: "start", Value: start, Err: err}
	}
	endDay, err := ParseMonthDay(end, year)
	if err != nil {
		return Multiplier{}, &DateError{Field: "end", Value: end, Err: err}
	}

	record, err := e.store.CreateMultiplier(ctx, storage.Multiplier{
		GuildID: guildID,
		Name:    name,
		Factor:  factor,
		Start:   startDay.String(),
		End:     endDay.String(),
	})
	if err != nil {
		return Multiplier{}, wrapStorage("add multiplier", err)
	}
	return multiplierFromRecord(record)
}

func (e *Engine) GetMultiplier(ctx context.Context, guildID, name string) (Multiplier, error) {
	record, err := e.store.GetMultiplier(ctx, guildID, name)
	if err != nil {
		return Multiplier{}, wrapStorage("get multiplier", err)
	}
	return multiplierFromRecord(record)
}

// ListMultipliers returns the guild's multipliers in creation order.
func (e *Engine) ListMultipliers(ctx context.Context, guildID string) ([]Multiplier, error) {
	records, err := e.store.ListMultipliers(ctx, guildID)
	if err != nil {
		return nil, wrapStorage("list multipliers", err)
	}
	list := make([]Multiplier, 0, len(records))
	for _, record := range records {
		m, err := multiplierFromRecord(record)
		if err != nil {
			e.logger.Warn("skipping malformed multiplier", zap.String("guild_id", guildID), zap.String("id", record.ID), zap.Error(err))
			continue
		}
		list = append(list, m)
	}
	return list, nil
}

func (e *Engine) ActiveMultipliers(ctx context.Context, guildID string) ([]Multiplier, error) {
	list, err := e.ListMultipliers(ctx, guildID)
	if err != nil {
		return nil, err
	}
	now := e.clock.NowForGuild(ctx, guildID)
	active := make([]Multiplier, 0, len(list))
	for _, m := range list {
		if m.ActiveAt(now) {
			active = append(active, m)
		}
	}
	return active, nil
}

func (e *Engine) RenameMultiplier(ctx context.Context, guildID, oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrInvalidName
	}
	if err := e.store.RenameMultiplier(ctx, guildID, oldName, newName); err != nil {
		return wrapStorage("rename multiplier", err)
	}
	return nil
}

// SetMultiplierFactor returns the factor that was replaced.
func (e *Engine) SetMultiplierFactor(ctx context.Context, guildID, name string, factor int) (int, error) {
	if factor < 1 {
		return 0, ErrOutOfRange
	}
	var old int
	err := e.updateMultiplier(ctx, guildID, name, func(record *storage.Multiplier) error {
		old = record.Factor
		record.Factor = factor
		return nil
	})
	return old, err
}

func (e *Engine) SetMultiplierStart(ctx context.Context, guildID, name, start string) (MonthDay, error) {
	return e.setMultiplierDate(ctx, guildID, name, "start", start)
}

func (e *Engine) SetMultiplierEnd(ctx context.Context, guildID, name, end string) (MonthDay, error) {
	return e.setMultiplierDate(ctx, guildID, name, "end", end)
}

func (e *Engine) setMultiplierDate(ctx context.Context, guildID, name, field, value string) (MonthDay, error) {
	var old MonthDay
	err := e.updateMultiplier(ctx, guildID, name, func(record *storage.Multiplier) error {
		day, err := ParseMonthDay(value, e.clock.NowForGuild(ctx, guildID).Year())
		if err != nil {
			return &DateError{Field: field, Value: value, Err: err}
		}
		target := &record.Start
		if field == "end" {
			target = &record.End
		}
		old, _ = parseStored(*target)
		*target = day.String()
		return nil
	})
	return old, err
}

func (e *Engine) updateMultiplier(ctx context.Context, guildID, name string, mutate func(*storage.Multiplier) error) error {
	record, err := e.store.GetMultiplier(ctx, guildID, name)
	if err != nil {
		return wrapStorage("get multiplier", err)
	}
	if err := mutate(&record); err != nil {
		return err
	}
	if err := e.store.UpdateMultiplier(ctx, record); err != nil {
		return wrapStorage("update multiplier", err)
	}
	return nil
}

// RemoveMultiplier deletes the multiplier and returns its last definition.
func (e *Engine) RemoveMultiplier(ctx context.Context, guildID, name string) (Multiplier, error) {
	record, err := e.store.GetMultiplier(ctx, guildID, name)
	if err != nil {
		return Multiplier{}, wrapStorage("get multiplier", err)
	}
	if err := e.store.DeleteMultiplier(ctx, guildID, name); err != nil {
		return Multiplier{}, wrapStorage("remove multiplier", err)
	}
	removed, err := multiplierFromRecord(record)
	if err != nil {
		return Multiplier{ID: record.ID, Name: record.Name, Factor: record.Factor}, nil
	}
	return removed, nil
}

func (e *Engine) xpPerLevel(ctx context.Context, guildID string) (int, error) {
	value, err := e.intSetting(ctx, guildID, settings.KeyXPPerLevel, e.cfg.XPPerLevel)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return e.cfg.XPPerLevel, nil
	}
	return value, nil
}

func (e *Engine) intSetting(ctx context.Context, guildID, key string, fallback int) (int, error) {
	value, err := e.settings.Int(ctx, guildID, key, fallback)
	if err != nil {
		return 0, wrapStorage("read "+key, err)
	}
	return value, nil
}

func sortedLevels(rewards map[int]string) []int {
	levels := make([]int, 0, len(rewards))
	for level := range rewards {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	return levels
}

func isPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}
