package timezone

import (
	"context"
	"time"
	_ "time/tzdata"

	"levelbot/internal/settings"

	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Resolver struct {
	settings *settings.Settings
	fallback *time.Location
	clock    Clock
	logger   *zap.Logger
}

func New(s *settings.Settings, defaultZone string, logger *zap.Logger) (*Resolver, error) {
	loc, err := Load(defaultZone)
	if err != nil {
		return nil, err
	}
	return &Resolver{settings: s, fallback: loc, clock: realClock{}, logger: logger}, nil
}

func (r *Resolver) WithClock(clock Clock) {
	r.clock = clock
}

// Location returns the guild's configured zone, or the process default when unset or invalid.
func (r *Resolver) Location(ctx context.Context, guildID string) *time.Location {
	name, err := r.settings.String(ctx, guildID, settings.KeyTimezone, "")
	if err != nil {
		r.logger.Warn("timezone lookup failed", zap.String("guild_id", guildID), zap.Error(err))
		return r.fallback
	}
	if name == "" {
		return r.fallback
	}
	loc, err := Load(name)
	if err != nil {
		r.logger.Warn("invalid guild timezone", zap.String("guild_id", guildID), zap.String("timezone", name), zap.Error(err))
		return r.fallback
	}
	return loc
}

func (r *Resolver) NowForGuild(ctx context.Context, guildID string) time.Time {
	return r.clock.Now().In(r.Location(ctx, guildID))
}

func Load(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
