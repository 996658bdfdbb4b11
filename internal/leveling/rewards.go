package leveling

import (
	"context"
	"fmt"

	"levelbot/internal/config"

	"go.uber.org/zap"
)

type Member struct {
	GuildID string
	UserID  string
	Roles   []string
}

// RoleManager applies role changes on the chat platform. Mutations return an
// error wrapping ErrPermissionDenied when the platform refuses them.
type RoleManager interface {
	CanManageRoles(ctx context.Context, guildID string) (bool, error)
	AssignRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
}

type Reward struct {
	Level  int
	RoleID string
}

type RoleChanges struct {
	Added   []string
	Removed []string
}

func (c RoleChanges) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

// SetReward maps level to roleID and returns the role previously mapped, if any.
func (e *Engine) SetReward(ctx context.Context, guildID string, level int, roleID string) (string, error) {
	if level < 0 {
		return "", ErrOutOfRange
	}
	old, err := e.settings.Reward(ctx, guildID, level)
	if err != nil {
		return "", wrapStorage("get reward", err)
	}
	if err := e.settings.SetReward(ctx, guildID, level, roleID); err != nil {
		return "", wrapStorage("set reward", err)
	}
	return old, nil
}

func (e *Engine) RemoveReward(ctx context.Context, guildID string, level int) (string, error) {
	old, err := e.settings.Reward(ctx, guildID, level)
	if err != nil {
		return "", wrapStorage("get reward", err)
	}
	if old == "" {
		return "", ErrNotFound
	}
	if err := e.settings.SetReward(ctx, guildID, level, ""); err != nil {
		return "", wrapStorage("remove reward", err)
	}
	return old, nil
}

// Rewards lists the guild's reward roles by ascending level.
func (e *Engine) Rewards(ctx context.Context, guildID string) ([]Reward, error) {
	mapping, err := e.settings.Rewards(ctx, guildID)
	if err != nil {
		return nil, wrapStorage("list rewards", err)
	}
	rewards := make([]Reward, 0, len(mapping))
	for _, level := range sortedLevels(mapping) {
		rewards = append(rewards, Reward{Level: level, RoleID: mapping[level]})
	}
	return rewards, nil
}

// SyncRewardRoles brings the member's reward roles in line with level. Only the
// difference against member.Roles is applied, so repeated calls are no-ops.
func (e *Engine) SyncRewardRoles(ctx context.Context, member Member, level int) (RoleChanges, error) {
	var changes RoleChanges
	if e.roles == nil {
		return changes, nil
	}

	allowed, err := e.roles.CanManageRoles(ctx, member.GuildID)
	if err != nil {
		e.logger.Warn("role capability check failed", zap.String("guild_id", member.GuildID), zap.Error(err))
		return changes, nil
	}
	if !allowed {
		e.logger.Debug("missing manage roles permission", zap.String("guild_id", member.GuildID))
		return changes, nil
	}

	mapping, err := e.settings.Rewards(ctx, member.GuildID)
	if err != nil {
		return changes, wrapStorage("list rewards", err)
	}
	if len(mapping) == 0 {
		return changes, nil
	}

	desired := desiredRoles(mapping, level, e.cfg.RewardMode)
	held := make(map[string]bool, len(member.Roles))
	for _, role := range member.Roles {
		held[role] = true
	}

	seen := make(map[string]bool, len(mapping))
	for _, rewardLevel := range sortedLevels(mapping) {
		role := mapping[rewardLevel]
		if seen[role] {
			continue
		}
		seen[role] = true

		switch {
		case desired[role] && !held[role]:
			if err := e.roles.AssignRole(ctx, member.GuildID, member.UserID, role); err != nil {
				if isPermissionDenied(err) {
					e.logger.Warn("reward role assign denied", zap.String("guild_id", member.GuildID), zap.String("user_id", member.UserID), zap.String("role_id", role))
					continue
				}
				return changes, fmt.Errorf("assign reward role %s: %w", role, err)
			}
			changes.Added = append(changes.Added, role)
		case !desired[role] && held[role]:
			if err := e.roles.RemoveRole(ctx, member.GuildID, member.UserID, role); err != nil {
				if isPermissionDenied(err) {
					e.logger.Warn("reward role removal denied", zap.String("guild_id", member.GuildID), zap.String("user_id", member.UserID), zap.String("role_id", role))
					continue
				}
				return changes, fmt.Errorf("remove reward role %s: %w", role, err)
			}
			changes.Removed = append(changes.Removed, role)
		}
	}
	return changes, nil
}

func desiredRoles(mapping map[int]string, level int, mode string) map[string]bool {
	desired := make(map[string]bool)
	if mode == config.RewardModeHighest {
		best := -1
		for rewardLevel := range mapping {
			if rewardLevel <= level && rewardLevel > best {
				best = rewardLevel
			}
		}
		if best >= 0 {
			desired[mapping[best]] = true
		}
		return desired
	}
	for rewardLevel, role := range mapping {
		if rewardLevel <= level {
			desired[role] = true
		}
	}
	return desired
}
