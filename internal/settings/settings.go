package settings

import (
	"context"
	"strconv"
	"strings"
)

const (
	KeyXPPerLevel      = "leveling_xp_per_level"
	KeyInitialXP       = "leveling_initial_xp"
	KeyExtraXP         = "leveling_extra_xp"
	KeyExtraXPTrigger  = "leveling_extra_xp_trigger"
	KeyXPMultiplier    = "leveling_xp_multiplier"
	KeyLoggingChannel  = "logging_channel"
	KeyLevelingChannel = "leveling_channel"
	KeyTimezone        = "timezone"

	RewardPrefix = "leveling_reward_"

	UserKeyIcon = "leveling_icon"
)

// Unset marks a cleared channel or reward value.
const Unset = "0"

type Store interface {
	GetSetting(ctx context.Context, guildID, key, fallback string) (string, error)
	SetSetting(ctx context.Context, guildID, key, value string) error
	DeleteSetting(ctx context.Context, guildID, key string) error
	ListSettings(ctx context.Context, guildID, prefix string) (map[string]string, error)
	GetUserSetting(ctx context.Context, userID, key, fallback string) (string, error)
	SetUserSetting(ctx context.Context, userID, key, value string) error
}

type Settings struct {
	store Store
}

func New(store Store) *Settings {
	return &Settings{store: store}
}

func (s *Settings) String(ctx context.Context, guildID, key, fallback string) (string, error) {
	return s.store.GetSetting(ctx, guildID, key, fallback)
}

func (s *Settings) SetString(ctx context.Context, guildID, key, value string) error {
	return s.store.SetSetting(ctx, guildID, key, value)
}

func (s *Settings) Clear(ctx context.Context, guildID, key string) error {
	return s.store.DeleteSetting(ctx, guildID, key)
}

// Int reads key as an integer. Missing or unparsable values yield fallback.
func (s *Settings) Int(ctx context.Context, guildID, key string, fallback int) (int, error) {
	raw, err := s.store.GetSetting(ctx, guildID, key, "")
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback, nil
	}
	return value, nil
}

func (s *Settings) SetInt(ctx context.Context, guildID, key string, value int) error {
	return s.store.SetSetting(ctx, guildID, key, strconv.Itoa(value))
}

// Channel returns the channel id stored under key, or "" when unset.
func (s *Settings) Channel(ctx context.Context, guildID, key string) (string, error) {
	value, err := s.store.GetSetting(ctx, guildID, key, Unset)
	if err != nil {
		return "", err
	}
	if value == Unset {
		return "", nil
	}
	return value, nil
}

// Rewards maps level to role id, skipping cleared entries.
func (s *Settings) Rewards(ctx context.Context, guildID string) (map[int]string, error) {
	raw, err := s.store.ListSettings(ctx, guildID, RewardPrefix)
	if err != nil {
		return nil, err
	}
	rewards := make(map[int]string, len(raw))
	for key, value := range raw {
		level, ok := ParseRewardKey(key)
		if !ok || value == "" || value == Unset {
			continue
		}
		rewards[level] = value
	}
	return rewards, nil
}

func (s *Settings) Reward(ctx context.Context, guildID string, level int) (string, error) {
	value, err := s.store.GetSetting(ctx, guildID, RewardKey(level), Unset)
	if err != nil {
		return "", err
	}
	if value == Unset {
		return "", nil
	}
	return value, nil
}

func (s *Settings) SetReward(ctx context.Context, guildID string, level int, roleID string) error {
	if roleID == "" {
		roleID = Unset
	}
	return s.store.SetSetting(ctx, guildID, RewardKey(level), roleID)
}

func (s *Settings) UserString(ctx context.Context, userID, key, fallback string) (string, error) {
	return s.store.GetUserSetting(ctx, userID, key, fallback)
}

func (s *Settings) SetUserString(ctx context.Context, userID, key, value string) error {
	return s.store.SetUserSetting(ctx, userID, key, value)
}

func RewardKey(level int) string {
	return RewardPrefix + strconv.Itoa(level)
}

func ParseRewardKey(key string) (int, bool) {
	if !strings.HasPrefix(key, RewardPrefix) {
		return 0, false
	}
	level, err := strconv.Atoi(strings.TrimPrefix(key, RewardPrefix))
	if err != nil || level < 0 {
		return 0, false
	}
	return level, true
}
