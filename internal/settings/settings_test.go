package settings

import (
	"context"
	"testing"

	"levelbot/internal/storage"
)

func newSettings(t *testing.T) (*Settings, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(store), store
}

func TestIntFallsBackOnGarbage(t *testing.T) {
	s, store := newSettings(t)
	ctx := context.Background()

	value, err := s.Int(ctx, "g1", KeyXPPerLevel, 500)
	if err != nil {
		t.Fatalf("int: %v", err)
	}
	if value != 500 {
		t.Fatalf("expected default 500, got %d", value)
	}

	if err := store.SetSetting(ctx, "g1", KeyXPPerLevel, "lots"); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, err = s.Int(ctx, "g1", KeyXPPerLevel, 500)
	if err != nil {
		t.Fatalf("int: %v", err)
	}
	if value != 500 {
		t.Fatalf("expected fallback for unparsable value, got %d", value)
	}

	if err := s.SetInt(ctx, "g1", KeyXPPerLevel, 120); err != nil {
		t.Fatalf("set int: %v", err)
	}
	value, err = s.Int(ctx, "g1", KeyXPPerLevel, 500)
	if err != nil {
		t.Fatalf("int: %v", err)
	}
	if value != 120 {
		t.Fatalf("expected 120, got %d", value)
	}
}

func TestRewardsSkipCleared(t *testing.T) {
	s, store := newSettings(t)
	ctx := context.Background()

	if err := s.SetReward(ctx, "g1", 5, "r5"); err != nil {
		t.Fatalf("set reward: %v", err)
	}
	if err := s.SetReward(ctx, "g1", 10, "r10"); err != nil {
		t.Fatalf("set reward: %v", err)
	}
	if err := s.SetReward(ctx, "g1", 10, ""); err != nil {
		t.Fatalf("clear reward: %v", err)
	}
	if err := store.SetSetting(ctx, "g1", RewardPrefix+"abc", "r?"); err != nil {
		t.Fatalf("set junk: %v", err)
	}

	rewards, err := s.Rewards(ctx, "g1")
	if err != nil {
		t.Fatalf("rewards: %v", err)
	}
	if len(rewards) != 1 || rewards[5] != "r5" {
		t.Fatalf("expected only level 5, got %v", rewards)
	}

	role, err := s.Reward(ctx, "g1", 10)
	if err != nil {
		t.Fatalf("reward: %v", err)
	}
	if role != "" {
		t.Fatalf("expected cleared reward, got %q", role)
	}
}

func TestChannelUnset(t *testing.T) {
	s, _ := newSettings(t)
	ctx := context.Background()

	channel, err := s.Channel(ctx, "g1", KeyLoggingChannel)
	if err != nil {
		t.Fatalf("channel: %v", err)
	}
	if channel != "" {
		t.Fatalf("expected empty channel, got %q", channel)
	}

	if err := s.SetString(ctx, "g1", KeyLoggingChannel, "c1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	channel, _ = s.Channel(ctx, "g1", KeyLoggingChannel)
	if channel != "c1" {
		t.Fatalf("expected c1, got %q", channel)
	}

	if err := s.Clear(ctx, "g1", KeyLoggingChannel); err != nil {
		t.Fatalf("clear: %v", err)
	}
	channel, _ = s.Channel(ctx, "g1", KeyLoggingChannel)
	if channel != "" {
		t.Fatalf("expected cleared channel, got %q", channel)
	}
}

func TestParseRewardKey(t *testing.T) {
	cases := []struct {
		key   string
		level int
		ok    bool
	}{
		{"leveling_reward_5", 5, true},
		{"leveling_reward_0", 0, true},
		{"leveling_reward_-1", 0, false},
		{"leveling_reward_x", 0, false},
		{"logging_channel", 0, false},
	}
	for _, tc := range cases {
		level, ok := ParseRewardKey(tc.key)
		if ok != tc.ok || level != tc.level {
			t.Fatalf("%s: expected (%d, %v), got (%d, %v)", tc.key, tc.level, tc.ok, level, ok)
		}
	}
}
