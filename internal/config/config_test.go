package config

import (
	"os"
	"path/filepath"
	"testing"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	t.Setenv("DISCORD_TOKEN", "")
	return dir
}

func TestLoadRequiresToken(t *testing.T) {
	isolate(t)
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing token error")
	}
	cfg, err := LoadFile()
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg.Leveling.XPPerLevel != 500 || cfg.Leveling.InitialXP != 3 || cfg.Leveling.RewardMode != RewardModeStack {
		t.Fatalf("unexpected defaults: %+v", cfg.Leveling)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	data := []byte("log_level: debug\nleveling:\n  xp_per_level: 250\n  reward_mode: HIGHEST\n  leaderboard_page_size: 0\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("LEVELING_INITIAL_XP", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Leveling.XPPerLevel != 250 || cfg.Leveling.InitialXP != 7 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Leveling.RewardMode != RewardModeHighest {
		t.Fatalf("expected reward mode to normalize, got %q", cfg.Leveling.RewardMode)
	}
	if cfg.Leveling.LeaderboardPageSize != 10 {
		t.Fatalf("expected page size default, got %d", cfg.Leveling.LeaderboardPageSize)
	}
}

func TestDotEnv(t *testing.T) {
	dir := isolate(t)
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("DISCORD_TOKEN=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("ENV_FILE", envPath)
	os.Unsetenv("DISCORD_TOKEN")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DiscordToken != "from-dotenv" {
		t.Fatalf("expected token from .env, got %q", cfg.DiscordToken)
	}
	os.Unsetenv("DISCORD_TOKEN")
}

func TestNormalizeRewardMode(t *testing.T) {
	cases := map[string]string{
		"stack":   RewardModeStack,
		"highest": RewardModeHighest,
		"Highest": RewardModeHighest,
		"":        RewardModeStack,
		"bogus":   RewardModeStack,
	}
	for in, want := range cases {
		if got := normalizeRewardMode(in); got != want {
			t.Fatalf("normalizeRewardMode(%q) = %q, want %q", in, got, want)
		}
	}
}
