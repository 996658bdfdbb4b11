package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken      string         `yaml:"discord_token"`
	DatabaseURL       string         `yaml:"database_url"`
	LogLevel          string         `yaml:"log_level"`
	DefaultLogChannel string         `yaml:"default_log_channel"`
	DefaultTimezone   string         `yaml:"default_timezone"`
	RetentionDays     int            `yaml:"retention_days"`
	Features          FeatureConfig  `yaml:"features"`
	Health            HealthConfig   `yaml:"health"`
	Sentry            SentryConfig   `yaml:"sentry"`
	Leveling          LevelingConfig `yaml:"leveling"`
	Notifications     NotifyConfig   `yaml:"notifications"`
}

type FeatureConfig struct {
	Leveling bool `yaml:"leveling"`
	Settings bool `yaml:"settings"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Release     string `yaml:"release"`
	Environment string `yaml:"environment"`
}

// LevelingConfig holds process-wide defaults. Guild settings override them per call.
type LevelingConfig struct {
	XPPerLevel           int             `yaml:"xp_per_level"`
	InitialXP            int             `yaml:"initial_xp"`
	ExtraXP              int             `yaml:"extra_xp"`
	ExtraXPTrigger       int             `yaml:"extra_xp_trigger"`
	XPMultiplier         int             `yaml:"xp_multiplier"`
	RewardMode           string          `yaml:"reward_mode"`
	LevelUpDeleteSeconds int             `yaml:"level_up_delete_seconds"`
	LeaderboardPageSize  int             `yaml:"leaderboard_page_size"`
	RateLimit            RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	Messages      int `yaml:"messages"`
	WindowSeconds int `yaml:"window_seconds"`
}

type NotifyConfig struct {
	AuditToChannel bool        `yaml:"audit_to_channel"`
	DailyDigest    bool        `yaml:"daily_digest"`
	DigestCron     string      `yaml:"digest_cron"`
	EmbedColors    EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Action  int `yaml:"action"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
}

const (
	RewardModeStack   = "stack"
	RewardModeHighest = "highest"
)

func DefaultConfig() Config {
	return Config{
		DatabaseURL:       "/data/levelbot.db",
		LogLevel:          "info",
		DefaultLogChannel: "",
		DefaultTimezone:   "UTC",
		RetentionDays:     30,
		Features:          FeatureConfig{Leveling: true, Settings: true},
		Health:            HealthConfig{Enabled: false, Addr: ":8080"},
		Leveling: LevelingConfig{
			XPPerLevel:           500,
			InitialXP:            3,
			ExtraXP:              0,
			ExtraXPTrigger:       1,
			XPMultiplier:         1,
			RewardMode:           RewardModeStack,
			LevelUpDeleteSeconds: 5,
			LeaderboardPageSize:  10,
			RateLimit:            RateLimitConfig{Messages: 0, WindowSeconds: 60},
		},
		Notifications: NotifyConfig{
			AuditToChannel: true,
			DailyDigest:    true,
			DigestCron:     "0 0 9 * * *",
			EmbedColors: EmbedColors{
				Action:  0x5865F2,
				Warning: 0xF59E0B,
				Error:   0xEF4444,
			},
		},
	}
}

// Load reads the configuration and requires a bot token.
func Load() (Config, error) {
	cfg, err := LoadFile()
	if err != nil {
		return Config{}, err
	}
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	return cfg, nil
}

// LoadFile applies the .env file, the YAML file and environment overrides to the defaults.
func LoadFile() (Config, error) {
	cfg := DefaultConfig()

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, err
		}
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabaseURL = envString("DATABASE_URL", cfg.DatabaseURL)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultLogChannel = envString("DEFAULT_LOG_CHANNEL", cfg.DefaultLogChannel)
	cfg.DefaultTimezone = envString("DEFAULT_TIMEZONE", cfg.DefaultTimezone)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Features.Leveling = envBool("FEATURE_LEVELING", cfg.Features.Leveling)
	cfg.Features.Settings = envBool("FEATURE_SETTINGS", cfg.Features.Settings)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Sentry.DSN = envString("SENTRY_DSN", cfg.Sentry.DSN)
	cfg.Sentry.Release = envString("SENTRY_RELEASE", cfg.Sentry.Release)
	cfg.Sentry.Environment = envString("SENTRY_ENVIRONMENT", cfg.Sentry.Environment)
	cfg.Leveling.XPPerLevel = envInt("LEVELING_XP_PER_LEVEL", cfg.Leveling.XPPerLevel)
	cfg.Leveling.InitialXP = envInt("LEVELING_INITIAL_XP", cfg.Leveling.InitialXP)
	cfg.Leveling.ExtraXP = envInt("LEVELING_EXTRA_XP", cfg.Leveling.ExtraXP)
	cfg.Leveling.ExtraXPTrigger = envInt("LEVELING_EXTRA_XP_TRIGGER", cfg.Leveling.ExtraXPTrigger)
	cfg.Leveling.XPMultiplier = envInt("LEVELING_XP_MULTIPLIER", cfg.Leveling.XPMultiplier)
	cfg.Leveling.RewardMode = envString("LEVELING_REWARD_MODE", cfg.Leveling.RewardMode)
	cfg.Leveling.LevelUpDeleteSeconds = envInt("LEVELING_LEVEL_UP_DELETE_SECONDS", cfg.Leveling.LevelUpDeleteSeconds)
	cfg.Leveling.LeaderboardPageSize = envInt("LEVELING_LEADERBOARD_PAGE_SIZE", cfg.Leveling.LeaderboardPageSize)
	cfg.Leveling.RateLimit.Messages = envInt("LEVELING_RATE_LIMIT_MESSAGES", cfg.Leveling.RateLimit.Messages)
	cfg.Leveling.RateLimit.WindowSeconds = envInt("LEVELING_RATE_LIMIT_WINDOW_SECONDS", cfg.Leveling.RateLimit.WindowSeconds)
	cfg.Notifications.AuditToChannel = envBool("AUDIT_TO_CHANNEL", cfg.Notifications.AuditToChannel)
	cfg.Notifications.DailyDigest = envBool("DAILY_DIGEST", cfg.Notifications.DailyDigest)
	cfg.Notifications.DigestCron = envString("DIGEST_CRON", cfg.Notifications.DigestCron)
	cfg.Notifications.EmbedColors.Action = envInt("EMBED_COLOR_ACTION", cfg.Notifications.EmbedColors.Action)
	cfg.Notifications.EmbedColors.Warning = envInt("EMBED_COLOR_WARNING", cfg.Notifications.EmbedColors.Warning)
	cfg.Notifications.EmbedColors.Error = envInt("EMBED_COLOR_ERROR", cfg.Notifications.EmbedColors.Error)
}

func normalize(cfg *Config) {
	defaults := DefaultConfig().Leveling
	if cfg.Leveling.XPPerLevel <= 0 {
		cfg.Leveling.XPPerLevel = defaults.XPPerLevel
	}
	if cfg.Leveling.XPMultiplier <= 0 {
		cfg.Leveling.XPMultiplier = defaults.XPMultiplier
	}
	if cfg.Leveling.LeaderboardPageSize <= 0 {
		cfg.Leveling.LeaderboardPageSize = defaults.LeaderboardPageSize
	}
	cfg.Leveling.RewardMode = normalizeRewardMode(cfg.Leveling.RewardMode)
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func normalizeRewardMode(value string) string {
	switch strings.ToLower(value) {
	case RewardModeHighest:
		return RewardModeHighest
	default:
		return RewardModeStack
	}
}
