package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"levelbot/internal/analytics"
	"levelbot/internal/bot"
	"levelbot/internal/config"
	"levelbot/internal/leveling"
	"levelbot/internal/modules/audit"
	"levelbot/internal/settings"
	"levelbot/internal/storage"
	"levelbot/internal/timezone"

	"github.com/getsentry/raven-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "levelbot",
	Short:         "Discord leveling bot",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBot,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Discord and serve commands",
	RunE:  runBot,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $CONFIG_PATH or config.yaml)")
	rootCmd.AddCommand(runCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func applyConfigFlag() {
	if configPath != "" {
		_ = os.Setenv("CONFIG_PATH", configPath)
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	applyConfigFlag()
	cfg, err := config.LoadFile()
	if err != nil {
		return err
	}
	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migrations applied", zap.String("dialect", store.Dialect()))
	return nil
}

func runBot(cmd *cobra.Command, args []string) error {
	applyConfigFlag()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	if cfg.Sentry.DSN != "" {
		if err := raven.SetDSN(cfg.Sentry.DSN); err != nil {
			logger.Warn("sentry disabled", zap.Error(err))
		}
		raven.SetRelease(cfg.Sentry.Release)
		raven.SetEnvironment(cfg.Sentry.Environment)
	}

	store, err := storage.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	guildSettings := settings.New(store)
	clock, err := timezone.New(guildSettings, cfg.DefaultTimezone, logger)
	if err != nil {
		logger.Fatal("invalid default timezone", zap.String("timezone", cfg.DefaultTimezone), zap.Error(err))
	}
	engine := leveling.NewEngine(cfg.Leveling, store, guildSettings, clock, logger)
	auditLogger := audit.NewLogger(store, logger)
	analyticsService := analytics.New(store, logger)

	botSvc, err := bot.New(cfg, logger, store, engine, guildSettings, auditLogger, analyticsService)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			if err := store.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("storage unavailable"))
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
	return nil
}
