package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/batman-nair/TimeTrak/internal/config"
	"github.com/batman-nair/TimeTrak/internal/metrics"
	"github.com/batman-nair/TimeTrak/internal/presence"
	"github.com/batman-nair/TimeTrak/internal/storage"
	"github.com/batman-nair/TimeTrak/internal/storage/bolt"
	"github.com/batman-nair/TimeTrak/internal/storage/redis"
	"github.com/batman-nair/TimeTrak/internal/systemd"
	"github.com/batman-nair/TimeTrak/internal/tracker"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the tracking server",
	Long:  `Run the TimeTrak server: poll the presence gateway every interval and fold activity snapshots into session records.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting TimeTrak")

	store, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().Str("type", cfg.Storage.Type).Msg("Storage initialized")

	source := presence.NewClient(presence.Config{
		GatewayURL: cfg.Presence.GatewayURL,
		Token:      cfg.Presence.Token,
		Timeout:    parseDuration(cfg.Presence.Timeout, 10*time.Second),
		Retries:    cfg.Presence.Retries,
	}, logger)

	logger.Info().Str("gateway", cfg.Presence.GatewayURL).Msg("Presence source initialized")

	trak := tracker.New(store, source, tracker.Config{
		PollInterval: cfg.PollInterval(),
	}, logger)
	trak.Start()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Metrics.BindAddress, cfg.Metrics.Port)
		metricsServer = metrics.NewServer(metricsAddr, logger)

		// Use a systemd socket-activated listener if available
		ln, err := systemd.MetricsListener()
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to get systemd metrics listener")
		} else if ln != nil {
			metricsServer.SetListener(ln)
		}

		if err := metricsServer.Start(); err != nil {
			logger.Error().Err(err).Msg("Failed to start metrics server")
		} else {
			logger.Info().Str("addr", metricsAddr).Msg("Metrics server started")
		}
	}

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	logger.Info().
		Dur("poll_interval", cfg.PollInterval()).
		Dur("session_break_delay", cfg.SessionBreakDelay()).
		Msg("TimeTrak startup complete")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	trak.Stop()

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}

	logger.Info().Msg("TimeTrak stopped")
	return nil
}

// openStorage opens the configured storage backend.
func openStorage(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "bolt":
		return bolt.Open(cfg.Storage.Path, cfg.SessionBreakDelay())
	case "redis":
		return redis.Open(cfg.Storage.Redis, cfg.SessionBreakDelay())
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
	}

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(out).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
