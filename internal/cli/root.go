package cli

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/escalator/internal/control"
	"github.com/vietddude/escalator/internal/core/config"
)

var (
	cfgPath     string
	isDebug     bool
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "escalator",
	Short: "EIP-1559 transaction submitter with fee escalation",
	Long: `Escalator sends fee-market transactions and re-submits them with a rising
priority fee until they are mined or the attempt budget is spent.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file, falls back to RPC_URL/CHAIN_ID/PRIVATE_KEY when missing")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address")
}

// loadConfig reads the config and installs the process logger.
func loadConfig() (*config.AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := config.LoadOrEnv(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		return nil, err
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}

	if err := initLogger(cfg.Logging, isDebug); err != nil {
		stylelog.InitDefault()
		return nil, err
	}
	return cfg, nil
}

// initLogger installs the process logger. --debug overrides logging.level.
func initLogger(cfg config.LoggingConfig, debug bool) error {
	slogLevel, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	if debug {
		slogLevel = slog.LevelDebug
	}

	if cfg.JSON() {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))
		return nil
	}
	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	return nil
}

// startApp loads the config and starts the application. The returned stop
// function shuts it down.
func startApp(ctx context.Context) (*control.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		return nil, nil, err
	}

	app, err := control.NewApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize escalator", "error", err)
		return nil, nil, err
	}
	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start escalator", "error", err)
		_ = app.Stop(context.Background())
		return nil, nil, err
	}

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Stop(shutdownCtx); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}
	return app, stop, nil
}
