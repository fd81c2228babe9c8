package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"occupancy-status-backend/config"
	"occupancy-status-backend/internal/agent"
	"occupancy-status-backend/internal/device"
	"occupancy-status-backend/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	var (
		configPath string
		serverURL  string
		policy     string
	)
	flagSet := pflag.NewFlagSet("motion-agent", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", envOr("CONFIG_PATH", config.DefaultPath), "path to the YAML configuration file")
	flagSet.StringVar(&serverURL, "server-url", "", "occupancy server report URL (overrides agent.server_url)")
	interval := flagSet.Duration("interval", 0, "sampling interval, e.g. 1s (overrides agent.interval_seconds)")
	flagSet.StringVar(&policy, "policy", "", `reporting policy, "level" or "edge" (overrides agent.policy)`)

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(configPath, flagSet.Changed("config") || os.Getenv("CONFIG_PATH") != "")
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	if flagSet.Changed("server-url") {
		cfg.Agent.ServerURL = serverURL
	}
	if flagSet.Changed("interval") && *interval > 0 {
		cfg.Agent.Interval = *interval
	}
	if flagSet.Changed("policy") {
		switch policy {
		case config.PolicyLevel, config.PolicyEdge:
			cfg.Agent.Policy = policy
		default:
			return fmt.Errorf("%w, got %q", config.ErrInvalidPolicy, policy)
		}
	}

	logger, err := logging.NewLogger("motion-agent", cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	sensor, err := device.NewSensor(cfg.Agent.Sensor)
	if err != nil {
		return err
	}
	indicator, err := device.NewIndicator(cfg.Agent.Indicator, logger.Named("indicator"))
	if err != nil {
		_ = sensor.Close()
		return err
	}

	logger.Info("configuration loaded",
		zap.String("config", configPath),
		zap.String("server_url", cfg.Agent.ServerURL),
		zap.String("sensor", cfg.Agent.Sensor.Kind),
		zap.String("indicator", cfg.Agent.Indicator.Kind))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reporter := agent.NewHTTPReporter(cfg.Agent.ServerURL, cfg.Agent.RequestTimeout)
	a := agent.New(sensor, indicator, reporter, cfg.Agent.Policy, cfg.Agent.Interval, agent.WithLogger(logger))
	return a.Run(ctx)
}

// loadConfig requires the file to exist when the path was named by the user.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if explicit {
		return config.Load(path)
	}
	return config.LoadOptional(path)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
