package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"yzyvault/observability/logging"
	telemetry "yzyvault/observability/otel"
	"yzyvault/services/vaultd"
	"yzyvault/services/vaultd/config"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/vaultd/config.yaml", "path to vaultd config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	env := strings.TrimSpace(os.Getenv("YZY_ENV"))
	if env == "" {
		env = cfg.Environment
	}
	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service:    "vaultd",
		Env:        env,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	telemetryCfg := telemetry.Config{
		ServiceName: "vaultd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	}.ApplyEnv(os.Getenv)
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetryCfg)
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := vaultd.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("start vaultd: %v", err)
	}
	defer svc.Close()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Fatalf("listen on %s: %v", cfg.ListenAddress, err)
	}
	if err := svc.Serve(ctx, listener); err != nil {
		logger.Error("vaultd stopped", "error", err)
		os.Exit(1)
	}
}
