package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ontlock/config"
	"ontlock/core"
	"ontlock/core/clock"
	"ontlock/core/events"
	"ontlock/native/vault"
	"ontlock/observability/logging"
	telemetry "ontlock/observability/otel"
	"ontlock/rpc"
	"ontlock/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser := logging.Setup(logging.Options{
		Service:     "ontlockd",
		Environment: cfg.Environment,
		File:        cfg.LogFile,
		MaxSizeMB:   100,
		MaxBackups:  5,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Traces || cfg.Telemetry.Metrics {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: "ontlockd",
			Environment: cfg.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
			Traces:      cfg.Telemetry.Traces,
			Metrics:     cfg.Telemetry.Metrics,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err)
			}
		}()
	}

	db, err := storage.Open(cfg.StorageBackend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StorageBackend, err)
	}

	height, err := heightSource(cfg.Height)
	if err != nil {
		_ = db.Close()
		return err
	}
	params, err := cfg.Params()
	if err != nil {
		_ = db.Close()
		return err
	}
	node, err := core.NewNode(db, params, height)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create node: %w", err)
	}
	defer node.Close()
	node.SetLogger(logger)
	node.SetEmitter(eventLogger{logger: logger.With("component", "events")})
	logVaultParams(logger, params, cfg)

	server, err := rpc.NewServer(node, rpc.ServerConfig{
		RateLimit: rpc.RateLimit{
			RequestsPerMinute: cfg.RPC.RequestsPerMinute,
			Burst:             cfg.RPC.Burst,
			TrustedProxies:    append([]string{}, cfg.RPC.TrustedProxies...),
		},
		JWT: rpc.JWTConfig{
			Secret:  os.Getenv(strings.TrimSpace(cfg.RPC.JWTSecretEnv)),
			Issuer:  "ontlock-operator",
			MaxSkew: time.Minute,
		},
		MaxBodyBytes: cfg.RPC.MaxBodyBytes,
		ReadTimeout:  time.Duration(cfg.RPC.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.RPC.WriteTimeout) * time.Second,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(cfg.RPCAddress) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func heightSource(cfg config.Height) (vault.HeightSource, error) {
	switch cfg.Source {
	case config.HeightSourceEthereum:
		client, err := clock.DialEthereum(cfg.EthereumRPC)
		if err != nil {
			return nil, fmt.Errorf("dial ethereum: %w", err)
		}
		return clock.NewEthereum(client), nil
	default:
		return clock.NewLocal(cfg.GenesisTime(), cfg.BlockInterval())
	}
}

func logVaultParams(logger *slog.Logger, params vault.Params, cfg *config.Config) {
	logger.Info("vault configured",
		"backend", cfg.StorageBackend,
		"height_source", cfg.Height.Source,
		"base_allowance", params.BaseAllowance,
		"multiplier", params.Multiplier,
		"stake_price", params.StakePrice,
		"buy_price", params.BuyPrice,
		"stake_delay", params.StakeDelay,
	)
}

// eventLogger writes committed events to the log. Website names are masked.
type eventLogger struct {
	logger *slog.Logger
}

func (e eventLogger) Emit(evt events.Event) {
	payload := evt.Event()
	if payload == nil {
		return
	}
	args := []any{slog.String("type", payload.Type)}
	for _, key := range payload.AttributeKeys() {
		if key == "website" {
			args = append(args, logging.MaskField(key, payload.Attributes[key]))
			continue
		}
		args = append(args, slog.String(key, payload.Attributes[key]))
	}
	e.logger.Info("event", args...)
}
