// Package main is the entry point for the gh-notifier daemon: the
// long-running process that authenticates, polls GitHub's notifications
// inbox, persists and dispatches new items, and exposes the Control API.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryonbaker/gh-notifier/internal/api"
	"github.com/bryonbaker/gh-notifier/internal/config"
	"github.com/bryonbaker/gh-notifier/internal/credential"
	"github.com/bryonbaker/gh-notifier/internal/dispatch"
	"github.com/bryonbaker/gh-notifier/internal/engine"
	"github.com/bryonbaker/gh-notifier/internal/logging"
	"github.com/bryonbaker/gh-notifier/internal/metrics"
	"github.com/bryonbaker/gh-notifier/internal/remote"
	"github.com/bryonbaker/gh-notifier/internal/retention"
	"github.com/bryonbaker/gh-notifier/internal/storagemonitor"
	"github.com/bryonbaker/gh-notifier/internal/store"
	"github.com/bryonbaker/gh-notifier/internal/syncstate"
)

func main() {
	configPath := os.Getenv("GH_NOTIFIER_CONFIG")
	if configPath == "" {
		dir, err := config.Dir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to resolve config directory: %v\n", err)
			os.Exit(1)
		}
		configPath = dir + "/config.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting gh-notifier",
		zap.String("log_level", cfg.LogLevel),
		zap.String("db_path", cfg.DBPath),
	)

	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal("failed to open notification store", zap.Error(err))
	}
	defer st.Close()

	state, err := syncstate.Load(cfg.StatePath)
	if err != nil {
		logger.Fatal("failed to load sync state", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	metricsServer := metrics.NewServer(int(cfg.APIPort)+1, "/metrics", "/healthz", "/ready", registry,
		metrics.ComponentStore, metrics.ComponentCredentials, metrics.ComponentRemote, metrics.ComponentEngine)
	metricsServer.UpdateHealthCheck(metrics.ComponentStore, "ok")

	creds := credential.NewLayeredStore(cfg.CredentialPath, logger)

	sinks := []dispatch.Sink{dispatch.NewLogSink(logger)}
	if desktopSinkAvailable() {
		sinks = append(sinks, dispatch.NewDesktopSink(""))
	}
	sink := dispatch.NewMultiSink(sinks...)

	engCfg := engine.Config{
		PollInterval:            time.Duration(cfg.PollIntervalSec) * time.Second,
		MarkAsReadOnNotify:      cfg.MarkAsReadOnNotify,
		PersistentNotifications: cfg.PersistentNotifications,
		RecoveryWindow:          time.Duration(cfg.NotificationRecoveryWindow) * time.Hour,
		BatchSize:               int(cfg.BatchSize),
		BatchInterval:           time.Duration(cfg.BatchIntervalSec) * time.Second,
		RetryCount:              int(cfg.RetryCount),
		RetryInterval:           time.Duration(cfg.RetryIntervalSec) * time.Second,
		Filter:                  cfg.Filter,
	}

	eng := engine.New(engCfg, nil, st, state, creds, sink, promptForToken, logger, m, metricsServer.HealthChecks())
	rc := remote.New(eng, int(cfg.RetryCount), int64(cfg.RetryIntervalSec), logger)
	eng.SetRemote(rc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting metrics server", zap.Int("port", int(cfg.APIPort)+1))
		return metricsServer.Start()
	})

	g.Go(func() error {
		logger.Info("starting sync engine")
		metricsServer.UpdateHealthCheck(metrics.ComponentEngine, "ok")
		return eng.Run(gCtx)
	})

	ret := retention.New(st, cfg, m, logger)
	g.Go(func() error {
		ret.Start(gCtx)
		return nil
	})

	mon := storagemonitor.New(st, cfg, m, logger)
	g.Go(func() error {
		mon.Start(gCtx)
		return nil
	})

	var apiServer *api.Server
	if cfg.APIEnabled {
		apiServer, err = api.New(cfg.APIPort, st, rc, logger)
		if err != nil {
			logger.Fatal("failed to start control API", zap.Error(err))
		}
		g.Go(func() error {
			logger.Info("starting control API", zap.Uint16("port", cfg.APIPort))
			return apiServer.Start()
		})
	}

	metricsServer.SetReady(true)
	logger.Info("gh-notifier is ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-gCtx.Done():
		logger.Info("context cancelled")
	}

	logger.Info("starting graceful shutdown")
	metricsServer.SetReady(false)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("control API shutdown error", zap.Error(err))
		}
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	if err := g.Wait(); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}

	logger.Info("gh-notifier shutdown complete")
}

// promptForToken is the engine's AuthPrompt: the single blocking stdin
// operation in the whole system.
func promptForToken(ctx context.Context) (string, error) {
	fmt.Fprint(os.Stderr, "Enter your GitHub personal access token: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading token from stdin: %w", err)
	}
	token := trimNewline(line)
	if token == "" {
		return "", fmt.Errorf("no token entered")
	}
	return token, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// desktopSinkAvailable reports whether a desktop notification backend is
// likely to be usable in the current environment. beeep best-effort-fails
// on headless systems anyway; this just avoids registering a sink that
// would only ever log spurious errors there.
func desktopSinkAvailable() bool {
	return os.Getenv("GH_NOTIFIER_NO_DESKTOP") == ""
}
