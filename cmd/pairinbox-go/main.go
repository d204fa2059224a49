// Package main is the entrypoint for the pairinbox-go server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/events"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/notifications"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/panel"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/panel/tui"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/requests"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/sweeper"
	"github.com/MahdiBaghbani/pairinbox-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/cache"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/config"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/deps"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/http/server"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/pairinbox-go/internal/store"

	// Register cache drivers, store drivers, interceptors and services
	_ "github.com/MahdiBaghbani/pairinbox-go/internal/platform/cache/loader"
	_ "github.com/MahdiBaghbani/pairinbox-go/internal/services/loader"
	_ "github.com/MahdiBaghbani/pairinbox-go/internal/store/loader"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: strict or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	externalBasePath := flag.String("external-base-path", "", "External base path (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	loggingFile := flag.String("logging-file", "", "Write logs to this file instead of stdout (overrides config)")
	storeDriver := flag.String("store-driver", "", "UI state store: memory, json, or sqlite (overrides config)")
	storeDataDir := flag.String("store-data-dir", "", "UI state store data directory (overrides config)")
	tuiEnabled := flag.String("tui", "", "Run the terminal panel: true or false (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := logutil.New("info", os.Stderr)

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:       flagValue(listenAddr),
			ExternalBasePath: flagValue(externalBasePath),
			LoggingLevel:     flagValue(loggingLevel),
			LoggingFile:      flagValue(loggingFile),
			StoreDriver:      flagValue(storeDriver),
			StoreDataDir:     flagValue(storeDataDir),
			TUIEnabled:       flagValue(tuiEnabled),
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		bootstrapLogger.Error("pairinbox-go exited with error", "error", err)
		os.Exit(1)
	}
}

// flagValue maps an unset string flag to nil so it does not override config.
func flagValue(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// logOutput picks where logs go. The TUI owns the terminal, so without a
// log file its logs are dropped.
func logOutput(cfg *config.Config) (io.Writer, func() error, error) {
	if cfg.Logging.File != "" {
		if dir := filepath.Dir(cfg.Logging.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return f, f.Close, nil
	}
	if cfg.TUI.Enabled {
		return io.Discard, func() error { return nil }, nil
	}
	return os.Stdout, func() error { return nil }, nil
}

func run(cfg *config.Config) error {
	out, closeLog, err := logOutput(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	logger := logutil.New(cfg.Logging.Level, out)
	slog.SetDefault(logger)

	// Log effective config with secrets redacted
	logger.Info("effective configuration", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, uiState, err := store.OpenUIState(ctx, &store.DriverConfig{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
	})
	if err != nil {
		return fmt.Errorf("open ui state store: %w", err)
	}
	defer driver.Close()

	counters, err := cache.NewFromConfig(cfg.Cache.Driver, cfg.Cache.Drivers, logger)
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}
	defer counters.Close()

	clock := time.Now
	bus := events.NewBus(clock, logger)
	queue := requests.NewQueue(requests.Options{
		TTL:       cfg.Pairing.RequestTTL(),
		Clock:     clock,
		Publisher: bus,
		Logger:    logger,
	})
	inlet := requests.NewInlet(queue, bus, logger)
	defer inlet.Close()
	relay := requests.NewCommandRelay(bus, bus)
	defer relay.Close()

	presenter := notifications.NewPresenter(bus, cfg.Pairing.NotificationHistory, logger)
	defer presenter.Close()

	pnl := panel.New(queue, uiState, panel.Options{Tag: cfg.Pairing.SectionTag, Logger: logger})

	sweep, err := sweeper.New(queue, cfg.Pairing.SweepSchedule, clock, logger)
	if err != nil {
		return err
	}

	deps.SetDeps(&deps.Deps{
		Queue:     queue,
		Bus:       bus,
		Panel:     pnl,
		Presenter: presenter,
		UIState:   uiState,
		Config:    cfg,
		Cache:     counters,
		RealIP:    realip.NewTrustedProxies(cfg.Server.TrustedProxies),
		Clock:     clock,
		Logger:    logger,
	})

	services, err := service.BuildAll(cfg.BuildServiceConfig, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, logger, services)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	if err := sweep.Start(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if cfg.TUI.Enabled {
		// Quitting the panel stops the process.
		go func() {
			if err := tui.Run(ctx, pnl, presenter, clock); err != nil {
				logger.Error("terminal panel error", "error", err)
			}
			stop()
		}()
	}

	logger.Info("server started, press Ctrl+C to stop")

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr = <-errCh:
		logger.Error("server error", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sweep.Stop(shutdownCtx); err != nil {
		logger.Warn("sweeper stop error", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Join(serveErr, fmt.Errorf("shutdown: %w", err))
	}

	logger.Info("server stopped", "pending", queue.Count())
	return serveErr
}
