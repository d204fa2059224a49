// Package harness provides test utilities for integration tests.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/events"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/notifications"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/panel"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/requests"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/sweeper"
	"github.com/MahdiBaghbani/pairinbox-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/cache"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/config"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/deps"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/http/server"
	"github.com/MahdiBaghbani/pairinbox-go/internal/store"

	// Register drivers, interceptors and services (triggers init() registration)
	_ "github.com/MahdiBaghbani/pairinbox-go/internal/platform/cache/loader"
	_ "github.com/MahdiBaghbani/pairinbox-go/internal/services/loader"
	_ "github.com/MahdiBaghbani/pairinbox-go/internal/store/loader"
)

// Options tunes the in-process server.
type Options struct {
	// TTL overrides the request TTL. Zero keeps the dev default.
	TTL time.Duration

	// Configure edits the config before anything is built.
	Configure func(cfg *config.Config)
}

// TestServer wraps a server instance for testing.
type TestServer struct {
	Server  *server.Server
	Config  *config.Config
	Queue   *requests.Queue
	Bus     *events.Bus
	BaseURL string

	sweeper *sweeper.Sweeper
	closers []func()
}

// StartTestServer wires the same components as the binary, with the memory
// store and memory cache, and serves them on a free local port.
func StartTestServer(t *testing.T, opts Options) *TestServer {
	t.Helper()

	cfg := config.DevConfig()
	cfg.Store.Driver = "memory"
	cfg.Cache.Driver = "memory"
	if opts.TTL > 0 {
		cfg.Pairing.RequestTTLSeconds = int((opts.TTL + time.Second - 1) / time.Second)
	}
	if opts.Configure != nil {
		opts.Configure(cfg)
	}

	// Only log warnings and errors during tests
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ts := &TestServer{Config: cfg}
	fail := func(format string, args ...any) {
		t.Helper()
		ts.closeAll()
		t.Fatalf(format, args...)
	}

	driver, uiState, err := store.OpenUIState(context.Background(), &store.DriverConfig{Driver: cfg.Store.Driver})
	if err != nil {
		fail("failed to open ui state store: %v", err)
	}
	ts.closers = append(ts.closers, func() { driver.Close() })

	counters, err := cache.NewFromConfig(cfg.Cache.Driver, cfg.Cache.Drivers, logger)
	if err != nil {
		fail("failed to create cache: %v", err)
	}
	ts.closers = append(ts.closers, func() { counters.Close() })

	ts.Bus = events.NewBus(time.Now, logger)
	ts.Queue = requests.NewQueue(requests.Options{
		TTL:       cfg.Pairing.RequestTTL(),
		Publisher: ts.Bus,
		Logger:    logger,
	})
	inlet := requests.NewInlet(ts.Queue, ts.Bus, logger)
	relay := requests.NewCommandRelay(ts.Bus, ts.Bus)
	presenter := notifications.NewPresenter(ts.Bus, cfg.Pairing.NotificationHistory, logger)
	ts.closers = append(ts.closers, inlet.Close, relay.Close, presenter.Close)

	pnl := panel.New(ts.Queue, uiState, panel.Options{Tag: cfg.Pairing.SectionTag, Logger: logger})

	// Reset and set SharedDeps for this test (important for test isolation)
	deps.ResetDeps()
	deps.SetDeps(&deps.Deps{
		Queue:     ts.Queue,
		Bus:       ts.Bus,
		Panel:     pnl,
		Presenter: presenter,
		UIState:   uiState,
		Config:    cfg,
		Cache:     counters,
		RealIP:    realip.NewTrustedProxies(cfg.Server.TrustedProxies),
		Logger:    logger,
	})
	ts.closers = append(ts.closers, deps.ResetDeps)

	services, err := service.BuildAll(cfg.BuildServiceConfig, logger)
	if err != nil {
		fail("failed to build services: %v", err)
	}

	ts.Server, err = server.New(cfg, logger, services)
	if err != nil {
		fail("failed to create server: %v", err)
	}

	ts.sweeper, err = sweeper.New(ts.Queue, cfg.Pairing.SweepSchedule, nil, logger)
	if err != nil {
		fail("failed to create sweeper: %v", err)
	}
	if err := ts.sweeper.Start(); err != nil {
		fail("failed to start sweeper: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fail("failed to listen: %v", err)
	}
	go func() {
		if err := ts.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("test server stopped", "error", err)
		}
	}()

	ts.BaseURL = fmt.Sprintf("http://%s%s", ln.Addr().String(), cfg.ExternalBasePath)
	if err := waitForServerReady(ts.BaseURL, 5*time.Second); err != nil {
		ts.Stop(t)
		t.Fatalf("server failed to start: %v", err)
	}

	t.Cleanup(func() { ts.Stop(t) })
	return ts
}

// Stop stops the sweeper and server and releases everything StartTestServer
// opened. Safe to call more than once.
func (ts *TestServer) Stop(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if ts.sweeper != nil {
		ts.sweeper.Stop(ctx)
		ts.sweeper = nil
	}
	if ts.Server != nil {
		if err := ts.Server.Shutdown(ctx); err != nil {
			t.Logf("warning: shutdown error: %v", err)
		}
		ts.Server = nil
	}
	ts.closeAll()
}

func (ts *TestServer) closeAll() {
	for i := len(ts.closers) - 1; i >= 0; i-- {
		ts.closers[i]()
	}
	ts.closers = nil
}

// getFreePort finds an available TCP port.
func getFreePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// waitForServerReady waits for a server to answer its health endpoint.
func waitForServerReady(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/api/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	return fmt.Errorf("server not ready after %v", timeout)
}
