package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/MahdiBaghbani/pairinbox-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/config"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/deps"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/http/realip"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// trackingService is a test service that records when Close() is called.
type trackingService struct {
	name       string
	prefix     string
	closeOrder *[]string
}

func (t *trackingService) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, t.name+":"+r.URL.Path)
	})
}
func (t *trackingService) Prefix() string       { return t.prefix }
func (t *trackingService) Unprotected() []string { return nil }
func (t *trackingService) Close() error {
	if t.closeOrder != nil {
		*t.closeOrder = append(*t.closeOrder, t.name)
	}
	return nil
}

// Verify trackingService implements service.Service
var _ service.Service = (*trackingService)(nil)

func setupTestSharedDeps(t *testing.T) {
	t.Helper()
	deps.ResetDeps()
	t.Cleanup(deps.ResetDeps)
	deps.SetDeps(&deps.Deps{RealIP: realip.NewTrustedProxies(nil)})
}

func TestNew_FailsWithNilSharedDeps(t *testing.T) {
	deps.ResetDeps()

	_, err := New(config.DevConfig(), testLogger, nil)
	if !errors.Is(err, ErrMissingSharedDeps) {
		t.Errorf("expected ErrMissingSharedDeps, got %v", err)
	}
}

func TestShutdown_ClosesServicesInReverseOrder(t *testing.T) {
	setupTestSharedDeps(t)

	var closeOrder []string
	srv, err := New(config.DevConfig(), testLogger, map[string]service.Service{
		"zeta": &trackingService{name: "zeta", prefix: "zeta", closeOrder: &closeOrder},
		"ui":   &trackingService{name: "ui", prefix: "ui", closeOrder: &closeOrder},
		"api":  &trackingService{name: "api", prefix: "api", closeOrder: &closeOrder},
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	// Mounted api, ui, zeta; closed in reverse.
	expected := []string{"zeta", "ui", "api"}
	if len(closeOrder) != len(expected) {
		t.Fatalf("expected %d services closed, got %d: %v", len(expected), len(closeOrder), closeOrder)
	}
	for i, name := range expected {
		if closeOrder[i] != name {
			t.Errorf("close order[%d] = %q, want %q", i, closeOrder[i], name)
		}
	}
}

func TestRoutes_MountUnderBasePath(t *testing.T) {
	setupTestSharedDeps(t)

	cfg := config.DevConfig()
	cfg.ExternalBasePath = "/inbox"
	srv, err := New(cfg, testLogger, map[string]service.Service{
		"api": &trackingService{name: "api", prefix: "api"},
		"ui":  &trackingService{name: "ui", prefix: "ui"},
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/inbox/api/pair-requests", http.StatusOK, "api:/pair-requests"},
		{"/inbox/ui/pair-requests", http.StatusOK, "ui:/pair-requests"},
		{"/api/pair-requests", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
		if rec.Code != tt.wantCode {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.wantCode, rec.Code)
		}
		if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
			t.Errorf("%s: expected body %q, got %q", tt.path, tt.wantBody, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/inbox/", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/inbox/ui/pair-requests" {
		t.Errorf("expected redirect to ui page, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestRoutes_NoRootRedirectWithoutUI(t *testing.T) {
	setupTestSharedDeps(t)

	srv, err := New(config.DevConfig(), testLogger, map[string]service.Service{
		"api": &trackingService{name: "api", prefix: "api"},
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServe_ShutdownReturnsServerClosed(t *testing.T) {
	setupTestSharedDeps(t)

	srv, err := New(config.DevConfig(), testLogger, map[string]service.Service{
		"api": &trackingService{name: "api", prefix: "api"},
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		t.Errorf("expected http.ErrServerClosed, got %v", err)
	}
}
