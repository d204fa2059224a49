package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/http/realip"
)

// accessLogRecorder captures access log records with all their attributes.
type accessLogRecorder struct {
	mu      sync.Mutex
	records []accessLogRecord
	level   slog.Level
}

type accessLogRecord struct {
	message string
	level   slog.Level
	attrs   map[string]any
}

func newAccessLogRecorder(level slog.Level) *accessLogRecorder {
	return &accessLogRecorder{
		level: level,
	}
}

func (r *accessLogRecorder) Enabled(_ context.Context, level slog.Level) bool {
	return level >= r.level
}

func (r *accessLogRecorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	attrs := make(map[string]any)
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	r.records = append(r.records, accessLogRecord{
		message: rec.Message,
		level:   rec.Level,
		attrs:   attrs,
	})
	return nil
}

func (r *accessLogRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &accessLogRecorderWithAttrs{
		parent:      r,
		parentAttrs: attrs,
	}
}

func (r *accessLogRecorder) WithGroup(name string) slog.Handler {
	return r
}

func (r *accessLogRecorder) getRecords() []accessLogRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]accessLogRecord, len(r.records))
	copy(result, r.records)
	return result
}

// accessLogRecorderWithAttrs captures logs with pre-attached attrs.
type accessLogRecorderWithAttrs struct {
	parent      *accessLogRecorder
	parentAttrs []slog.Attr
}

func (r *accessLogRecorderWithAttrs) Enabled(ctx context.Context, level slog.Level) bool {
	return r.parent.Enabled(ctx, level)
}

func (r *accessLogRecorderWithAttrs) Handle(_ context.Context, rec slog.Record) error {
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()

	attrs := make(map[string]any)
	// Add parent attrs first
	for _, a := range r.parentAttrs {
		attrs[a.Key] = a.Value.Any()
	}
	// Add record attrs
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	r.parent.records = append(r.parent.records, accessLogRecord{
		message: rec.Message,
		level:   rec.Level,
		attrs:   attrs,
	})
	return nil
}

func (r *accessLogRecorderWithAttrs) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(r.parentAttrs)+len(attrs))
	copy(newAttrs, r.parentAttrs)
	copy(newAttrs[len(r.parentAttrs):], attrs)
	return &accessLogRecorderWithAttrs{
		parent:      r.parent,
		parentAttrs: newAttrs,
	}
}

func (r *accessLogRecorderWithAttrs) WithGroup(name string) slog.Handler {
	return r
}

// chain builds the middleware order used by the server router.
func chain(logger *slog.Logger, tp *realip.TrustedProxies, withRequestLogger bool) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if withRequestLogger {
		r.Use(RequestLoggerMiddleware(logger, tp))
	}
	r.Use(AccessLogMiddleware(logger, tp))
	r.Use(chimw.Recoverer)
	return r
}

func findRequestRecord(t *testing.T, records []accessLogRecord) accessLogRecord {
	t.Helper()
	for _, rec := range records {
		if rec.message == "request" {
			return rec
		}
	}
	t.Fatal("expected 'request' access log entry")
	return accessLogRecord{}
}

var accessFields = []string{"request_id", "method", "path", "client_ip", "status", "bytes", "duration_ms"}

func TestAccessLogMiddleware_RequiredFields(t *testing.T) {
	recorder := newAccessLogRecorder(slog.LevelInfo)
	r := chain(slog.New(recorder), realip.NewTrustedProxies([]string{"127.0.0.0/8"}), true)
	r.Post("/api/pair-requests", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	})

	req := httptest.NewRequest("POST", "/api/pair-requests?x=1", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	r.ServeHTTP(httptest.NewRecorder(), req)

	rec := findRequestRecord(t, recorder.getRecords())
	for _, field := range accessFields {
		if _, ok := rec.attrs[field]; !ok {
			t.Errorf("missing access log field %q", field)
		}
	}
	if rec.attrs["path"] != "/api/pair-requests" {
		t.Errorf("expected path without query, got %v", rec.attrs["path"])
	}
	if rec.attrs["client_ip"] != "203.0.113.9" {
		t.Errorf("expected forwarded client ip, got %v", rec.attrs["client_ip"])
	}
	if status, ok := rec.attrs["status"].(int64); !ok || status != 201 {
		t.Errorf("expected status 201, got %v (type %T)", rec.attrs["status"], rec.attrs["status"])
	}
	if rec.level != slog.LevelInfo {
		t.Errorf("expected info level, got %v", rec.level)
	}
}

func TestAccessLogMiddleware_FallbackWhenContextLoggerMissing(t *testing.T) {
	recorder := newAccessLogRecorder(slog.LevelInfo)
	r := chain(slog.New(recorder), nil, false)
	r.Post("/fallback-test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("POST", "/fallback-test", nil)
	req.RemoteAddr = "192.0.2.7:54321"
	r.ServeHTTP(httptest.NewRecorder(), req)

	rec := findRequestRecord(t, recorder.getRecords())
	for _, field := range accessFields {
		if _, ok := rec.attrs[field]; !ok {
			t.Errorf("fallback: missing access log field %q", field)
		}
	}
	if rec.attrs["method"] != "POST" {
		t.Errorf("fallback: expected method 'POST', got %v", rec.attrs["method"])
	}
	if rec.attrs["client_ip"] != "192.0.2.7" {
		t.Errorf("fallback: expected client ip from RemoteAddr, got %v", rec.attrs["client_ip"])
	}
}

func TestAccessLogMiddleware_PanicLogsStatus500AtError(t *testing.T) {
	recorder := newAccessLogRecorder(slog.LevelInfo)
	r := chain(slog.New(recorder), nil, true)
	r.Get("/panic-test", func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/panic-test", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected HTTP 500, got %d", rr.Code)
	}
	rec := findRequestRecord(t, recorder.getRecords())
	if status, ok := rec.attrs["status"].(int64); !ok || status != 500 {
		t.Errorf("expected status 500 for panic, got %v", rec.attrs["status"])
	}
	if rec.level != slog.LevelError {
		t.Errorf("expected error level for 500, got %v", rec.level)
	}
}

func TestAccessLogMiddleware_QuietPaths(t *testing.T) {
	recorder := newAccessLogRecorder(slog.LevelInfo)
	r := chain(slog.New(recorder), nil, true)
	r.Get("/api/healthz", func(w http.ResponseWriter, r *http.Request) {})
	r.Get("/api/pair-requests/events", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/healthz", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/pair-requests/events", nil))

	if got := recorder.getRecords(); len(got) != 0 {
		t.Errorf("expected no records at info level, got %d", len(got))
	}
}

func TestRequestLoggerMiddleware_HandlerSeesRequestFields(t *testing.T) {
	recorder := newAccessLogRecorder(slog.LevelInfo)
	r := chain(slog.New(recorder), nil, true)
	r.Post("/api/pair-requests/{id}/accept", func(w http.ResponseWriter, r *http.Request) {
		appctx.LoggerOr(r.Context(), nil).Info("resolved")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/pair-requests/u1/accept", nil))

	var handlerRec *accessLogRecord
	records := recorder.getRecords()
	for i := range records {
		if records[i].message == "resolved" {
			handlerRec = &records[i]
		}
	}
	if handlerRec == nil {
		t.Fatal("expected handler log record")
	}
	if id, _ := handlerRec.attrs["request_id"].(string); id == "" {
		t.Error("expected non-empty request_id on handler record")
	}
	if handlerRec.attrs["path"] != "/api/pair-requests/u1/accept" {
		t.Errorf("expected path on handler record, got %v", handlerRec.attrs["path"])
	}
}
