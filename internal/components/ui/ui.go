// Package ui provides the minimal web UI for pending pair requests.
package ui

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/notifications"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/panel"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/logutil"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"percent": func(f float64) int {
		return int(math.Round(math.Max(0, math.Min(1, f)) * 100))
	},
	"seconds": func(d time.Duration) int {
		return int(math.Ceil(d.Seconds()))
	},
}

// Panel is the part of panel.Panel the pages drive.
type Panel interface {
	Frame(ctx context.Context, now time.Time) panel.Frame
	Respond(requesterID string, accepted bool) (bool, error)
	Toggle(ctx context.Context) (bool, error)
	Draw(ctx context.Context, w io.Writer, now time.Time, r panel.Renderer) error
}

// ToastSource supplies notifications still on screen.
type ToastSource interface {
	Active(now time.Time) []notifications.Notification
}

// Handler serves the UI pages.
type Handler struct {
	basePath  string
	refresh   int
	panel     Panel
	toasts    ToastSource
	clock     func() time.Time
	log       *slog.Logger
	templates *template.Template
}

// Options configures a Handler.
type Options struct {
	BasePath       string
	RefreshSeconds int
	Toasts         ToastSource
	Clock          func() time.Time
	Logger         *slog.Logger
}

// NewHandler creates a new UI handler.
func NewHandler(p Panel, opts Options) (*Handler, error) {
	tmpl, err := template.New("ui").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	// Normalize base path
	basePath := opts.BasePath
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimSuffix(basePath, "/")

	if opts.RefreshSeconds <= 0 {
		opts.RefreshSeconds = 1
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Handler{
		basePath:  basePath,
		refresh:   opts.RefreshSeconds,
		panel:     p,
		toasts:    opts.Toasts,
		clock:     opts.Clock,
		log:       logutil.NoopIfNil(opts.Logger),
		templates: tmpl,
	}, nil
}

// TemplateData contains data passed to templates.
type TemplateData struct {
	BasePath       string
	RefreshSeconds int
	Frame          panel.Frame
	Toasts         []notifications.Notification
}

// Renderer returns a panel.Renderer that writes the section markup.
func (h *Handler) Renderer() panel.Renderer {
	return panel.RendererFunc(func(w io.Writer, f panel.Frame) error {
		return h.templates.ExecuteTemplate(w, "section", TemplateData{BasePath: h.basePath, Frame: f})
	})
}

// PairRequests serves the pair request page.
func (h *Handler) PairRequests(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	data := TemplateData{
		BasePath:       h.basePath,
		RefreshSeconds: h.refresh,
		Frame:          h.panel.Frame(r.Context(), now),
	}
	if h.toasts != nil {
		data.Toasts = h.toasts.Active(now)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "pair-requests.html", data); err != nil {
		appctx.LoggerOr(r.Context(), h.log).Error("template error", "template", "pair-requests.html", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// Section serves the section markup alone, for clients that poll and swap
// it in place. The body is empty while nothing is pending.
func (h *Handler) Section(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.panel.Draw(r.Context(), &buf, h.clock(), h.Renderer()); err != nil {
		appctx.LoggerOr(r.Context(), h.log).Error("template error", "template", "section", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// Accept handles the accept form post.
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, true)
}

// Deny handles the deny form post.
func (h *Handler) Deny(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, false)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, accepted bool) {
	requesterID := chi.URLParam(r, "requesterId")
	if _, err := h.panel.Respond(requesterID, accepted); err != nil {
		appctx.LoggerOr(r.Context(), h.log).Error("failed to resolve pair request", "requester_id", requesterID, "error", err)
		http.Error(w, "failed to resolve pair request", http.StatusInternalServerError)
		return
	}
	h.back(w, r)
}

// Toggle handles the section toggle form post.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	if _, err := h.panel.Toggle(r.Context()); err != nil {
		appctx.LoggerOr(r.Context(), h.log).Error("failed to toggle section", "error", err)
		http.Error(w, "failed to toggle section", http.StatusInternalServerError)
		return
	}
	h.back(w, r)
}

func (h *Handler) back(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, fmt.Sprintf("%s/ui/pair-requests", h.basePath), http.StatusSeeOther)
}
