// Package panel adapts the pending request queue to a collapsible UI
// section: one frame per render tick, user responses, and the open/closed
// state of the section.
package panel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/requests"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/logutil"
)

// DefaultTag is the section tag used when none is configured.
const DefaultTag = "pair_requests"

// Queue is the part of requests.Queue the panel drives.
type Queue interface {
	ExpireDue(now time.Time) []requests.PendingRequest
	Snapshot(now time.Time) []requests.Entry
	Resolve(requesterID string, accepted bool) error
	Count() int
}

// ExpansionStore keeps the open/closed state of tagged sections.
type ExpansionStore interface {
	IsOpen(ctx context.Context, tag string) (bool, error)
	SetOpen(ctx context.Context, tag string, open bool) error
}

// Renderer draws a frame. Layout, colors and icons are its concern.
type Renderer interface {
	Render(w io.Writer, f Frame) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(w io.Writer, f Frame) error

func (fn RendererFunc) Render(w io.Writer, f Frame) error { return fn(w, f) }

// Row is one pending request as shown in the section.
type Row struct {
	RequesterID       string        `json:"requesterId"`
	DisplayName       string        `json:"displayName"`
	RemainingFraction float64       `json:"remainingFraction"`
	Remaining         time.Duration `json:"-"`
	RemainingMs       int64         `json:"remainingMs"`
	Color             string        `json:"color"`
}

// Frame is everything a renderer needs for one tick.
type Frame struct {
	Tag     string    `json:"tag"`
	Title   string    `json:"title"`
	Count   int       `json:"count"`
	Visible bool      `json:"visible"`
	Open    bool      `json:"open"`
	Rows    []Row     `json:"rows"`
	Height  int       `json:"height"`
	At      time.Time `json:"at"`
}

// Options configures a Panel.
type Options struct {
	Tag    string
	Logger *slog.Logger
}

// Panel runs the render-tick contract against a queue.
type Panel struct {
	queue  Queue
	states ExpansionStore
	tag    string
	log    *slog.Logger
}

// New creates a panel over q, keeping section state in states.
func New(q Queue, states ExpansionStore, opts Options) *Panel {
	if opts.Tag == "" {
		opts.Tag = DefaultTag
	}
	return &Panel{
		queue:  q,
		states: states,
		tag:    opts.Tag,
		log:    logutil.NoopIfNil(opts.Logger),
	}
}

// Tag returns the section tag.
func (p *Panel) Tag() string { return p.tag }

// Frame expires due requests and snapshots the rest, newest first.
// Rows are only filled while the section is open.
func (p *Panel) Frame(ctx context.Context, now time.Time) Frame {
	p.queue.ExpireDue(now)
	entries := p.queue.Snapshot(now)
	open := p.isOpen(ctx)

	f := Frame{
		Tag:     p.tag,
		Title:   fmt.Sprintf("Pair Requests (%d)", len(entries)),
		Count:   len(entries),
		Visible: len(entries) > 0,
		Open:    open,
		Height:  1,
		At:      now,
	}
	if !open {
		return f
	}

	f.Rows = make([]Row, 0, len(entries))
	for _, e := range entries {
		f.Rows = append(f.Rows, Row{
			RequesterID:       e.Request.RequesterID,
			DisplayName:       e.Request.DisplayName,
			RemainingFraction: e.RemainingFraction,
			Remaining:         e.Remaining,
			RemainingMs:       e.Remaining.Milliseconds(),
			Color:             IndicatorColor(e.RemainingFraction).Hex(),
		})
	}
	f.Height += 2 * len(f.Rows)
	return f
}

// Draw builds a frame and hands it to r. Nothing is drawn while the queue
// is empty.
func (p *Panel) Draw(ctx context.Context, w io.Writer, now time.Time, r Renderer) error {
	f := p.Frame(ctx, now)
	if !f.Visible {
		return nil
	}
	return r.Render(w, f)
}

// Respond relays a user's accept or deny. It reports false when the request
// was already resolved or expired.
func (p *Panel) Respond(requesterID string, accepted bool) (bool, error) {
	err := p.queue.Resolve(requesterID, accepted)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, requests.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Toggle flips the section and returns the new state.
func (p *Panel) Toggle(ctx context.Context) (bool, error) {
	open, err := p.states.IsOpen(ctx, p.tag)
	if err != nil {
		return false, fmt.Errorf("failed to read section state: %w", err)
	}
	if err := p.states.SetOpen(ctx, p.tag, !open); err != nil {
		return open, fmt.Errorf("failed to write section state: %w", err)
	}
	return !open, nil
}

// SetOpen sets the section state.
func (p *Panel) SetOpen(ctx context.Context, open bool) error {
	if err := p.states.SetOpen(ctx, p.tag, open); err != nil {
		return fmt.Errorf("failed to write section state: %w", err)
	}
	return nil
}

// isOpen never fails a render; a broken store shows the section open.
func (p *Panel) isOpen(ctx context.Context) bool {
	open, err := p.states.IsOpen(ctx, p.tag)
	if err != nil {
		p.log.Warn("section state unavailable", "tag", p.tag, "error", err)
		return true
	}
	return open
}
