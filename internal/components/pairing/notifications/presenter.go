// Package notifications turns pair request events into short-lived toasts.
package notifications

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/events"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/logutil"
)

// Type is the severity shown by a renderer.
type Type string

const (
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

const (
	DefaultDuration = 3 * time.Second
	DefaultHistory  = 20
)

// Notification is a toast ready for display.
type Notification struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Message   string        `json:"message"`
	Type      Type          `json:"type"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"createdAt"`
}

// ExpiresAt is when the toast should disappear.
func (n Notification) ExpiresAt() time.Time { return n.CreatedAt.Add(n.Duration) }

// Subscriber is the consumer side of the event bus.
type Subscriber interface {
	Subscribe(fn events.Handler, kinds ...events.Kind) func()
}

// Presenter subscribes to request events and keeps recent toasts.
type Presenter struct {
	mu      sync.Mutex
	recent  []Notification
	history int

	log  *slog.Logger
	stop func()
}

// NewPresenter subscribes to received, resolved and expired events on sub.
// history bounds Recent; zero uses DefaultHistory.
func NewPresenter(sub Subscriber, history int, log *slog.Logger) *Presenter {
	if history <= 0 {
		history = DefaultHistory
	}
	p := &Presenter{history: history, log: logutil.NoopIfNil(log)}
	p.stop = sub.Subscribe(p.handle,
		events.KindRequestReceived,
		events.KindRequestResolved,
		events.KindRequestExpired,
	)
	return p
}

// Recent returns the retained toasts, oldest first.
func (p *Presenter) Recent() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Notification, len(p.recent))
	copy(out, p.recent)
	return out
}

// Active returns the toasts still on screen at now, newest first.
func (p *Presenter) Active(now time.Time) []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Notification
	for i := len(p.recent) - 1; i >= 0; i-- {
		if now.Before(p.recent[i].ExpiresAt()) {
			out = append(out, p.recent[i])
		}
	}
	return out
}

// Close removes the bus subscription.
func (p *Presenter) Close() { p.stop() }

func (p *Presenter) handle(env events.Envelope) {
	n, ok := Compose(env)
	if !ok {
		return
	}

	p.mu.Lock()
	p.recent = append(p.recent, n)
	if over := len(p.recent) - p.history; over > 0 {
		p.recent = append(p.recent[:0:0], p.recent[over:]...)
	}
	p.mu.Unlock()

	p.log.Debug("notification", "title", n.Title, "type", n.Type)
}

// Compose builds the toast for an envelope. Received events only produce a
// toast once the queue has accepted them.
func Compose(env events.Envelope) (Notification, bool) {
	n := Notification{
		ID:        env.ID,
		Type:      TypeInfo,
		Duration:  DefaultDuration,
		CreatedAt: env.At,
	}

	switch ev := env.Event.(type) {
	case events.RequestResolved:
		if ev.Accepted {
			n.Title = "Pair Request Accepted"
		} else {
			n.Title = "Pair Request Denied"
			n.Type = TypeWarning
		}
		n.Message = fmt.Sprintf("You %s the pair request from %s", ev.Outcome(), ev.DisplayName)
	case events.RequestExpired:
		n.Title = "Pair Request Expired"
		n.Message = fmt.Sprintf("The pair request from %s expired", ev.DisplayName)
		n.Type = TypeWarning
	case events.RequestReceived:
		if env.Source != events.SourceQueue {
			return Notification{}, false
		}
		n.Title = "Pair Request"
		n.Message = fmt.Sprintf("%s wants to pair with you", ev.DisplayName)
	default:
		return Notification{}, false
	}
	return n, true
}
