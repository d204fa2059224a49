package events

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/logutil"
)

// Envelope wraps a published event with delivery metadata.
type Envelope struct {
	ID     string    `json:"id"`
	Kind   Kind      `json:"kind"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
	Event  Event     `json:"event"`
}

// Handler receives envelopes from the bus.
type Handler func(Envelope)

// Publisher is the producer side of the bus. Publish delivers synchronously
// and must not panic. The request queue calls it from one goroutine at a time,
// in the order its state changed, so a request's RequestReceived always
// precedes its RequestResolved or RequestExpired.
type Publisher interface {
	Publish(source string, ev Event) Envelope
}

type subscription struct {
	id    uint64
	kinds []Kind
	fn    Handler
}

func (s *subscription) wants(k Kind) bool {
	return len(s.kinds) == 0 || slices.Contains(s.kinds, k)
}

// Bus is a synchronous in-process mediator. Handlers run on the publishing
// goroutine in subscription order, outside the bus lock.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []*subscription
	clock  func() time.Time
	log    *slog.Logger
}

// NewBus creates a bus. A nil clock defaults to time.Now.
func NewBus(clock func() time.Time, log *slog.Logger) *Bus {
	if clock == nil {
		clock = time.Now
	}
	return &Bus{
		clock: clock,
		log:   logutil.NoopIfNil(log),
	}
}

// Subscribe registers fn for the given kinds (all kinds when none are given).
// The returned function removes the subscription and is safe to call twice.
func (b *Bus) Subscribe(fn Handler, kinds ...Kind) func() {
	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, kinds: kinds, fn: fn}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.subs = slices.DeleteFunc(b.subs, func(s *subscription) bool {
				return s.id == sub.id
			})
		})
	}
}

// Publish stamps ev with an id and time and delivers it to every interested
// subscriber. A panicking subscriber is logged and skipped.
func (b *Bus) Publish(source string, ev Event) Envelope {
	env := Envelope{
		ID:     uuid.NewString(),
		Kind:   ev.Kind(),
		Source: source,
		At:     b.clock(),
		Event:  ev,
	}

	b.mu.RLock()
	targets := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(env.Kind) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		b.deliver(s, env)
	}
	return env
}

func (b *Bus) deliver(s *subscription, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event subscriber panicked",
				"kind", env.Kind,
				"event_id", env.ID,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	s.fn(env)
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

var _ Publisher = (*Bus)(nil)
