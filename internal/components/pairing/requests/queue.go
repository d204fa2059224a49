package requests

import (
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/events"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/logutil"
)

// Options configures a Queue. Zero values pick the defaults.
type Options struct {
	// TTL is shared by every request. Default: DefaultTTL.
	TTL time.Duration

	// Clock stamps resolutions. Default: time.Now.
	Clock func() time.Time

	// Publisher receives the queue's notifications. Nil drops them.
	Publisher events.Publisher

	Logger *slog.Logger
}

// Queue is the pending pair request queue.
// A single mutex guards the sequence and is held for one operation only.
// Notifications are recorded under that mutex, in mutation order, and
// published after it is released by one goroutine at a time, so every
// subscriber sees them in the order the queue changed. A mutation made while
// another goroutine (or a subscriber callback) is publishing returns before
// its notifications go out; the publishing goroutine delivers them next.
type Queue struct {
	mu       sync.Mutex
	pending  []PendingRequest // insertion order, oldest first
	outbox   []events.Event
	draining bool

	ttl   time.Duration
	clock func() time.Time
	pub   events.Publisher
	log   *slog.Logger
}

// NewQueue creates an empty queue.
func NewQueue(opts Options) *Queue {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Queue{
		ttl:   opts.TTL,
		clock: opts.Clock,
		pub:   opts.Publisher,
		log:   logutil.NoopIfNil(opts.Logger),
	}
}

// TTL returns the shared time budget.
func (q *Queue) TTL() time.Duration { return q.ttl }

// Submit appends a new request. A requester with a request still pending is
// rejected with ErrDuplicateRequest and the existing entry is kept.
func (q *Queue) Submit(requesterID, displayName string, receivedAt time.Time) error {
	if requesterID == "" {
		return fmt.Errorf("%w: requester id is required", ErrInvalidRequest)
	}
	if receivedAt.IsZero() {
		return fmt.Errorf("%w: received time is required", ErrInvalidRequest)
	}

	req := PendingRequest{
		RequesterID: requesterID,
		DisplayName: displayName,
		ReceivedAt:  receivedAt,
	}

	q.mu.Lock()
	if q.indexLocked(requesterID) >= 0 {
		q.mu.Unlock()
		return ErrDuplicateRequest
	}
	q.pending = append(q.pending, req)
	q.emitLocked(events.RequestReceived{
		RequesterID: req.RequesterID,
		DisplayName: req.DisplayName,
		ReceivedAt:  req.ReceivedAt,
	})
	q.mu.Unlock()

	q.log.Debug("pair request queued", "requester_id", requesterID, "display_name", displayName)
	q.flush()
	return nil
}

// Snapshot returns the pending requests newest first with their remaining
// time at now. It never mutates the queue.
func (q *Queue) Snapshot(now time.Time) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Entry, 0, len(q.pending))
	for i := len(q.pending) - 1; i >= 0; i-- {
		r := q.pending[i]
		out = append(out, Entry{
			Request:           r,
			RemainingFraction: RemainingFraction(r, now, q.ttl),
			Remaining:         Remaining(r, now, q.ttl),
		})
	}
	return out
}

// ListPending is the lazy form of Snapshot. The snapshot is taken when
// ListPending is called; the returned sequence can be ranged over any number
// of times and is unaffected by later queue mutations.
func (q *Queue) ListPending(now time.Time) iter.Seq[Entry] {
	snapshot := q.Snapshot(now)
	return func(yield func(Entry) bool) {
		for _, e := range snapshot {
			if !yield(e) {
				return
			}
		}
	}
}

// ExpireDue evicts every request whose age at now has reached the TTL and
// returns them oldest first. One RequestExpired is published per eviction.
func (q *Queue) ExpireDue(now time.Time) []PendingRequest {
	q.mu.Lock()
	var evicted []PendingRequest
	kept := make([]PendingRequest, 0, len(q.pending))
	for _, r := range q.pending {
		if r.Age(now) >= q.ttl {
			evicted = append(evicted, r)
			continue
		}
		kept = append(kept, r)
	}
	if len(evicted) > 0 {
		q.pending = kept
	}
	for _, r := range evicted {
		q.emitLocked(events.RequestExpired{
			RequesterID: r.RequesterID,
			DisplayName: r.DisplayName,
			ReceivedAt:  r.ReceivedAt,
			ExpiredAt:   now,
		})
	}
	q.mu.Unlock()

	for _, r := range evicted {
		q.log.Info("pair request expired", "requester_id", r.RequesterID, "display_name", r.DisplayName, "outcome", StatusExpired)
	}
	q.flush()
	return evicted
}

// Resolve removes the named request and publishes exactly one
// RequestResolved. A request that is already gone yields ErrNotFound, which
// callers should treat as a benign no-op.
func (q *Queue) Resolve(requesterID string, accepted bool) error {
	q.mu.Lock()
	idx := q.indexLocked(requesterID)
	if idx < 0 {
		q.mu.Unlock()
		q.log.Debug("pair request already gone", "requester_id", requesterID)
		return ErrNotFound
	}
	req := q.pending[idx]
	q.pending = slices.Delete(q.pending, idx, idx+1)
	ev := events.RequestResolved{
		RequesterID: req.RequesterID,
		DisplayName: req.DisplayName,
		Accepted:    accepted,
		ResolvedAt:  q.clock(),
	}
	q.emitLocked(ev)
	q.mu.Unlock()

	q.log.Info("pair request resolved",
		"requester_id", req.RequesterID,
		"display_name", req.DisplayName,
		"outcome", ev.Outcome(),
	)
	q.flush()
	return nil
}

// Lookup returns the pending request for requesterID, if any.
func (q *Queue) Lookup(requesterID string) (PendingRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(requesterID)
	if idx < 0 {
		return PendingRequest{}, false
	}
	return q.pending[idx], true
}

// Count returns the number of pending requests.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) indexLocked(requesterID string) int {
	return slices.IndexFunc(q.pending, func(r PendingRequest) bool {
		return r.RequesterID == requesterID
	})
}

// emitLocked records ev for publishing. Caller holds q.mu.
func (q *Queue) emitLocked(ev events.Event) {
	if q.pub == nil {
		return
	}
	q.outbox = append(q.outbox, ev)
}

// flush publishes recorded notifications in order unless another goroutine
// is already doing so.
func (q *Queue) flush() {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	for len(q.outbox) > 0 {
		ev := q.outbox[0]
		q.outbox[0] = nil
		q.outbox = q.outbox[1:]
		q.mu.Unlock()
		q.pub.Publish(events.SourceQueue, ev)
		q.mu.Lock()
	}
	q.outbox = nil
	q.draining = false
	q.mu.Unlock()
}
