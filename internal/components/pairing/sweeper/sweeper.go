// Package sweeper expires due pair requests on a schedule, so requests time
// out even when nothing is rendering the panel.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/requests"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/logutil"
)

// DefaultSchedule runs once per second.
const DefaultSchedule = "@every 1s"

// Expirer is the part of the queue the sweeper drives.
type Expirer interface {
	ExpireDue(now time.Time) []requests.PendingRequest
}

// Sweeper calls ExpireDue on a cron schedule.
type Sweeper struct {
	queue    Expirer
	clock    func() time.Time
	schedule string
	log      *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// New validates schedule and returns a stopped sweeper.
// An empty schedule uses DefaultSchedule; a nil clock uses time.Now.
func New(q Expirer, schedule string, clock func() time.Time, log *slog.Logger) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	if clock == nil {
		clock = time.Now
	}
	return &Sweeper{
		queue:    q,
		clock:    clock,
		schedule: schedule,
		log:      logutil.NoopIfNil(log),
	}, nil
}

// Schedule returns the cron spec in use.
func (s *Sweeper) Schedule() string { return s.schedule }

// Tick runs one sweep and returns how many requests expired.
func (s *Sweeper) Tick() int {
	evicted := s.queue.ExpireDue(s.clock())
	if len(evicted) > 0 {
		s.log.Debug("sweep expired pair requests", "count", len(evicted))
	}
	return len(evicted)
}

// Start schedules the sweep. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(s.schedule, func() { s.Tick() }); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	c.Start()

	s.cron = c
	s.running = true
	s.log.Info("pair request sweeper started", "schedule", s.schedule)
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep or ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
