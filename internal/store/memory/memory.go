// Package memory implements an in-process persistence driver.
// State is lost when the process exits.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MahdiBaghbani/pairinbox-go/internal/store"
)

func init() {
	store.Register("memory", NewDriver)
}

// Driver implements store.Driver and store.UIStateStore in memory.
type Driver struct {
	mu     sync.RWMutex
	closed bool
	tags   map[string]store.TagState
}

// NewDriver creates a new memory driver instance.
func NewDriver(_ *store.DriverConfig) (store.Driver, error) {
	return &Driver{tags: make(map[string]store.TagState)}, nil
}

func (d *Driver) Name() string { return "memory" }

func (d *Driver) Init(context.Context) error { return nil }

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// IsOpen reports the stored state for tag, defaulting to open.
func (d *Driver) IsOpen(_ context.Context, tag string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false, store.ErrClosed
	}
	st, ok := d.tags[tag]
	if !ok {
		return true, nil
	}
	return st.Open, nil
}

// SetOpen records the state for tag.
func (d *Driver) SetOpen(_ context.Context, tag string, open bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}
	d.tags[tag] = store.TagState{Tag: tag, Open: open, UpdatedAt: time.Now().Unix()}
	return nil
}
