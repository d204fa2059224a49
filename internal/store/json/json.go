// Package json implements a JSON file-based persistence driver.
// It uses atomic writes (temp file + fsync + rename) and in-process locking.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MahdiBaghbani/pairinbox-go/internal/store"
)

const tagStatesFile = "tag_states.json"

func init() {
	store.Register("json", NewDriver)
}

// Driver implements store.Driver and store.UIStateStore using JSON files.
type Driver struct {
	dataDir string
	mu      sync.RWMutex
	closed  bool

	tags map[string]*store.TagState // keyed by tag
}

// NewDriver creates a new JSON driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for json driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
		tags:    make(map[string]*store.TagState),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "json"
}

// Init loads data from JSON files.
func (d *Driver) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	if err := d.loadFile(tagStatesFile, &d.tags); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load tag states: %w", err)
	}
	if d.tags == nil {
		d.tags = make(map[string]*store.TagState)
	}
	return nil
}

// Close releases resources.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// IsOpen reports the stored state for tag, defaulting to open.
func (d *Driver) IsOpen(ctx context.Context, tag string) (bool, error) {
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

// SetOpen records the state for tag and rewrites the file.
func (d *Driver) SetOpen(ctx context.Context, tag string, open bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}

	prev, had := d.tags[tag]
	d.tags[tag] = &store.TagState{Tag: tag, Open: open, UpdatedAt: time.Now().Unix()}
	if err := d.saveFile(tagStatesFile, d.tags); err != nil {
		if had {
			d.tags[tag] = prev
		} else {
			delete(d.tags, tag)
		}
		return err
	}
	return nil
}

// loadFile loads a JSON file into the target map.
func (d *Driver) loadFile(filename string, target any) error {
	path := filepath.Join(d.dataDir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// saveFile atomically writes data to a JSON file.
// Pattern: write to temp file, fsync, rename.
func (d *Driver) saveFile(filename string, data any) error {
	path := filepath.Join(d.dataDir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	f, err := os.CreateTemp(d.dataDir, filename+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := f.Name()

	if _, err := f.Write(jsonData); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
