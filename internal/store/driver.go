// Package store provides persistence primitives and driver abstractions.
package store

import (
	"context"
	"errors"
)

// Common errors for store operations.
var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init initializes the driver (create tables, load data, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, json, sqlite).
	Name() string
}

// UIStateStore keeps per-tag open/closed state for collapsible panel sections.
// Tags that were never written report open.
type UIStateStore interface {
	IsOpen(ctx context.Context, tag string) (bool, error)
	SetOpen(ctx context.Context, tag string, open bool) error
}

// TagState is the persisted open/closed flag of one section tag.
type TagState struct {
	Tag       string `json:"tag" gorm:"primaryKey"`
	Open      bool   `json:"open"`
	UpdatedAt int64  `json:"updated_at"`
}
