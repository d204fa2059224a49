// Package testutil provides shared test helpers for store driver tests.
package testutil

import (
	"context"
	"testing"

	"github.com/MahdiBaghbani/pairinbox-go/internal/store"
)

// RunDriverTests runs the standard test suite against a driver.
func RunDriverTests(t *testing.T, driverName string, cfg *store.DriverConfig) {
	ctx := context.Background()

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatalf("failed to create %s driver: %v", driverName, err)
	}
	defer driver.Close()

	if err := driver.Init(ctx); err != nil {
		t.Fatalf("failed to init %s driver: %v", driverName, err)
	}

	if driver.Name() != driverName {
		t.Errorf("expected driver name %q, got %q", driverName, driver.Name())
	}

	uiState, ok := driver.(store.UIStateStore)
	if !ok {
		t.Fatalf("%s driver does not implement UIStateStore", driverName)
	}

	t.Run("UIState", func(t *testing.T) {
		TestUIState(t, ctx, uiState)
	})
}

// TestUIState checks default-open, toggling and tag isolation.
func TestUIState(t *testing.T, ctx context.Context, s store.UIStateStore) {
	open, err := s.IsOpen(ctx, "pair_requests")
	if err != nil {
		t.Fatalf("IsOpen failed: %v", err)
	}
	if !open {
		t.Error("expected unknown tag to default to open")
	}

	if err := s.SetOpen(ctx, "pair_requests", false); err != nil {
		t.Fatalf("SetOpen failed: %v", err)
	}
	open, err = s.IsOpen(ctx, "pair_requests")
	if err != nil {
		t.Fatalf("IsOpen failed: %v", err)
	}
	if open {
		t.Error("expected tag to be closed after SetOpen(false)")
	}

	other, err := s.IsOpen(ctx, "other")
	if err != nil {
		t.Fatalf("IsOpen failed: %v", err)
	}
	if !other {
		t.Error("expected unrelated tag to stay open")
	}

	if err := s.SetOpen(ctx, "pair_requests", true); err != nil {
		t.Fatalf("SetOpen failed: %v", err)
	}
	open, _ = s.IsOpen(ctx, "pair_requests")
	if !open {
		t.Error("expected tag to be open again")
	}
}
