package json_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MahdiBaghbani/pairinbox-go/internal/store"
	_ "github.com/MahdiBaghbani/pairinbox-go/internal/store/json"
	"github.com/MahdiBaghbani/pairinbox-go/internal/store/testutil"
)

func TestJSONDriver(t *testing.T) {
	testutil.RunDriverTests(t, "json", &store.DriverConfig{Driver: "json", DataDir: t.TempDir()})
}

func TestJSONDriverSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := &store.DriverConfig{Driver: "json", DataDir: dir}

	d1, s1, err := store.OpenUIState(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.SetOpen(ctx, "pair_requests", false); err != nil {
		t.Fatal(err)
	}
	d1.Close()

	if _, err := os.Stat(filepath.Join(dir, "tag_states.json")); err != nil {
		t.Fatalf("tag_states.json not written: %v", err)
	}

	d2, s2, err := store.OpenUIState(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer d2.Close()

	open, err := s2.IsOpen(ctx, "pair_requests")
	if err != nil {
		t.Fatal(err)
	}
	if open {
		t.Error("expected closed state to survive restart")
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("expected no leftover temp files, got %v", matches)
	}
}

func TestJSONDriverCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tag_states.json"), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	d, err := store.New(&store.DriverConfig{Driver: "json", DataDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Init(context.Background()); err == nil {
		t.Error("expected Init to fail on a corrupt file")
	}
}
