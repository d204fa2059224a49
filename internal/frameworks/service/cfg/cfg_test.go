package cfg

import (
	"errors"
	"slices"
	"testing"
	"time"
)

type streamConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Origins []string `mapstructure:"allowed_origins"`
}

type testConfig struct {
	Name     string        `mapstructure:"name"`
	Refresh  int           `mapstructure:"refresh_seconds"`
	Interval time.Duration `mapstructure:"interval"`
	Stream   streamConfig  `mapstructure:"event_stream"`
}

func (c *testConfig) ApplyDefaults() {
	if c.Refresh == 0 {
		c.Refresh = 1
	}
}

func TestDecode(t *testing.T) {
	input := map[string]any{
		"name":     "ui",
		"interval": "30s",
		"event_stream": map[string]any{
			"enabled":         true,
			"allowed_origins": []any{"https://a.example", "https://b.example"},
		},
	}

	var c testConfig
	if err := Decode(input, &c); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if c.Name != "ui" {
		t.Errorf("expected name ui, got %q", c.Name)
	}
	if c.Interval != 30*time.Second {
		t.Errorf("expected 30s interval, got %v", c.Interval)
	}
	if !c.Stream.Enabled || len(c.Stream.Origins) != 2 {
		t.Errorf("unexpected nested config: %+v", c.Stream)
	}
	if c.Refresh != 1 {
		t.Errorf("expected default refresh 1, got %d", c.Refresh)
	}
}

func TestDecode_NilInputAppliesDefaults(t *testing.T) {
	var c testConfig
	if err := Decode(nil, &c); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if c.Refresh != 1 {
		t.Errorf("expected default refresh 1, got %d", c.Refresh)
	}
}

func TestDecode_CommaSeparatedSlice(t *testing.T) {
	var c testConfig
	input := map[string]any{"event_stream": map[string]any{"allowed_origins": "a.example,b.example"}}
	if err := Decode(input, &c); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !slices.Equal(c.Stream.Origins, []string{"a.example", "b.example"}) {
		t.Errorf("expected split origins, got %v", c.Stream.Origins)
	}
}

func TestDecode_TypeMismatch(t *testing.T) {
	var c testConfig
	if err := Decode(map[string]any{"refresh_seconds": "often"}, &c); err == nil {
		t.Error("expected error for non-numeric refresh_seconds")
	}
	if err := Decode(map[string]any{"interval": "soon"}, &c); err == nil {
		t.Error("expected error for bad duration")
	}
}

func TestDecodeWithUnused(t *testing.T) {
	input := map[string]any{
		"name":         "api",
		"zeta":         1,
		"alpha":        "x",
		"event_stream": map[string]any{"enabled": true, "bogus": true},
	}

	var c testConfig
	unused, err := DecodeWithUnused(input, &c)
	if err != nil {
		t.Fatalf("DecodeWithUnused failed: %v", err)
	}
	want := []string{"alpha", "event_stream.bogus", "zeta"}
	if !slices.Equal(unused, want) {
		t.Errorf("expected unused %v, got %v", want, unused)
	}
	if c.Refresh != 1 {
		t.Errorf("expected defaults applied, got refresh %d", c.Refresh)
	}
}

func TestDecodeStrict(t *testing.T) {
	var c testConfig
	if err := DecodeStrict(map[string]any{"name": "ui"}, &c); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	err := DecodeStrict(map[string]any{"name": "ui", "typo": 1}, &c)
	if !errors.Is(err, ErrUnusedKeys) {
		t.Errorf("expected ErrUnusedKeys, got %v", err)
	}
}
