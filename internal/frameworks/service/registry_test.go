package service

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"testing"
)

// mockService is a minimal Service implementation for testing.
type mockService struct{}

func (m *mockService) Handler() http.Handler  { return nil }
func (m *mockService) Prefix() string         { return "mock" }
func (m *mockService) Close() error           { return nil }
func (m *mockService) Unprotected() []string  { return nil }

// mockNewService is a constructor that creates a mockService.
func mockNewService(conf map[string]any, log *slog.Logger) (Service, error) {
	return &mockService{}, nil
}

func TestRegister(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	err := Register("test-service", mockNewService)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Verify it was registered
	constructor := Get("test-service")
	if constructor == nil {
		t.Fatal("Get returned nil for registered service")
	}
}

func TestRegister_Duplicate(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	err := Register("dup-service", mockNewService)
	if err != nil {
		t.Fatalf("First Register failed: %v", err)
	}

	// Second registration should fail
	err = Register("dup-service", mockNewService)
	if err == nil {
		t.Fatal("Expected error on duplicate registration, got nil")
	}
}

func TestMustRegister_Panics(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	// First registration should not panic
	MustRegister("panic-test", mockNewService)

	// Second registration should panic
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("Expected panic on duplicate MustRegister, got none")
		}
	}()
	MustRegister("panic-test", mockNewService)
}

func TestGet_NotRegistered(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	constructor := Get("nonexistent")
	if constructor != nil {
		t.Fatal("Expected nil for unregistered service")
	}
}

func TestRegisteredServices(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	Register("svc-a", mockNewService)
	Register("svc-b", mockNewService)
	Register("svc-c", mockNewService)

	names := RegisteredServices()
	if len(names) != 3 {
		t.Fatalf("Expected 3 services, got %d", len(names))
	}

	if !slices.IsSorted(names) {
		t.Errorf("expected sorted names, got %v", names)
	}
	expected := []string{"svc-a", "svc-b", "svc-c"}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("Expected %s at index %d, got %s", name, i, names[i])
		}
	}
}

func TestIsCore(t *testing.T) {
	if !IsCore("api") || !IsCore("ui") {
		t.Error("expected api and ui to be core services")
	}
	if IsCore("metrics") {
		t.Error("expected metrics not to be core")
	}
}

type closingService struct {
	mockService
	closed *int
}

func (c *closingService) Close() error {
	*c.closed++
	return nil
}

func TestBuildAll(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	var closed int
	newClosing := func(conf map[string]any, log *slog.Logger) (Service, error) {
		return &closingService{closed: &closed}, nil
	}
	MustRegister("api", newClosing)
	MustRegister("ui", newClosing)
	MustRegister("extra", mockNewService)

	got, err := BuildAll(func(string) map[string]any { return nil }, nil)
	if err != nil {
		t.Fatalf("BuildAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected only core services without config, got %d", len(got))
	}

	got, err = BuildAll(func(name string) map[string]any {
		if name == "extra" {
			return map[string]any{}
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll failed: %v", err)
	}
	if _, ok := got["extra"]; !ok {
		t.Error("expected configured non-core service to be built")
	}
	if closed != 0 {
		t.Errorf("expected no closes on success, got %d", closed)
	}
}

func TestBuildAll_ClosesBuiltOnError(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	var closed int
	MustRegister("api", func(conf map[string]any, log *slog.Logger) (Service, error) {
		return &closingService{closed: &closed}, nil
	})
	MustRegister("ui", func(conf map[string]any, log *slog.Logger) (Service, error) {
		return nil, errors.New("boom")
	})

	if _, err := BuildAll(nil, nil); err == nil {
		t.Fatal("expected error from failing constructor")
	}
	if closed != 1 {
		t.Errorf("expected built service to be closed once, got %d", closed)
	}
}

func TestBuildAll_MissingCoreService(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	MustRegister("api", mockNewService)

	if _, err := BuildAll(nil, nil); err == nil {
		t.Fatal("expected error when a core service is not registered")
	}
}
