package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// DriverConfig holds configuration for driver selection and initialization.
type DriverConfig struct {
	// Driver is the driver name: memory, json, sqlite
	Driver string `json:"driver"`

	// DataDir is the directory for data files (json files, sqlite db)
	DataDir string `json:"data_dir"`
}

// DriverFactory is a function that creates a driver instance.
type DriverFactory func(cfg *DriverConfig) (Driver, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// Register registers a driver factory by name.
// This is typically called from init() in driver packages.
func Register(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// New creates a driver instance based on the configuration.
func New(cfg *DriverConfig) (Driver, error) {
	driversMu.RLock()
	factory, ok := drivers[cfg.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown driver: %s", cfg.Driver)
	}

	return factory(cfg)
}

// AvailableDrivers returns the sorted list of registered driver names.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenUIState creates and initializes a driver and returns it as a UIStateStore.
func OpenUIState(ctx context.Context, cfg *DriverConfig) (Driver, UIStateStore, error) {
	d, err := New(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := d.Init(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to init %s store: %w", cfg.Driver, err)
	}
	s, ok := d.(UIStateStore)
	if !ok {
		d.Close()
		return nil, nil, fmt.Errorf("driver %s does not store ui state", cfg.Driver)
	}
	return d, s, nil
}
