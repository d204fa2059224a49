package interceptors

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]NewInterceptor)
)

// Register adds an interceptor constructor under name. A second
// registration for the same name is an error.
func Register(name string, fn NewInterceptor) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		return fmt.Errorf("interceptor %q already registered", name)
	}
	registry[name] = fn
	return nil
}

// MustRegister is Register for init().
func MustRegister(name string, fn NewInterceptor) {
	if err := Register(name, fn); err != nil {
		panic(err)
	}
}

// Get returns the interceptor constructor for the given name.
func Get(name string) (NewInterceptor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// Names returns the registered interceptor names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
