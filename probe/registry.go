// Package probe implements engine-dialect discovery providers.
//
// Each supported database engine contributes one provider satisfying the
// rudder.DiscoveryProvider contract. Providers register themselves by type
// name in an init function; deployments resolve them at configuration time
// via New.
package probe

import (
	"fmt"
	"sort"
	"sync"

	"github.com/arloliu/rudder"
	"github.com/arloliu/rudder/types"
)

// Factory constructs a fresh, unconfigured provider instance.
//
// New returns a fresh instance per call so that per-pool configuration
// (e.g. lag thresholds) never leaks between pools.
type Factory func() rudder.DiscoveryProvider

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a discovery provider available by type name.
//
// If Register is called twice with the same name or if factory is nil,
// it panics.
//
// Parameters:
//   - name: The provider type name (e.g. "mysql")
//   - factory: Constructor for fresh provider instances
func Register(name string, factory Factory) {
	if factory == nil {
		panic("probe: Register factory is nil")
	}

	mu.Lock()
	defer mu.Unlock()

	if _, dup := factories[name]; dup {
		panic("probe: Register called twice for provider " + name)
	}
	factories[name] = factory
}

// New constructs a fresh provider of the named type.
//
// Parameters:
//   - name: The registered provider type name
//
// Returns:
//   - rudder.DiscoveryProvider: A fresh, unconfigured provider instance
//   - error: An error wrapping types.ErrInvalidConfiguration for unknown
//     names
func New(name string) (rudder.DiscoveryProvider, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: unknown discovery provider %q", types.ErrInvalidConfiguration, name)
	}

	return factory(), nil
}

// Types returns the registered provider type names in sorted order.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
