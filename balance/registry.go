package balance

import (
	"fmt"
	"sort"
	"sync"

	"github.com/arloliu/rudder"
	"github.com/arloliu/rudder/types"
)

// Factory constructs a policy instance from externally configured weights.
// Policies that do not use weights ignore the argument.
type Factory func(weights map[string]int) rudder.BalancePolicy

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a balance policy available by name.
//
// If Register is called twice with the same name or if factory is nil,
// it panics.
//
// Parameters:
//   - name: The policy name (e.g. "round_robin")
//   - factory: Constructor for policy instances
func Register(name string, factory Factory) {
	if factory == nil {
		panic("balance: Register factory is nil")
	}

	mu.Lock()
	defer mu.Unlock()

	if _, dup := factories[name]; dup {
		panic("balance: Register called twice for policy " + name)
	}
	factories[name] = factory
}

// New constructs a policy of the named kind.
//
// Parameters:
//   - name: The registered policy name
//   - weights: Per-source weights, used by weighted policies
//
// Returns:
//   - rudder.BalancePolicy: A new policy instance
//   - error: An error wrapping types.ErrInvalidConfiguration for unknown
//     names
func New(name string, weights map[string]int) (rudder.BalancePolicy, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: unknown balance policy %q", types.ErrInvalidConfiguration, name)
	}

	return factory(weights), nil
}

// Names returns the registered policy names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
