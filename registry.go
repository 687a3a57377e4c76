package rudder

import (
	"sync"

	"github.com/arloliu/rudder/types"
)

// StaticRegistry is an in-memory SourceRegistry backed by a fixed mapping
// of pool name to data sources.
//
// It is safe for concurrent use. Registration typically happens once at
// startup; discovery passes only read.
type StaticRegistry struct {
	mu    sync.RWMutex
	pools map[string][]types.DataSource
}

var _ SourceRegistry = (*StaticRegistry)(nil)

// NewStaticRegistry creates an empty static registry.
//
// Returns:
//   - *StaticRegistry: A new registry with no pools
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		pools: make(map[string][]types.DataSource),
	}
}

// SetPool registers the data sources of a pool, replacing any previous
// registration. The slice order is the configured order.
//
// Parameters:
//   - pool: The pool name
//   - sources: The pool's data sources in configured order
func (r *StaticRegistry) SetPool(pool string, sources []types.DataSource) {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := make([]types.DataSource, len(sources))
	copy(copied, sources)
	r.pools[pool] = copied
}

// Sources returns the data sources of the named pool in configured order.
//
// Parameters:
//   - pool: The pool name
//
// Returns:
//   - []types.DataSource: The pool's data sources
//   - error: types.ErrUnknownPool if the pool is not registered
func (r *StaticRegistry) Sources(pool string) ([]types.DataSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources, ok := r.pools[pool]
	if !ok {
		return nil, types.ErrUnknownPool
	}

	result := make([]types.DataSource, len(sources))
	copy(result, sources)

	return result, nil
}
