package rudder

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/rudder/internal/logging"
	"github.com/arloliu/rudder/internal/metrics"
	"github.com/arloliu/rudder/types"
)

// Engine is the topology discovery and routing facade for a set of pools.
//
// Each pool owns its own prober, failover state tracker, and routing
// selector; a failed discovery pass in one pool never blocks routing in
// another. The engine performs no scheduling of its own - DiscoverOnce is a
// one-shot, idempotent pass, and periodic execution belongs to a Runner or
// an external scheduler.
//
// Engine is safe for concurrent use. Routing calls never block on I/O.
type Engine struct {
	registry SourceRegistry
	config   *EngineConfig

	mu     sync.RWMutex
	pools  map[string]*enginePool
	closed atomic.Bool
}

// enginePool bundles the per-pool components.
type enginePool struct {
	name     string
	prober   *Prober
	tracker  *Tracker
	selector *Selector
	interval time.Duration

	// discoverMu serializes discovery passes for the pool so snapshots
	// are published in pass order.
	discoverMu sync.Mutex
}

// NewEngine creates a new Engine backed by the given source registry.
//
// Parameters:
//   - registry: Supplies data source handles per pool at discovery time
//   - opts: Optional configuration options
//
// Returns:
//   - *Engine: A new engine with no pools
//   - error: types.ErrNilRegistry if registry is nil
func NewEngine(registry SourceRegistry, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, types.ErrNilRegistry
	}

	config := DefaultEngineConfig()
	for _, opt := range opts {
		opt(config)
	}

	// Ensure logger and metrics are never nil
	if config.Logger == nil {
		config.Logger = logging.NewNopLogger()
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NewNopMetrics()
	}

	return &Engine{
		registry: registry,
		config:   config,
		pools:    make(map[string]*enginePool),
	}, nil
}

// AddPool registers a pool with its discovery provider.
//
// Parameters:
//   - name: The pool name
//   - provider: The engine-dialect discovery provider (required)
//   - opts: Optional per-pool configuration
//
// Returns:
//   - error: An error wrapping types.ErrInvalidConfiguration if provider
//     is nil or the pool already exists, types.ErrEngineClosed if closed
func (e *Engine) AddPool(name string, provider DiscoveryProvider, opts ...PoolOption) error {
	if e.closed.Load() {
		return types.ErrEngineClosed
	}
	if provider == nil {
		return fmt.Errorf("%w: pool %s has no discovery provider", types.ErrInvalidConfiguration, name)
	}

	poolCfg := &PoolConfig{Provider: provider}
	for _, opt := range opts {
		opt(poolCfg)
	}

	timeout := poolCfg.ProbeTimeout
	if timeout <= 0 {
		timeout = e.config.ProbeTimeout
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.pools[name]; exists {
		return fmt.Errorf("%w: pool %s already exists", types.ErrInvalidConfiguration, name)
	}

	tracker := NewTracker(name,
		WithTrackerLogger(e.config.Logger),
		WithTrackerMetrics(e.config.Metrics),
	)

	selectorOpts := []SelectorOption{
		WithSelectorLogger(e.config.Logger),
		WithSelectorMetrics(e.config.Metrics),
		WithSelectorPrimaryFallback(e.config.PrimaryReadFallback),
	}
	if poolCfg.Policy != nil {
		selectorOpts = append(selectorOpts, WithSelectorPolicy(poolCfg.Policy))
	}

	e.pools[name] = &enginePool{
		name: name,
		prober: NewProber(provider,
			WithProberTimeout(timeout),
			WithProberConcurrency(e.config.ProbeConcurrency),
			WithProberLogger(e.config.Logger),
		),
		tracker:  tracker,
		selector: NewSelector(name, tracker, selectorOpts...),
		interval: poolCfg.DiscoveryInterval,
	}

	return nil
}

// DiscoverOnce runs a single discovery pass for the named pool and applies
// the result to its tracker.
//
// The pass is one-shot and idempotent: repeating it against an unchanged
// healthy cluster yields an equivalent snapshot. Failures are isolated to
// the pool; the returned error describes the failed pass after the tracker
// has already applied the failure policy.
//
// Parameters:
//   - ctx: Context for cancellation; the pass ceiling is applied on top
//   - pool: The pool to discover
//
// Returns:
//   - error: types.ErrUnknownPool, types.ErrEngineClosed, or the
//     *types.DiscoveryError of a failed pass
func (e *Engine) DiscoverOnce(ctx context.Context, pool string) error {
	if e.closed.Load() {
		return types.ErrEngineClosed
	}

	ep, err := e.pool(pool)
	if err != nil {
		return err
	}

	sources, err := e.registry.Sources(pool)
	if err != nil {
		return err
	}

	ep.discoverMu.Lock()
	defer ep.discoverMu.Unlock()

	e.config.Metrics.IncDiscoveryTotal(pool)
	start := time.Now()

	snapshot, err := ep.prober.Discover(ctx, pool, sources)
	e.config.Metrics.ObserveDiscoveryDuration(pool, time.Since(start).Seconds())

	if err != nil {
		e.config.Metrics.IncDiscoveryError(pool)
		ep.tracker.ApplyFailure(err)
		return err
	}

	ep.tracker.Update(snapshot)

	return nil
}

// Route returns the data source name that should serve the operation.
//
// This is the sole query-time entry point for the surrounding SQL-routing
// layer. It consults only the latest published snapshot and never probes.
//
// Parameters:
//   - pool: The pool to route within
//   - rctx: The routing context for the operation
//
// Returns:
//   - string: The selected data source name
//   - error: types.ErrUnknownPool, types.ErrPrimaryUnavailable, or
//     types.ErrNoAvailableDataSource
func (e *Engine) Route(pool string, rctx types.RoutingContext) (string, error) {
	if e.closed.Load() {
		return "", types.ErrEngineClosed
	}

	ep, err := e.pool(pool)
	if err != nil {
		return "", err
	}

	return ep.selector.Route(rctx)
}

// ReleaseAffinity drops a session/transaction affinity binding for a pool.
//
// Parameters:
//   - pool: The pool the binding belongs to
//   - key: The affinity key to release
//
// Returns:
//   - error: types.ErrUnknownPool if the pool does not exist
func (e *Engine) ReleaseAffinity(pool, key string) error {
	ep, err := e.pool(pool)
	if err != nil {
		return err
	}

	ep.selector.ReleaseAffinity(key)

	return nil
}

// Snapshot returns the retained topology snapshot of a pool.
//
// Parameters:
//   - pool: The pool name
//
// Returns:
//   - *types.TopologySnapshot: The retained snapshot, nil if none yet
//   - error: types.ErrUnknownPool if the pool does not exist
func (e *Engine) Snapshot(pool string) (*types.TopologySnapshot, error) {
	ep, err := e.pool(pool)
	if err != nil {
		return nil, err
	}

	snapshot, _ := ep.tracker.Snapshot()

	return snapshot, nil
}

// Status returns the read-only failover status of a pool for operational
// tooling ("is the pool degraded", "which node is primary").
//
// Parameters:
//   - pool: The pool name
//
// Returns:
//   - TrackerStatus: The pool status
//   - error: types.ErrUnknownPool if the pool does not exist
func (e *Engine) Status(pool string) (TrackerStatus, error) {
	ep, err := e.pool(pool)
	if err != nil {
		return TrackerStatus{}, err
	}

	return ep.tracker.Status(), nil
}

// Events returns the failover-event stream of a pool.
//
// The stream is read-only and intended for metrics and observability
// collaborators such as the announce package.
//
// Parameters:
//   - pool: The pool name
//
// Returns:
//   - <-chan types.FailoverEvent: The pool's event channel
//   - error: types.ErrUnknownPool if the pool does not exist
func (e *Engine) Events(pool string) (<-chan types.FailoverEvent, error) {
	ep, err := e.pool(pool)
	if err != nil {
		return nil, err
	}

	return ep.tracker.Events(), nil
}

// Pools returns the registered pool names in sorted order.
func (e *Engine) Pools() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.pools))
	for name := range e.pools {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// DiscoveryInterval returns the suggested discovery period of a pool, zero
// when unset. Consumed by Runner and external schedulers.
//
// Parameters:
//   - pool: The pool name
//
// Returns:
//   - time.Duration: The suggested period, 0 if unset
//   - error: types.ErrUnknownPool if the pool does not exist
func (e *Engine) DiscoveryInterval(pool string) (time.Duration, error) {
	ep, err := e.pool(pool)
	if err != nil {
		return 0, err
	}

	return ep.interval, nil
}

// Close closes the engine and every pool's event stream.
//
// This method is safe to call multiple times. Operations after Close fail
// with types.ErrEngineClosed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ep := range e.pools {
		ep.tracker.Close()
	}

	return nil
}

// pool resolves a registered pool by name.
func (e *Engine) pool(name string) (*enginePool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ep, ok := e.pools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownPool, name)
	}

	return ep, nil
}
