package rudder

import (
	"slices"
	"sync"

	"github.com/arloliu/rudder/internal/logging"
	"github.com/arloliu/rudder/internal/metrics"
	"github.com/arloliu/rudder/types"
)

// Selector picks a target data source for a logical read or write.
//
// Writes always target the tracker's current primary and fail fast with
// types.ErrPrimaryUnavailable when none is known - a write is never silently
// degraded to a replica. Reads honor session affinity first, then apply the
// configured balance policy over the eligible replica set, falling back to
// the primary when that set is empty (unless fallback is disabled).
//
// Routing calls never block on I/O; they only consult the tracker's
// atomically-published snapshot. Selector is safe for concurrent use.
type Selector struct {
	pool            string
	tracker         *Tracker
	policy          BalancePolicy
	primaryFallback bool
	logger          types.Logger
	metrics         types.MetricsCollector

	mu       sync.Mutex
	bindings map[string]string // affinity key -> data source name
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithSelectorPolicy sets the balance policy for reads.
//
// When no policy is set the selector falls back to the first eligible
// replica in configured order (use balance.NewRoundRobin() for production).
//
// Parameters:
//   - policy: The balance policy
//
// Returns:
//   - SelectorOption: Configuration option
func WithSelectorPolicy(policy BalancePolicy) SelectorOption {
	return func(s *Selector) {
		s.policy = policy
	}
}

// WithSelectorPrimaryFallback enables or disables the read-from-primary
// fallback when no replica is eligible.
//
// Parameters:
//   - enabled: true to fall back to the primary (the default)
//
// Returns:
//   - SelectorOption: Configuration option
func WithSelectorPrimaryFallback(enabled bool) SelectorOption {
	return func(s *Selector) {
		s.primaryFallback = enabled
	}
}

// WithSelectorLogger sets the logger for the selector.
//
// Parameters:
//   - l: The logger
//
// Returns:
//   - SelectorOption: Configuration option
func WithSelectorLogger(l types.Logger) SelectorOption {
	return func(s *Selector) {
		s.logger = l
	}
}

// WithSelectorMetrics sets the metrics collector for the selector.
//
// Parameters:
//   - m: The metrics collector
//
// Returns:
//   - SelectorOption: Configuration option
func WithSelectorMetrics(m types.MetricsCollector) SelectorOption {
	return func(s *Selector) {
		s.metrics = m
	}
}

// NewSelector creates a Selector bound to one pool's tracker.
//
// The selector registers a failover callback on the tracker so that
// affinity bindings to a demoted primary are invalidated immediately.
//
// Parameters:
//   - pool: The pool name
//   - tracker: The pool's failover state tracker
//   - opts: Optional configuration options
//
// Returns:
//   - *Selector: A new selector
func NewSelector(pool string, tracker *Tracker, opts ...SelectorOption) *Selector {
	s := &Selector{
		pool:            pool,
		tracker:         tracker,
		primaryFallback: true,
		bindings:        make(map[string]string),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNopMetrics()
	}

	tracker.OnFailover(s.onFailover)

	return s
}

// Route returns the name of the data source that should serve the operation.
//
// Parameters:
//   - rctx: The routing context for the operation
//
// Returns:
//   - string: The selected data source name
//   - error: types.ErrPrimaryUnavailable for writes without a known
//     primary, or types.ErrNoAvailableDataSource for reads with no
//     eligible replica and no usable fallback
func (s *Selector) Route(rctx types.RoutingContext) (string, error) {
	s.metrics.IncRouteTotal(s.pool, rctx.Kind)

	name, err := s.route(rctx)
	if err != nil {
		s.metrics.IncRouteError(s.pool, rctx.Kind)
		return "", err
	}

	return name, nil
}

// ReleaseAffinity drops the binding for a session or transaction scope.
//
// Callers release the key when the transaction or session ends so the
// binding does not pin future unrelated operations.
//
// Parameters:
//   - key: The affinity key to release
func (s *Selector) ReleaseAffinity(key string) {
	if key == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.bindings, key)
}

// route implements the selection logic.
func (s *Selector) route(rctx types.RoutingContext) (string, error) {
	if rctx.Kind == types.OperationWrite {
		primary, ok := s.tracker.CurrentPrimary()
		if !ok {
			return "", types.ErrPrimaryUnavailable
		}

		// Bind the transaction scope to the primary so subsequent reads
		// inside it observe their own writes.
		s.bind(rctx.AffinityKey, primary)

		return primary, nil
	}

	eligible := s.eligibleCandidates(rctx)

	if name, ok := s.boundSource(rctx, eligible); ok {
		return name, nil
	}

	if len(eligible) == 0 {
		return s.fallbackToPrimary(rctx)
	}

	name := s.pick(rctx, eligible)
	s.bind(rctx.AffinityKey, name)

	return name, nil
}

// eligibleCandidates intersects the tracker's eligible replica set with the
// caller-provided candidate restriction, preserving configured order.
func (s *Selector) eligibleCandidates(rctx types.RoutingContext) []string {
	eligible := s.tracker.EligibleReplicas()
	if rctx.Candidates == nil {
		return eligible
	}

	result := make([]string, 0, len(eligible))
	for _, name := range eligible {
		if slices.Contains(rctx.Candidates, name) {
			result = append(result, name)
		}
	}

	return result
}

// boundSource resolves a still-valid affinity binding, dropping it when the
// bound source is no longer routable. A dropped binding frees the next call
// to pick a new eligible source and rebind.
func (s *Selector) boundSource(rctx types.RoutingContext, eligible []string) (string, bool) {
	if rctx.AffinityKey == "" {
		return "", false
	}

	s.mu.Lock()
	bound, ok := s.bindings[rctx.AffinityKey]
	s.mu.Unlock()
	if !ok {
		return "", false
	}

	if slices.Contains(eligible, bound) {
		return bound, true
	}

	// A binding to the primary (from a write or a fallback read) stays
	// valid as long as the primary is routable and fallback is allowed.
	if primary, pok := s.tracker.CurrentPrimary(); pok && bound == primary {
		if s.primaryFallback && !rctx.DisableFallback {
			return bound, true
		}
	}

	s.mu.Lock()
	delete(s.bindings, rctx.AffinityKey)
	s.mu.Unlock()

	return "", false
}

// fallbackToPrimary serves a read from the primary when no replica is
// eligible and the fallback is permitted.
func (s *Selector) fallbackToPrimary(rctx types.RoutingContext) (string, error) {
	if !s.primaryFallback || rctx.DisableFallback {
		return "", types.ErrNoAvailableDataSource
	}

	primary, ok := s.tracker.CurrentPrimary()
	if !ok {
		return "", types.ErrNoAvailableDataSource
	}

	s.metrics.IncPrimaryFallback(s.pool)
	s.logger.Debug("read falling back to primary",
		"pool", s.pool,
		"primary", primary,
	)
	s.bind(rctx.AffinityKey, primary)

	return primary, nil
}

// pick applies the balance policy, defaulting to the first eligible source.
func (s *Selector) pick(rctx types.RoutingContext, eligible []string) string {
	primary, _ := s.tracker.CurrentPrimary()

	if s.policy == nil {
		return eligible[0]
	}

	return s.policy.Pick(s.pool, primary, eligible, rctx)
}

// bind records an affinity binding when the operation carries a key.
func (s *Selector) bind(key, name string) {
	if key == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bindings[key] = name
}

// onFailover invalidates bindings pointing at a demoted primary.
func (s *Selector) onFailover(event types.FailoverEvent) {
	if event.OldPrimary == "" || event.OldPrimary == event.NewPrimary {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, name := range s.bindings {
		if name == event.OldPrimary {
			delete(s.bindings, key)
		}
	}
}
