package rudder

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/rudder/internal/logging"
	"github.com/arloliu/rudder/internal/metrics"
	"github.com/arloliu/rudder/types"
)

// TrackerStatus is a read-only summary of a pool's failover state.
type TrackerStatus struct {
	// Pool is the tracked pool name.
	Pool string

	// State is the current pool state.
	State types.PoolState

	// Stale is true when the retained snapshot predates a failed
	// discovery pass and may no longer reflect the cluster.
	Stale bool

	// Primary is the routable primary name, empty if none.
	Primary string

	// EligibleReplicas are the replica names currently eligible for reads.
	EligibleReplicas []string

	// ObservedAt is when the retained snapshot was produced.
	ObservedAt time.Time
}

// trackerView is the single atomically-replaced unit of tracker state.
//
// Readers load the pointer once and work on an immutable view; they never
// observe a half-updated snapshot.
type trackerView struct {
	snapshot *types.TopologySnapshot
	state    types.PoolState
	stale    bool
}

// Tracker holds the last-known topology snapshot for one pool and answers
// eligibility queries cheaply on the routing path without re-probing.
//
// State machine: uninitialized -> healthy (single primary, >=0 eligible
// replicas) -> degraded (primary known, zero eligible replicas) -> failed
// (no primary known). Transitions are driven solely by Update and
// ApplyFailure; failed is non-terminal.
//
// Failed-pass policy: a pass that proves the cluster has no primary
// (types.ErrNoPrimary) moves the pool to failed, retaining the last snapshot
// stale for observability only. Any other failed pass (duplicate primary,
// aggregated probe failures) keeps the previous snapshot active and merely
// marks it stale, since the last-known-good topology may still be right.
//
// Tracker is safe for concurrent use; reads are lock-free.
type Tracker struct {
	pool    string
	logger  types.Logger
	metrics types.MetricsCollector

	view atomic.Pointer[trackerView]

	mu        sync.Mutex // serializes Update/ApplyFailure transitions
	callbacks []func(types.FailoverEvent)
	closed    bool

	events    chan types.FailoverEvent
	closeOnce sync.Once
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerLogger sets the logger for the tracker.
//
// Parameters:
//   - l: The logger
//
// Returns:
//   - TrackerOption: Configuration option
func WithTrackerLogger(l types.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = l
	}
}

// WithTrackerMetrics sets the metrics collector for the tracker.
//
// Parameters:
//   - m: The metrics collector
//
// Returns:
//   - TrackerOption: Configuration option
func WithTrackerMetrics(m types.MetricsCollector) TrackerOption {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// NewTracker creates a new Tracker for the named pool.
//
// The tracker starts in the uninitialized state.
//
// Parameters:
//   - pool: The pool name
//   - opts: Optional configuration options
//
// Returns:
//   - *Tracker: A new tracker
func NewTracker(pool string, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		pool:   pool,
		events: make(chan types.FailoverEvent, 16),
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.logger == nil {
		t.logger = logging.NewNopLogger()
	}
	if t.metrics == nil {
		t.metrics = metrics.NewNopMetrics()
	}

	t.view.Store(&trackerView{state: types.StateUninitialized})

	return t
}

// Update replaces the stored snapshot wholesale.
//
// If the new primary name differs from the previous one this is a failover
// event: subscribers on Events and registered callbacks are notified so
// dependents can invalidate stickiness bound to the old primary. The update
// is atomic with respect to concurrent readers.
//
// Parameters:
//   - snapshot: The snapshot produced by a successful discovery pass
func (t *Tracker) Update(snapshot *types.TopologySnapshot) {
	t.mu.Lock()

	old := t.view.Load()
	newState := snapshot.State()
	next := &trackerView{snapshot: snapshot, state: newState}
	t.view.Store(next)

	var oldPrimary string
	if old.snapshot != nil {
		oldPrimary = old.snapshot.Primary
	}

	event, notify := t.buildEvent(old, oldPrimary, snapshot.Primary, newState, snapshot)
	callbacks := t.snapshotCallbacks()

	t.mu.Unlock()

	t.metrics.SetPoolState(t.pool, int(newState))
	t.metrics.SetEligibleReplicas(t.pool, len(snapshot.EligibleReplicas()))

	if !notify {
		return
	}

	if event.OldPrimary != event.NewPrimary {
		t.metrics.IncFailoverTotal(t.pool)
		t.logger.Warn("pool failover",
			"pool", t.pool,
			"pass_id", event.PassID,
			"old_primary", event.OldPrimary,
			"new_primary", event.NewPrimary,
		)
	} else {
		t.logger.Info("pool state changed",
			"pool", t.pool,
			"pass_id", event.PassID,
			"old_state", event.OldState.String(),
			"new_state", event.NewState.String(),
		)
	}

	t.notify(event, callbacks)
}

// ApplyFailure records a failed discovery pass.
//
// A pass failing with types.ErrNoPrimary moves the pool to the failed
// state; routing writes then fail with types.ErrPrimaryUnavailable until a
// later pass succeeds. Any other discovery failure keeps the previous
// snapshot active and marks it stale.
//
// Parameters:
//   - err: The discovery error for the failed pass
func (t *Tracker) ApplyFailure(err error) {
	t.mu.Lock()

	old := t.view.Load()

	if !errors.Is(err, types.ErrNoPrimary) {
		t.view.Store(&trackerView{snapshot: old.snapshot, state: old.state, stale: true})
		t.mu.Unlock()

		t.logger.Warn("discovery pass failed, keeping last known topology",
			"pool", t.pool,
			"error", err,
		)

		return
	}

	next := &trackerView{snapshot: old.snapshot, state: types.StateFailed, stale: true}
	t.view.Store(next)

	var oldPrimary string
	if old.snapshot != nil {
		oldPrimary = old.snapshot.Primary
	}

	event, notify := t.buildEvent(old, oldPrimary, "", types.StateFailed, old.snapshot)
	callbacks := t.snapshotCallbacks()

	t.mu.Unlock()

	t.metrics.SetPoolState(t.pool, int(types.StateFailed))
	t.metrics.SetEligibleReplicas(t.pool, 0)

	t.logger.Error("pool failed: no primary data source",
		"pool", t.pool,
		"error", err,
	)

	if notify {
		t.notify(event, callbacks)
	}
}

// CurrentPrimary returns the routable primary name.
//
// Returns:
//   - string: The primary name
//   - bool: false when the pool is uninitialized or failed
func (t *Tracker) CurrentPrimary() (string, bool) {
	view := t.view.Load()
	if view.snapshot == nil || view.state == types.StateFailed {
		return "", false
	}
	return view.snapshot.Primary, true
}

// EligibleReplicas returns the replica names eligible for reads, in
// configured order. The result is nil when the pool is uninitialized or
// failed.
func (t *Tracker) EligibleReplicas() []string {
	view := t.view.Load()
	if view.snapshot == nil || view.state == types.StateFailed {
		return nil
	}
	return view.snapshot.EligibleReplicas()
}

// Snapshot returns the retained topology snapshot.
//
// The snapshot may be stale after a failed pass; check Status().Stale.
//
// Returns:
//   - *types.TopologySnapshot: The retained snapshot
//   - bool: false when no pass has ever succeeded
func (t *Tracker) Snapshot() (*types.TopologySnapshot, bool) {
	view := t.view.Load()
	if view.snapshot == nil {
		return nil, false
	}
	return view.snapshot, true
}

// Status returns a read-only summary of the tracker state.
func (t *Tracker) Status() TrackerStatus {
	view := t.view.Load()

	status := TrackerStatus{
		Pool:  t.pool,
		State: view.state,
		Stale: view.stale,
	}
	if view.snapshot != nil {
		status.ObservedAt = view.snapshot.ObservedAt
	}
	if view.state != types.StateFailed && view.snapshot != nil {
		status.Primary = view.snapshot.Primary
		status.EligibleReplicas = view.snapshot.EligibleReplicas()
	}

	return status
}

// Events returns a channel receiving failover and state-change events.
//
// The channel is buffered; events are dropped, not blocked on, when no
// consumer keeps up. It is closed by Close.
//
// Returns:
//   - <-chan types.FailoverEvent: Channel of failover events
func (t *Tracker) Events() <-chan types.FailoverEvent {
	return t.events
}

// OnFailover registers a callback invoked on every failover or state-change
// event. Callbacks run on the updating goroutine and must be fast and
// non-blocking.
//
// Parameters:
//   - fn: The callback
func (t *Tracker) OnFailover(fn func(types.FailoverEvent)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.callbacks = append(t.callbacks, fn)
}

// Close stops event delivery and closes the event channel.
//
// This method is safe to call multiple times.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.closeOnce.Do(func() { close(t.events) })
}

// buildEvent assembles the event for a transition, reporting whether
// anything notifiable changed. Called with mu held.
func (t *Tracker) buildEvent(old *trackerView, oldPrimary, newPrimary string, newState types.PoolState, snapshot *types.TopologySnapshot) (types.FailoverEvent, bool) {
	if oldPrimary == newPrimary && old.state == newState {
		return types.FailoverEvent{}, false
	}

	event := types.FailoverEvent{
		Pool:       t.pool,
		OldPrimary: oldPrimary,
		NewPrimary: newPrimary,
		OldState:   old.state,
		NewState:   newState,
		ObservedAt: time.Now(),
	}
	if snapshot != nil {
		event.PassID = snapshot.PassID
		event.ObservedAt = snapshot.ObservedAt
	}

	return event, true
}

// snapshotCallbacks copies the callback list for invocation outside the
// lock. Called with mu held.
func (t *Tracker) snapshotCallbacks() []func(types.FailoverEvent) {
	if t.closed || len(t.callbacks) == 0 {
		return nil
	}
	callbacks := make([]func(types.FailoverEvent), len(t.callbacks))
	copy(callbacks, t.callbacks)

	return callbacks
}

// notify delivers an event to callbacks and the event channel.
func (t *Tracker) notify(event types.FailoverEvent, callbacks []func(types.FailoverEvent)) {
	for _, fn := range callbacks {
		fn(event)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	// Emit event (non-blocking)
	select {
	case t.events <- event:
	default:
		// Channel full, skip event (older events are stale anyway)
	}
}
