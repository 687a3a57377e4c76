package rudder

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/rudder/types"
)

// testSnapshot assembles a snapshot as a successful discovery pass would.
func testSnapshot(pool, passID, primary string, replicas map[string]types.ReplicaStatus, names ...string) *types.TopologySnapshot {
	return &types.TopologySnapshot{
		Pool:         pool,
		PassID:       passID,
		Primary:      primary,
		Replicas:     replicas,
		ReplicaNames: names,
		ObservedAt:   time.Now(),
	}
}

func healthySnapshot(pool, passID, primary string, replicas ...string) *types.TopologySnapshot {
	statuses := make(map[string]types.ReplicaStatus, len(replicas))
	for _, name := range replicas {
		statuses[name] = types.ReplicaStatus{Eligible: true, Delay: time.Millisecond}
	}
	return testSnapshot(pool, passID, primary, statuses, replicas...)
}

// captureMetrics records collector calls for assertions.
type captureMetrics struct {
	mu        sync.Mutex
	failovers int
	states    []int
	replicas  []int
}

func (c *captureMetrics) IncDiscoveryTotal(string) {}

func (c *captureMetrics) IncDiscoveryError(string) {}

func (c *captureMetrics) ObserveDiscoveryDuration(string, float64) {}

func (c *captureMetrics) IncFailoverTotal(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failovers++
}

func (c *captureMetrics) SetPoolState(_ string, state int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, state)
}

func (c *captureMetrics) SetEligibleReplicas(_ string, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replicas = append(c.replicas, count)
}

func (c *captureMetrics) IncRouteTotal(string, types.OperationKind) {}

func (c *captureMetrics) IncRouteError(string, types.OperationKind) {}

func (c *captureMetrics) IncPrimaryFallback(string) {}

func (c *captureMetrics) failoverCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failovers
}

func TestTrackerInitialState(t *testing.T) {
	tracker := NewTracker("p1")
	defer tracker.Close()

	status := tracker.Status()
	assert.Equal(t, "p1", status.Pool)
	assert.Equal(t, types.StateUninitialized, status.State)
	assert.False(t, status.Stale)
	assert.Empty(t, status.Primary)

	_, ok := tracker.CurrentPrimary()
	assert.False(t, ok)
	assert.Nil(t, tracker.EligibleReplicas())

	_, ok = tracker.Snapshot()
	assert.False(t, ok)
}

func TestTrackerUpdateHealthy(t *testing.T) {
	tracker := NewTracker("p1")
	defer tracker.Close()

	tracker.Update(healthySnapshot("p1", "pass-1", "ds-0", "ds-1", "ds-2"))

	primary, ok := tracker.CurrentPrimary()
	require.True(t, ok)
	assert.Equal(t, "ds-0", primary)
	assert.Equal(t, []string{"ds-1", "ds-2"}, tracker.EligibleReplicas())

	status := tracker.Status()
	assert.Equal(t, types.StateHealthy, status.State)
	assert.False(t, status.Stale)
	assert.Equal(t, "ds-0", status.Primary)
}

func TestTrackerUpdateDegraded(t *testing.T) {
	tracker := NewTracker("p1")
	defer tracker.Close()

	snapshot := testSnapshot("p1", "pass-1", "ds-0", map[string]types.ReplicaStatus{
		"ds-1": {Eligible: false, Delay: types.DelayUnknown},
	}, "ds-1")
	tracker.Update(snapshot)

	status := tracker.Status()
	assert.Equal(t, types.StateDegraded, status.State)
	assert.Equal(t, "ds-0", status.Primary, "the primary stays routable while degraded")
	assert.Empty(t, status.EligibleReplicas)
}

func TestTrackerFailoverEvent(t *testing.T) {
	collector := &captureMetrics{}
	tracker := NewTracker("p1", WithTrackerMetrics(collector))
	defer tracker.Close()

	var callbackEvents []types.FailoverEvent
	var mu sync.Mutex
	tracker.OnFailover(func(event types.FailoverEvent) {
		mu.Lock()
		defer mu.Unlock()
		callbackEvents = append(callbackEvents, event)
	})

	tracker.Update(healthySnapshot("p1", "pass-1", "ds-0", "ds-1"))
	tracker.Update(healthySnapshot("p1", "pass-2", "ds-1", "ds-0"))

	// First event: uninitialized -> healthy. Second: primary change.
	event := <-tracker.Events()
	assert.Equal(t, "", event.OldPrimary)
	assert.Equal(t, "ds-0", event.NewPrimary)
	assert.Equal(t, types.StateUninitialized, event.OldState)
	assert.Equal(t, types.StateHealthy, event.NewState)

	event = <-tracker.Events()
	assert.Equal(t, "ds-0", event.OldPrimary)
	assert.Equal(t, "ds-1", event.NewPrimary)
	assert.Equal(t, "pass-2", event.PassID)

	mu.Lock()
	assert.Len(t, callbackEvents, 2)
	mu.Unlock()

	assert.Equal(t, 2, collector.failoverCount(), "initial primary and the change both count")
}

func TestTrackerUnchangedTopologyEmitsNothing(t *testing.T) {
	tracker := NewTracker("p1")
	defer tracker.Close()

	tracker.Update(healthySnapshot("p1", "pass-1", "ds-0", "ds-1"))
	<-tracker.Events()

	tracker.Update(healthySnapshot("p1", "pass-2", "ds-0", "ds-1"))

	select {
	case event := <-tracker.Events():
		t.Fatalf("unexpected event for unchanged topology: %+v", event)
	default:
	}
}

func TestTrackerNoPrimaryFailureDisablesRouting(t *testing.T) {
	tracker := NewTracker("p1")
	defer tracker.Close()

	tracker.Update(healthySnapshot("p1", "pass-1", "ds-0", "ds-1"))
	<-tracker.Events()

	tracker.ApplyFailure(&types.DiscoveryError{Pool: "p1", Cause: types.ErrNoPrimary})

	_, ok := tracker.CurrentPrimary()
	assert.False(t, ok, "a pool without a proven primary must not route writes")
	assert.Nil(t, tracker.EligibleReplicas())

	status := tracker.Status()
	assert.Equal(t, types.StateFailed, status.State)
	assert.True(t, status.Stale)
	assert.Empty(t, status.Primary)

	// The stale snapshot stays readable for observability.
	snapshot, ok := tracker.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "ds-0", snapshot.Primary)

	event := <-tracker.Events()
	assert.Equal(t, "ds-0", event.OldPrimary)
	assert.Empty(t, event.NewPrimary)
	assert.Equal(t, types.StateFailed, event.NewState)
}

func TestTrackerOtherFailuresKeepLastKnownTopology(t *testing.T) {
	tracker := NewTracker("p1")
	defer tracker.Close()

	tracker.Update(healthySnapshot("p1", "pass-1", "ds-0", "ds-1"))
	<-tracker.Events()

	tracker.ApplyFailure(&types.DiscoveryError{Pool: "p1", Cause: types.ErrDuplicatePrimary})

	primary, ok := tracker.CurrentPrimary()
	require.True(t, ok, "last-known-good topology keeps serving")
	assert.Equal(t, "ds-0", primary)
	assert.Equal(t, []string{"ds-1"}, tracker.EligibleReplicas())

	status := tracker.Status()
	assert.Equal(t, types.StateHealthy, status.State)
	assert.True(t, status.Stale)

	select {
	case event := <-tracker.Events():
		t.Fatalf("unexpected event for retained topology: %+v", event)
	default:
	}
}

func TestTrackerRecoveryAfterFailure(t *testing.T) {
	tracker := NewTracker("p1")
	defer tracker.Close()

	tracker.Update(healthySnapshot("p1", "pass-1", "ds-0", "ds-1"))
	tracker.ApplyFailure(&types.DiscoveryError{Pool: "p1", Cause: types.ErrNoPrimary})
	tracker.Update(healthySnapshot("p1", "pass-3", "ds-1", "ds-0"))

	primary, ok := tracker.CurrentPrimary()
	require.True(t, ok)
	assert.Equal(t, "ds-1", primary)

	status := tracker.Status()
	assert.Equal(t, types.StateHealthy, status.State)
	assert.False(t, status.Stale, "a successful pass clears staleness")
}

func TestTrackerEventOverflowDoesNotBlock(t *testing.T) {
	tracker := NewTracker("p1")
	defer tracker.Close()

	// Nobody consumes; flipping the primary repeatedly must not deadlock.
	for i := 0; i < 64; i++ {
		primary := "ds-0"
		other := "ds-1"
		if i%2 == 1 {
			primary, other = other, primary
		}
		tracker.Update(healthySnapshot("p1", "pass", primary, other))
	}

	primary, ok := tracker.CurrentPrimary()
	require.True(t, ok)
	assert.Equal(t, "ds-1", primary)
}

func TestTrackerCloseIsIdempotent(t *testing.T) {
	tracker := NewTracker("p1")
	tracker.Close()
	tracker.Close()

	_, open := <-tracker.Events()
	assert.False(t, open, "the event channel is closed")

	// Updates after Close still maintain state, just without events.
	tracker.Update(healthySnapshot("p1", "pass-1", "ds-0", "ds-1"))
	primary, ok := tracker.CurrentPrimary()
	require.True(t, ok)
	assert.Equal(t, "ds-0", primary)
}

func TestTrackerConcurrentReadsDuringUpdates(t *testing.T) {
	tracker := NewTracker("p1")
	defer tracker.Close()

	tracker.Update(healthySnapshot("p1", "pass-0", "ds-0", "ds-1"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			primary := "ds-0"
			other := "ds-1"
			if i%2 == 1 {
				primary, other = other, primary
			}
			tracker.Update(healthySnapshot("p1", "pass", primary, other))
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}

		// A reader must always observe a coherent snapshot: the primary
		// never appears in its own eligible replica set.
		snapshot, ok := tracker.Snapshot()
		if !ok {
			continue
		}
		for _, name := range snapshot.EligibleReplicas() {
			assert.NotEqual(t, snapshot.Primary, name)
		}
	}
}
