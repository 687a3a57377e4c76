package rudder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/rudder/types"
)

// fakeSource is a named no-op data source for core tests. Providers in
// these tests never issue real queries against it.
type fakeSource struct {
	name string
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Query(_ context.Context, _ string) ([]types.Row, error) {
	return nil, nil
}

func sourcesOf(names ...string) []types.DataSource {
	sources := make([]types.DataSource, 0, len(names))
	for _, name := range names {
		sources = append(sources, &fakeSource{name: name})
	}
	return sources
}

// fakeProvider answers probes from canned per-source maps.
type fakeProvider struct {
	mu sync.Mutex

	primaries   map[string]bool
	statuses    map[string]types.ReplicaStatus
	primaryErrs map[string]error
	statusErrs  map[string]error

	// blocks delays a source's answers, for timeout scenarios.
	blocks map[string]time.Duration
}

func (p *fakeProvider) Configure(_ map[string]string) error { return nil }

func (p *fakeProvider) Type() string { return "fake" }

func (p *fakeProvider) IsPrimary(ctx context.Context, ds types.DataSource) (bool, error) {
	if err := p.wait(ctx, ds.Name()); err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.primaryErrs[ds.Name()]; err != nil {
		return false, err
	}

	return p.primaries[ds.Name()], nil
}

func (p *fakeProvider) LoadReplicaStatus(ctx context.Context, ds types.DataSource) (types.ReplicaStatus, error) {
	if err := p.wait(ctx, ds.Name()); err != nil {
		return types.ReplicaStatus{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.statusErrs[ds.Name()]; err != nil {
		return types.ReplicaStatus{}, err
	}
	if status, ok := p.statuses[ds.Name()]; ok {
		return status, nil
	}

	return types.ReplicaStatus{Eligible: true}, nil
}

func (p *fakeProvider) wait(_ context.Context, name string) error {
	p.mu.Lock()
	delay := p.blocks[name]
	p.mu.Unlock()

	// Deliberately ignores the context so the pass ceiling, not the
	// provider, decides the straggler's fate.
	if delay > 0 {
		time.Sleep(delay)
	}

	return nil
}

// setPrimary repoints the fake cluster's primary, clearing the old one.
func (p *fakeProvider) setPrimary(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.primaries = map[string]bool{name: true}
}

func TestProberSinglePrimary(t *testing.T) {
	provider := &fakeProvider{
		primaries: map[string]bool{"ds-0": true},
		statuses: map[string]types.ReplicaStatus{
			"ds-1": {Eligible: true, Delay: 100 * time.Millisecond},
			"ds-2": {Eligible: false, Delay: 5 * time.Second},
		},
	}
	prober := NewProber(provider)

	snapshot, err := prober.Discover(context.Background(), "p1", sourcesOf("ds-0", "ds-1", "ds-2"))
	require.NoError(t, err)
	require.NotNil(t, snapshot)

	assert.Equal(t, "p1", snapshot.Pool)
	assert.NotEmpty(t, snapshot.PassID)
	assert.Equal(t, "ds-0", snapshot.Primary)
	assert.Equal(t, []string{"ds-1", "ds-2"}, snapshot.ReplicaNames)
	assert.Equal(t, []string{"ds-1"}, snapshot.EligibleReplicas())
	assert.Empty(t, snapshot.SourceErrors)
	assert.False(t, snapshot.ObservedAt.IsZero())
	assert.Equal(t, types.StateHealthy, snapshot.State())
}

func TestProberIdempotentPasses(t *testing.T) {
	provider := &fakeProvider{
		primaries: map[string]bool{"ds-0": true},
		statuses: map[string]types.ReplicaStatus{
			"ds-1": {Eligible: true, Delay: time.Millisecond},
		},
	}
	prober := NewProber(provider)
	sources := sourcesOf("ds-0", "ds-1")

	first, err := prober.Discover(context.Background(), "p1", sources)
	require.NoError(t, err)
	second, err := prober.Discover(context.Background(), "p1", sources)
	require.NoError(t, err)

	assert.Equal(t, first.Primary, second.Primary)
	assert.Equal(t, first.EligibleReplicas(), second.EligibleReplicas())
	assert.NotEqual(t, first.PassID, second.PassID, "each pass carries its own identity")
}

func TestProberNoPrimary(t *testing.T) {
	provider := &fakeProvider{
		primaries: map[string]bool{},
	}
	prober := NewProber(provider)

	snapshot, err := prober.Discover(context.Background(), "p1", sourcesOf("ds-0", "ds-1"))
	require.Error(t, err)
	assert.Nil(t, snapshot)
	assert.ErrorIs(t, err, types.ErrNoPrimary)

	var discErr *types.DiscoveryError
	require.ErrorAs(t, err, &discErr)
	assert.Equal(t, "p1", discErr.Pool)
}

func TestProberDuplicatePrimary(t *testing.T) {
	provider := &fakeProvider{
		primaries: map[string]bool{"ds-0": true, "ds-2": true},
	}
	prober := NewProber(provider)

	snapshot, err := prober.Discover(context.Background(), "p1", sourcesOf("ds-0", "ds-1", "ds-2"))
	require.Error(t, err)
	assert.Nil(t, snapshot)
	assert.ErrorIs(t, err, types.ErrDuplicatePrimary)
	assert.Contains(t, err.Error(), "ds-0")
	assert.Contains(t, err.Error(), "ds-2")
}

func TestProberTransportFailureExcludedFromPrimaryCount(t *testing.T) {
	probeErr := errors.New("connection refused")
	provider := &fakeProvider{
		primaries:   map[string]bool{"ds-0": true},
		primaryErrs: map[string]error{"ds-1": probeErr},
		statuses: map[string]types.ReplicaStatus{
			"ds-2": {Eligible: true, Delay: time.Millisecond},
		},
	}
	prober := NewProber(provider)

	snapshot, err := prober.Discover(context.Background(), "p1", sourcesOf("ds-0", "ds-1", "ds-2"))
	require.NoError(t, err, "an unreachable source must not fail the pass")

	assert.Equal(t, "ds-0", snapshot.Primary)
	assert.Equal(t, []string{"ds-2"}, snapshot.ReplicaNames, "the errored source is not a replica either")
	assert.ErrorIs(t, snapshot.SourceErrors["ds-1"], probeErr)
}

func TestProberAllSourcesUnreachable(t *testing.T) {
	probeErr := errors.New("connection refused")
	provider := &fakeProvider{
		primaryErrs: map[string]error{"ds-0": probeErr, "ds-1": probeErr},
	}
	prober := NewProber(provider)

	_, err := prober.Discover(context.Background(), "p1", sourcesOf("ds-0", "ds-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNoPrimary)

	var discErr *types.DiscoveryError
	require.ErrorAs(t, err, &discErr)
	assert.Len(t, discErr.SourceErrors, 2)
	assert.ErrorIs(t, err, probeErr, "per-source causes stay reachable through the aggregate")
}

func TestProberReplicaProbeFailure(t *testing.T) {
	statusErr := errors.New("replica query failed")
	provider := &fakeProvider{
		primaries: map[string]bool{"ds-0": true},
		statuses: map[string]types.ReplicaStatus{
			"ds-1": {Eligible: true, Delay: time.Millisecond},
		},
		statusErrs: map[string]error{"ds-2": statusErr},
	}
	prober := NewProber(provider)

	snapshot, err := prober.Discover(context.Background(), "p1", sourcesOf("ds-0", "ds-1", "ds-2"))
	require.NoError(t, err, "a replica status failure never fails the pass")

	assert.Equal(t, []string{"ds-1", "ds-2"}, snapshot.ReplicaNames)
	assert.Equal(t, []string{"ds-1"}, snapshot.EligibleReplicas())
	assert.Equal(t, types.ReplicaStatus{Eligible: false, Delay: types.DelayUnknown}, snapshot.Replicas["ds-2"])
	assert.ErrorIs(t, snapshot.SourceErrors["ds-2"], statusErr)
}

func TestProberPassCeilingRetainsCompletedResults(t *testing.T) {
	provider := &fakeProvider{
		primaries: map[string]bool{"ds-0": true},
		statuses: map[string]types.ReplicaStatus{
			"ds-1": {Eligible: true, Delay: time.Millisecond},
		},
		blocks: map[string]time.Duration{"ds-2": time.Second},
	}
	prober := NewProber(provider, WithProberTimeout(50*time.Millisecond))

	snapshot, err := prober.Discover(context.Background(), "p1", sourcesOf("ds-0", "ds-1", "ds-2"))
	require.NoError(t, err, "completed probes are kept when a straggler hits the ceiling")

	assert.Equal(t, "ds-0", snapshot.Primary)
	assert.Equal(t, []string{"ds-1"}, snapshot.EligibleReplicas())
	assert.ErrorIs(t, snapshot.SourceErrors["ds-2"], types.ErrProbeTimeout)

	var probeErr *types.ProbeError
	require.ErrorAs(t, snapshot.SourceErrors["ds-2"], &probeErr)
	assert.Equal(t, "ds-2", probeErr.Source)
}

func TestProberPassCeilingWithBlockedPrimary(t *testing.T) {
	provider := &fakeProvider{
		primaries: map[string]bool{"ds-0": true},
		blocks:    map[string]time.Duration{"ds-0": time.Second},
	}
	prober := NewProber(provider, WithProberTimeout(50*time.Millisecond))

	_, err := prober.Discover(context.Background(), "p1", sourcesOf("ds-0", "ds-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNoPrimary)
	assert.ErrorIs(t, err, types.ErrProbeTimeout)
}

func TestProberBoundedConcurrency(t *testing.T) {
	provider := &fakeProvider{
		primaries: map[string]bool{"ds-0": true},
		statuses: map[string]types.ReplicaStatus{
			"ds-1": {Eligible: true},
			"ds-2": {Eligible: true},
			"ds-3": {Eligible: true},
		},
	}
	prober := NewProber(provider, WithProberConcurrency(2))

	snapshot, err := prober.Discover(context.Background(), "p1", sourcesOf("ds-0", "ds-1", "ds-2", "ds-3"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ds-1", "ds-2", "ds-3"}, snapshot.EligibleReplicas())
}

func TestProberContextCancellation(t *testing.T) {
	provider := &fakeProvider{
		primaries: map[string]bool{"ds-0": true},
		blocks: map[string]time.Duration{
			"ds-0": time.Second,
			"ds-1": time.Second,
		},
	}
	prober := NewProber(provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := prober.Discover(ctx, "p1", sourcesOf("ds-0", "ds-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNoPrimary)
}
