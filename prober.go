package rudder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/rudder/internal/logging"
	"github.com/arloliu/rudder/types"
)

// Prober executes one-shot topology discovery passes for a pool.
//
// A pass fans out engine-specific probes across every data source
// concurrently, joins them under a deadline, enforces the single-primary
// invariant, and assembles an atomic TopologySnapshot. The Prober itself
// is idempotent and holds no state between passes; retries of failed passes
// belong to the external scheduler.
//
// Prober is safe for concurrent use, although passes for the same pool are
// normally serialized by the caller.
type Prober struct {
	provider    DiscoveryProvider
	timeout     time.Duration
	concurrency int
	logger      types.Logger
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithProberTimeout sets the ceiling for one discovery pass.
//
// Per-source probes still pending when the ceiling expires are marked as
// probe failures; completed results up to that point are retained.
//
// Parameters:
//   - d: Maximum duration of one pass
//
// Returns:
//   - ProberOption: Configuration option
func WithProberTimeout(d time.Duration) ProberOption {
	return func(p *Prober) {
		p.timeout = d
	}
}

// WithProberConcurrency caps the number of concurrent per-source probes.
//
// Parameters:
//   - n: Maximum concurrent probes, 0 for one per source
//
// Returns:
//   - ProberOption: Configuration option
func WithProberConcurrency(n int) ProberOption {
	return func(p *Prober) {
		p.concurrency = n
	}
}

// WithProberLogger sets the logger for the prober.
//
// Parameters:
//   - l: The logger
//
// Returns:
//   - ProberOption: Configuration option
func WithProberLogger(l types.Logger) ProberOption {
	return func(p *Prober) {
		p.logger = l
	}
}

// NewProber creates a new Prober for the given discovery provider.
//
// Defaults: 10s pass ceiling, one goroutine per data source, no-op logger.
//
// Parameters:
//   - provider: The engine-dialect discovery provider
//   - opts: Optional configuration options
//
// Returns:
//   - *Prober: A new prober
func NewProber(provider DiscoveryProvider, opts ...ProberOption) *Prober {
	p := &Prober{
		provider: provider,
		timeout:  10 * time.Second,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = logging.NewNopLogger()
	}

	return p
}

// probeOutcome is the fan-in message for one per-source probe task.
type probeOutcome struct {
	source    string
	isPrimary bool
	status    types.ReplicaStatus
	err       error
}

// Discover runs one discovery pass over the given data sources.
//
// The pass probes every source concurrently; a failure in one probe never
// cancels the others. Transport failures are excluded from the primary
// count entirely and recorded per source. Exactly one confirmed primary
// must remain, otherwise the pass fails and no snapshot is produced.
//
// Parameters:
//   - ctx: Context for cancellation; the pass ceiling is applied on top
//   - pool: The pool name, used in errors and the snapshot
//   - sources: The pool's data sources in configured order
//
// Returns:
//   - *types.TopologySnapshot: The atomic result of a successful pass
//   - error: A *types.DiscoveryError wrapping types.ErrNoPrimary,
//     types.ErrDuplicatePrimary, or the aggregated probe failures
func (p *Prober) Discover(ctx context.Context, pool string, sources []types.DataSource) (*types.TopologySnapshot, error) {
	passID := uuid.NewString()
	passCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.logger.Debug("discovery pass started",
		"pool", pool,
		"pass_id", passID,
		"sources", len(sources),
	)

	primaries, sourceErrs := p.probePrimaries(passCtx, sources)

	if len(primaries) == 0 {
		return nil, &types.DiscoveryError{
			Pool:         pool,
			Cause:        types.ErrNoPrimary,
			SourceErrors: sourceErrs,
		}
	}
	if len(primaries) > 1 {
		return nil, &types.DiscoveryError{
			Pool:         pool,
			Cause:        fmt.Errorf("%w: pool %s reports %s", types.ErrDuplicatePrimary, pool, strings.Join(primaries, ", ")),
			SourceErrors: sourceErrs,
		}
	}

	primary := primaries[0]
	replicas, replicaNames := p.probeReplicas(passCtx, sources, primary, sourceErrs)

	snapshot := &types.TopologySnapshot{
		Pool:         pool,
		PassID:       passID,
		Primary:      primary,
		Replicas:     replicas,
		ReplicaNames: replicaNames,
		SourceErrors: sourceErrs,
		ObservedAt:   time.Now(),
	}

	p.logger.Info("discovery pass completed",
		"pool", pool,
		"pass_id", passID,
		"primary", primary,
		"eligible_replicas", len(snapshot.EligibleReplicas()),
		"failed_sources", len(sourceErrs),
	)

	return snapshot, nil
}

// probePrimaries fans out IsPrimary across all sources and joins under the
// pass deadline. It returns the confirmed primary names in configured order
// and the per-source failures.
func (p *Prober) probePrimaries(ctx context.Context, sources []types.DataSource) ([]string, map[string]error) {
	results := make(chan probeOutcome, len(sources))
	sem := p.semaphore(len(sources))

	for _, ds := range sources {
		go func(ds types.DataSource) {
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					results <- probeOutcome{source: ds.Name(), err: p.timeoutError(ds.Name(), "is-primary")}
					return
				}
			}

			isPrimary, err := p.provider.IsPrimary(ctx, ds)
			results <- probeOutcome{source: ds.Name(), isPrimary: isPrimary, err: err}
		}(ds)
	}

	byName := p.join(ctx, results, sources, "is-primary")

	sourceErrs := make(map[string]error)
	var primaries []string
	for _, ds := range sources {
		outcome := byName[ds.Name()]
		if outcome.err != nil {
			// A transport failure is neither a primary nor a replica
			// answer; the source stays out of the primary count.
			sourceErrs[ds.Name()] = outcome.err
			p.logger.Warn("primary probe failed",
				"source", ds.Name(),
				"error", outcome.err,
			)
			continue
		}
		if outcome.isPrimary {
			primaries = append(primaries, ds.Name())
		}
	}

	return primaries, sourceErrs
}

// probeReplicas fans out LoadReplicaStatus across the confirmed non-primary
// sources. A failure here marks only that replica ineligible; it never fails
// the pass.
func (p *Prober) probeReplicas(ctx context.Context, sources []types.DataSource, primary string, sourceErrs map[string]error) (map[string]types.ReplicaStatus, []string) {
	var candidates []types.DataSource
	for _, ds := range sources {
		if ds.Name() == primary {
			continue
		}
		if _, failed := sourceErrs[ds.Name()]; failed {
			continue
		}
		candidates = append(candidates, ds)
	}

	replicas := make(map[string]types.ReplicaStatus, len(candidates))
	replicaNames := make([]string, 0, len(candidates))
	if len(candidates) == 0 {
		return replicas, replicaNames
	}

	results := make(chan probeOutcome, len(candidates))
	sem := p.semaphore(len(candidates))

	for _, ds := range candidates {
		go func(ds types.DataSource) {
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					results <- probeOutcome{source: ds.Name(), err: p.timeoutError(ds.Name(), "replica-status")}
					return
				}
			}

			status, err := p.provider.LoadReplicaStatus(ctx, ds)
			results <- probeOutcome{source: ds.Name(), status: status, err: err}
		}(ds)
	}

	byName := p.join(ctx, results, candidates, "replica-status")

	for _, ds := range candidates {
		outcome := byName[ds.Name()]
		replicaNames = append(replicaNames, ds.Name())
		if outcome.err != nil {
			replicas[ds.Name()] = types.ReplicaStatus{Eligible: false, Delay: types.DelayUnknown}
			sourceErrs[ds.Name()] = outcome.err
			p.logger.Warn("replica probe failed",
				"source", ds.Name(),
				"error", outcome.err,
			)
			continue
		}
		replicas[ds.Name()] = outcome.status
	}

	return replicas, replicaNames
}

// join collects one outcome per source or times out wholesale.
//
// Completed outcomes are retained; sources still pending when the pass
// ceiling expires are marked as probe timeouts. In-flight goroutines finish
// against the buffered channel, so nothing leaks.
func (p *Prober) join(ctx context.Context, results <-chan probeOutcome, sources []types.DataSource, operation string) map[string]probeOutcome {
	byName := make(map[string]probeOutcome, len(sources))

	for range sources {
		select {
		case outcome := <-results:
			byName[outcome.source] = outcome
		case <-ctx.Done():
			for _, ds := range sources {
				if _, ok := byName[ds.Name()]; !ok {
					byName[ds.Name()] = probeOutcome{
						source: ds.Name(),
						err:    p.timeoutError(ds.Name(), operation),
					}
				}
			}
			return byName
		}
	}

	return byName
}

// semaphore returns a bounded-worker semaphore channel, or nil when the
// probe concurrency is unbounded or already covers every source.
func (p *Prober) semaphore(tasks int) chan struct{} {
	if p.concurrency <= 0 || p.concurrency >= tasks {
		return nil
	}
	return make(chan struct{}, p.concurrency)
}

// timeoutError builds the per-source failure for an abandoned probe.
func (p *Prober) timeoutError(source, operation string) error {
	return &types.ProbeError{
		Source:    source,
		Operation: operation,
		Cause:     types.ErrProbeTimeout,
	}
}
