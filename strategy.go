package rudder

import (
	"context"

	"github.com/arloliu/rudder/types"
)

// Type aliases for convenience - re-export from types package.
type (
	DataSource       = types.DataSource
	RoutingContext   = types.RoutingContext
	TopologySnapshot = types.TopologySnapshot
	FailoverEvent    = types.FailoverEvent
	PoolState        = types.PoolState
	Logger           = types.Logger
	MetricsCollector = types.MetricsCollector
)

// Re-export operation kind constants for convenience.
const (
	OperationWrite = types.OperationWrite
	OperationRead  = types.OperationRead
)

// Re-export pool state constants for convenience.
const (
	StateUninitialized = types.StateUninitialized
	StateHealthy       = types.StateHealthy
	StateDegraded      = types.StateDegraded
	StateFailed        = types.StateFailed
)

// DiscoveryProvider probes data sources using engine-specific diagnostics.
//
// One implementation exists per supported database engine; all satisfy this
// contract and register themselves with the probe package registry.
//
// Implementations MUST be safe for concurrent use from multiple goroutines.
// IsPrimary and LoadReplicaStatus run concurrently against different sources
// during a discovery pass.
type DiscoveryProvider interface {
	// Configure applies engine-specific options (e.g. the lag threshold).
	//
	// Parameters:
	//   - props: Engine-specific option map
	//
	// Returns:
	//   - error: An error wrapping types.ErrInvalidConfiguration on
	//     malformed values (non-numeric or negative threshold)
	Configure(props map[string]string) error

	// IsPrimary reports whether the data source is the cluster primary.
	//
	// A node is primary iff it reports downstream replication topology AND
	// is not itself marked read-only. Connectivity or protocol failures are
	// returned as errors, never as a "not primary" answer.
	//
	// Parameters:
	//   - ctx: Context for cancellation and deadlines
	//   - ds: The data source to probe
	//
	// Returns:
	//   - bool: true if the node is the primary
	//   - error: A *types.ProbeError on probe failure
	IsPrimary(ctx context.Context, ds types.DataSource) (bool, error)

	// LoadReplicaStatus assesses one replica's replication health.
	//
	// When the configured lag threshold is zero the replica is
	// unconditionally eligible with delay 0. An unreported delay is
	// treated as types.DelayUnknown (not eligible). A replica is eligible
	// iff its delay is strictly less than the threshold.
	//
	// Parameters:
	//   - ctx: Context for cancellation and deadlines
	//   - ds: The replica data source to probe
	//
	// Returns:
	//   - types.ReplicaStatus: Eligibility and observed delay
	//   - error: A *types.ProbeError on probe failure
	LoadReplicaStatus(ctx context.Context, ds types.DataSource) (types.ReplicaStatus, error)

	// Type returns the provider type name (e.g. "mysql").
	Type() string
}

// BalancePolicy selects one data source among the eligible read candidates.
//
// Policies are stateless across calls except where they deliberately track
// internal cursors, which they own privately and MUST keep safe under
// concurrent invocation.
type BalancePolicy interface {
	// Name returns the policy name (e.g. "round_robin").
	Name() string

	// Pick chooses one data source name from the readable candidates.
	//
	// Parameters:
	//   - poolName: The logical pool being routed
	//   - writeName: The current primary name
	//   - readableNames: Eligible replica names in configured order, never empty
	//   - rctx: The routing context for the operation
	//
	// Returns:
	//   - string: The chosen data source name
	Pick(poolName, writeName string, readableNames []string, rctx types.RoutingContext) string
}

// SourceRegistry supplies the named data source handles for a pool.
//
// The core queries it only at discovery time; routing never touches it.
type SourceRegistry interface {
	// Sources returns the data sources of the named pool in configured
	// order. The order is preserved into snapshots and drives round-robin
	// cycling and weighted tie breaking.
	//
	// Parameters:
	//   - pool: The pool name
	//
	// Returns:
	//   - []types.DataSource: The pool's data sources in configured order
	//   - error: types.ErrUnknownPool if the pool is not registered
	Sources(pool string) ([]types.DataSource, error)
}
