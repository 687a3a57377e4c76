// Package rudder provides a topology discovery and failover-aware routing
// engine for replicated SQL database clusters.
//
// Rudder sits inside a database-proxy middleware layer and keeps the answer
// to "which physical node should serve this statement?" correct as the
// cluster changes underneath it. It concurrently probes every configured
// data source to classify it as primary or replica, enforces the invariant
// that exactly one primary exists, reassesses replica health against a lag
// threshold on every pass, and exposes a swappable selection policy for
// picking a read target.
//
// # Key Features
//
//   - Concurrent Discovery: Per-source probes fan out in parallel under a
//     pass deadline; one failing node never blocks classifying the rest
//   - Single-Primary Invariant: Passes observing zero or duplicate primaries
//     fail atomically; a bad snapshot is never published
//   - Lag-Aware Replicas: Replicas above the configured delay threshold are
//     excluded from the read pool until they catch up
//   - Session Affinity: Reads inside one transaction scope stick to a single
//     node for read-after-write consistency
//   - Pluggable Dialects and Policies: One discovery provider per database
//     engine, one balance policy per deployment, both behind flat registries
//
// # Basic Usage
//
//	registry := rudder.NewStaticRegistry()
//	registry.SetPool("p1", []types.DataSource{a, b, c})
//
//	provider, _ := probe.New("mysql")
//	_ = provider.Configure(map[string]string{
//	    "delay-milliseconds-threshold": "1000",
//	})
//
//	engine, _ := rudder.NewEngine(registry)
//	_ = engine.AddPool("p1", provider,
//	    rudder.WithBalancePolicy(balance.NewRoundRobin()),
//	)
//
//	// One discovery pass; periodic passes belong to a Runner or an
//	// external scheduler.
//	if err := engine.DiscoverOnce(ctx, "p1"); err != nil {
//	    log.Fatal(err)
//	}
//
//	target, err := engine.Route("p1", types.RoutingContext{
//	    Kind: types.OperationRead,
//	})
//
// # Error Handling
//
// Rudder uses standard Go errors with clear semantics per failure class:
//
//   - types.ErrNoPrimary / types.ErrDuplicatePrimary: fatal for one
//     discovery pass, wrapped in *types.DiscoveryError; the pass publishes
//     nothing
//   - *types.ProbeError: transient, per-source, isolated; inspect
//     DiscoveryError.SourceErrors for the individual causes
//   - types.ErrPrimaryUnavailable: a write was routed with no known
//     primary; writes fail fast and never degrade to a replica
//   - types.ErrNoAvailableDataSource: a read found no eligible replica and
//     the primary fallback was disabled
//   - types.ErrInvalidConfiguration: malformed provider or policy options,
//     surfaced at setup and never retried
package rudder
