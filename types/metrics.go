package types

// Logger defines the structured logging interface used throughout Rudder.
//
// The interface is compatible with zap.SugaredLogger; any logger accepting
// a message followed by alternating key/value pairs can satisfy it.
type Logger interface {
	// Debug logs a debug-level message with key/value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs an info-level message with key/value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning-level message with key/value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error-level message with key/value pairs.
	Error(msg string, keysAndValues ...any)
}

// MetricsCollector defines methods for collecting operational metrics.
//
// All pool-scoped methods accept the pool name for labeling.
// Implementations should be thread-safe as methods may be called concurrently.
type MetricsCollector interface {
	// ----------------------
	// Discovery
	// ----------------------

	// IncDiscoveryTotal increments the total discovery pass counter.
	IncDiscoveryTotal(pool string)

	// IncDiscoveryError increments the failed discovery pass counter.
	IncDiscoveryError(pool string)

	// ObserveDiscoveryDuration records a discovery pass duration in seconds.
	ObserveDiscoveryDuration(pool string, seconds float64)

	// ----------------------
	// Failover
	// ----------------------

	// IncFailoverTotal increments the failover event counter.
	// Called when the primary identity changes between consecutive passes.
	IncFailoverTotal(pool string)

	// SetPoolState sets the pool state gauge.
	// State values follow PoolState: 0=uninitialized, 1=healthy,
	// 2=degraded, 3=failed.
	SetPoolState(pool string, state int)

	// SetEligibleReplicas sets the eligible replica count gauge.
	SetEligibleReplicas(pool string, count int)

	// ----------------------
	// Routing
	// ----------------------

	// IncRouteTotal increments the routing decision counter.
	IncRouteTotal(pool string, kind OperationKind)

	// IncRouteError increments the failed routing decision counter.
	IncRouteError(pool string, kind OperationKind)

	// IncPrimaryFallback increments the counter of reads served by the
	// primary because no replica was eligible.
	IncPrimaryFallback(pool string)
}
