package rudder

import (
	"time"

	"github.com/arloliu/rudder/internal/logging"
	"github.com/arloliu/rudder/internal/metrics"
	"github.com/arloliu/rudder/types"
)

// EngineConfig holds configuration shared by all pools of an Engine.
type EngineConfig struct {
	// Logger receives structured log messages. Defaults to a no-op logger.
	Logger types.Logger

	// Metrics receives operational metrics. Defaults to a no-op collector.
	Metrics types.MetricsCollector

	// ProbeTimeout is the default ceiling for one discovery pass.
	// A per-source probe still pending when the ceiling expires is marked
	// a probe failure; completed results are retained.
	ProbeTimeout time.Duration

	// ProbeConcurrency caps the number of concurrent per-source probes.
	// Zero means one goroutine per data source.
	ProbeConcurrency int

	// PrimaryReadFallback enables routing reads to the primary when no
	// replica is eligible. Individual calls may still disable it via
	// RoutingContext.DisableFallback.
	PrimaryReadFallback bool
}

// DefaultEngineConfig returns an EngineConfig with sensible defaults.
//
// Defaults: 10s probe timeout, unbounded probe concurrency, primary read
// fallback enabled, no-op logger and metrics.
//
// Returns:
//   - *EngineConfig: Configuration with default settings
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Logger:              logging.NewNopLogger(),
		Metrics:             metrics.NewNopMetrics(),
		ProbeTimeout:        10 * time.Second,
		PrimaryReadFallback: true,
	}
}

// Option configures an EngineConfig.
type Option func(*EngineConfig)

// WithLogger sets the structured logger.
//
// If not set, a no-op logger is used that discards all messages.
// The logger interface is compatible with zap.SugaredLogger.
//
// Parameters:
//   - logger: The logger implementation
//
// Returns:
//   - Option: Configuration option
//
// Example:
//
//	logger, _ := zap.NewProduction()
//	engine, _ := rudder.NewEngine(registry,
//	    rudder.WithLogger(logger.Sugar()),
//	)
func WithLogger(logger types.Logger) Option {
	return func(c *EngineConfig) {
		c.Logger = logger
	}
}

// WithMetrics sets the metrics collector.
//
// If not set, a no-op collector is used that discards all metrics.
//
// Parameters:
//   - collector: The metrics collector implementation
//
// Returns:
//   - Option: Configuration option
func WithMetrics(collector types.MetricsCollector) Option {
	return func(c *EngineConfig) {
		c.Metrics = collector
	}
}

// WithProbeTimeout sets the default discovery pass ceiling.
//
// Parameters:
//   - d: Maximum duration of one discovery pass
//
// Returns:
//   - Option: Configuration option
func WithProbeTimeout(d time.Duration) Option {
	return func(c *EngineConfig) {
		c.ProbeTimeout = d
	}
}

// WithProbeConcurrency caps the number of concurrent per-source probes.
//
// Parameters:
//   - n: Maximum concurrent probes, 0 for one per source
//
// Returns:
//   - Option: Configuration option
func WithProbeConcurrency(n int) Option {
	return func(c *EngineConfig) {
		c.ProbeConcurrency = n
	}
}

// WithPrimaryReadFallback enables or disables the read-from-primary
// fallback when no replica is eligible.
//
// Parameters:
//   - enabled: true to fall back to the primary (the default)
//
// Returns:
//   - Option: Configuration option
func WithPrimaryReadFallback(enabled bool) Option {
	return func(c *EngineConfig) {
		c.PrimaryReadFallback = enabled
	}
}

// PoolConfig holds the per-pool configuration of an Engine.
type PoolConfig struct {
	// Provider is the engine-dialect discovery provider. Required.
	Provider DiscoveryProvider

	// Policy selects among eligible replicas for reads. When nil, the
	// selector falls back to the first eligible replica in configured
	// order (use balance.NewRoundRobin() for production).
	Policy BalancePolicy

	// ProbeTimeout overrides the engine-wide discovery pass ceiling.
	// Zero means use the engine default.
	ProbeTimeout time.Duration

	// DiscoveryInterval is the suggested period between discovery passes.
	// The engine itself never schedules passes; a Runner or an external
	// scheduler consumes this value.
	DiscoveryInterval time.Duration
}

// PoolOption configures a PoolConfig.
type PoolOption func(*PoolConfig)

// WithBalancePolicy sets the read balance policy for a pool.
//
// Parameters:
//   - policy: The balance policy (e.g. balance.NewRoundRobin())
//
// Returns:
//   - PoolOption: Configuration option
func WithBalancePolicy(policy BalancePolicy) PoolOption {
	return func(c *PoolConfig) {
		c.Policy = policy
	}
}

// WithPoolProbeTimeout overrides the discovery pass ceiling for one pool.
//
// Parameters:
//   - d: Maximum duration of one discovery pass
//
// Returns:
//   - PoolOption: Configuration option
func WithPoolProbeTimeout(d time.Duration) PoolOption {
	return func(c *PoolConfig) {
		c.ProbeTimeout = d
	}
}

// WithDiscoveryInterval sets the suggested discovery period for one pool.
//
// Parameters:
//   - d: Period between discovery passes
//
// Returns:
//   - PoolOption: Configuration option
func WithDiscoveryInterval(d time.Duration) PoolOption {
	return func(c *PoolConfig) {
		c.DiscoveryInterval = d
	}
}
