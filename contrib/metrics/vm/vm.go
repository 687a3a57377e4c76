package vm

import (
	"fmt"
	"io"
	"net/http"

	"github.com/VictoriaMetrics/metrics"

	"github.com/arloliu/rudder/types"
)

// Option configures a Collector.
type Option func(*Collector)

// WithPrefix sets the metric name prefix.
//
// Default: "rudder"
//
// Parameters:
//   - prefix: The prefix to use for all metric names
//
// Returns:
//   - Option: A configuration option
func WithPrefix(prefix string) Option {
	return func(c *Collector) {
		c.prefix = prefix
	}
}

// WithMetricsSet sets the metrics set to use.
//
// If provided, the collector will register metrics with this set instead of
// creating a new one. The caller is responsible for exposing this set
// (e.g., via metrics.WritePrometheus or a custom handler).
//
// Parameters:
//   - set: The metrics set to use
//
// Returns:
//   - Option: A configuration option
func WithMetricsSet(set *metrics.Set) Option {
	return func(c *Collector) {
		c.set = set
	}
}

// Collector implements types.MetricsCollector using VictoriaMetrics.
//
// Metrics are created lazily per pool label via GetOrCreate.
// Thread-safe for concurrent use.
type Collector struct {
	set    *metrics.Set
	prefix string
}

// Compile-time assertion that Collector implements types.MetricsCollector.
var _ types.MetricsCollector = (*Collector)(nil)

// New creates a new VictoriaMetrics-based metrics collector.
//
// The collector creates its own metrics.Set and registers it globally
// unless WithMetricsSet provides one.
//
// Parameters:
//   - opts: Configuration options (e.g., WithPrefix)
//
// Returns:
//   - *Collector: A new metrics collector ready for use
func New(opts ...Option) *Collector {
	c := &Collector{
		prefix: "rudder",
	}

	for _, opt := range opts {
		opt(c)
	}

	// If no set is provided, create a new one and register it globally.
	// If a set is provided, we assume the caller manages it.
	if c.set == nil {
		c.set = metrics.NewSet()
		metrics.RegisterSet(c.set)
	}

	return c
}

// Handler serves the collector's metrics in Prometheus exposition format.
//
// Parameters:
//   - w: The response writer
//   - r: The request (unused)
func (c *Collector) Handler(w http.ResponseWriter, _ *http.Request) {
	c.WritePrometheus(w)
}

// WritePrometheus writes all metrics to the given writer.
//
// Parameters:
//   - w: The destination writer
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}

// IncDiscoveryTotal increments the discovery pass counter.
func (c *Collector) IncDiscoveryTotal(pool string) {
	c.counter("discovery_total", pool).Inc()
}

// IncDiscoveryError increments the failed discovery pass counter.
func (c *Collector) IncDiscoveryError(pool string) {
	c.counter("discovery_errors_total", pool).Inc()
}

// ObserveDiscoveryDuration records a discovery pass duration in seconds.
func (c *Collector) ObserveDiscoveryDuration(pool string, seconds float64) {
	name := fmt.Sprintf(`%s_discovery_duration_seconds{pool=%q}`, c.prefix, pool)
	c.set.GetOrCreateHistogram(name).Update(seconds)
}

// IncFailoverTotal increments the failover event counter.
func (c *Collector) IncFailoverTotal(pool string) {
	c.counter("failover_total", pool).Inc()
}

// SetPoolState sets the pool state gauge.
func (c *Collector) SetPoolState(pool string, state int) {
	name := fmt.Sprintf(`%s_pool_state{pool=%q}`, c.prefix, pool)
	c.set.GetOrCreateGauge(name, nil).Set(float64(state))
}

// SetEligibleReplicas sets the eligible replica count gauge.
func (c *Collector) SetEligibleReplicas(pool string, count int) {
	name := fmt.Sprintf(`%s_eligible_replicas{pool=%q}`, c.prefix, pool)
	c.set.GetOrCreateGauge(name, nil).Set(float64(count))
}

// IncRouteTotal increments the routing decision counter.
func (c *Collector) IncRouteTotal(pool string, kind types.OperationKind) {
	name := fmt.Sprintf(`%s_route_total{pool=%q,kind=%q}`, c.prefix, pool, kind.String())
	c.set.GetOrCreateCounter(name).Inc()
}

// IncRouteError increments the failed routing decision counter.
func (c *Collector) IncRouteError(pool string, kind types.OperationKind) {
	name := fmt.Sprintf(`%s_route_errors_total{pool=%q,kind=%q}`, c.prefix, pool, kind.String())
	c.set.GetOrCreateCounter(name).Inc()
}

// IncPrimaryFallback increments the primary read fallback counter.
func (c *Collector) IncPrimaryFallback(pool string) {
	c.counter("primary_fallback_total", pool).Inc()
}

// counter resolves a pool-labeled counter.
func (c *Collector) counter(name, pool string) *metrics.Counter {
	return c.set.GetOrCreateCounter(fmt.Sprintf(`%s_%s{pool=%q}`, c.prefix, name, pool))
}
