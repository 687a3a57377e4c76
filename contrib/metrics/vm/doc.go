// Package vm provides a VictoriaMetrics-based implementation of the
// MetricsCollector interface.
//
// This package uses github.com/VictoriaMetrics/metrics for lightweight,
// high-performance Prometheus-compatible metrics collection.
//
// # Basic Usage
//
// Create a collector with default prefix "rudder":
//
//	collector := vm.New()
//	engine, _ := rudder.NewEngine(registry,
//	    rudder.WithMetrics(collector),
//	)
//
// # Custom Prefix
//
// Use WithPrefix to customize the metric name prefix:
//
//	collector := vm.New(vm.WithPrefix("myproxy"))
//
// This produces metrics like:
//   - myproxy_discovery_total{pool="p1"}
//   - myproxy_pool_state{pool="p1"}
//
// # Exposing Metrics
//
// Use the Handler method to expose metrics via HTTP:
//
//	http.HandleFunc("/metrics", collector.Handler)
//	http.ListenAndServe(":8080", nil)
//
// # Metrics Provided
//
// Discovery:
//   - {prefix}_discovery_total{pool} - Counter of discovery passes
//   - {prefix}_discovery_errors_total{pool} - Counter of failed passes
//   - {prefix}_discovery_duration_seconds{pool} - Histogram of pass latencies
//
// Failover:
//   - {prefix}_failover_total{pool} - Counter of primary identity changes
//   - {prefix}_pool_state{pool} - Gauge of pool state
//     (0=uninitialized, 1=healthy, 2=degraded, 3=failed)
//   - {prefix}_eligible_replicas{pool} - Gauge of eligible replica count
//
// Routing:
//   - {prefix}_route_total{pool,kind} - Counter of routing decisions
//   - {prefix}_route_errors_total{pool,kind} - Counter of failed decisions
//   - {prefix}_primary_fallback_total{pool} - Counter of reads served by
//     the primary because no replica was eligible
//
// Pools are labeled dynamically via GetOrCreate, since pool names are only
// known at configuration time.
package vm
