// Package metrics provides internal metrics utilities for Rudder.
package metrics

import "github.com/arloliu/rudder/types"

// NopMetrics is a no-op metrics collector that discards all metrics.
//
// This is used as the default metrics collector when no collector is
// configured, avoiding nil checks throughout the codebase.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements types.MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNopMetrics creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A collector that discards all metrics
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// IncDiscoveryTotal discards the metric.
func (m *NopMetrics) IncDiscoveryTotal(_ string) {}

// IncDiscoveryError discards the metric.
func (m *NopMetrics) IncDiscoveryError(_ string) {}

// ObserveDiscoveryDuration discards the metric.
func (m *NopMetrics) ObserveDiscoveryDuration(_ string, _ float64) {}

// IncFailoverTotal discards the metric.
func (m *NopMetrics) IncFailoverTotal(_ string) {}

// SetPoolState discards the metric.
func (m *NopMetrics) SetPoolState(_ string, _ int) {}

// SetEligibleReplicas discards the metric.
func (m *NopMetrics) SetEligibleReplicas(_ string, _ int) {}

// IncRouteTotal discards the metric.
func (m *NopMetrics) IncRouteTotal(_ string, _ types.OperationKind) {}

// IncRouteError discards the metric.
func (m *NopMetrics) IncRouteError(_ string, _ types.OperationKind) {}

// IncPrimaryFallback discards the metric.
func (m *NopMetrics) IncPrimaryFallback(_ string) {}
