// Package balance provides read load-balance policies for Rudder routing.
//
// A policy picks one data source among the eligible replicas of a pool.
// Policies are stateless across calls except for deliberately-owned internal
// cursors (round robin), which are safe under concurrent invocation.
//
// Built-in policies:
//
//   - round_robin: cycles deterministically through the ordered eligible
//     set; the cursor is shared across concurrent callers and advanced
//     atomically
//   - random: uniform choice with no shared mutable state
//   - weight: selection proportional to externally configured weights,
//     ties broken by first-listed order
package balance
