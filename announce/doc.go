// Package announce exposes pool topology changes to operational tooling.
//
// The rudder core only exposes state; it never emits to external systems
// itself. Announcers bridge that gap: they consume a tracker's read-only
// failover-event stream and publish the latest pool topology where
// dashboards and alerting can see it.
//
// Implementations:
//
//   - NATS: publishes JSON announcements into a NATS JetStream KV bucket,
//     one key per pool
//   - Local: keeps the latest announcement per pool in memory, for tests
//     and demos
package announce
