// Package types provides shared types and errors for the Rudder library.
//
// This is a "leaf" package with no imports from other rudder packages,
// allowing it to be imported by any package without causing import cycles.
package types

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"
)

// Row is one row of a diagnostic result set, keyed by column name.
//
// Probe providers read engine-specific columns (e.g. "Seconds_Behind_Master")
// from it; the core never interprets the contents.
type Row map[string]any

// DataSource is a named handle to one physical database node.
//
// The core borrows a DataSource only for the duration of a probe; it never
// retains one across discovery passes. Implementations MUST be safe for
// concurrent use, as probes against different sources run concurrently.
type DataSource interface {
	// Name returns the unique data source name within its pool.
	Name() string

	// Query executes one engine-specific diagnostic statement and returns
	// the full result set. Diagnostic result sets are expected to be tiny
	// (a handful of rows at most).
	//
	// Parameters:
	//   - ctx: Context for cancellation and deadlines
	//   - stmt: The diagnostic statement, treated as an opaque string
	//
	// Returns:
	//   - []Row: All rows of the result set, keyed by column name
	//   - error: Connectivity or protocol failure
	Query(ctx context.Context, stmt string) ([]Row, error)
}

// OperationKind classifies a logical operation for routing purposes.
type OperationKind int

const (
	// OperationWrite routes to the current primary, always.
	OperationWrite OperationKind = iota
	// OperationRead routes to an eligible replica per the balance policy.
	OperationRead
)

// String returns the string representation of the operation kind.
func (k OperationKind) String() string {
	if k == OperationWrite {
		return "write"
	}
	return "read"
}

// PoolState describes the health of one pool as derived from its latest
// topology snapshot.
type PoolState int

const (
	// StateUninitialized means no discovery pass has completed yet.
	StateUninitialized PoolState = iota
	// StateHealthy means a single primary is known and at least zero
	// eligible replicas exist.
	StateHealthy
	// StateDegraded means the primary is known but no replica is eligible;
	// reads fall back to the primary.
	StateDegraded
	// StateFailed means no primary is known. Non-terminal: a subsequent
	// successful discovery pass returns the pool to StateHealthy.
	StateFailed
)

// String returns the string representation of the pool state.
func (s PoolState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// DelayUnknown marks a replication delay the node did not report.
//
// An unknown delay is treated as effectively infinite: the replica is never
// eligible while its lag cannot be measured.
const DelayUnknown = time.Duration(math.MaxInt64)

// ReplicaStatus is the health assessment of one replica from one probe.
type ReplicaStatus struct {
	// Eligible is true when the replica may serve reads.
	Eligible bool

	// Delay is the observed replication delay, or DelayUnknown.
	Delay time.Duration
}

// ProbeResult is the per-source outcome of one discovery pass.
//
// Results are created fresh on every pass, never mutated, and discarded
// once folded into a TopologySnapshot.
type ProbeResult struct {
	// SourceName identifies the probed data source.
	SourceName string

	// IsPrimary reports whether the source answered as primary.
	// Meaningless when Err is non-nil.
	IsPrimary bool

	// Replica is the replica health assessment for non-primary sources.
	Replica ReplicaStatus

	// Err is the probe failure, if any. A transport failure is NOT a
	// "not primary" answer; errored sources are excluded from the
	// primary count entirely.
	Err error
}

// TopologySnapshot is the atomic product of one successful discovery pass.
//
// A snapshot always contains exactly one primary; passes that would yield
// zero or more than one fail with a DiscoveryError and produce no snapshot.
// Snapshots replace each other wholesale, never merge.
type TopologySnapshot struct {
	// Pool is the pool this snapshot describes.
	Pool string

	// PassID uniquely identifies the discovery pass that produced this
	// snapshot, for event correlation and logging.
	PassID string

	// Primary is the name of the single writable data source.
	Primary string

	// Replicas maps replica name to its health assessment.
	Replicas map[string]ReplicaStatus

	// ReplicaNames holds replica names in configured order. Balance
	// policies rely on this order for deterministic cycling and
	// first-listed tie breaking.
	ReplicaNames []string

	// SourceErrors records per-source probe failures. An errored source
	// is neither a primary nor a healthy replica until re-probed.
	SourceErrors map[string]error

	// ObservedAt is when the pass completed.
	ObservedAt time.Time
}

// EligibleReplicas returns the names of replicas marked eligible, in
// configured order.
func (s *TopologySnapshot) EligibleReplicas() []string {
	result := make([]string, 0, len(s.ReplicaNames))
	for _, name := range s.ReplicaNames {
		if status, ok := s.Replicas[name]; ok && status.Eligible {
			result = append(result, name)
		}
	}
	return result
}

// Contains reports whether the named source appears in the snapshot as
// the primary or as a replica.
func (s *TopologySnapshot) Contains(name string) bool {
	if name == s.Primary {
		return true
	}
	_, ok := s.Replicas[name]
	return ok
}

// State derives the pool state encoded by this snapshot.
func (s *TopologySnapshot) State() PoolState {
	if s.Primary == "" {
		return StateFailed
	}
	if len(s.EligibleReplicas()) == 0 {
		return StateDegraded
	}
	return StateHealthy
}

// RoutingContext carries the per-operation inputs to a routing decision.
//
// It is created by the caller per logical operation and never retained by
// the core beyond the call.
type RoutingContext struct {
	// Kind classifies the operation as a write or a read.
	Kind OperationKind

	// AffinityKey optionally identifies a session or in-flight transaction
	// whose reads must stick to one data source for read-after-write
	// consistency. Empty means no affinity.
	AffinityKey string

	// Candidates optionally restricts a read to a subset of the pool.
	// Nil means every eligible replica is a candidate.
	Candidates []string

	// DisableFallback suppresses the read-from-primary fallback when no
	// replica is eligible, turning that condition into an error.
	DisableFallback bool
}

// FailoverEvent describes a change in a pool's primary identity or state.
type FailoverEvent struct {
	// Pool is the affected pool.
	Pool string

	// PassID is the discovery pass that triggered the event, if any.
	PassID string

	// OldPrimary is the previously known primary, empty if none.
	OldPrimary string

	// NewPrimary is the newly known primary, empty if none.
	NewPrimary string

	// OldState is the pool state before the event.
	OldState PoolState

	// NewState is the pool state after the event.
	NewState PoolState

	// ObservedAt is when the triggering discovery pass completed.
	ObservedAt time.Time
}

// Sentinel errors for common failure scenarios.
var (
	// ErrNoPrimary indicates a discovery pass found zero primaries.
	// The pass is rejected; no snapshot is published.
	ErrNoPrimary = errors.New("rudder: no primary data source detected")

	// ErrDuplicatePrimary indicates a discovery pass found two or more
	// primaries. This is a fatal consistency violation for the pass and
	// is never silently resolved by picking one.
	ErrDuplicatePrimary = errors.New("rudder: duplicate primary data source detected")

	// ErrPrimaryUnavailable indicates a write was routed while no primary
	// is known. Writes fail fast and loudly, never degrade to a replica.
	ErrPrimaryUnavailable = errors.New("rudder: primary data source unavailable")

	// ErrNoAvailableDataSource indicates a read found no eligible replica
	// and the primary fallback was disabled.
	ErrNoAvailableDataSource = errors.New("rudder: no available data source for read")

	// ErrInvalidConfiguration indicates malformed provider or policy
	// configuration. Surfaced at setup, never retried.
	ErrInvalidConfiguration = errors.New("rudder: invalid configuration")

	// ErrProbeTimeout indicates a per-source probe did not complete within
	// the discovery pass ceiling.
	ErrProbeTimeout = errors.New("rudder: probe timed out")

	// ErrUnknownPool indicates an operation referenced a pool that was
	// never added to the engine.
	ErrUnknownPool = errors.New("rudder: unknown pool")

	// ErrNilRegistry indicates an engine was constructed without a
	// data source registry.
	ErrNilRegistry = errors.New("rudder: source registry cannot be nil")

	// ErrEngineClosed indicates an operation was attempted on a closed
	// engine.
	ErrEngineClosed = errors.New("rudder: engine is closed")
)

// ProbeError wraps a failure from probing a specific data source.
type ProbeError struct {
	// Source identifies which data source the error came from.
	Source string

	// Operation describes what probe operation failed.
	Operation string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	return "rudder: probe " + e.Operation + " on " + e.Source + " failed: " + e.Cause.Error()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// DiscoveryError represents a failed discovery pass for one pool.
//
// It wraps either a consistency violation (ErrNoPrimary, ErrDuplicatePrimary)
// or the aggregated per-source probe failures.
type DiscoveryError struct {
	// Pool is the pool whose discovery pass failed.
	Pool string

	// Cause is the violated invariant or aggregate failure.
	Cause error

	// SourceErrors holds the per-source probe failures observed during
	// the pass, keyed by source name.
	SourceErrors map[string]error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	msg := "rudder: discovery failed for pool " + e.Pool + ": " + e.Cause.Error()
	if len(e.SourceErrors) == 0 {
		return msg
	}
	names := make([]string, 0, len(e.SourceErrors))
	for name := range e.SourceErrors {
		names = append(names, name)
	}
	sort.Strings(names)
	return msg + " (failed sources: " + strings.Join(names, ", ") + ")"
}

// Unwrap returns the wrapped errors for errors.Is/As compatibility.
// This allows checking both the invariant violation and any per-source cause.
func (e *DiscoveryError) Unwrap() []error {
	result := make([]error, 0, len(e.SourceErrors)+1)
	result = append(result, e.Cause)
	for _, err := range e.SourceErrors {
		result = append(result, err)
	}
	return result
}
