package probe

import (
	"context"
	"time"

	"github.com/arloliu/rudder"
	"github.com/arloliu/rudder/types"
)

const (
	pgCountReplication = "SELECT count(*) AS replication_count FROM pg_stat_replication"
	pgInRecovery       = "SELECT pg_is_in_recovery() AS in_recovery"
	pgReplayDelay      = "SELECT EXTRACT(EPOCH FROM (now() - pg_last_xact_replay_timestamp())) * 1000 AS replication_delay_ms"
)

// Postgres is the discovery provider for PostgreSQL streaming replication.
//
// A node is primary iff pg_stat_replication reports downstream standbys AND
// pg_is_in_recovery() is false. Replica lag is derived from the last WAL
// replay timestamp; a NULL value (no replay activity observed) means the
// lag is unknown and the replica is not eligible.
type Postgres struct {
	threshold time.Duration
}

var _ rudder.DiscoveryProvider = (*Postgres)(nil)

func init() {
	Register("postgres", func() rudder.DiscoveryProvider { return &Postgres{} })
}

// NewPostgres creates an unconfigured PostgreSQL discovery provider.
//
// Returns:
//   - *Postgres: A provider with the threshold disabled
func NewPostgres() *Postgres {
	return &Postgres{}
}

// Configure applies the provider options.
//
// Recognized props:
//   - delay-milliseconds-threshold: non-negative integer, default 0
//
// Parameters:
//   - props: Engine-specific option map
//
// Returns:
//   - error: An error wrapping types.ErrInvalidConfiguration on
//     non-numeric or negative threshold values
func (p *Postgres) Configure(props map[string]string) error {
	threshold, err := parseThreshold(props)
	if err != nil {
		return err
	}
	p.threshold = threshold

	return nil
}

// IsPrimary reports whether the node is the streaming replication primary.
//
// Parameters:
//   - ctx: Context for cancellation and deadlines
//   - ds: The data source to probe
//
// Returns:
//   - bool: true iff the node has downstream standbys and is not in recovery
//   - error: A *types.ProbeError on connectivity or protocol failure
func (p *Postgres) IsPrimary(ctx context.Context, ds types.DataSource) (bool, error) {
	rows, err := ds.Query(ctx, pgCountReplication)
	if err != nil {
		return false, &types.ProbeError{Source: ds.Name(), Operation: "is-primary", Cause: err}
	}
	count := int64(0)
	if len(rows) > 0 {
		count, _ = columnInt64(rows[0], "replication_count")
	}
	if count == 0 {
		return false, nil
	}

	rows, err = ds.Query(ctx, pgInRecovery)
	if err != nil {
		return false, &types.ProbeError{Source: ds.Name(), Operation: "is-primary", Cause: err}
	}
	if len(rows) == 0 {
		return false, nil
	}

	inRecovery, ok := columnBool(rows[0], "in_recovery")

	return ok && !inRecovery, nil
}

// LoadReplicaStatus assesses the standby's replication health.
//
// Parameters:
//   - ctx: Context for cancellation and deadlines
//   - ds: The standby data source to probe
//
// Returns:
//   - types.ReplicaStatus: Eligible iff delay < threshold (strict); with
//     the threshold disabled, unconditionally eligible with delay 0
//   - error: A *types.ProbeError on connectivity or protocol failure
func (p *Postgres) LoadReplicaStatus(ctx context.Context, ds types.DataSource) (types.ReplicaStatus, error) {
	if p.threshold == 0 {
		return types.ReplicaStatus{Eligible: true, Delay: 0}, nil
	}

	rows, err := ds.Query(ctx, pgReplayDelay)
	if err != nil {
		return types.ReplicaStatus{}, &types.ProbeError{Source: ds.Name(), Operation: "replica-status", Cause: err}
	}

	delay := types.DelayUnknown
	if len(rows) > 0 {
		if millis, ok := columnInt64(rows[0], "replication_delay_ms"); ok {
			if millis < 0 {
				millis = 0
			}
			delay = time.Duration(millis) * time.Millisecond
		}
	}

	return types.ReplicaStatus{Eligible: delay < p.threshold, Delay: delay}, nil
}

// Type returns the provider type name.
func (p *Postgres) Type() string {
	return "postgres"
}
