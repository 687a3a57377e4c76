package probe

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/rudder"
	"github.com/arloliu/rudder/types"
)

// ThresholdProp is the option key holding the replication lag threshold in
// milliseconds. Zero disables the threshold: every replica is eligible.
const ThresholdProp = "delay-milliseconds-threshold"

const (
	mysqlShowSlaveStatus  = "SHOW SLAVE STATUS"
	mysqlShowSlaveHosts   = "SHOW SLAVE HOSTS"
	mysqlShowReadOnly     = "SHOW VARIABLES LIKE 'read_only'"
	mysqlSecondsBehindCol = "Seconds_Behind_Master"
)

// MySQL is the discovery provider for MySQL normal (async) replication.
//
// A node is primary iff SHOW SLAVE HOSTS reports downstream replicas AND
// the read_only variable is OFF. Replica lag comes from SHOW SLAVE STATUS
// Seconds_Behind_Master, converted to milliseconds; a NULL value means the
// replica's lag is unknown and the replica is not eligible.
type MySQL struct {
	threshold time.Duration
}

var _ rudder.DiscoveryProvider = (*MySQL)(nil)

func init() {
	Register("mysql", func() rudder.DiscoveryProvider { return &MySQL{} })
}

// NewMySQL creates an unconfigured MySQL discovery provider.
//
// Returns:
//   - *MySQL: A provider with the threshold disabled
func NewMySQL() *MySQL {
	return &MySQL{}
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
func (m *MySQL) Configure(props map[string]string) error {
	threshold, err := parseThreshold(props)
	if err != nil {
		return err
	}
	m.threshold = threshold

	return nil
}

// IsPrimary reports whether the node is the replication primary.
//
// Parameters:
//   - ctx: Context for cancellation and deadlines
//   - ds: The data source to probe
//
// Returns:
//   - bool: true iff the node has downstream replicas and is not read-only
//   - error: A *types.ProbeError on connectivity or protocol failure
func (m *MySQL) IsPrimary(ctx context.Context, ds types.DataSource) (bool, error) {
	hosts, err := ds.Query(ctx, mysqlShowSlaveHosts)
	if err != nil {
		return false, &types.ProbeError{Source: ds.Name(), Operation: "is-primary", Cause: err}
	}
	if len(hosts) == 0 {
		return false, nil
	}

	rows, err := ds.Query(ctx, mysqlShowReadOnly)
	if err != nil {
		return false, &types.ProbeError{Source: ds.Name(), Operation: "is-primary", Cause: err}
	}
	if len(rows) == 0 {
		return false, nil
	}

	value, ok := columnString(rows[0], "Value")

	return ok && strings.EqualFold(value, "OFF"), nil
}

// LoadReplicaStatus assesses the replica's replication health.
//
// Parameters:
//   - ctx: Context for cancellation and deadlines
//   - ds: The replica data source to probe
//
// Returns:
//   - types.ReplicaStatus: Eligible iff delay < threshold (strict); with
//     the threshold disabled, unconditionally eligible with delay 0
//   - error: A *types.ProbeError on connectivity or protocol failure
func (m *MySQL) LoadReplicaStatus(ctx context.Context, ds types.DataSource) (types.ReplicaStatus, error) {
	if m.threshold == 0 {
		return types.ReplicaStatus{Eligible: true, Delay: 0}, nil
	}

	rows, err := ds.Query(ctx, mysqlShowSlaveStatus)
	if err != nil {
		return types.ReplicaStatus{}, &types.ProbeError{Source: ds.Name(), Operation: "replica-status", Cause: err}
	}

	delay := types.DelayUnknown
	if len(rows) > 0 {
		if seconds, ok := columnInt64(rows[0], mysqlSecondsBehindCol); ok {
			delay = time.Duration(seconds) * time.Second
		}
	}

	return types.ReplicaStatus{Eligible: delay < m.threshold, Delay: delay}, nil
}

// Type returns the provider type name.
func (m *MySQL) Type() string {
	return "mysql"
}

// parseThreshold extracts and validates the lag threshold prop.
func parseThreshold(props map[string]string) (time.Duration, error) {
	raw, ok := props[ThresholdProp]
	if !ok || raw == "" {
		return 0, nil
	}

	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not numeric", types.ErrInvalidConfiguration, ThresholdProp, raw)
	}
	if millis < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative, got %d", types.ErrInvalidConfiguration, ThresholdProp, millis)
	}

	return time.Duration(millis) * time.Millisecond, nil
}
