package balance

import (
	"sync/atomic"

	"github.com/arloliu/rudder"
	"github.com/arloliu/rudder/types"
)

// RoundRobin cycles deterministically through the ordered eligible set.
//
// The cursor is shared across all concurrent callers of one instance and
// advanced atomically, so each call observes the next position in the cycle.
type RoundRobin struct {
	counter atomic.Uint64
}

var _ rudder.BalancePolicy = (*RoundRobin)(nil)

func init() {
	Register("round_robin", func(_ map[string]int) rudder.BalancePolicy { return NewRoundRobin() })
}

// NewRoundRobin creates a new round-robin policy with its cursor at the
// start of the cycle.
//
// Returns:
//   - *RoundRobin: A new round-robin policy
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Name returns the policy name.
func (r *RoundRobin) Name() string {
	return "round_robin"
}

// Pick returns the next name in the cycle over the readable candidates.
//
// Parameters:
//   - poolName: The logical pool being routed (unused)
//   - writeName: The current primary name (unused)
//   - readableNames: Eligible replica names in configured order, never empty
//   - rctx: The routing context (unused)
//
// Returns:
//   - string: The chosen data source name
func (r *RoundRobin) Pick(_, _ string, readableNames []string, _ types.RoutingContext) string {
	index := (r.counter.Add(1) - 1) % uint64(len(readableNames))
	return readableNames[index]
}
