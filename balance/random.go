package balance

import (
	"math/rand/v2"

	"github.com/arloliu/rudder"
	"github.com/arloliu/rudder/types"
)

// Random picks a uniformly random name from the eligible set.
//
// It keeps no shared mutable state; math/rand/v2's global generator is safe
// for concurrent use.
type Random struct{}

var _ rudder.BalancePolicy = (*Random)(nil)

func init() {
	Register("random", func(_ map[string]int) rudder.BalancePolicy { return NewRandom() })
}

// NewRandom creates a new random policy.
//
// Returns:
//   - *Random: A new random policy
func NewRandom() *Random {
	return &Random{}
}

// Name returns the policy name.
func (r *Random) Name() string {
	return "random"
}

// Pick returns a uniformly random name from the readable candidates.
//
// Parameters:
//   - poolName: The logical pool being routed (unused)
//   - writeName: The current primary name (unused)
//   - readableNames: Eligible replica names, never empty
//   - rctx: The routing context (unused)
//
// Returns:
//   - string: The chosen data source name
func (r *Random) Pick(_, _ string, readableNames []string, _ types.RoutingContext) string {
	return readableNames[rand.IntN(len(readableNames))]
}
