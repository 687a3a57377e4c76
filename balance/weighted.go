package balance

import (
	"math/rand/v2"

	"github.com/arloliu/rudder"
	"github.com/arloliu/rudder/types"
)

// Weighted picks names with probability proportional to externally
// configured weights.
//
// Names without a configured weight default to weight 1; weights of zero or
// less are treated as 1 so every eligible replica stays reachable. When the
// random draw lands on a boundary, the first-listed candidate wins.
type Weighted struct {
	weights map[string]int
}

var _ rudder.BalancePolicy = (*Weighted)(nil)

func init() {
	Register("weight", func(weights map[string]int) rudder.BalancePolicy { return NewWeighted(weights) })
}

// NewWeighted creates a weighted policy with the given per-source weights.
//
// Parameters:
//   - weights: Data source name to relative weight
//
// Returns:
//   - *Weighted: A new weighted policy
func NewWeighted(weights map[string]int) *Weighted {
	copied := make(map[string]int, len(weights))
	for name, weight := range weights {
		copied[name] = weight
	}

	return &Weighted{weights: copied}
}

// Name returns the policy name.
func (w *Weighted) Name() string {
	return "weight"
}

// Pick returns a weight-proportional random name from the readable
// candidates, in first-listed order on ties.
//
// Parameters:
//   - poolName: The logical pool being routed (unused)
//   - writeName: The current primary name (unused)
//   - readableNames: Eligible replica names in configured order, never empty
//   - rctx: The routing context (unused)
//
// Returns:
//   - string: The chosen data source name
func (w *Weighted) Pick(_, _ string, readableNames []string, _ types.RoutingContext) string {
	total := 0
	cumulative := make([]int, len(readableNames))
	for i, name := range readableNames {
		total += w.weightOf(name)
		cumulative[i] = total
	}

	draw := rand.IntN(total)
	for i, bound := range cumulative {
		if draw < bound {
			return readableNames[i]
		}
	}

	return readableNames[0]
}

// weightOf returns the effective weight of a name.
func (w *Weighted) weightOf(name string) int {
	weight, ok := w.weights[name]
	if !ok || weight <= 0 {
		return 1
	}
	return weight
}
