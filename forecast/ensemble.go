package forecast

import (
	"fmt"
	"strings"
	"time"
)

// EnsembleWeights assigns a fixed weight to each member strategy. Weights are
// renormalized at runtime over the members that actually produced an
// estimate, so a failing member redistributes its share proportionally.
type EnsembleWeights struct {
	Sequence      float64
	Trend         float64
	Decomposition float64
}

// DefaultEnsembleWeights leans on the sequence model and trend smoothing
// equally, with decomposition as a stabilizer.
func DefaultEnsembleWeights() EnsembleWeights {
	return EnsembleWeights{Sequence: 0.4, Trend: 0.4, Decomposition: 0.2}
}

type ensembleMember struct {
	strategy Strategy
	weight   float64
}

// EnsembleStrategy runs its member strategies independently and combines the
// estimates by weighted mean. It fails only when every member fails.
type EnsembleStrategy struct {
	members []ensembleMember
}

// NewEnsembleStrategy creates the weighted ensemble over the sequence, trend
// and decomposition strategies. Members with a non-positive weight are left
// out entirely.
func NewEnsembleStrategy(sequence, trend, decomposition Strategy, weights EnsembleWeights) *EnsembleStrategy {
	e := &EnsembleStrategy{}
	for _, m := range []ensembleMember{
		{strategy: sequence, weight: weights.Sequence},
		{strategy: trend, weight: weights.Trend},
		{strategy: decomposition, weight: weights.Decomposition},
	} {
		if m.strategy != nil && m.weight > 0 {
			e.members = append(e.members, m)
		}
	}
	return e
}

// Name identifies this strategy on emitted results.
func (e *EnsembleStrategy) Name() string {
	return NameEnsemble
}

// Estimate combines the successful members' estimates with renormalized
// weights. Point and both bounds are combined the same way, so the band
// ordering of the members carries over to the combination.
func (e *EnsembleStrategy) Estimate(series []Observation, target time.Time) (Estimate, error) {
	if len(e.members) == 0 {
		return Estimate{}, fmt.Errorf("%s: no members configured", NameEnsemble)
	}

	type outcome struct {
		est    Estimate
		weight float64
	}

	var successes []outcome
	var reasons []string
	totalWeight := 0.0

	for _, m := range e.members {
		est, err := safeEstimate(m.strategy, series, target)
		if err != nil {
			reasons = append(reasons, err.Error())
			continue
		}
		successes = append(successes, outcome{est: est, weight: m.weight})
		totalWeight += m.weight
	}

	if len(successes) == 0 {
		return Estimate{}, fmt.Errorf("%s: all members failed: %s", NameEnsemble, strings.Join(reasons, "; "))
	}

	var combined Estimate
	for _, o := range successes {
		w := o.weight / totalWeight
		combined.Point += w * o.est.Point
		combined.Lower += w * o.est.Lower
		combined.Upper += w * o.est.Upper
	}

	return clampNonNegative(combined), nil
}

// safeEstimate invokes a strategy and converts a panic into a plain strategy
// failure so one member cannot take down the whole batch worker.
func safeEstimate(s Strategy, series []Observation, target time.Time) (est Estimate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", s.Name(), r)
		}
	}()
	return s.Estimate(series, target)
}
