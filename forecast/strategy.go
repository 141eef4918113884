// Package forecast implements the demand forecasting engine behind the
// inventory dashboard.
//
// This package includes:
//   - Historical series construction from aggregated daily sales
//   - Seasonal and holiday calendar adjustment tables
//   - Interchangeable forecasting strategies behind a single interface
//   - A weighted ensemble combiner over the individual strategies
//   - A batch orchestrator with data-sufficiency routing and safe fallback
//   - Retrospective accuracy evaluation against realized sales
//
// Key Concepts:
//   - A strategy either succeeds with an Estimate or fails with an error;
//     the orchestrator routes failures down a fallback chain and never lets
//     a single bad product abort a batch
//   - Fewer than the configured minimum of observations always routes to the
//     baseline strategy, which cannot fail
//   - Every emitted result satisfies 0 <= lower <= predicted <= upper
package forecast

import "time"

// Strategy name constants, recorded on results as strategyUsed.
const (
	NameBaseline      = "statistical-baseline"
	NameTrend         = "trend-smoothing"
	NameSequence      = "sequence-model"
	NameEnsemble      = "weighted-ensemble"
	NameDecomposition = "seasonal-decomposition"
)

// Estimate is a point demand prediction with its uncertainty band.
// All three values are raw (unrounded) and non-negative.
type Estimate struct {
	Point float64
	Lower float64
	Upper float64
}

// Strategy produces a demand estimate for a target date from a daily series.
// A returned error marks the strategy as failed for this series; the
// orchestrator treats it as a signal to fall back, never as a batch failure.
type Strategy interface {
	Name() string
	Estimate(series []Observation, target time.Time) (Estimate, error)
}

// clampNonNegative floors the full estimate band at zero while preserving
// lower <= point <= upper.
func clampNonNegative(e Estimate) Estimate {
	if e.Lower < 0 {
		e.Lower = 0
	}
	if e.Point < e.Lower {
		e.Point = e.Lower
	}
	if e.Upper < e.Point {
		e.Upper = e.Point
	}
	return e
}
