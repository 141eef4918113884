package forecast

import (
	"fmt"
	"math"
	"time"
)

// Result is one produced demand forecast. Created once per (product,
// location, horizon) by the orchestrator and immutable afterward.
//
// Invariant: 0 <= ConfidenceLower <= PredictedDemand <= ConfidenceUpper,
// all non-negative integers. The orchestrator discards any candidate that
// violates it and falls back instead.
type Result struct {
	ProductID       int64     `json:"product_id"`
	LocationID      *int64    `json:"location_id,omitempty"`
	ForecastDate    time.Time `json:"forecast_date"`
	Period          string    `json:"period"`
	HorizonDays     int       `json:"horizon_days"`
	PredictedDemand int       `json:"predicted_demand"`
	ConfidenceLower int       `json:"confidence_lower"`
	ConfidenceUpper int       `json:"confidence_upper"`
	Accuracy        *float64  `json:"accuracy,omitempty"`
	StrategyUsed    string    `json:"strategy_used"`
}

// Validate checks the result invariant.
func (r *Result) Validate() error {
	if r.ConfidenceLower < 0 {
		return fmt.Errorf("confidence_lower %d is negative", r.ConfidenceLower)
	}
	if r.PredictedDemand < r.ConfidenceLower {
		return fmt.Errorf("predicted_demand %d below confidence_lower %d", r.PredictedDemand, r.ConfidenceLower)
	}
	if r.ConfidenceUpper < r.PredictedDemand {
		return fmt.Errorf("confidence_upper %d below predicted_demand %d", r.ConfidenceUpper, r.PredictedDemand)
	}
	return nil
}

// roundEstimate converts a raw estimate into the integer demand triple.
// Rounding is half-away-from-zero and monotone, so a band that was ordered
// before rounding stays ordered after it.
func roundEstimate(e Estimate) (predicted, lower, upper int) {
	e = clampNonNegative(e)
	return int(math.Round(e.Point)), int(math.Round(e.Lower)), int(math.Round(e.Upper))
}

// FailureEntry reports one (product, location) pair that produced no result.
// The rest of the batch proceeds; the batch-level summary enumerates these
// instead of aborting.
type FailureEntry struct {
	ProductID  int64  `json:"product_id"`
	LocationID *int64 `json:"location_id,omitempty"`
	Reason     string `json:"reason"`
}

// AccuracyRecord is the backtested accuracy of recent forecasts for one
// product. Derived on demand, never stored as a first-class entity.
type AccuracyRecord struct {
	ProductID   int64     `json:"product_id"`
	WindowDays  int       `json:"window_days"`
	SampleCount int       `json:"sample_count"`
	MeanError   float64   `json:"mean_error"`
	Accuracy    float64   `json:"accuracy"` // 0.0 - 1.0
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// BatchResponse is the outcome of one forecast request: results in the
// request's (product, location) pair order, failures enumerated per pair,
// and optionally an AccuracyRecord per requested product.
type BatchResponse struct {
	Results  []Result                 `json:"results"`
	Failures []FailureEntry           `json:"failures,omitempty"`
	Accuracy map[int64]AccuracyRecord `json:"accuracy,omitempty"`
}
