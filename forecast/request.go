package forecast

import (
	"fmt"
	"strings"
)

// Reporting periods accepted on a request.
const (
	PeriodDaily     = "daily"
	PeriodWeekly    = "weekly"
	PeriodMonthly   = "monthly"
	PeriodQuarterly = "quarterly"
)

// Requestable strategies. The orchestrator maps each to a fallback chain.
const (
	StrategyBaseline = "baseline"
	StrategyTrend    = "trend"
	StrategySequence = "sequence"
	StrategyEnsemble = "ensemble"
)

// MaxHorizonDays bounds how far ahead a single forecast date may be.
const MaxHorizonDays = 365

// Request describes one forecasting batch: which products (optionally scoped
// to locations), how far ahead, and which strategy to lead with.
type Request struct {
	ProductIDs  []int64 `json:"product_ids"`
	LocationIDs []int64 `json:"location_ids,omitempty"`
	Period      string  `json:"period"`
	HorizonDays int     `json:"horizon_days"`
	Strategy    string  `json:"strategy"`

	// IncludeAccuracy attaches a trailing-window AccuracyRecord per product
	// to the response.
	IncludeAccuracy bool `json:"include_accuracy,omitempty"`
}

// ValidationError rejects a request before any forecasting work begins.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid forecast request: %s: %s", e.Field, e.Reason)
}

// Validate checks the request's own fields. Master-data existence of product
// and location ids is checked separately by the orchestrator, before any
// series is fetched.
func (r *Request) Validate() error {
	if len(r.ProductIDs) == 0 {
		return &ValidationError{Field: "product_ids", Reason: "must not be empty"}
	}
	for _, id := range r.ProductIDs {
		if id <= 0 {
			return &ValidationError{Field: "product_ids", Reason: fmt.Sprintf("invalid id %d", id)}
		}
	}
	for _, id := range r.LocationIDs {
		if id <= 0 {
			return &ValidationError{Field: "location_ids", Reason: fmt.Sprintf("invalid id %d", id)}
		}
	}

	switch r.Period {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodQuarterly:
	default:
		return &ValidationError{Field: "period", Reason: fmt.Sprintf("unknown period %q", r.Period)}
	}

	if r.HorizonDays < 1 || r.HorizonDays > MaxHorizonDays {
		return &ValidationError{Field: "horizon_days", Reason: fmt.Sprintf("must be between 1 and %d, got %d", MaxHorizonDays, r.HorizonDays)}
	}

	switch r.Strategy {
	case StrategyBaseline, StrategyTrend, StrategySequence, StrategyEnsemble:
	default:
		return &ValidationError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", r.Strategy)}
	}

	return nil
}

// formatIDs renders an id list for validation error messages.
func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
