package forecast

import (
	"context"
	"fmt"
	"math"
	"time"
)

// ForecastSource reads back previously persisted forecasts for evaluation.
// A nil locationID means all locations.
type ForecastSource interface {
	FetchResultsInWindow(ctx context.Context, productID int64, locationID *int64, from, to time.Time) ([]Result, error)
}

// AccuracyEvaluator scores past forecasts for a product against the sales
// that actually happened, over a trailing window ending yesterday.
type AccuracyEvaluator struct {
	forecasts  ForecastSource
	sales      SalesSource
	windowDays int
}

func NewAccuracyEvaluator(forecasts ForecastSource, sales SalesSource, windowDays int) *AccuracyEvaluator {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &AccuracyEvaluator{forecasts: forecasts, sales: sales, windowDays: windowDays}
}

// Evaluate joins forecasts and actuals by exact calendar date, summing both
// sides across locations. A date contributes a sample only when the actual
// or the predicted total is nonzero; a forecast with no matching sales row
// counts against an actual of zero. The per-date error is
// |actual-predicted| / max(actual, predicted, 1) and the score is one minus
// the mean error, floored at zero. No samples means a score of zero.
func (e *AccuracyEvaluator) Evaluate(ctx context.Context, productID int64) (AccuracyRecord, error) {
	now := time.Now()
	to := dayOf(now.AddDate(0, 0, -1))
	from := dayOf(now.AddDate(0, 0, -e.windowDays))

	record := AccuracyRecord{
		ProductID:   productID,
		WindowDays:  e.windowDays,
		EvaluatedAt: now,
	}

	results, err := e.forecasts.FetchResultsInWindow(ctx, productID, nil, from, to)
	if err != nil {
		return record, fmt.Errorf("Evaluate: %w", err)
	}
	if len(results) == 0 {
		return record, nil
	}

	predicted := make(map[time.Time]float64)
	for _, r := range results {
		predicted[dayOf(r.ForecastDate)] += float64(r.PredictedDemand)
	}

	observations, err := e.sales.FetchDailySales(ctx, productID, nil, from, to)
	if err != nil {
		return record, fmt.Errorf("Evaluate: %w", err)
	}
	actual := make(map[time.Time]float64)
	for _, obs := range observations {
		actual[dayOf(obs.Date)] += obs.Quantity
	}

	var totalError float64
	var samples int
	for date, p := range predicted {
		a := actual[date]
		if a == 0 && p == 0 {
			continue
		}
		totalError += math.Abs(a-p) / math.Max(math.Max(a, p), 1)
		samples++
	}

	record.SampleCount = samples
	if samples == 0 {
		return record, nil
	}

	record.MeanError = totalError / float64(samples)
	record.Accuracy = math.Max(0, 1-record.MeanError)
	return record, nil
}
