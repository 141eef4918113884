package forecast

import (
	"context"
	"errors"
	"testing"
	"time"
)

// stubForecasts replays fixed persisted results.
type stubForecasts struct {
	results []Result
	err     error
}

func (s *stubForecasts) FetchResultsInWindow(ctx context.Context, productID int64, locationID *int64, from, to time.Time) ([]Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func TestEvaluateMixedWindow(t *testing.T) {
	forecasts := &stubForecasts{results: []Result{
		{ProductID: 1, ForecastDate: daysAgo(2), PredictedDemand: 10},
		{ProductID: 1, ForecastDate: daysAgo(3), PredictedDemand: 9},
		{ProductID: 1, ForecastDate: daysAgo(4), PredictedDemand: 8},
		{ProductID: 1, ForecastDate: daysAgo(5), PredictedDemand: 5},
		{ProductID: 1, ForecastDate: daysAgo(6), PredictedDemand: 7},
	}}
	// No sales row for the fifth forecast day: that forecast scores against
	// an actual of zero.
	sales := &scriptedSales{rows: []Observation{
		{Date: daysAgo(2), Quantity: 10},
		{Date: daysAgo(3), Quantity: 10},
		{Date: daysAgo(4), Quantity: 10},
		{Date: daysAgo(5), Quantity: 10},
	}}

	record, err := NewAccuracyEvaluator(forecasts, sales, 30).Evaluate(context.Background(), 1)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}

	if record.SampleCount != 5 {
		t.Errorf("SampleCount = %d, want 5", record.SampleCount)
	}
	// Per-day errors 0, 0.1, 0.2, 0.5 and 1.0 average to 0.36.
	if !floatsClose(record.MeanError, 0.36) {
		t.Errorf("MeanError = %v, want 0.36", record.MeanError)
	}
	if !floatsClose(record.Accuracy, 0.64) {
		t.Errorf("Accuracy = %v, want 0.64", record.Accuracy)
	}
	if record.WindowDays != 30 {
		t.Errorf("WindowDays = %d, want 30", record.WindowDays)
	}
}

func TestEvaluateNoForecasts(t *testing.T) {
	record, err := NewAccuracyEvaluator(&stubForecasts{}, &scriptedSales{}, 30).Evaluate(context.Background(), 1)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if record.SampleCount != 0 || record.Accuracy != 0 {
		t.Errorf("Evaluate() = %+v, want zero accuracy with no samples", record)
	}
}

func TestEvaluateSumsAcrossLocations(t *testing.T) {
	loc10, loc20 := int64(10), int64(20)
	day := daysAgo(3)

	forecasts := &stubForecasts{results: []Result{
		{ProductID: 1, LocationID: &loc10, ForecastDate: day, PredictedDemand: 5},
		{ProductID: 1, LocationID: &loc20, ForecastDate: day, PredictedDemand: 5},
	}}
	sales := &scriptedSales{rows: []Observation{
		{Date: day, Quantity: 4},
		{Date: day, Quantity: 6},
	}}

	record, err := NewAccuracyEvaluator(forecasts, sales, 30).Evaluate(context.Background(), 1)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if record.SampleCount != 1 {
		t.Fatalf("SampleCount = %d, want 1 joined calendar day", record.SampleCount)
	}
	if !floatsClose(record.Accuracy, 1.0) {
		t.Errorf("Accuracy = %v, want 1.0 when per-day totals match", record.Accuracy)
	}
}

func TestEvaluateSkipsDaysWithoutSignal(t *testing.T) {
	forecasts := &stubForecasts{results: []Result{
		{ProductID: 1, ForecastDate: daysAgo(2), PredictedDemand: 0},
	}}

	record, err := NewAccuracyEvaluator(forecasts, &scriptedSales{}, 30).Evaluate(context.Background(), 1)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if record.SampleCount != 0 {
		t.Errorf("SampleCount = %d, want 0 when both sides are zero", record.SampleCount)
	}
	if record.Accuracy != 0 {
		t.Errorf("Accuracy = %v, want 0 without samples", record.Accuracy)
	}
}

func TestEvaluatePropagatesSourceErrors(t *testing.T) {
	tests := []struct {
		name      string
		forecasts *stubForecasts
		sales     *scriptedSales
	}{
		{
			name:      "forecast source down",
			forecasts: &stubForecasts{err: errors.New("relation does not exist")},
			sales:     &scriptedSales{},
		},
		{
			name: "sales source down",
			forecasts: &stubForecasts{results: []Result{
				{ProductID: 1, ForecastDate: daysAgo(2), PredictedDemand: 3},
			}},
			sales: &scriptedSales{err: errors.New("connection refused")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAccuracyEvaluator(tt.forecasts, tt.sales, 30).Evaluate(context.Background(), 1)
			if err == nil {
				t.Error("Evaluate() error = nil, want source failure")
			}
		})
	}
}

func TestNewAccuracyEvaluatorDefaultWindow(t *testing.T) {
	record, err := NewAccuracyEvaluator(&stubForecasts{}, &scriptedSales{}, 0).Evaluate(context.Background(), 1)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if record.WindowDays != 30 {
		t.Errorf("WindowDays = %d, want the 30-day default", record.WindowDays)
	}
}
