package forecast

import (
	"strings"
	"testing"
)

// richSeries builds n daily observations ending yesterday, all carrying the
// same quantity, price and discount.
func richSeries(n int, qty, price, discount float64) []Observation {
	series := make([]Observation, n)
	for i := range series {
		series[i] = Observation{
			Date:      daysAgo(n - i),
			Quantity:  qty,
			UnitPrice: price,
			Discount:  discount,
		}
	}
	return series
}

func TestNewSequenceStrategyWindow(t *testing.T) {
	tests := []struct {
		name   string
		window int
		want   int
	}{
		{name: "enhanced window", window: 30, want: SequenceWindowEnhanced},
		{name: "oversized clamps to enhanced", window: 45, want: SequenceWindowEnhanced},
		{name: "below enhanced drops to basic", window: 10, want: SequenceWindowBasic},
		{name: "zero drops to basic", window: 0, want: SequenceWindowBasic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewSequenceStrategy(tt.window).Window(); got != tt.want {
				t.Errorf("Window() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSequenceConstantSeries(t *testing.T) {
	sequence := NewSequenceStrategy(SequenceWindowEnhanced)
	series := richSeries(30, 10, 100, 0)

	est, err := sequence.Estimate(series, daysAgo(-1))
	if err != nil {
		t.Fatalf("Estimate() error = %v, want nil", err)
	}
	// Constant demand: the recency kernel sums to 1 and the window carries no
	// deviation, so the band collapses onto the point.
	if !floatsClose(est.Point, 10) || !floatsClose(est.Lower, 10) || !floatsClose(est.Upper, 10) {
		t.Errorf("Estimate() = %+v, want (10, 10, 10)", est)
	}
}

func TestSequenceNoDemandSignalFails(t *testing.T) {
	sequence := NewSequenceStrategy(SequenceWindowEnhanced)
	series := richSeries(30, 0, 100, 0)

	_, err := sequence.Estimate(series, daysAgo(-1))
	if err == nil {
		t.Fatal("Estimate() on an all-zero window returned nil error, want failure")
	}
	if !strings.Contains(err.Error(), NameSequence) {
		t.Errorf("Estimate() error = %q, want the strategy name in the message", err)
	}
}

func TestSequenceShortSeriesIsPadded(t *testing.T) {
	sequence := NewSequenceStrategy(SequenceWindowEnhanced)
	series := richSeries(10, 10, 100, 0)

	est, err := sequence.Estimate(series, daysAgo(-1))
	if err != nil {
		t.Fatalf("Estimate() error = %v, want nil", err)
	}
	// Zero left-padding dilutes the recency-weighted level below the raw mean
	// but must never produce a failure or a disordered band.
	if est.Point <= 0 || est.Point >= 10 {
		t.Errorf("Estimate() point = %v, want between 0 and 10 for a padded window", est.Point)
	}
	if est.Lower > est.Point || est.Point > est.Upper {
		t.Errorf("Estimate() band disordered: %+v", est)
	}
}

func TestSequenceDiscountLiftsForecast(t *testing.T) {
	sequence := NewSequenceStrategy(SequenceWindowEnhanced)
	series := richSeries(30, 10, 100, 0)
	for i := len(series) - SequenceWindowBasic; i < len(series); i++ {
		series[i].Discount = 0.2
	}

	est, err := sequence.Estimate(series, daysAgo(-1))
	if err != nil {
		t.Fatalf("Estimate() error = %v, want nil", err)
	}
	// A steady 20% discount over the trailing week lifts demand by half the
	// discount depth.
	if !floatsClose(est.Point, 11) {
		t.Errorf("Estimate() point = %v, want 11", est.Point)
	}
}

func TestSequencePriceHikeSuppressesForecast(t *testing.T) {
	sequence := NewSequenceStrategy(SequenceWindowEnhanced)
	series := richSeries(30, 10, 100, 0)
	series[len(series)-1].UnitPrice = 150

	est, err := sequence.Estimate(series, daysAgo(-1))
	if err != nil {
		t.Fatalf("Estimate() error = %v, want nil", err)
	}
	if est.Point >= 10 {
		t.Errorf("Estimate() point = %v, want below 10 after a price hike", est.Point)
	}
	if est.Point <= 0 {
		t.Errorf("Estimate() point = %v, want positive", est.Point)
	}
}

func TestSequenceBandStaysOrdered(t *testing.T) {
	sequence := NewSequenceStrategy(SequenceWindowEnhanced)
	series := richSeries(30, 0, 100, 0)
	bursts := []float64{5, 9, 3, 12, 8, 2, 15, 7, 4, 11}
	for i, q := range bursts {
		series[len(series)-len(bursts)+i].Quantity = q
	}

	est, err := sequence.Estimate(series, daysAgo(-1))
	if err != nil {
		t.Fatalf("Estimate() error = %v, want nil", err)
	}
	if est.Lower < 0 || est.Lower > est.Point || est.Point > est.Upper {
		t.Errorf("Estimate() band violates 0 <= lower <= point <= upper: %+v", est)
	}
	if floatsClose(est.Lower, est.Upper) {
		t.Errorf("Estimate() band collapsed on volatile input: %+v", est)
	}
}

func TestBuildFeatureWindow(t *testing.T) {
	series := richSeries(3, 10, 100, 0.1)

	features := buildFeatureWindow(series, SequenceWindowBasic)
	if len(features) != SequenceWindowBasic {
		t.Fatalf("buildFeatureWindow() length = %d, want %d", len(features), SequenceWindowBasic)
	}

	for i := 0; i < 4; i++ {
		if features[i] != (featureVector{}) {
			t.Errorf("features[%d] = %v, want zero padding", i, features[i])
		}
	}
	for i := 4; i < 7; i++ {
		if features[i][0] != 10 {
			t.Errorf("features[%d] quantity = %v, want 10", i, features[i][0])
		}
	}

	// A series longer than the window keeps only the most recent entries.
	long := richSeries(9, 1, 100, 0)
	long[len(long)-1].Quantity = 99
	features = buildFeatureWindow(long, SequenceWindowBasic)
	if features[len(features)-1][0] != 99 {
		t.Errorf("newest feature quantity = %v, want 99", features[len(features)-1][0])
	}
	if features[0][0] != 1 {
		t.Errorf("oldest kept feature quantity = %v, want 1", features[0][0])
	}
}
