package forecast

import (
	"errors"
	"math"
	"testing"
	"time"
)

// flatSeasons removes seasonality so strategy math can be checked in
// isolation.
func flatSeasons() *SeasonalProfile {
	return NewSeasonalProfile([12]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1})
}

func noHolidays() *HolidayCalendar {
	return NewHolidayCalendar(nil)
}

// quantitySeries builds a daily series ending yesterday with the given
// quantities, oldest first.
func quantitySeries(quantities ...float64) []Observation {
	series := make([]Observation, len(quantities))
	for i, q := range quantities {
		series[i] = Observation{
			Date:     daysAgo(len(quantities) - i),
			Quantity: q,
		}
	}
	return series
}

func floatsClose(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestBaselineSteadyWeek(t *testing.T) {
	baseline := NewBaselineStrategy(flatSeasons())
	series := quantitySeries(10, 12, 9, 11, 10, 13, 10)

	est, err := baseline.Estimate(series, daysAgo(-1))
	if err != nil {
		t.Fatalf("Estimate() error = %v, want nil", err)
	}

	predicted, lower, upper := roundEstimate(est)
	if predicted != 11 || lower != 8 || upper != 14 {
		t.Errorf("roundEstimate() = (%d, %d, %d), want (11, 8, 14)", predicted, lower, upper)
	}
}

func TestBaselineEmptySeries(t *testing.T) {
	baseline := NewBaselineStrategy(flatSeasons())

	est, err := baseline.Estimate(nil, daysAgo(-1))
	if err != nil {
		t.Fatalf("Estimate() error = %v, want nil", err)
	}

	if !floatsClose(est.Point, 1.0) || !floatsClose(est.Lower, 0.7) || !floatsClose(est.Upper, 1.3) {
		t.Errorf("Estimate() = %+v, want point 1.0 with 30%% band", est)
	}
}

func TestBaselineAppliesSeasonalFactor(t *testing.T) {
	baseline := NewBaselineStrategy(DefaultSeasonalProfile())
	series := quantitySeries(10, 10, 10, 10, 10, 10, 10)

	est, err := baseline.Estimate(series, date(2025, time.December, 24))
	if err != nil {
		t.Fatalf("Estimate() error = %v, want nil", err)
	}
	if !floatsClose(est.Point, 13.5) {
		t.Errorf("Estimate() point = %v, want 13.5 in december", est.Point)
	}
}

func TestTrendEmptySeriesFails(t *testing.T) {
	trend := NewTrendStrategy(flatSeasons(), noHolidays())

	if _, err := trend.Estimate(nil, daysAgo(-1)); err == nil {
		t.Error("Estimate() on empty series returned nil error, want failure")
	}
}

func TestTrendEstimate(t *testing.T) {
	tests := []struct {
		name      string
		series    []Observation
		wantPoint float64
	}{
		{
			name:      "constant series keeps its level",
			series:    quantitySeries(10, 10, 10, 10, 10, 10, 10),
			wantPoint: 10,
		},
		{
			name:      "linear growth adds the fitted slope",
			series:    quantitySeries(10, 12, 14, 16, 18, 20, 22),
			wantPoint: 19.882362,
		},
		{
			name:      "single observation has no slope",
			series:    quantitySeries(42),
			wantPoint: 42,
		},
		{
			name:      "steep decline floors at zero",
			series:    quantitySeries(10, 0),
			wantPoint: 0,
		},
	}

	trend := NewTrendStrategy(flatSeasons(), noHolidays())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := trend.Estimate(tt.series, daysAgo(-1))
			if err != nil {
				t.Fatalf("Estimate() error = %v, want nil", err)
			}
			if !floatsClose(est.Point, tt.wantPoint) {
				t.Errorf("Estimate() point = %v, want %v", est.Point, tt.wantPoint)
			}
			if !floatsClose(est.Lower, est.Point*0.75) || !floatsClose(est.Upper, est.Point*1.25) {
				t.Errorf("Estimate() band = [%v, %v], want 25%% around %v", est.Lower, est.Upper, est.Point)
			}
		})
	}
}

func TestTrendAppliesHolidayImpact(t *testing.T) {
	target := daysAgo(-1)
	holidays := NewHolidayCalendar([]HolidayWindow{
		{Name: "Flash Sale", Start: target, DurationDays: 1, Impact: 1.5},
	})
	trend := NewTrendStrategy(flatSeasons(), holidays)

	est, err := trend.Estimate(quantitySeries(10, 10, 10, 10, 10, 10, 10), target)
	if err != nil {
		t.Fatalf("Estimate() error = %v, want nil", err)
	}
	if !floatsClose(est.Point, 15) {
		t.Errorf("Estimate() point = %v, want 15 under a 1.5x holiday window", est.Point)
	}
}

func TestDecompositionNeedsTwoWeeks(t *testing.T) {
	decomposition := NewDecompositionStrategy(flatSeasons())

	series := quantitySeries(10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10)
	if _, err := decomposition.Estimate(series, daysAgo(-1)); err == nil {
		t.Error("Estimate() with 13 observations returned nil error, want failure")
	}
}

func TestDecompositionConstantSeries(t *testing.T) {
	decomposition := NewDecompositionStrategy(flatSeasons())

	series := quantitySeries(10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10)
	est, err := decomposition.Estimate(series, daysAgo(-1))
	if err != nil {
		t.Fatalf("Estimate() error = %v, want nil", err)
	}
	if !floatsClose(est.Point, 10) {
		t.Errorf("Estimate() point = %v, want 10", est.Point)
	}
	if !floatsClose(est.Lower, 8) || !floatsClose(est.Upper, 12) {
		t.Errorf("Estimate() band = [%v, %v], want [8, 12]", est.Lower, est.Upper)
	}
}

func TestDecompositionAllZeroFails(t *testing.T) {
	decomposition := NewDecompositionStrategy(flatSeasons())

	series := quantitySeries(0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	if _, err := decomposition.Estimate(series, daysAgo(-1)); err == nil {
		t.Error("Estimate() with a dead series returned nil error, want failure")
	}
}

// stubStrategy is a fixed-outcome member for ensemble tests.
type stubStrategy struct {
	name  string
	est   Estimate
	err   error
	panic bool
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Estimate([]Observation, time.Time) (Estimate, error) {
	if s.panic {
		panic("scorer blew up")
	}
	return s.est, s.err
}

func TestEnsembleWeightedCombination(t *testing.T) {
	ensemble := NewEnsembleStrategy(
		&stubStrategy{name: "a", est: Estimate{Point: 10, Lower: 8, Upper: 12}},
		&stubStrategy{name: "b", est: Estimate{Point: 20, Lower: 16, Upper: 24}},
		&stubStrategy{name: "c", est: Estimate{Point: 30, Lower: 24, Upper: 36}},
		DefaultEnsembleWeights(),
	)

	est, err := ensemble.Estimate(quantitySeries(10, 10, 10), daysAgo(-1))
	if err != nil {
		t.Fatalf("Estimate() error = %v, want nil", err)
	}
	if !floatsClose(est.Point, 18) || !floatsClose(est.Lower, 14.4) || !floatsClose(est.Upper, 21.6) {
		t.Errorf("Estimate() = %+v, want 0.4/0.4/0.2 blend (18, 14.4, 21.6)", est)
	}
}

func TestEnsembleRenormalizesOverSurvivors(t *testing.T) {
	ensemble := NewEnsembleStrategy(
		&stubStrategy{name: "a", err: errors.New("no demand signal")},
		&stubStrategy{name: "b", est: Estimate{Point: 20, Lower: 16, Upper: 24}},
		&stubStrategy{name: "c", est: Estimate{Point: 30, Lower: 24, Upper: 36}},
		DefaultEnsembleWeights(),
	)

	est, err := ensemble.Estimate(quantitySeries(10, 10, 10), daysAgo(-1))
	if err != nil {
		t.Fatalf("Estimate() error = %v, want nil", err)
	}
	// Weights 0.4 and 0.2 renormalize to 2/3 and 1/3.
	if !floatsClose(est.Point, 70.0/3) || !floatsClose(est.Lower, 56.0/3) || !floatsClose(est.Upper, 28) {
		t.Errorf("Estimate() = %+v, want renormalized blend (23.33, 18.67, 28)", est)
	}
}

func TestEnsemblePanicCountsAsMemberFailure(t *testing.T) {
	ensemble := NewEnsembleStrategy(
		&stubStrategy{name: "a", panic: true},
		&stubStrategy{name: "b", est: Estimate{Point: 20, Lower: 16, Upper: 24}},
		&stubStrategy{name: "c", err: errors.New("trend level not positive")},
		DefaultEnsembleWeights(),
	)

	est, err := ensemble.Estimate(quantitySeries(10, 10, 10), daysAgo(-1))
	if err != nil {
		t.Fatalf("Estimate() error = %v, want nil", err)
	}
	if !floatsClose(est.Point, 20) || !floatsClose(est.Lower, 16) || !floatsClose(est.Upper, 24) {
		t.Errorf("Estimate() = %+v, want the sole surviving member's estimate", est)
	}
}

func TestEnsembleFailsOnlyWhenAllMembersFail(t *testing.T) {
	ensemble := NewEnsembleStrategy(
		&stubStrategy{name: "a", err: errors.New("no demand signal")},
		&stubStrategy{name: "b", err: errors.New("series empty")},
		&stubStrategy{name: "c", panic: true},
		DefaultEnsembleWeights(),
	)

	if _, err := ensemble.Estimate(quantitySeries(10, 10, 10), daysAgo(-1)); err == nil {
		t.Error("Estimate() with every member failing returned nil error, want failure")
	}
}

func TestStrategyNames(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		want     string
	}{
		{name: "baseline", strategy: NewBaselineStrategy(flatSeasons()), want: NameBaseline},
		{name: "trend", strategy: NewTrendStrategy(flatSeasons(), noHolidays()), want: NameTrend},
		{name: "sequence", strategy: NewSequenceStrategy(SequenceWindowEnhanced), want: NameSequence},
		{name: "decomposition", strategy: NewDecompositionStrategy(flatSeasons()), want: NameDecomposition},
		{name: "ensemble", strategy: NewEnsembleStrategy(nil, nil, nil, DefaultEnsembleWeights()), want: NameEnsemble},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.strategy.Name(); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}
