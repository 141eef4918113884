package forecast

import "time"

// BaselineStrategy is the strategy of last resort: the arithmetic mean of the
// available quantities (1 if history is empty) scaled by the seasonal factor,
// with a +/-30% confidence band. It never fails, so every fallback chain
// terminates here.
type BaselineStrategy struct {
	seasons *SeasonalProfile
}

// NewBaselineStrategy creates the moving-average baseline strategy.
func NewBaselineStrategy(seasons *SeasonalProfile) *BaselineStrategy {
	return &BaselineStrategy{seasons: seasons}
}

// Name identifies this strategy on emitted results.
func (s *BaselineStrategy) Name() string {
	return NameBaseline
}

// Estimate computes the seasonal-adjusted mean with a 30% band.
func (s *BaselineStrategy) Estimate(series []Observation, target time.Time) (Estimate, error) {
	mean := 1.0
	if len(series) > 0 {
		sum := 0.0
		for _, obs := range series {
			sum += obs.Quantity
		}
		mean = sum / float64(len(series))
	}

	point := mean * s.seasons.Factor(target)

	return clampNonNegative(Estimate{
		Point: point,
		Lower: point * 0.70,
		Upper: point * 1.30,
	}), nil
}
