package forecast

import (
	"fmt"
	"time"
)

const (
	// Minimum history for a meaningful trend/seasonal split.
	decompositionMinObs = 14
	// Centered moving average width for the trend component.
	decompositionTrendWindow = 7
)

// DecompositionStrategy performs a classical decomposition: a centered
// moving-average trend level combined with per-weekday seasonal indices and
// the monthly seasonal factor. It participates in the ensemble with the
// smallest weight and fails on short histories.
type DecompositionStrategy struct {
	seasons *SeasonalProfile
}

// NewDecompositionStrategy creates the decomposition strategy.
func NewDecompositionStrategy(seasons *SeasonalProfile) *DecompositionStrategy {
	return &DecompositionStrategy{seasons: seasons}
}

// Name identifies this strategy on emitted results.
func (s *DecompositionStrategy) Name() string {
	return NameDecomposition
}

// Estimate projects the latest trend level through the target date's weekday
// index and month factor, with a +/-20% band.
func (s *DecompositionStrategy) Estimate(series []Observation, target time.Time) (Estimate, error) {
	if len(series) < decompositionMinObs {
		return Estimate{}, fmt.Errorf("%s: need %d observations, have %d", NameDecomposition, decompositionMinObs, len(series))
	}

	trend := latestTrendLevel(series, decompositionTrendWindow)
	if trend <= 0 {
		return Estimate{}, fmt.Errorf("%s: no positive trend level", NameDecomposition)
	}

	point := trend * weekdayIndex(series, target.Weekday()) * s.seasons.Factor(target)

	return clampNonNegative(Estimate{
		Point: point,
		Lower: point * 0.80,
		Upper: point * 1.20,
	}), nil
}

// latestTrendLevel computes the centered moving average over the quantity
// series and returns the most recent center value.
func latestTrendLevel(series []Observation, window int) float64 {
	half := window / 2
	lastCenter := len(series) - 1 - half
	if lastCenter < half {
		return 0
	}

	sum := 0.0
	for i := lastCenter - half; i <= lastCenter+half; i++ {
		sum += series[i].Quantity
	}
	return sum / float64(2*half+1)
}

// weekdayIndex is the ratio of the weekday's mean quantity to the overall
// mean, clamped to keep one anomalous weekday from dominating.
func weekdayIndex(series []Observation, day time.Weekday) float64 {
	var daySum, dayCount, allSum float64
	for _, obs := range series {
		allSum += obs.Quantity
		if obs.Date.Weekday() == day {
			daySum += obs.Quantity
			dayCount++
		}
	}
	if dayCount == 0 || allSum == 0 {
		return 1.0
	}

	overallMean := allSum / float64(len(series))
	if overallMean == 0 {
		return 1.0
	}
	return clampFloat((daySum/dayCount)/overallMean, 0.25, 4.0)
}
