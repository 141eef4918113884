package forecast

import (
	"fmt"
	"math"
	"time"
)

const (
	// Smoothing constant for the exponential level.
	trendAlpha = 0.3
	// Linear trend is fitted over this many most-recent points.
	trendFitPoints = 7
)

// TrendStrategy applies exponential smoothing to obtain a demand level, adds
// a least-squares linear trend fitted over the most recent points, then
// scales by the seasonal and holiday factors with a +/-25% band.
type TrendStrategy struct {
	seasons  *SeasonalProfile
	holidays *HolidayCalendar
}

// NewTrendStrategy creates the smoothing + linear trend strategy.
func NewTrendStrategy(seasons *SeasonalProfile, holidays *HolidayCalendar) *TrendStrategy {
	return &TrendStrategy{seasons: seasons, holidays: holidays}
}

// Name identifies this strategy on emitted results.
func (s *TrendStrategy) Name() string {
	return NameTrend
}

// Estimate smooths the series into a level, adds the fitted slope, and
// applies the calendar adjustments. Degenerate input (empty series, NaN or
// Inf quantities) fails the strategy so the orchestrator can fall back.
func (s *TrendStrategy) Estimate(series []Observation, target time.Time) (Estimate, error) {
	if len(series) == 0 {
		return Estimate{}, fmt.Errorf("%s: empty series", NameTrend)
	}

	level := series[0].Quantity
	for _, obs := range series[1:] {
		level = trendAlpha*obs.Quantity + (1-trendAlpha)*level
	}

	slope := recentSlope(series, trendFitPoints)

	point := (level + slope) * s.seasons.Factor(target) * s.holidays.Factor(target)
	if point < 0 {
		point = 0
	}
	if math.IsNaN(point) || math.IsInf(point, 0) {
		return Estimate{}, fmt.Errorf("%s: degenerate series produced %v", NameTrend, point)
	}

	return clampNonNegative(Estimate{
		Point: point,
		Lower: point * 0.75,
		Upper: point * 1.25,
	}), nil
}

// recentSlope fits an ordinary least squares line over the quantities of the
// last n observations and returns its slope in units per day. Fewer than two
// points, or a near-zero denominator, yields a flat slope.
func recentSlope(series []Observation, n int) float64 {
	if len(series) > n {
		series = series[len(series)-n:]
	}
	count := float64(len(series))
	if count < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, obs := range series {
		x := float64(i)
		sumX += x
		sumY += obs.Quantity
		sumXY += x * obs.Quantity
		sumXX += x * x
	}

	denom := count*sumXX - sumX*sumX
	if math.Abs(denom) < 1e-9 {
		return 0
	}
	return (count*sumXY - sumX*sumY) / denom
}
