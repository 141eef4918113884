package forecast

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Sequence window sizes. The enhanced scorer consumes a 30-day window, the
// basic scorer a 7-day one; the deployment picks via config.
const (
	SequenceWindowEnhanced = 30
	SequenceWindowBasic    = 7
)

const featureSize = 5

// featureVector is one day's model input: quantity, unit price, discount,
// weekday normalized to [0,1] and month normalized to [0,1].
type featureVector [featureSize]float64

// SequenceStrategy scores a fixed-length window of daily feature vectors with
// a pre-built scoring function that emits the point estimate and both bounds
// directly. The scorer is shared, read-only after initialization, and built
// lazily exactly once; calls into it are serialized because its scratch
// buffer is not reentrant.
type SequenceStrategy struct {
	window   int
	initOnce sync.Once
	scorer   *sequenceScorer
}

// NewSequenceStrategy creates the sequence-model strategy. Any window below
// the enhanced size selects the basic 7-day scorer.
func NewSequenceStrategy(window int) *SequenceStrategy {
	if window >= SequenceWindowEnhanced {
		window = SequenceWindowEnhanced
	} else {
		window = SequenceWindowBasic
	}
	return &SequenceStrategy{window: window}
}

// Name identifies this strategy on emitted results.
func (s *SequenceStrategy) Name() string {
	return NameSequence
}

// Window returns the fixed input window length.
func (s *SequenceStrategy) Window() int {
	return s.window
}

// Estimate builds the feature window (left-padded with zero vectors when the
// series is shorter) and scores it. Scoring failure is returned as an error;
// the orchestrator falls back to trend smoothing.
func (s *SequenceStrategy) Estimate(series []Observation, target time.Time) (Estimate, error) {
	s.initOnce.Do(func() {
		s.scorer = newSequenceScorer(s.window)
	})

	features := buildFeatureWindow(series, s.window)

	point, lower, upper, err := s.scorer.Score(features, target)
	if err != nil {
		return Estimate{}, fmt.Errorf("%s: %w", NameSequence, err)
	}

	return clampNonNegative(Estimate{Point: point, Lower: lower, Upper: upper}), nil
}

// buildFeatureWindow converts the most recent observations into exactly
// window feature vectors, oldest first, zero-padded on the left.
func buildFeatureWindow(series []Observation, window int) []featureVector {
	features := make([]featureVector, window)

	start := 0
	if len(series) > window {
		start = len(series) - window
	}
	recent := series[start:]

	pad := window - len(recent)
	for i, obs := range recent {
		features[pad+i] = featureVector{
			obs.Quantity,
			obs.UnitPrice,
			obs.Discount,
			float64(obs.Date.Weekday()) / 6.0,
			float64(obs.Date.Month()) / 12.0,
		}
	}
	return features
}

// sequenceScorer is the shared scoring function. Its coefficient tables are
// fixed after construction; only the scratch buffer mutates, which is why
// Score holds the mutex.
type sequenceScorer struct {
	mu      sync.Mutex
	window  int
	recency []float64 // per-offset kernel weights, oldest first, sum 1
	scratch []float64

	// Calibration constants baked into the shipped scorer.
	spreadZ         float64
	priceElasticity float64
	discountLift    float64
}

// newSequenceScorer builds the scorer for a window size. The recency kernel
// decays exponentially toward older offsets.
func newSequenceScorer(window int) *sequenceScorer {
	recency := make([]float64, window)
	sum := 0.0
	for i := range recency {
		recency[i] = math.Exp(0.12 * float64(i-window+1))
		sum += recency[i]
	}
	for i := range recency {
		recency[i] /= sum
	}

	return &sequenceScorer{
		window:          window,
		recency:         recency,
		scratch:         make([]float64, window),
		spreadZ:         1.28,
		priceElasticity: -0.8,
		discountLift:    0.5,
	}
}

// Score evaluates one feature window and emits the point estimate with its
// calibrated bounds. It fails on a malformed window or one carrying no demand
// signal at all.
func (s *sequenceScorer) Score(features []featureVector, target time.Time) (point, lower, upper float64, err error) {
	if len(features) != s.window {
		return 0, 0, 0, fmt.Errorf("feature window length %d, scorer expects %d", len(features), s.window)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Recency-weighted demand level over the quantity channel.
	base := 0.0
	signal := false
	for i, f := range features {
		q := f[0]
		if q > 0 {
			signal = true
		}
		s.scratch[i] = q
		base += s.recency[i] * q
	}
	if !signal {
		return 0, 0, 0, fmt.Errorf("feature window carries no demand signal")
	}

	point = base
	point *= s.weekdayFactor(features, target)
	point *= s.priceFactor(features)
	point *= s.discountFactor(features)

	// Calibrated band from the recency-weighted deviation of the window.
	variance := 0.0
	for i := range s.scratch {
		d := s.scratch[i] - base
		variance += s.recency[i] * d * d
	}
	spread := s.spreadZ * math.Sqrt(variance)

	lower = point - spread
	if lower < 0 {
		lower = 0
	}
	upper = point + spread

	if math.IsNaN(point) || math.IsInf(point, 0) {
		return 0, 0, 0, fmt.Errorf("scorer produced %v", point)
	}
	return point, lower, upper, nil
}

// weekdayFactor compares demand on the target weekday against the window
// mean, clamped to [0.5, 1.5].
func (s *sequenceScorer) weekdayFactor(features []featureVector, target time.Time) float64 {
	targetDay := float64(target.Weekday()) / 6.0

	var daySum, dayCount, allSum, allCount float64
	for _, f := range features {
		if f[0] <= 0 {
			continue
		}
		allSum += f[0]
		allCount++
		if math.Abs(f[3]-targetDay) < 1e-9 {
			daySum += f[0]
			dayCount++
		}
	}
	if dayCount == 0 || allCount == 0 || allSum == 0 {
		return 1.0
	}

	factor := (daySum / dayCount) / (allSum / allCount)
	return clampFloat(factor, 0.5, 1.5)
}

// priceFactor applies the baked-in price elasticity: a current price below
// the window average lifts expected demand and vice versa.
func (s *sequenceScorer) priceFactor(features []featureVector) float64 {
	var weightedPrice, qtySum, lastPrice float64
	for _, f := range features {
		if f[0] <= 0 || f[1] <= 0 {
			continue
		}
		weightedPrice += f[1] * f[0]
		qtySum += f[0]
		lastPrice = f[1]
	}
	if qtySum == 0 || lastPrice == 0 {
		return 1.0
	}

	avgPrice := weightedPrice / qtySum
	factor := math.Pow(lastPrice/avgPrice, s.priceElasticity)
	return clampFloat(factor, 0.7, 1.4)
}

// discountFactor lifts demand with the average discount of the most recent
// week of the window.
func (s *sequenceScorer) discountFactor(features []featureVector) float64 {
	start := len(features) - SequenceWindowBasic
	if start < 0 {
		start = 0
	}

	var sum, count float64
	for _, f := range features[start:] {
		if f[0] <= 0 {
			continue
		}
		sum += f[2]
		count++
	}
	if count == 0 {
		return 1.0
	}

	factor := 1.0 + s.discountLift*(sum/count)
	return clampFloat(factor, 1.0, 1.5)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
