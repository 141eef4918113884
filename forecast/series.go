package forecast

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Observation is one calendar day's aggregated sales for a product, optionally
// scoped to a single location. Multiple same-day transactions are summed into
// one Observation before any strategy sees them; an Observation is never
// mutated afterward.
type Observation struct {
	Date      time.Time `json:"date"`
	Quantity  float64   `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	Discount  float64   `json:"discount"` // fraction of list price, 0.0-1.0
}

// SalesSource provides daily sales rows for a product. Rows may carry more
// than one entry per calendar date (one per location when locationID is nil);
// the SeriesBuilder merges them. An empty result is valid and must not be an
// error.
type SalesSource interface {
	FetchDailySales(ctx context.Context, productID int64, locationID *int64, from, to time.Time) ([]Observation, error)
}

// SeriesBuilder fetches and buckets raw daily sales into the ordered series
// the strategies consume. Days without sales are absent from the series; the
// builder never zero-fills gaps.
type SeriesBuilder struct {
	source       SalesSource
	lookbackDays int
	fetchTimeout time.Duration
}

// NewSeriesBuilder creates a series builder over the given sales source.
func NewSeriesBuilder(source SalesSource, lookbackDays int, fetchTimeout time.Duration) *SeriesBuilder {
	if lookbackDays <= 0 {
		lookbackDays = 90
	}
	return &SeriesBuilder{
		source:       source,
		lookbackDays: lookbackDays,
		fetchTimeout: fetchTimeout,
	}
}

// Build returns the ordered historical series for a (product, location) pair.
// A fetch that exceeds the configured timeout yields an empty series, which
// the orchestrator reads as insufficient history. Any other source failure is
// returned as an error so the caller can record a per-pair infrastructure
// failure.
func (b *SeriesBuilder) Build(ctx context.Context, productID int64, locationID *int64) ([]Observation, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -b.lookbackDays)

	fetchCtx := ctx
	if b.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, b.fetchTimeout)
		defer cancel()
	}

	rows, err := b.source.FetchDailySales(fetchCtx, productID, locationID, from, to)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// Slow storage is not a batch failure; an empty series routes the
			// pair to the baseline strategy.
			return nil, nil
		}
		return nil, fmt.Errorf("Build: %w", err)
	}

	return bucketDaily(rows), nil
}

// bucketDaily merges rows that share a calendar date into a single
// Observation: quantities are summed, price and discount are averaged
// weighted by quantity. The result is sorted by date ascending.
func bucketDaily(rows []Observation) []Observation {
	if len(rows) == 0 {
		return nil
	}

	buckets := make(map[time.Time]*Observation)
	for _, row := range rows {
		day := dayOf(row.Date)
		obs, ok := buckets[day]
		if !ok {
			buckets[day] = &Observation{
				Date:      day,
				Quantity:  row.Quantity,
				UnitPrice: row.UnitPrice * row.Quantity,
				Discount:  row.Discount * row.Quantity,
			}
			continue
		}
		obs.Quantity += row.Quantity
		obs.UnitPrice += row.UnitPrice * row.Quantity
		obs.Discount += row.Discount * row.Quantity
	}

	series := make([]Observation, 0, len(buckets))
	for _, obs := range buckets {
		if obs.Quantity > 0 {
			obs.UnitPrice /= obs.Quantity
			obs.Discount /= obs.Quantity
		}
		series = append(series, *obs)
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})
	return series
}

// dayOf normalizes a timestamp to its calendar date. Every date comparison in
// this package goes through the same normalization so forecasts and realized
// sales align on exact calendar days regardless of source time zone.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
