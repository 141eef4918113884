package forecast

import (
	"context"
	"errors"
	"testing"
	"time"
)

// daysAgo returns the calendar date n days before today. Negative n looks
// ahead.
func daysAgo(n int) time.Time {
	return dayOf(time.Now().AddDate(0, 0, -n))
}

// scriptedSales replays a fixed response for every fetch.
type scriptedSales struct {
	rows  []Observation
	err   error
	calls int
}

func (s *scriptedSales) FetchDailySales(ctx context.Context, productID int64, locationID *int64, from, to time.Time) ([]Observation, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

func TestBucketDailyMergesSameDay(t *testing.T) {
	day := daysAgo(3)
	rows := []Observation{
		{Date: day, Quantity: 3, UnitPrice: 10, Discount: 0.1},
		{Date: day.Add(9 * time.Hour), Quantity: 7, UnitPrice: 20, Discount: 0.3},
	}

	series := bucketDaily(rows)
	if len(series) != 1 {
		t.Fatalf("bucketDaily() produced %d observations, want 1", len(series))
	}

	got := series[0]
	if got.Quantity != 10 {
		t.Errorf("Quantity = %v, want 10", got.Quantity)
	}
	if !floatsClose(got.UnitPrice, 17) {
		t.Errorf("UnitPrice = %v, want quantity-weighted 17", got.UnitPrice)
	}
	if !floatsClose(got.Discount, 0.24) {
		t.Errorf("Discount = %v, want quantity-weighted 0.24", got.Discount)
	}
	if !got.Date.Equal(day) {
		t.Errorf("Date = %v, want normalized %v", got.Date, day)
	}
}

func TestBucketDailySortsAscending(t *testing.T) {
	rows := []Observation{
		{Date: daysAgo(1), Quantity: 1},
		{Date: daysAgo(5), Quantity: 5},
		{Date: daysAgo(3), Quantity: 3},
	}

	series := bucketDaily(rows)
	if len(series) != 3 {
		t.Fatalf("bucketDaily() produced %d observations, want 3", len(series))
	}
	for i := 1; i < len(series); i++ {
		if !series[i-1].Date.Before(series[i].Date) {
			t.Errorf("series not ascending at %d: %v then %v", i, series[i-1].Date, series[i].Date)
		}
	}
}

func TestBucketDailyKeepsGaps(t *testing.T) {
	rows := []Observation{
		{Date: daysAgo(10), Quantity: 4},
		{Date: daysAgo(5), Quantity: 6},
	}

	// Days without sales stay absent; nothing zero-fills the gap between them.
	series := bucketDaily(rows)
	if len(series) != 2 {
		t.Errorf("bucketDaily() produced %d observations, want 2", len(series))
	}
}

func TestBucketDailyZeroQuantityDay(t *testing.T) {
	series := bucketDaily([]Observation{{Date: daysAgo(2), Quantity: 0, UnitPrice: 10}})
	if len(series) != 1 {
		t.Fatalf("bucketDaily() produced %d observations, want 1", len(series))
	}
	if series[0].Quantity != 0 {
		t.Errorf("Quantity = %v, want 0", series[0].Quantity)
	}
}

func TestBuildTimeoutYieldsEmptySeries(t *testing.T) {
	source := &scriptedSales{err: context.DeadlineExceeded}
	builder := NewSeriesBuilder(source, 90, time.Second)

	series, err := builder.Build(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("Build() error = %v, want nil on timeout", err)
	}
	if len(series) != 0 {
		t.Errorf("Build() returned %d observations, want empty series on timeout", len(series))
	}
}

func TestBuildWrapsSourceErrors(t *testing.T) {
	source := &scriptedSales{err: errors.New("connection refused")}
	builder := NewSeriesBuilder(source, 90, time.Second)

	if _, err := builder.Build(context.Background(), 1, nil); err == nil {
		t.Error("Build() error = nil, want wrapped source failure")
	}
}

func TestBuildBucketsFetchedRows(t *testing.T) {
	day := daysAgo(4)
	source := &scriptedSales{rows: []Observation{
		{Date: day, Quantity: 2, UnitPrice: 50},
		{Date: day, Quantity: 8, UnitPrice: 50},
		{Date: daysAgo(2), Quantity: 5, UnitPrice: 50},
	}}
	builder := NewSeriesBuilder(source, 90, time.Second)

	series, err := builder.Build(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("Build() error = %v, want nil", err)
	}
	if len(series) != 2 {
		t.Fatalf("Build() produced %d observations, want 2", len(series))
	}
	if series[0].Quantity != 10 {
		t.Errorf("merged quantity = %v, want 10", series[0].Quantity)
	}
	if source.calls != 1 {
		t.Errorf("source fetched %d times, want 1", source.calls)
	}
}

func TestDayOfNormalizes(t *testing.T) {
	wib := time.FixedZone("WIB", 7*3600)

	tests := []struct {
		name string
		a    time.Time
		b    time.Time
	}{
		{
			name: "same day different hours",
			a:    time.Date(2025, time.March, 10, 1, 0, 0, 0, time.UTC),
			b:    time.Date(2025, time.March, 10, 23, 30, 0, 0, time.UTC),
		},
		{
			name: "same wall-clock day across zones",
			a:    time.Date(2025, time.March, 10, 23, 0, 0, 0, wib),
			b:    time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !dayOf(tt.a).Equal(dayOf(tt.b)) {
				t.Errorf("dayOf(%v) = %v, dayOf(%v) = %v, want equal", tt.a, dayOf(tt.a), tt.b, dayOf(tt.b))
			}
		})
	}
}
