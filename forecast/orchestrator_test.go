package forecast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubSales serves a fixed history per product and can fail selected
// products. Safe for the orchestrator's concurrent workers.
type stubSales struct {
	mu        sync.Mutex
	byProduct map[int64][]Observation
	failWith  map[int64]error
	calls     int
}

func (s *stubSales) FetchDailySales(ctx context.Context, productID int64, locationID *int64, from, to time.Time) ([]Observation, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if err := s.failWith[productID]; err != nil {
		return nil, err
	}
	return s.byProduct[productID], nil
}

// memorySink records every saved batch and can simulate sink failures.
type memorySink struct {
	saved  [][]Result
	failed []FailedSave
	err    error
}

func (s *memorySink) SaveForecastResults(ctx context.Context, results []Result) ([]FailedSave, error) {
	s.saved = append(s.saved, results)
	if s.err != nil {
		return nil, s.err
	}
	return s.failed, nil
}

// stubCatalog knows a fixed set of product and location ids.
type stubCatalog struct {
	products  map[int64]bool
	locations map[int64]bool
}

func (c *stubCatalog) MissingProductIDs(ctx context.Context, ids []int64) ([]int64, error) {
	var missing []int64
	for _, id := range ids {
		if !c.products[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (c *stubCatalog) MissingLocationIDs(ctx context.Context, ids []int64) ([]int64, error) {
	var missing []int64
	for _, id := range ids {
		if !c.locations[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func newTestOrchestrator(sales SalesSource, sink ResultSink, catalog ProductCatalog) *Orchestrator {
	return NewOrchestrator(sales, sink, catalog, flatSeasons(), noHolidays(), Options{
		Workers:      2,
		FetchTimeout: time.Second,
	})
}

func validRequest(productIDs ...int64) Request {
	return Request{
		ProductIDs:  productIDs,
		Period:      PeriodDaily,
		HorizonDays: 7,
		Strategy:    StrategyBaseline,
	}
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Request)
		wantField string
	}{
		{
			name:      "empty product list",
			mutate:    func(r *Request) { r.ProductIDs = nil },
			wantField: "product_ids",
		},
		{
			name:      "non-positive product id",
			mutate:    func(r *Request) { r.ProductIDs = []int64{1, -4} },
			wantField: "product_ids",
		},
		{
			name:      "non-positive location id",
			mutate:    func(r *Request) { r.LocationIDs = []int64{0} },
			wantField: "location_ids",
		},
		{
			name:      "unknown period",
			mutate:    func(r *Request) { r.Period = "hourly" },
			wantField: "period",
		},
		{
			name:      "zero horizon",
			mutate:    func(r *Request) { r.HorizonDays = 0 },
			wantField: "horizon_days",
		},
		{
			name:      "horizon beyond a year",
			mutate:    func(r *Request) { r.HorizonDays = 400 },
			wantField: "horizon_days",
		},
		{
			name:      "unknown strategy",
			mutate:    func(r *Request) { r.Strategy = "prophet" },
			wantField: "strategy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sales := &stubSales{}
			sink := &memorySink{}
			orch := newTestOrchestrator(sales, sink, nil)

			req := validRequest(1)
			tt.mutate(&req)

			_, err := orch.Run(context.Background(), req)

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Run() error = %v, want *ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("ValidationError.Field = %q, want %q", ve.Field, tt.wantField)
			}
			if sales.calls != 0 {
				t.Errorf("sales fetched %d times before validation, want 0", sales.calls)
			}
			if len(sink.saved) != 0 {
				t.Errorf("sink received %d batches for an invalid request, want 0", len(sink.saved))
			}
		})
	}
}

func TestRunRejectsUnknownIDs(t *testing.T) {
	catalog := &stubCatalog{
		products:  map[int64]bool{1: true},
		locations: map[int64]bool{10: true},
	}

	tests := []struct {
		name      string
		mutate    func(*Request)
		wantField string
	}{
		{
			name:      "unknown product",
			mutate:    func(r *Request) { r.ProductIDs = []int64{1, 7} },
			wantField: "product_ids",
		},
		{
			name:      "unknown location",
			mutate:    func(r *Request) { r.LocationIDs = []int64{10, 99} },
			wantField: "location_ids",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sales := &stubSales{}
			orch := newTestOrchestrator(sales, &memorySink{}, catalog)

			req := validRequest(1)
			tt.mutate(&req)

			_, err := orch.Run(context.Background(), req)

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Run() error = %v, want *ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("ValidationError.Field = %q, want %q", ve.Field, tt.wantField)
			}
			// Master-data rejection happens before any history is read.
			if sales.calls != 0 {
				t.Errorf("sales fetched %d times, want 0", sales.calls)
			}
		})
	}
}

func TestRunShortHistoryForcesBaseline(t *testing.T) {
	sales := &stubSales{byProduct: map[int64][]Observation{
		1: quantitySeries(5, 6, 7),
	}}
	orch := newTestOrchestrator(sales, &memorySink{}, nil)

	req := validRequest(1)
	req.Strategy = StrategySequence

	resp, err := orch.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if len(resp.Results) != 1 || len(resp.Failures) != 0 {
		t.Fatalf("Run() = %d results, %d failures, want 1 and 0", len(resp.Results), len(resp.Failures))
	}

	got := resp.Results[0]
	if got.StrategyUsed != NameBaseline {
		t.Errorf("StrategyUsed = %q, want %q for three days of history", got.StrategyUsed, NameBaseline)
	}
	if got.PredictedDemand != 6 || got.ConfidenceLower != 4 || got.ConfidenceUpper != 8 {
		t.Errorf("forecast = (%d, %d, %d), want (6, 4, 8)", got.PredictedDemand, got.ConfidenceLower, got.ConfidenceUpper)
	}
}

func TestRunZeroDemandFallsBackToTrend(t *testing.T) {
	sales := &stubSales{byProduct: map[int64][]Observation{
		1: richSeries(10, 0, 100, 0),
	}}
	orch := newTestOrchestrator(sales, &memorySink{}, nil)

	req := validRequest(1)
	req.Strategy = StrategySequence

	resp, err := orch.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("Run() = %d results, want 1", len(resp.Results))
	}

	got := resp.Results[0]
	if got.StrategyUsed != NameTrend {
		t.Errorf("StrategyUsed = %q, want %q after the sequence scorer rejects a dead window", got.StrategyUsed, NameTrend)
	}
	if got.PredictedDemand != 0 || got.ConfidenceLower != 0 || got.ConfidenceUpper != 0 {
		t.Errorf("forecast = (%d, %d, %d), want all zero", got.PredictedDemand, got.ConfidenceLower, got.ConfidenceUpper)
	}
}

func TestRunSequenceLeadsWhenHistoryIsRich(t *testing.T) {
	sales := &stubSales{byProduct: map[int64][]Observation{
		1: richSeries(30, 10, 100, 0),
	}}
	orch := newTestOrchestrator(sales, &memorySink{}, nil)

	req := validRequest(1)
	req.Strategy = StrategySequence

	resp, err := orch.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	got := resp.Results[0]
	if got.StrategyUsed != NameSequence {
		t.Errorf("StrategyUsed = %q, want %q", got.StrategyUsed, NameSequence)
	}
	if got.PredictedDemand != 10 {
		t.Errorf("PredictedDemand = %d, want 10", got.PredictedDemand)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestRunPreservesPairOrder(t *testing.T) {
	sales := &stubSales{byProduct: map[int64][]Observation{
		1: quantitySeries(10, 10, 10, 10, 10, 10, 10),
		2: quantitySeries(20, 20, 20, 20, 20, 20, 20),
	}}
	orch := newTestOrchestrator(sales, &memorySink{}, nil)

	req := validRequest(1, 2)
	req.LocationIDs = []int64{10, 20}

	resp, err := orch.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if len(resp.Results) != 4 {
		t.Fatalf("Run() = %d results, want 4", len(resp.Results))
	}

	wantPairs := []struct {
		product  int64
		location int64
	}{
		{1, 10}, {1, 20}, {2, 10}, {2, 20},
	}
	for i, want := range wantPairs {
		got := resp.Results[i]
		if got.ProductID != want.product {
			t.Errorf("results[%d].ProductID = %d, want %d", i, got.ProductID, want.product)
		}
		if got.LocationID == nil || *got.LocationID != want.location {
			t.Errorf("results[%d].LocationID = %v, want %d", i, got.LocationID, want.location)
		}
		if got.Period != PeriodDaily || got.HorizonDays != 7 {
			t.Errorf("results[%d] carries period %q horizon %d, want request values", i, got.Period, got.HorizonDays)
		}
	}
}

func TestRunFetchFailureIsPerPair(t *testing.T) {
	sales := &stubSales{
		byProduct: map[int64][]Observation{
			1: quantitySeries(10, 10, 10, 10, 10, 10, 10),
		},
		failWith: map[int64]error{
			2: errors.New("connection refused"),
		},
	}
	orch := newTestOrchestrator(sales, &memorySink{}, nil)

	resp, err := orch.Run(context.Background(), validRequest(1, 2))
	if err != nil {
		t.Fatalf("Run() error = %v, want nil despite one bad pair", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ProductID != 1 {
		t.Fatalf("Run() results = %+v, want only product 1", resp.Results)
	}
	if len(resp.Failures) != 1 {
		t.Fatalf("Run() failures = %+v, want one entry", resp.Failures)
	}
	if got := resp.Failures[0]; got.ProductID != 2 {
		t.Errorf("failure entry for product %d, want 2", got.ProductID)
	}
}

func TestRunSlowFetchRoutesToBaseline(t *testing.T) {
	sales := &stubSales{failWith: map[int64]error{
		1: context.DeadlineExceeded,
	}}
	orch := newTestOrchestrator(sales, &memorySink{}, nil)

	req := validRequest(1)
	req.Strategy = StrategyEnsemble

	resp, err := orch.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("Run() = %d results, want 1", len(resp.Results))
	}

	got := resp.Results[0]
	if got.StrategyUsed != NameBaseline {
		t.Errorf("StrategyUsed = %q, want %q when history timed out", got.StrategyUsed, NameBaseline)
	}
	if got.PredictedDemand != 1 {
		t.Errorf("PredictedDemand = %d, want the unit placeholder 1", got.PredictedDemand)
	}
}

func TestRunPersistsFullBatchOnce(t *testing.T) {
	sales := &stubSales{byProduct: map[int64][]Observation{
		1: quantitySeries(10, 10, 10, 10, 10, 10, 10),
		2: quantitySeries(20, 20, 20, 20, 20, 20, 20),
	}}
	sink := &memorySink{}
	orch := newTestOrchestrator(sales, sink, nil)

	resp, err := orch.Run(context.Background(), validRequest(1, 2))
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if len(sink.saved) != 1 {
		t.Fatalf("sink received %d batches, want exactly 1", len(sink.saved))
	}
	if len(sink.saved[0]) != len(resp.Results) {
		t.Errorf("sink batch size = %d, want %d", len(sink.saved[0]), len(resp.Results))
	}
}

func TestRunSurfacesPerItemPersistFailures(t *testing.T) {
	sales := &stubSales{byProduct: map[int64][]Observation{
		1: quantitySeries(10, 10, 10, 10, 10, 10, 10),
		2: quantitySeries(20, 20, 20, 20, 20, 20, 20),
	}}
	sink := &memorySink{failed: []FailedSave{{Index: 1, Reason: "duplicate key"}}}
	orch := newTestOrchestrator(sales, sink, nil)

	resp, err := orch.Run(context.Background(), validRequest(1, 2))
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if len(resp.Results) != 2 {
		t.Errorf("Run() = %d results, want both kept in the response", len(resp.Results))
	}
	if len(resp.Failures) != 1 {
		t.Fatalf("Run() failures = %+v, want one persist entry", resp.Failures)
	}
	if got := resp.Failures[0]; got.ProductID != 2 {
		t.Errorf("persist failure attributed to product %d, want 2", got.ProductID)
	}
}

func TestRunSinkErrorFailsEveryPair(t *testing.T) {
	sales := &stubSales{byProduct: map[int64][]Observation{
		1: quantitySeries(10, 10, 10, 10, 10, 10, 10),
		2: quantitySeries(20, 20, 20, 20, 20, 20, 20),
	}}
	sink := &memorySink{err: errors.New("transaction aborted")}
	orch := newTestOrchestrator(sales, sink, nil)

	resp, err := orch.Run(context.Background(), validRequest(1, 2))
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if len(resp.Failures) != len(resp.Results) {
		t.Errorf("Run() = %d failures for %d results, want one per pair", len(resp.Failures), len(resp.Results))
	}
}

func TestRunSkipsPersistWithoutResults(t *testing.T) {
	sales := &stubSales{failWith: map[int64]error{
		1: errors.New("connection refused"),
	}}
	sink := &memorySink{}
	orch := newTestOrchestrator(sales, sink, nil)

	resp, err := orch.Run(context.Background(), validRequest(1))
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if len(resp.Results) != 0 {
		t.Fatalf("Run() = %d results, want 0", len(resp.Results))
	}
	if len(sink.saved) != 0 {
		t.Errorf("sink received %d batches for an empty outcome, want 0", len(sink.saved))
	}
}

func TestRunCancelledBatchPersistsNothing(t *testing.T) {
	sales := &stubSales{byProduct: map[int64][]Observation{
		1: quantitySeries(10, 10, 10, 10, 10, 10, 10),
	}}
	sink := &memorySink{}
	orch := newTestOrchestrator(sales, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.Run(ctx, validRequest(1))
	if err == nil {
		t.Fatal("Run() error = nil on a cancelled context, want failure")
	}
	if len(sink.saved) != 0 {
		t.Errorf("sink received %d batches after cancellation, want 0", len(sink.saved))
	}
}

func TestRunAttachesAccuracyOnRequest(t *testing.T) {
	day := daysAgo(2)
	sales := &stubSales{byProduct: map[int64][]Observation{
		1: {{Date: day, Quantity: 10}},
	}}
	forecasts := &stubForecasts{results: []Result{
		{ProductID: 1, ForecastDate: day, PredictedDemand: 10},
	}}

	orch := newTestOrchestrator(sales, &memorySink{}, nil)
	orch.SetAccuracyEvaluator(NewAccuracyEvaluator(forecasts, sales, 30))

	req := validRequest(1)
	req.IncludeAccuracy = true

	resp, err := orch.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}

	record, ok := resp.Accuracy[1]
	if !ok {
		t.Fatal("Run() response carries no accuracy record for product 1")
	}
	if !floatsClose(record.Accuracy, 1.0) {
		t.Errorf("Accuracy = %v, want 1.0 for a perfect forecast", record.Accuracy)
	}

	req.IncludeAccuracy = false
	resp, err = orch.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if resp.Accuracy != nil {
		t.Errorf("Run() attached accuracy without the flag: %+v", resp.Accuracy)
	}
}

func TestChainFor(t *testing.T) {
	orch := newTestOrchestrator(&stubSales{}, nil, nil)

	tests := []struct {
		name         string
		strategy     string
		observations int
		want         []string
	}{
		{
			name:         "baseline stands alone",
			strategy:     StrategyBaseline,
			observations: 30,
			want:         []string{NameBaseline},
		},
		{
			name:         "trend falls back to baseline",
			strategy:     StrategyTrend,
			observations: 30,
			want:         []string{NameTrend, NameBaseline},
		},
		{
			name:         "sequence walks the full chain",
			strategy:     StrategySequence,
			observations: 30,
			want:         []string{NameSequence, NameTrend, NameBaseline},
		},
		{
			name:         "ensemble falls back to baseline",
			strategy:     StrategyEnsemble,
			observations: 30,
			want:         []string{NameEnsemble, NameBaseline},
		},
		{
			name:         "short history forces baseline",
			strategy:     StrategySequence,
			observations: 3,
			want:         []string{NameBaseline},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := orch.chainFor(tt.strategy, tt.observations)
			if len(chain) != len(tt.want) {
				t.Fatalf("chainFor() length = %d, want %d", len(chain), len(tt.want))
			}
			for i, strategy := range chain {
				if strategy.Name() != tt.want[i] {
					t.Errorf("chain[%d] = %q, want %q", i, strategy.Name(), tt.want[i])
				}
			}
		})
	}
}

func TestExpandPairs(t *testing.T) {
	req := validRequest(1, 2)

	pairs := expandPairs(req)
	if len(pairs) != 2 {
		t.Fatalf("expandPairs() = %d pairs, want 2", len(pairs))
	}
	for i, p := range pairs {
		if p.locationID != nil {
			t.Errorf("pairs[%d].locationID = %v, want nil for network-wide demand", i, *p.locationID)
		}
	}

	req.LocationIDs = []int64{10, 20, 30}
	pairs = expandPairs(req)
	if len(pairs) != 6 {
		t.Fatalf("expandPairs() = %d pairs, want 6", len(pairs))
	}
	if *pairs[0].locationID != 10 || *pairs[5].locationID != 30 {
		t.Errorf("expandPairs() edges = %d and %d, want 10 and 30", *pairs[0].locationID, *pairs[5].locationID)
	}
}
