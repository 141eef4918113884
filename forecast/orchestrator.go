package forecast

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// FailedSave identifies one result the sink could not persist, by position in
// the submitted slice.
type FailedSave struct {
	Index  int
	Reason string
}

// ResultSink persists produced forecasts. Partial failure of one item must
// not drop the others: the sink returns either full success (nil, nil), an
// enumerated list of failed items, or an error when nothing was persisted.
type ResultSink interface {
	SaveForecastResults(ctx context.Context, results []Result) ([]FailedSave, error)
}

// ProductCatalog answers master-data existence checks for request validation.
type ProductCatalog interface {
	MissingProductIDs(ctx context.Context, ids []int64) ([]int64, error)
	MissingLocationIDs(ctx context.Context, ids []int64) ([]int64, error)
}

// Options tunes the orchestrator. Zero values fall back to the defaults used
// across the store network.
type Options struct {
	MinObservations int
	LookbackDays    int
	SequenceWindow  int
	Workers         int
	FetchTimeout    time.Duration
	PersistTimeout  time.Duration
	Weights         EnsembleWeights
}

func (o Options) withDefaults() Options {
	if o.MinObservations <= 0 {
		o.MinObservations = 7
	}
	if o.LookbackDays <= 0 {
		o.LookbackDays = 90
	}
	if o.SequenceWindow <= 0 {
		o.SequenceWindow = SequenceWindowEnhanced
	}
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 5 * time.Second
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = 10 * time.Second
	}
	if o.Weights == (EnsembleWeights{}) {
		o.Weights = DefaultEnsembleWeights()
	}
	return o
}

// pair is one (product, location) unit of work inside a batch.
type pair struct {
	productID  int64
	locationID *int64
}

// Orchestrator runs forecast batches: it validates requests, builds the
// historical series per (product, location) pair, selects and runs a
// strategy with the fallback chain, validates every result against the
// demand invariant, and persists the fully-validated batch.
type Orchestrator struct {
	sink      ResultSink
	catalog   ProductCatalog
	builder   *SeriesBuilder
	evaluator *AccuracyEvaluator
	opts      Options

	baseline Strategy
	trend    Strategy
	sequence Strategy
	ensemble Strategy
}

// NewOrchestrator wires the strategy set over the given collaborators. A nil
// seasonal profile or holiday calendar selects the defaults spanning last,
// current and next year.
func NewOrchestrator(sales SalesSource, sink ResultSink, catalog ProductCatalog, seasons *SeasonalProfile, holidays *HolidayCalendar, opts Options) *Orchestrator {
	opts = opts.withDefaults()

	if seasons == nil {
		seasons = DefaultSeasonalProfile()
	}
	if holidays == nil {
		year := time.Now().Year()
		holidays = DefaultHolidayCalendar(year-1, year, year+1)
	}

	baseline := NewBaselineStrategy(seasons)
	trend := NewTrendStrategy(seasons, holidays)
	sequence := NewSequenceStrategy(opts.SequenceWindow)
	decomposition := NewDecompositionStrategy(seasons)
	ensemble := NewEnsembleStrategy(sequence, trend, decomposition, opts.Weights)

	return &Orchestrator{
		sink:     sink,
		catalog:  catalog,
		builder:  NewSeriesBuilder(sales, opts.LookbackDays, opts.FetchTimeout),
		opts:     opts,
		baseline: baseline,
		trend:    trend,
		sequence: sequence,
		ensemble: ensemble,
	}
}

// SetAccuracyEvaluator attaches the evaluator used when a request asks for
// per-product accuracy records.
func (o *Orchestrator) SetAccuracyEvaluator(evaluator *AccuracyEvaluator) {
	o.evaluator = evaluator
}

// Run executes one forecast batch. Validation failures reject the whole
// request before any series is fetched; after that point a single bad pair
// only ever produces a FailureEntry, never a batch error.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*BatchResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := o.checkMasterData(ctx, req); err != nil {
		return nil, err
	}

	pairs := expandPairs(req)
	target := dayOf(time.Now().AddDate(0, 0, req.HorizonDays))

	slots := make([]*Result, len(pairs))
	var mu sync.Mutex
	var failures []FailureEntry

	workers := o.opts.Workers
	if workers > len(pairs) {
		workers = len(pairs)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				result, failure := o.forecastPair(ctx, req, pairs[idx], target)
				if failure != nil {
					mu.Lock()
					failures = append(failures, *failure)
					mu.Unlock()
					continue
				}
				slots[idx] = result
			}
		}()
	}

dispatch:
	for i := range pairs {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	// A cancelled batch persists nothing; partial results are discarded
	// rather than saved inconsistently.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Compact in pair order so the response preserves the request pairing.
	results := make([]Result, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}

	failures = append(failures, o.persist(ctx, results)...)

	response := &BatchResponse{Results: results, Failures: failures}

	if req.IncludeAccuracy && o.evaluator != nil {
		response.Accuracy = make(map[int64]AccuracyRecord, len(req.ProductIDs))
		for _, productID := range req.ProductIDs {
			record, err := o.evaluator.Evaluate(ctx, productID)
			if err != nil {
				continue
			}
			response.Accuracy[productID] = record
		}
	}

	return response, nil
}

// checkMasterData rejects the whole request when any product or location id
// is unknown. This runs before any forecasting work.
func (o *Orchestrator) checkMasterData(ctx context.Context, req Request) error {
	if o.catalog == nil {
		return nil
	}

	missing, err := o.catalog.MissingProductIDs(ctx, req.ProductIDs)
	if err != nil {
		return fmt.Errorf("product lookup: %w", err)
	}
	if len(missing) > 0 {
		return &ValidationError{Field: "product_ids", Reason: "unknown ids: " + formatIDs(missing)}
	}

	if len(req.LocationIDs) > 0 {
		missing, err = o.catalog.MissingLocationIDs(ctx, req.LocationIDs)
		if err != nil {
			return fmt.Errorf("location lookup: %w", err)
		}
		if len(missing) > 0 {
			return &ValidationError{Field: "location_ids", Reason: "unknown ids: " + formatIDs(missing)}
		}
	}
	return nil
}

// expandPairs crosses the product ids with the location ids, or pairs each
// product with the nil location (all stores combined) when no locations were
// requested. Order follows the request.
func expandPairs(req Request) []pair {
	if len(req.LocationIDs) == 0 {
		pairs := make([]pair, len(req.ProductIDs))
		for i, productID := range req.ProductIDs {
			pairs[i] = pair{productID: productID}
		}
		return pairs
	}

	pairs := make([]pair, 0, len(req.ProductIDs)*len(req.LocationIDs))
	for _, productID := range req.ProductIDs {
		for _, locationID := range req.LocationIDs {
			id := locationID
			pairs = append(pairs, pair{productID: productID, locationID: &id})
		}
	}
	return pairs
}

// forecastPair produces one result via the fallback chain, or a failure
// entry when the history fetch hit an infrastructure error or every chain
// strategy failed.
func (o *Orchestrator) forecastPair(ctx context.Context, req Request, p pair, target time.Time) (*Result, *FailureEntry) {
	series, err := o.builder.Build(ctx, p.productID, p.locationID)
	if err != nil {
		return nil, &FailureEntry{
			ProductID:  p.productID,
			LocationID: p.locationID,
			Reason:     fmt.Sprintf("fetch history: %v", err),
		}
	}

	var reasons []string
	for _, strategy := range o.chainFor(req.Strategy, len(series)) {
		est, err := safeEstimate(strategy, series, target)
		if err != nil {
			reasons = append(reasons, err.Error())
			continue
		}

		predicted, lower, upper := roundEstimate(est)
		result := &Result{
			ProductID:       p.productID,
			LocationID:      p.locationID,
			ForecastDate:    target,
			Period:          req.Period,
			HorizonDays:     req.HorizonDays,
			PredictedDemand: predicted,
			ConfidenceLower: lower,
			ConfidenceUpper: upper,
			StrategyUsed:    strategy.Name(),
		}
		if err := result.Validate(); err != nil {
			// Discard the violating candidate and keep walking the chain.
			reasons = append(reasons, fmt.Sprintf("%s: %v", strategy.Name(), err))
			continue
		}
		return result, nil
	}

	return nil, &FailureEntry{
		ProductID:  p.productID,
		LocationID: p.locationID,
		Reason:     "all strategies failed: " + strings.Join(reasons, "; "),
	}
}

// chainFor maps the requested strategy to its fallback chain. Short history
// always forces the baseline, whatever was requested.
func (o *Orchestrator) chainFor(requested string, observations int) []Strategy {
	if observations < o.opts.MinObservations {
		return []Strategy{o.baseline}
	}

	switch requested {
	case StrategySequence:
		return []Strategy{o.sequence, o.trend, o.baseline}
	case StrategyTrend:
		return []Strategy{o.trend, o.baseline}
	case StrategyEnsemble:
		// The ensemble renormalizes internally; it only fails when every
		// member failed, and then the baseline still answers.
		return []Strategy{o.ensemble, o.baseline}
	default:
		return []Strategy{o.baseline}
	}
}

// persist saves the fully-validated batch in one call. Per-item sink
// failures become failure entries for their pairs; the results themselves
// stay in the response so nothing is silently dropped.
func (o *Orchestrator) persist(ctx context.Context, results []Result) []FailureEntry {
	if o.sink == nil || len(results) == 0 {
		return nil
	}

	persistCtx, cancel := context.WithTimeout(ctx, o.opts.PersistTimeout)
	defer cancel()

	failed, err := o.sink.SaveForecastResults(persistCtx, results)
	if err != nil {
		entries := make([]FailureEntry, len(results))
		for i, r := range results {
			entries[i] = FailureEntry{
				ProductID:  r.ProductID,
				LocationID: r.LocationID,
				Reason:     fmt.Sprintf("persist: %v", err),
			}
		}
		return entries
	}

	entries := make([]FailureEntry, 0, len(failed))
	for _, f := range failed {
		if f.Index < 0 || f.Index >= len(results) {
			continue
		}
		r := results[f.Index]
		entries = append(entries, FailureEntry{
			ProductID:  r.ProductID,
			LocationID: r.LocationID,
			Reason:     "persist: " + f.Reason,
		})
	}
	return entries
}
