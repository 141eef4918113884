package app

import (
	"context"
	"log"
	"time"

	"retail-demand-engine/config"
	"retail-demand-engine/database"
	"retail-demand-engine/forecast"
	"retail-demand-engine/realtime"
)

// batchTimeout bounds one full refresh across all active products.
const batchTimeout = 10 * time.Minute

// ForecastScheduler periodically regenerates forecasts for all active products
type ForecastScheduler struct {
	repo         *database.DemandRepository
	orchestrator *forecast.Orchestrator
	broker       *realtime.Broker
	config       *config.Config
	done         chan bool
}

// NewForecastScheduler creates a new forecast scheduler
func NewForecastScheduler(repo *database.DemandRepository, orchestrator *forecast.Orchestrator, broker *realtime.Broker, cfg *config.Config) *ForecastScheduler {
	return &ForecastScheduler{
		repo:         repo,
		orchestrator: orchestrator,
		broker:       broker,
		config:       cfg,
		done:         make(chan bool),
	}
}

// Start begins the refresh loop
func (fs *ForecastScheduler) Start() {
	interval := time.Duration(fs.config.Forecast.RefreshIntervalHours) * time.Hour
	log.Printf("📊 Forecast Scheduler started (every %v)", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial run
	fs.refreshForecasts()

	for {
		select {
		case <-ticker.C:
			fs.refreshForecasts()
		case <-fs.done:
			log.Println("📊 Forecast Scheduler stopped")
			return
		}
	}
}

// Stop stops the refresh loop
func (fs *ForecastScheduler) Stop() {
	fs.done <- true
}

// refreshForecasts runs one ensemble batch over every active product
func (fs *ForecastScheduler) refreshForecasts() {
	log.Println("📊 Refreshing demand forecasts...")

	productIDs, err := fs.repo.ListActiveProductIDs()
	if err != nil {
		log.Printf("⚠️  Failed to list active products: %v", err)
		return
	}
	if len(productIDs) == 0 {
		log.Println("ℹ️  No active products to forecast")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	req := forecast.Request{
		ProductIDs:  productIDs,
		Period:      forecast.PeriodDaily,
		HorizonDays: fs.config.Forecast.DefaultHorizonDays,
		Strategy:    forecast.StrategyEnsemble,
	}

	started := time.Now()
	response, err := fs.orchestrator.Run(ctx, req)
	if err != nil {
		log.Printf("⚠️  Forecast refresh failed: %v", err)
		return
	}

	log.Printf("✅ Forecast refresh complete: %d saved, %d failures in %v",
		len(response.Results), len(response.Failures), time.Since(started).Round(time.Millisecond))

	if len(response.Failures) > 0 {
		log.Printf("⚠️  First failure: product %d: %s",
			response.Failures[0].ProductID, response.Failures[0].Reason)
	}

	// Notify dashboard clients
	if fs.broker != nil {
		fs.broker.Broadcast(realtime.EventForecastRefresh, map[string]interface{}{
			"generated":    len(response.Results),
			"failed":       len(response.Failures),
			"horizon_days": req.HorizonDays,
			"strategy":     req.Strategy,
			"refreshed_at": time.Now(),
		})
	}
}
