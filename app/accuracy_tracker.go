package app

import (
	"context"
	"log"
	"time"

	"retail-demand-engine/config"
	"retail-demand-engine/database"
	"retail-demand-engine/database/sales"
	"retail-demand-engine/forecast"
	"retail-demand-engine/notifications"
	"retail-demand-engine/realtime"
)

// Drop scan settings
const (
	dropScanLookbackDays = 28   // Baseline window for the daily drop scan
	dropScanMinSamples   = 7    // Days of history before a product can be flagged
	dropScanMinMeanQty   = 10.0 // Slow movers below this mean are never flagged
	evaluateTimeout      = 5 * time.Minute
)

// AccuracyTracker periodically backtests stored forecasts against actual
// sales and raises alerts for products the models keep getting wrong. It
// also runs the once-a-day demand drop scan.
type AccuracyTracker struct {
	repo           *database.DemandRepository
	salesRepo      *sales.Repository
	webhookManager *notifications.WebhookManager
	broker         *realtime.Broker
	config         *config.Config
	evaluator      *forecast.AccuracyEvaluator
	lastDropScan   time.Time
	done           chan bool
}

// NewAccuracyTracker creates a new accuracy tracker
func NewAccuracyTracker(repo *database.DemandRepository, salesRepo *sales.Repository, webhookManager *notifications.WebhookManager, broker *realtime.Broker, cfg *config.Config) *AccuracyTracker {
	evaluator := forecast.NewAccuracyEvaluator(repo, salesRepo, cfg.Forecast.AccuracyWindowDays)

	return &AccuracyTracker{
		repo:           repo,
		salesRepo:      salesRepo,
		webhookManager: webhookManager,
		broker:         broker,
		config:         cfg,
		evaluator:      evaluator,
		done:           make(chan bool),
	}
}

// Start begins the evaluation loop
func (at *AccuracyTracker) Start() {
	interval := time.Duration(at.config.Forecast.AccuracyRefreshHrs) * time.Hour
	log.Printf("🎯 Accuracy Tracker started (every %v)", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial run
	at.runCycle()

	for {
		select {
		case <-ticker.C:
			at.runCycle()
		case <-at.done:
			log.Println("🎯 Accuracy Tracker stopped")
			return
		}
	}
}

// Stop stops the evaluation loop
func (at *AccuracyTracker) Stop() {
	at.done <- true
}

func (at *AccuracyTracker) runCycle() {
	at.evaluateAccuracy()

	// The drop scan compares whole calendar days, so once per day is enough
	if time.Since(at.lastDropScan) >= 24*time.Hour {
		at.detectDemandDrops()
		at.lastDropScan = time.Now()
	}
}

// evaluateAccuracy backtests each active product and persists the score
func (at *AccuracyTracker) evaluateAccuracy() {
	log.Println("🎯 Evaluating forecast accuracy...")

	productIDs, err := at.repo.ListActiveProductIDs()
	if err != nil {
		log.Printf("⚠️  Failed to list active products: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), evaluateTimeout)
	defer cancel()

	scored := 0
	lowAccuracy := 0
	var accuracySum float64

	for _, productID := range productIDs {
		record, err := at.evaluator.Evaluate(ctx, productID)
		if err != nil {
			// Fresh products have no forecast/actual overlap yet
			continue
		}
		if record.SampleCount == 0 {
			continue
		}

		if err := at.repo.UpdateForecastAccuracy(productID, record.Accuracy, record.WindowDays); err != nil {
			log.Printf("⚠️  Failed to store accuracy for product %d: %v", productID, err)
			continue
		}

		scored++
		accuracySum += record.Accuracy

		if record.Accuracy < at.config.Alerts.LowAccuracy {
			at.raiseLowAccuracyAlert(productID, record)
			lowAccuracy++
		}
	}

	if scored == 0 {
		log.Println("ℹ️  No products had enough forecast history to score")
		return
	}

	avgAccuracy := accuracySum / float64(scored)
	log.Printf("✅ Accuracy evaluation complete: %d products scored, avg %.0f%%, %d below threshold",
		scored, avgAccuracy*100, lowAccuracy)

	// Notify dashboard clients
	if at.broker != nil {
		at.broker.Broadcast(realtime.EventAccuracyUpdate, map[string]interface{}{
			"products_scored": scored,
			"avg_accuracy":    avgAccuracy,
			"low_accuracy":    lowAccuracy,
			"window_days":     at.config.Forecast.AccuracyWindowDays,
			"evaluated_at":    time.Now(),
		})
	}
}

// raiseLowAccuracyAlert files one LOW_ACCURACY alert per product per day
func (at *AccuracyTracker) raiseLowAccuracyAlert(productID int64, record forecast.AccuracyRecord) {
	if at.alreadyAlerted(database.AlertTypeLowAccuracy, productID) {
		return
	}

	alert := &database.DemandAlert{
		DetectedAt:     time.Now(),
		ProductID:      productID,
		AlertType:      database.AlertTypeLowAccuracy,
		ObservedValue:  record.Accuracy,
		ExpectedValue:  at.config.Alerts.LowAccuracy,
		DeviationRatio: safeRatio(record.Accuracy, at.config.Alerts.LowAccuracy),
	}
	alert.Message = notifications.FormatAlertMessage(alert)

	at.dispatchAlert(alert)
	log.Printf("🎯 LOW ACCURACY: product %d at %.0f%% over %d samples",
		productID, record.Accuracy*100, record.SampleCount)
}

// detectDemandDrops scans yesterday's totals against each product's mean
func (at *AccuracyTracker) detectDemandDrops() {
	log.Println("📉 Scanning for demand drops (DB-optimized)...")

	ctx, cancel := context.WithTimeout(context.Background(), evaluateTimeout)
	defer cancel()

	drops, err := at.salesRepo.FindDemandDrops(ctx, at.config.Alerts.SpikeRatio,
		dropScanMinSamples, dropScanLookbackDays, dropScanMinMeanQty)
	if err != nil {
		log.Printf("⚠️  Demand drop scan failed: %v", err)
		return
	}

	flagged := 0
	for _, drop := range drops {
		if at.alreadyAlerted(database.AlertTypeDemandDrop, drop.ProductID) {
			continue
		}

		alert := &database.DemandAlert{
			DetectedAt:     time.Now(),
			ProductID:      drop.ProductID,
			AlertType:      database.AlertTypeDemandDrop,
			ObservedValue:  drop.YesterdayQty,
			ExpectedValue:  drop.MeanQty,
			DeviationRatio: safeRatio(drop.YesterdayQty, drop.MeanQty),
		}
		alert.Message = notifications.FormatAlertMessage(alert)

		at.dispatchAlert(alert)
		flagged++
	}

	log.Printf("✅ Demand drop scan complete: %d products flagged", flagged)
}

// dispatchAlert persists the alert, then fans out to webhooks and SSE clients
func (at *AccuracyTracker) dispatchAlert(alert *database.DemandAlert) {
	if err := at.repo.SaveDemandAlert(alert); err != nil {
		log.Printf("⚠️  Failed to save %s alert for product %d: %v", alert.AlertType, alert.ProductID, err)
		return
	}

	if at.webhookManager != nil {
		at.webhookManager.SendAlert(alert)
	}

	if at.broker != nil && at.webhookManager != nil {
		at.broker.Broadcast(realtime.EventDemandAlert, at.webhookManager.CreatePayload(alert))
	} else if at.broker != nil {
		at.broker.Broadcast(realtime.EventDemandAlert, alert)
	}
}

// alreadyAlerted reports whether the same alert fired for the product in the
// last 24 hours
func (at *AccuracyTracker) alreadyAlerted(alertType string, productID int64) bool {
	since := time.Now().Add(-24 * time.Hour)
	recent, err := at.repo.GetRecentAlerts(alertType, productID, 0, since, 1)
	if err != nil {
		return false
	}
	return len(recent) > 0
}

func safeRatio(observed, expected float64) float64 {
	if expected == 0 {
		return 0
	}
	return observed / expected
}
