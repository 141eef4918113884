package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"retail-demand-engine/cache"
	"retail-demand-engine/database"
	"retail-demand-engine/database/sales"
	"retail-demand-engine/database/types"
	"retail-demand-engine/helpers"
	"retail-demand-engine/notifications"
	"retail-demand-engine/realtime"
	"retail-demand-engine/websocket"
)

// Detection thresholds
const (
	defaultSpikeRatio  = 3.0              // Today at 3x the daily mean counts as a spike
	minSpikeQuantity   = 10.0             // Safety floor to avoid noise on slow movers
	fallbackSpikeQty   = 100.0            // Hard threshold for products without history
	statsLookbackDays  = 28               // Four full weeks so every weekday is sampled equally
	defaultMinSamples  = 20               // Days of history required for ratio detection
	statsCacheDuration = 10 * time.Minute // Cache stats for 10 minutes
	spikeAlertCooldown = 6 * time.Hour    // One spike alert per pair per cooldown window
	flushInterval      = 5 * time.Second  // Buffered line items are flushed on this cadence
	maxFutureDrift     = time.Hour        // Reject events stamped further ahead than this
)

// Cache key prefixes
const (
	cacheKeyStatsPrefix = "stats:demand:"
)

// SaleEventHandler mengelola pesan penjualan dari feed POS
type SaleEventHandler struct {
	salesRepo      *sales.Repository             // Repository untuk menyimpan line item penjualan
	demandRepo     *database.DemandRepository    // Repository untuk alert dan master data
	webhookManager *notifications.WebhookManager // Manager untuk notifikasi webhook
	redis          *cache.RedisClient            // Redis client for stats caching
	broker         *realtime.Broker              // Realtime SSE broker

	// Ingest buffering
	aggregator *SalesAggregator

	// Spike detection settings
	spikeRatio      float64
	spikeMinSamples int64

	// Cooldown bookkeeping so one busy day produces one alert per pair
	alertMu     sync.Mutex
	lastAlertAt map[string]time.Time
}

// NewSaleEventHandler membuat instance handler baru
func NewSaleEventHandler(salesRepo *sales.Repository, demandRepo *database.DemandRepository, webhookManager *notifications.WebhookManager, redis *cache.RedisClient, broker *realtime.Broker, spikeRatio float64, spikeMinSamples int) *SaleEventHandler {
	if spikeRatio <= 0 {
		spikeRatio = defaultSpikeRatio
	}
	if spikeMinSamples <= 0 {
		spikeMinSamples = defaultMinSamples
	}

	handler := &SaleEventHandler{
		salesRepo:       salesRepo,
		demandRepo:      demandRepo,
		webhookManager:  webhookManager,
		redis:           redis,
		broker:          broker,
		spikeRatio:      spikeRatio,
		spikeMinSamples: int64(spikeMinSamples),
		lastAlertAt:     make(map[string]time.Time),
	}

	// Initialize sales aggregator
	if salesRepo != nil {
		handler.aggregator = NewSalesAggregator(salesRepo)
		go handler.aggregator.Start() // Start background flushing
	}

	return handler
}

// HandleFrame memproses satu frame JSON dari feed POS
func (h *SaleEventHandler) HandleFrame(frame *websocket.Frame) error {
	switch frame.Type {
	case websocket.FrameTypeSale:
		var event websocket.SaleEvent
		if err := json.Unmarshal(frame.Data, &event); err != nil {
			return fmt.Errorf("invalid sale payload: %w", err)
		}
		h.ProcessSale(&event)

	case websocket.FrameTypeSaleBatch:
		var events []websocket.SaleEvent
		if err := json.Unmarshal(frame.Data, &events); err != nil {
			return fmt.Errorf("invalid sale batch payload: %w", err)
		}
		for i := range events {
			h.ProcessSale(&events[i])
		}

	case websocket.FrameTypePing, websocket.FrameTypePong:
		// Keep-alive response - silent

	default:
		return fmt.Errorf("unknown frame type: %s", frame.Type)
	}

	return nil
}

// getDemandStats retrieves demand statistics, checking cache first then database
func (h *SaleEventHandler) getDemandStats(productID, locationID int64) *types.DemandStats {
	if h.redis == nil && h.salesRepo == nil {
		return nil
	}

	cacheKey := fmt.Sprintf("%s%d:%d", cacheKeyStatsPrefix, productID, locationID)
	stats := &types.DemandStats{}

	// Try cache first
	if h.redis != nil {
		if err := h.redis.Get(context.Background(), cacheKey, stats); err == nil {
			return stats
		}
	}

	// Cache miss - fetch from database
	if h.salesRepo != nil {
		dbStats, err := h.salesRepo.GetDemandStats(context.Background(), productID, locationID, statsLookbackDays)
		if err != nil {
			return nil
		}

		// Update cache for next time
		if h.redis != nil {
			_ = h.redis.Set(context.Background(), cacheKey, dbStats, statsCacheDuration)
		}

		return dbStats
	}

	return nil
}

// ProcessSale memproses satu line item penjualan dari feed
func (h *SaleEventHandler) ProcessSale(event *websocket.SaleEvent) {
	// Start benchmarking timer
	startTime := time.Now()

	if err := validateSale(event); err != nil {
		log.Printf("⚠️  Dropping invalid sale event: %v", err)
		return
	}

	channel := normalizeChannel(event.Channel)

	// Gross line value after the line discount
	totalAmount := event.Quantity * event.UnitPrice * (1 - event.Discount)

	item := &database.SalesTransaction{
		SoldAt:        event.SoldAt,
		ProductID:     event.ProductID,
		LocationID:    event.LocationID,
		Quantity:      event.Quantity,
		UnitPrice:     event.UnitPrice,
		Discount:      event.Discount,
		TotalAmount:   totalAmount,
		Channel:       channel,
		ReceiptNumber: event.ReceiptNumber,
	}

	// Buffer for the next COPY flush instead of hitting the pool per item
	if h.aggregator != nil {
		h.aggregator.Add(item)
	}

	// Broadcast Realtime Event for the live sales ticker
	if h.broker != nil {
		h.broker.Broadcast(realtime.EventSale, item)
	}

	// 📈 SPIKE DETECTION - RATIO MODEL

	// Get stats using helper method (handles caching internally)
	stats := h.getDemandStats(event.ProductID, event.LocationID)

	todayQty := h.todayQuantity(event.ProductID, event.LocationID)

	isSpike, detectionType, ratio, expected := evaluateSpike(stats, todayQty, h.spikeRatio, h.spikeMinSamples)

	if isSpike && h.markAlerted(event.ProductID, event.LocationID) {
		locationID := event.LocationID
		alert := &database.DemandAlert{
			DetectedAt:     time.Now(),
			ProductID:      event.ProductID,
			LocationID:     &locationID,
			AlertType:      database.AlertTypeDemandSpike,
			ObservedValue:  todayQty,
			ExpectedValue:  expected,
			DeviationRatio: ratio,
		}
		alert.Message = notifications.FormatAlertMessage(alert)

		// Save demand alert to database
		if h.demandRepo == nil {
			return
		}
		if err := h.demandRepo.SaveDemandAlert(alert); err != nil {
			log.Printf("⚠️  Failed to save demand alert: %v", err)
		} else {
			// Log spike detection to console
			log.Printf("📈 DEMAND SPIKE! Product #%d @ Store #%d [%s] | Today: %.0f (x%.1f of %.0f avg) | Last sale: %s",
				event.ProductID, event.LocationID, detectionType, todayQty, ratio, expected, helpers.FormatRupiah(totalAmount))

			// Trigger Webhook if manager is available
			if h.webhookManager != nil {
				h.webhookManager.SendAlert(alert)
			}

			// Broadcast Realtime Event
			if h.broker != nil && h.webhookManager != nil {
				// Use WebhookPayload for consistent frontend data (includes Message)
				payload := h.webhookManager.CreatePayload(alert)
				h.broker.Broadcast(realtime.EventDemandAlert, payload)
			} else if h.broker != nil {
				// Fallback if no webhook manager
				h.broker.Broadcast(realtime.EventDemandAlert, alert)
			}

			// Benchmark Latency
			latency := time.Since(startTime)
			log.Printf("⏱️ Detection Latency: %v", latency)
		}
	}
}

// todayQuantity combines the persisted running total with line items still
// waiting in the flush buffer
func (h *SaleEventHandler) todayQuantity(productID, locationID int64) float64 {
	var total float64

	if h.salesRepo != nil {
		persisted, err := h.salesRepo.GetTodayQuantity(context.Background(), productID, locationID)
		if err == nil {
			total += persisted
		}
	}

	if h.aggregator != nil {
		total += h.aggregator.PendingQuantity(productID, locationID)
	}

	return total
}

// markAlerted reports whether a spike alert may fire for the pair and, if
// so, records it. At most one alert per pair per cooldown window.
func (h *SaleEventHandler) markAlerted(productID, locationID int64) bool {
	key := fmt.Sprintf("%d:%d", productID, locationID)

	h.alertMu.Lock()
	defer h.alertMu.Unlock()

	if last, ok := h.lastAlertAt[key]; ok && time.Since(last) < spikeAlertCooldown {
		return false
	}

	h.lastAlertAt[key] = time.Now()
	return true
}

// FlushPending persists buffered line items immediately. Called on shutdown
// so an in-flight window is not lost.
func (h *SaleEventHandler) FlushPending() {
	if h.aggregator != nil {
		h.aggregator.Flush()
	}
}

// GetFrameType returns the frame type
func (h *SaleEventHandler) GetFrameType() string {
	return "SaleEvent"
}

// validateSale rejects malformed events before they reach the buffer
func validateSale(event *websocket.SaleEvent) error {
	if event.ProductID <= 0 {
		return fmt.Errorf("product_id must be positive, got %d", event.ProductID)
	}
	if event.LocationID <= 0 {
		return fmt.Errorf("location_id must be positive, got %d", event.LocationID)
	}
	if event.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %.2f", event.Quantity)
	}
	if event.UnitPrice < 0 {
		return fmt.Errorf("unit_price must not be negative, got %.2f", event.UnitPrice)
	}
	if event.Discount < 0 || event.Discount >= 1 {
		return fmt.Errorf("discount must be in [0, 1), got %.4f", event.Discount)
	}

	if event.SoldAt.IsZero() {
		event.SoldAt = time.Now()
	} else if time.Until(event.SoldAt) > maxFutureDrift {
		return fmt.Errorf("sold_at is in the future: %s", event.SoldAt.Format(time.RFC3339))
	}

	return nil
}

// evaluateSpike applies the ratio model to today's running quantity.
// With enough history the test is today vs the 28-day mean, gated by the
// minimum quantity safety floor. Without history it falls back to a hard
// quantity threshold so brand-new products can still trip an alert.
func evaluateSpike(stats *types.DemandStats, todayQty, spikeRatio float64, minSamples int64) (isSpike bool, detectionType string, ratio, expected float64) {
	detectionType = "UNKNOWN"

	if stats != nil && stats.MeanQuantity > 0 && stats.SampleCount >= minSamples {
		expected = stats.MeanQuantity
		ratio = todayQty / stats.MeanQuantity

		if todayQty >= minSpikeQuantity && ratio >= spikeRatio {
			isSpike = true
			detectionType = "RATIO ANOMALY"
		}
	} else if todayQty >= fallbackSpikeQty {
		// No usable statistics (new product / new store)
		isSpike = true
		detectionType = "FALLBACK THRESHOLD"
		expected = fallbackSpikeQty
		ratio = todayQty / fallbackSpikeQty
	}

	return isSpike, detectionType, ratio, expected
}

// normalizeChannel maps free-form channel strings onto the known set
func normalizeChannel(channel string) string {
	switch strings.ToUpper(strings.TrimSpace(channel)) {
	case "POS", "":
		return "POS" // In-store point of sale
	case "WEB":
		return "WEB" // Web storefront
	case "APP":
		return "APP" // Mobile application
	default:
		return "POS"
	}
}

// ============================================================================
// Sales Aggregation Implementation
// ============================================================================

// pairKey identifies a (product, location) pair in the pending index
type pairKey struct {
	productID  int64
	locationID int64
}

// SalesAggregator buffers incoming line items and flushes them in bulk
type SalesAggregator struct {
	repo    *sales.Repository
	buffer  []*database.SalesTransaction
	pending map[pairKey]float64 // quantity not yet visible in the database
	mu      sync.RWMutex
}

// NewSalesAggregator creates a new sales aggregator
func NewSalesAggregator(repo *sales.Repository) *SalesAggregator {
	return &SalesAggregator{
		repo:    repo,
		pending: make(map[pairKey]float64),
	}
}

// Start begins the flush loop
func (sa *SalesAggregator) Start() {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	log.Println("📊 Sales aggregator started")

	for range ticker.C {
		sa.Flush()
	}
}

// Add buffers a line item for the next flush
func (sa *SalesAggregator) Add(item *database.SalesTransaction) {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	sa.buffer = append(sa.buffer, item)
	sa.pending[pairKey{item.ProductID, item.LocationID}] += item.Quantity
}

// PendingQuantity returns buffered quantity for a pair not yet persisted
func (sa *SalesAggregator) PendingQuantity(productID, locationID int64) float64 {
	sa.mu.RLock()
	defer sa.mu.RUnlock()
	return sa.pending[pairKey{productID, locationID}]
}

// Flush persists the current buffer and resets it for the next window.
// Persisting happens outside the lock, so Add never waits on the database.
func (sa *SalesAggregator) Flush() {
	sa.mu.Lock()

	// Swap out current buffer
	batch := sa.buffer
	sa.buffer = nil
	sa.pending = make(map[pairKey]float64)

	sa.mu.Unlock()

	if len(batch) > 0 {
		sa.persistBatch(batch)
	}
}

// persistBatch saves buffered line items to the database
func (sa *SalesAggregator) persistBatch(batch []*database.SalesTransaction) {
	if sa.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	inserted, err := sa.repo.BatchInsertSales(ctx, batch)
	if err != nil {
		log.Printf("⚠️  Failed to flush %d sales line items: %v", len(batch), err)
		return
	}

	if inserted < len(batch) {
		log.Printf("💾 Sales flush: saved %d line items (%d duplicates skipped)", inserted, len(batch)-inserted)
	} else {
		log.Printf("💾 Sales flush: saved %d line items", inserted)
	}
}
