package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"retail-demand-engine/forecast"
)

// DemandRepository handles database operations for the demand engine
type DemandRepository struct {
	db *Database
}

// NewDemandRepository creates a new demand repository
func NewDemandRepository(db *Database) *DemandRepository {
	return &DemandRepository{db: db}
}

// InitSchema performs auto-migration and TimescaleDB setup
func (r *DemandRepository) InitSchema() error {
	fmt.Println("🔄 Starting database schema initialization...")

	// Drop continuous aggregate view if exists to allow table alterations
	// This is necessary because TimescaleDB/Postgres locks columns used in views
	if err := r.db.db.Exec("DROP MATERIALIZED VIEW IF EXISTS daily_sales CASCADE").Error; err != nil {
		fmt.Printf("⚠️ Warning: Failed to drop view daily_sales: %v\n", err)
	}

	// Create sales_transactions table manually if not exists (before converting to hypertable)
	// GORM AutoMigrate fails on Hypertables with Views, so we manage schema manually
	if err := r.db.db.Exec(`
		CREATE TABLE IF NOT EXISTS sales_transactions (
			id BIGSERIAL,
			sold_at TIMESTAMPTZ NOT NULL,
			product_id BIGINT NOT NULL,
			location_id BIGINT NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			unit_price DOUBLE PRECISION NOT NULL,
			discount DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_amount DOUBLE PRECISION NOT NULL,
			channel VARCHAR(10),
			receipt_number BIGINT,
			PRIMARY KEY (id, sold_at)
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create sales_transactions table: %w", err)
	}

	// Add receipt_number column if it doesn't exist (migration for existing databases)
	r.db.db.Exec(`
		ALTER TABLE sales_transactions
		ADD COLUMN IF NOT EXISTS receipt_number BIGINT
	`)

	// Create unique index on (location_id, product_id, receipt_number, date)
	// Receipt numbers reset daily per store, so we need to include the date
	r.db.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_sales_unique_receipt_line
		ON sales_transactions (location_id, product_id, receipt_number, DATE(sold_at))
		WHERE receipt_number IS NOT NULL
	`)

	// Create index on (product_id, location_id, sold_at) for series queries
	r.db.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_sales_product_location_time
		ON sales_transactions (product_id, location_id, sold_at DESC)
	`)

	// Auto-migrate other tables
	err := r.db.db.AutoMigrate(
		// &SalesTransaction{}, // Managed manually above
		// &DailySale{}, // Managed as TimescaleDB Continuous Aggregate
		&Product{},
		&StoreLocation{},
		&ForecastRecord{},
		&DemandAlert{},
		&DemandWebhook{},
		&DemandWebhookLog{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	// Create TimescaleDB extension and hypertables
	if err := r.setupTimescaleDB(); err != nil {
		return err
	}

	// Setup forecast tables with TimescaleDB features
	if err := r.setupForecastTables(); err != nil {
		return err
	}

	fmt.Println("✅ Database schema initialization completed successfully")
	return nil
}

// setupTimescaleDB creates hypertables and policies
func (r *DemandRepository) setupTimescaleDB() error {
	fmt.Println("⏰ Setting up TimescaleDB extension and hypertables...")

	// Enable TimescaleDB extension
	if err := r.db.db.Exec("CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE").Error; err != nil {
		return fmt.Errorf("failed to create TimescaleDB extension: %w", err)
	}
	fmt.Println("✅ TimescaleDB extension enabled")

	// Create hypertable for sales_transactions
	r.db.db.Exec(`
		SELECT create_hypertable('sales_transactions', 'sold_at',
			chunk_time_interval => INTERVAL '1 day',
			if_not_exists => TRUE
		)
	`)

	// Add retention policy: 2 years of raw line items
	r.db.db.Exec(`
		SELECT add_retention_policy('sales_transactions', INTERVAL '2 years', if_not_exists => TRUE)
	`)

	// Create continuous aggregate for daily per-pair sales
	// Unit price and discount are quantity-weighted so multi-line days
	// collapse to the same numbers the forecaster expects
	r.db.db.Exec(`
		CREATE MATERIALIZED VIEW IF NOT EXISTS daily_sales
		WITH (timescaledb.continuous) AS
		SELECT
			time_bucket('1 day', sold_at) AS bucket,
			product_id,
			location_id,
			SUM(quantity) AS quantity,
			COALESCE(SUM(unit_price * quantity) / NULLIF(SUM(quantity), 0), 0) AS avg_unit_price,
			COALESCE(SUM(discount * quantity) / NULLIF(SUM(quantity), 0), 0) AS avg_discount,
			SUM(total_amount) AS total_amount,
			COUNT(*) AS tx_count
		FROM sales_transactions
		GROUP BY bucket, product_id, location_id
	`)

	// Add refresh policy for continuous aggregate
	r.db.db.Exec(`
		SELECT add_continuous_aggregate_policy('daily_sales',
			start_offset => INTERVAL '3 days',
			end_offset => INTERVAL '1 hour',
			schedule_interval => INTERVAL '1 hour',
			if_not_exists => TRUE
		)
	`)

	// Keep 5 years of daily history for year-over-year seasonality
	r.db.db.Exec(`
		SELECT add_retention_policy('daily_sales', INTERVAL '5 years', if_not_exists => TRUE)
	`)

	// Create hypertable for demand_alerts
	r.db.db.Exec(`
		SELECT create_hypertable('demand_alerts', 'detected_at',
			chunk_time_interval => INTERVAL '7 days',
			if_not_exists => TRUE
		)
	`)

	// Add retention policy: 6 months
	r.db.db.Exec(`
		SELECT add_retention_policy('demand_alerts', INTERVAL '6 months', if_not_exists => TRUE)
	`)

	// Create hypertable for demand_webhook_logs
	r.db.db.Exec(`
		SELECT create_hypertable('demand_webhook_logs', 'triggered_at',
			chunk_time_interval => INTERVAL '7 days',
			if_not_exists => TRUE
		)
	`)

	// Add retention policy: 30 days
	r.db.db.Exec(`
		SELECT add_retention_policy('demand_webhook_logs', INTERVAL '30 days', if_not_exists => TRUE)
	`)

	return nil
}

// setupForecastTables creates hypertables and policies for forecast tables
func (r *DemandRepository) setupForecastTables() error {
	fmt.Println("🔄 Setting up demand_forecasts hypertable...")
	if err := r.db.db.Exec(`
		SELECT create_hypertable('demand_forecasts', 'created_at',
			chunk_time_interval => INTERVAL '7 days',
			if_not_exists => TRUE
		)
	`).Error; err != nil {
		// Log warning but continue
		fmt.Printf("⚠️ Warning: Failed to create hypertable for demand_forecasts: %v\n", err)
	} else {
		fmt.Println("✅ demand_forecasts hypertable created successfully")
	}

	// Add retention policy: 1 year
	r.db.db.Exec(`
		SELECT add_retention_policy('demand_forecasts', INTERVAL '1 year', if_not_exists => TRUE)
	`)

	// Create indexes for demand_forecasts
	r.db.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_forecasts_product_date
		ON demand_forecasts(product_id, forecast_date DESC)
	`)
	r.db.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_forecasts_strategy
		ON demand_forecasts(strategy_used, created_at DESC)
	`)

	fmt.Println("✅ Forecast tables configured successfully")
	return nil
}

// ============================================================================
// Master Data
// ============================================================================

// GetProducts retrieves products with filters
func (r *DemandRepository) GetProducts(category string, activeOnly bool, limit int) ([]Product, error) {
	var products []Product
	query := r.db.db.Order("id ASC")

	if category != "" {
		query = query.Where("category = ?", category)
	}

	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&products).Error
	return products, err
}

// GetProductByID retrieves a single product
func (r *DemandRepository) GetProductByID(id int64) (*Product, error) {
	var product Product
	err := r.db.db.First(&product, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &product, err
}

// SaveProduct creates or updates a product
func (r *DemandRepository) SaveProduct(product *Product) error {
	return r.db.db.Save(product).Error
}

// GetLocations retrieves store locations
func (r *DemandRepository) GetLocations(activeOnly bool) ([]StoreLocation, error) {
	var locations []StoreLocation
	query := r.db.db.Order("id ASC")

	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	err := query.Find(&locations).Error
	return locations, err
}

// GetLocationByID retrieves a single store location
func (r *DemandRepository) GetLocationByID(id int64) (*StoreLocation, error) {
	var location StoreLocation
	err := r.db.db.First(&location, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &location, err
}

// SaveLocation creates or updates a store location
func (r *DemandRepository) SaveLocation(location *StoreLocation) error {
	return r.db.db.Save(location).Error
}

// ListActiveProductIDs returns the ids of all active products
func (r *DemandRepository) ListActiveProductIDs() ([]int64, error) {
	var ids []int64
	err := r.db.db.Model(&Product{}).Where("is_active = ?", true).Order("id ASC").Pluck("id", &ids).Error
	if err != nil {
		return nil, WrapDBError("ListActiveProductIDs", err)
	}
	return ids, nil
}

// MissingProductIDs returns the subset of ids with no catalog entry
func (r *DemandRepository) MissingProductIDs(ctx context.Context, ids []int64) ([]int64, error) {
	return r.missingIDs(ctx, &Product{}, ids, "MissingProductIDs")
}

// MissingLocationIDs returns the subset of ids with no store entry
func (r *DemandRepository) MissingLocationIDs(ctx context.Context, ids []int64) ([]int64, error) {
	return r.missingIDs(ctx, &StoreLocation{}, ids, "MissingLocationIDs")
}

func (r *DemandRepository) missingIDs(ctx context.Context, model interface{}, ids []int64, operation string) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var found []int64
	err := r.db.db.WithContext(ctx).Model(model).Where("id IN ?", ids).Pluck("id", &found).Error
	if err != nil {
		return nil, WrapDBError(operation, err)
	}

	known := make(map[int64]bool, len(found))
	for _, id := range found {
		known[id] = true
	}

	var missing []int64
	for _, id := range ids {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// ============================================================================
// Forecast Persistence
// ============================================================================

// SaveForecastResults persists a forecast batch. Individual insert failures
// are enumerated by index so the orchestrator can attribute them to their
// (product, location) pairs; an error is returned only when nothing was
// persisted at all.
func (r *DemandRepository) SaveForecastResults(ctx context.Context, results []forecast.Result) ([]forecast.FailedSave, error) {
	if len(results) == 0 {
		return nil, nil
	}

	now := time.Now()
	var failed []forecast.FailedSave
	saved := 0

	for i := range results {
		record := recordFromResult(&results[i], now)
		if err := r.db.db.WithContext(ctx).Create(record).Error; err != nil {
			failed = append(failed, forecast.FailedSave{Index: i, Reason: err.Error()})
			continue
		}
		saved++
	}

	if saved == 0 {
		return nil, WrapDBError("SaveForecastResults", fmt.Errorf("no records persisted: %s", failed[0].Reason))
	}
	return failed, nil
}

// FetchResultsInWindow reads back persisted forecasts for accuracy
// evaluation. When several forecasts exist for the same target date (made
// at different horizons) only the most recently created one per (location,
// date) counts, otherwise stale predictions would inflate the totals.
func (r *DemandRepository) FetchResultsInWindow(ctx context.Context, productID int64, locationID *int64, from, to time.Time) ([]forecast.Result, error) {
	query := `
		SELECT DISTINCT ON (location_id, forecast_date)
			product_id, location_id, forecast_date, period, horizon_days,
			predicted_demand, confidence_lower, confidence_upper, accuracy, strategy_used
		FROM demand_forecasts
		WHERE product_id = ? AND forecast_date >= ? AND forecast_date <= ?
	`
	args := []interface{}{productID, from, to}

	if locationID != nil {
		query += " AND location_id = ?"
		args = append(args, *locationID)
	}
	query += " ORDER BY location_id, forecast_date, created_at DESC"

	var records []ForecastRecord
	if err := r.db.db.WithContext(ctx).Raw(query, args...).Scan(&records).Error; err != nil {
		return nil, WrapDBError("FetchResultsInWindow", err)
	}

	results := make([]forecast.Result, len(records))
	for i := range records {
		results[i] = resultFromRecord(&records[i])
	}
	return results, nil
}

// GetLatestForecasts retrieves recently persisted forecasts with filters
func (r *DemandRepository) GetLatestForecasts(productID int64, locationID *int64, strategy string, limit int) ([]ForecastRecord, error) {
	var records []ForecastRecord
	query := r.db.db.Order("created_at DESC, forecast_date ASC")

	if productID > 0 {
		query = query.Where("product_id = ?", productID)
	}
	if locationID != nil {
		query = query.Where("location_id = ?", *locationID)
	}
	if strategy != "" {
		query = query.Where("strategy_used = ?", strategy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&records).Error
	return records, err
}

// UpdateForecastAccuracy backfills the accuracy column on a product's
// recently created forecasts
func (r *DemandRepository) UpdateForecastAccuracy(productID int64, accuracy float64, windowDays int) error {
	if windowDays <= 0 {
		windowDays = AccuracyWindowDays
	}
	since := time.Now().AddDate(0, 0, -windowDays)

	err := r.db.db.Model(&ForecastRecord{}).
		Where("product_id = ? AND created_at >= ?", productID, since).
		Update("accuracy", accuracy).Error
	if err != nil {
		return WrapDBError("UpdateForecastAccuracy", err)
	}
	return nil
}

func recordFromResult(result *forecast.Result, createdAt time.Time) *ForecastRecord {
	return &ForecastRecord{
		CreatedAt:       createdAt,
		ProductID:       result.ProductID,
		LocationID:      result.LocationID,
		ForecastDate:    result.ForecastDate,
		Period:          result.Period,
		HorizonDays:     result.HorizonDays,
		PredictedDemand: result.PredictedDemand,
		ConfidenceLower: result.ConfidenceLower,
		ConfidenceUpper: result.ConfidenceUpper,
		Accuracy:        result.Accuracy,
		StrategyUsed:    result.StrategyUsed,
	}
}

func resultFromRecord(record *ForecastRecord) forecast.Result {
	return forecast.Result{
		ProductID:       record.ProductID,
		LocationID:      record.LocationID,
		ForecastDate:    record.ForecastDate,
		Period:          record.Period,
		HorizonDays:     record.HorizonDays,
		PredictedDemand: record.PredictedDemand,
		ConfidenceLower: record.ConfidenceLower,
		ConfidenceUpper: record.ConfidenceUpper,
		Accuracy:        record.Accuracy,
		StrategyUsed:    record.StrategyUsed,
	}
}

// ============================================================================
// Demand Alerts
// ============================================================================

// SaveDemandAlert saves a demand alert using GORM
func (r *DemandRepository) SaveDemandAlert(alert *DemandAlert) error {
	return r.db.db.Create(alert).Error
}

// GetRecentAlerts retrieves demand alerts with filters
func (r *DemandRepository) GetRecentAlerts(alertType string, productID int64, minRatio float64, startTime time.Time, limit int) ([]DemandAlert, error) {
	var alerts []DemandAlert
	query := r.db.db.Order("detected_at DESC")

	if alertType != "" {
		query = query.Where("alert_type = ?", alertType)
	}
	if productID > 0 {
		query = query.Where("product_id = ?", productID)
	}
	if minRatio > 0 {
		query = query.Where("deviation_ratio >= ?", minRatio)
	}
	if !startTime.IsZero() {
		query = query.Where("detected_at >= ?", startTime)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&alerts).Error
	return alerts, err
}

// AcknowledgeAlert marks an alert as acknowledged
func (r *DemandRepository) AcknowledgeAlert(id int64) error {
	result := r.db.db.Model(&DemandAlert{}).Where("id = ?", id).Update("acknowledged", true)
	if result.Error != nil {
		return WrapDBError("AcknowledgeAlert", result.Error)
	}
	if result.RowsAffected == 0 {
		return NewNotFoundErrorWithID("demand alert", id)
	}
	return nil
}

// ============================================================================
// Webhook Management
// ============================================================================

// GetWebhooks retrieves all webhooks (active and inactive)
func (r *DemandRepository) GetWebhooks() ([]DemandWebhook, error) {
	var webhooks []DemandWebhook
	err := r.db.db.Order("id ASC").Find(&webhooks).Error
	return webhooks, err
}

// GetActiveWebhooks retrieves all active webhooks
func (r *DemandRepository) GetActiveWebhooks() ([]DemandWebhook, error) {
	var webhooks []DemandWebhook
	err := r.db.db.Where("is_active = ?", true).Find(&webhooks).Error
	return webhooks, err
}

// GetWebhookByID retrieves a specific webhook
func (r *DemandRepository) GetWebhookByID(id int) (*DemandWebhook, error) {
	var webhook DemandWebhook
	err := r.db.db.First(&webhook, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &webhook, err
}

// SaveWebhook creates or updates a webhook
func (r *DemandRepository) SaveWebhook(webhook *DemandWebhook) error {
	return r.db.db.Save(webhook).Error
}

// DeleteWebhook deletes a webhook
func (r *DemandRepository) DeleteWebhook(id int) error {
	return r.db.db.Delete(&DemandWebhook{}, id).Error
}

// SaveWebhookLog saves a new webhook delivery log
func (r *DemandRepository) SaveWebhookLog(log *DemandWebhookLog) error {
	return r.db.db.Create(log).Error
}

// GetWebhookLogs retrieves recent delivery logs for a webhook
func (r *DemandRepository) GetWebhookLogs(webhookID int, limit int) ([]DemandWebhookLog, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var logs []DemandWebhookLog
	err := r.db.db.Where("webhook_id = ?", webhookID).
		Order("triggered_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
