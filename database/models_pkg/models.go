package models

import "time"

// Product is a sellable item in the merchandise catalog. Forecast requests
// reference products by id; unknown ids reject the whole request.
type Product struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SKU       string    `gorm:"size:40;uniqueIndex;not null" json:"sku"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Category  string    `gorm:"size:100;index" json:"category"`
	UnitPrice float64   `gorm:"type:decimal(15,2);not null" json:"unit_price"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for Product
func (Product) TableName() string {
	return "products"
}

// StoreLocation is one physical or online store in the network
type StoreLocation struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code      string    `gorm:"size:20;uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	City      string    `gorm:"size:100;index" json:"city"`
	Region    string    `gorm:"size:100" json:"region"`
	Timezone  string    `gorm:"size:40;default:'Asia/Jakarta'" json:"timezone"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for StoreLocation
func (StoreLocation) TableName() string {
	return "store_locations"
}

// SalesTransaction represents a single point-of-sale line item from the POS
// feed. Each row captures one product sold at one store with price and
// discount context. Transactions are stored in a hypertable for efficient
// time-series queries.
//
// Key Fields:
//   - SoldAt: When the sale occurred (indexed for time-based queries)
//   - ProductID/LocationID: What was sold and where (both indexed)
//   - Quantity: Units sold in this line item
//   - UnitPrice: Effective unit price after discount
//   - Discount: Discount depth as a fraction of list price (0.0 to 1.0)
//   - TotalAmount: Line total (unit price x quantity)
//   - ReceiptNumber: Per-store receipt identifier from the POS (resets daily)
//
// TimescaleDB Optimization:
//   - Stored in a hypertable partitioned by sold_at
//   - Indexed on sold_at, product_id and location_id for fast aggregation
//   - Rolled up into the daily_sales continuous aggregate
type SalesTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SoldAt        time.Time `gorm:"primaryKey;index;not null" json:"sold_at"`
	ProductID     int64     `gorm:"index;not null" json:"product_id"`
	LocationID    int64     `gorm:"index;not null" json:"location_id"`
	Quantity      float64   `gorm:"type:decimal(15,2);not null" json:"quantity"`
	UnitPrice     float64   `gorm:"type:decimal(15,2);not null" json:"unit_price"`
	Discount      float64   `gorm:"type:decimal(6,4);default:0" json:"discount"`
	TotalAmount   float64   `gorm:"type:decimal(20,2);not null" json:"total_amount"`
	Channel       string    `gorm:"size:10;index" json:"channel"` // POS, WEB, APP
	ReceiptNumber *int64    `gorm:"index" json:"receipt_number,omitempty"`
}

// TableName specifies the table name for SalesTransaction
func (SalesTransaction) TableName() string {
	return "sales_transactions"
}

// DailySale represents one calendar day of sales for a (product, location)
// pair, pre-computed from sales_transactions.
//
// Key Fields:
//   - ProductID/LocationID/Bucket: Composite primary key
//   - Quantity: Units sold that day
//   - AvgUnitPrice/AvgDiscount: Quantity-weighted daily averages
//   - TxCount: Number of contributing line items
//
// TimescaleDB Optimization:
//   - Stored as a continuous aggregate view on sales_transactions
//   - Automatically refreshed hourly
//   - Composite primary key for hypertable compatibility
//   - The forecast engine reads its history from this view
type DailySale struct {
	ProductID    int64     `gorm:"not null;primaryKey" json:"product_id"`
	LocationID   int64     `gorm:"not null;primaryKey" json:"location_id"`
	Bucket       time.Time `gorm:"not null;primaryKey" json:"date"`
	Quantity     float64   `gorm:"type:decimal(15,2)" json:"quantity"`
	AvgUnitPrice float64   `gorm:"type:decimal(15,2)" json:"avg_unit_price"`
	AvgDiscount  float64   `gorm:"type:decimal(6,4)" json:"avg_discount"`
	TotalAmount  float64   `gorm:"type:decimal(20,2)" json:"total_amount"`
	TxCount      int64     `json:"tx_count"`
}

// TableName specifies the table name for DailySale
func (DailySale) TableName() string {
	return "daily_sales"
}

// ForecastRecord is a persisted demand forecast produced by one strategy run.
//
// Key Fields:
//   - CreatedAt: When the forecast was produced (indexed)
//   - ProductID/LocationID: Forecast subject; nil location means all stores
//   - ForecastDate: The calendar day being predicted
//   - PredictedDemand: Point estimate, always >= ConfidenceLower
//   - ConfidenceLower/Upper: The confidence band around the point estimate
//   - StrategyUsed: Which strategy actually produced the number after fallback
//   - Accuracy: Backfilled later by the accuracy tracker
type ForecastRecord struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt       time.Time `gorm:"primaryKey;index;not null" json:"created_at"`
	ProductID       int64     `gorm:"index;index:idx_forecast_product_date,priority:1;not null" json:"product_id"`
	LocationID      *int64    `gorm:"index" json:"location_id,omitempty"`
	ForecastDate    time.Time `gorm:"index:idx_forecast_product_date,priority:2;not null" json:"forecast_date"`
	Period          string    `gorm:"size:10;not null" json:"period"`
	HorizonDays     int       `gorm:"not null" json:"horizon_days"`
	PredictedDemand int       `gorm:"not null" json:"predicted_demand"`
	ConfidenceLower int       `gorm:"not null" json:"confidence_lower"`
	ConfidenceUpper int       `gorm:"not null" json:"confidence_upper"`
	Accuracy        *float64  `gorm:"type:decimal(5,4)" json:"accuracy,omitempty"`
	StrategyUsed    string    `gorm:"type:text;index;not null" json:"strategy_used"`
}

// TableName specifies the table name for ForecastRecord
func (ForecastRecord) TableName() string {
	return "demand_forecasts"
}

// DemandAlert records an unusual demand condition worth a merchandiser's
// attention: a sales spike or drop against the expected level, or a product
// whose forecasts have gone stale.
type DemandAlert struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DetectedAt     time.Time `gorm:"primaryKey;index;not null" json:"detected_at"`
	ProductID      int64     `gorm:"index;not null" json:"product_id"`
	LocationID     *int64    `gorm:"index" json:"location_id,omitempty"`
	AlertType      string    `gorm:"type:text;not null" json:"alert_type"` // DEMAND_SPIKE, DEMAND_DROP, LOW_ACCURACY
	ObservedValue  float64   `gorm:"type:decimal(15,2)" json:"observed_value"`
	ExpectedValue  float64   `gorm:"type:decimal(15,2)" json:"expected_value"`
	DeviationRatio float64   `gorm:"type:decimal(10,4)" json:"deviation_ratio"`
	Message        string    `gorm:"type:text" json:"message"`
	Acknowledged   bool      `gorm:"default:false" json:"acknowledged"`
}

// TableName specifies the table name for DemandAlert
func (DemandAlert) TableName() string {
	return "demand_alerts"
}

// DemandWebhook holds webhook registration
type DemandWebhook struct {
	ID                int        `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string     `gorm:"size:100;not null" json:"name"`
	URL               string     `gorm:"not null" json:"url"`
	Method            string     `gorm:"size:10;default:POST" json:"method"`
	AuthType          string     `gorm:"size:20" json:"auth_type"`
	AuthHeader        string     `gorm:"size:100" json:"auth_header"`
	AuthValue         string     `json:"auth_value"`
	AlertTypes        string     `json:"alert_types"` // Stored as JSON array
	ProductIDs        string     `json:"product_ids"` // Stored as JSON array
	MinDeviation      *float64   `gorm:"type:decimal(10,4)" json:"min_deviation,omitempty"`
	IsActive          bool       `gorm:"default:true" json:"is_active"`
	RetryCount        int        `gorm:"default:3" json:"retry_count"`
	RetryDelaySeconds int        `gorm:"default:5" json:"retry_delay_seconds"`
	TimeoutSeconds    int        `gorm:"default:10" json:"timeout_seconds"`
	CustomHeaders     string     `json:"custom_headers"` // Stored as JSON
	LastTriggeredAt   *time.Time `json:"last_triggered_at,omitempty"`
	LastSuccessAt     *time.Time `json:"last_success_at,omitempty"`
	LastError         string     `json:"last_error,omitempty"`
	TotalSent         int        `gorm:"default:0" json:"total_sent"`
	TotalFailed       int        `gorm:"default:0" json:"total_failed"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for DemandWebhook
func (DemandWebhook) TableName() string {
	return "demand_webhooks"
}

// DemandWebhookLog holds webhook delivery logs
type DemandWebhookLog struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WebhookID      int       `gorm:"index;not null" json:"webhook_id"`
	DemandAlertID  *int64    `json:"demand_alert_id,omitempty"`
	TriggeredAt    time.Time `gorm:"primaryKey;index;not null" json:"triggered_at"`
	Status         string    `gorm:"type:text" json:"status"` // SUCCESS, FAILED, TIMEOUT
	HTTPStatusCode *int      `json:"http_status_code,omitempty"`
	ResponseBody   string    `json:"response_body,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	RetryAttempt   int       `gorm:"default:0" json:"retry_attempt"`
}

// TableName specifies the table name for DemandWebhookLog
func (DemandWebhookLog) TableName() string {
	return "demand_webhook_logs"
}
