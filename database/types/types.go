package types

import "time"

// DemandStats holds aggregated daily demand statistics for a product
type DemandStats struct {
	MeanQuantity   float64 `json:"mean_quantity"`
	StdDevQuantity float64 `json:"std_dev_quantity"`
	MeanRevenue    float64 `json:"mean_revenue"`
	MaxQuantity    float64 `json:"max_quantity"`
	SampleCount    int64   `json:"sample_count"`
}

// ProductDemandSummary represents aggregated sales per product over a window
type ProductDemandSummary struct {
	ProductID     int64      `json:"product_id"`
	SKU           string     `json:"sku"`
	Name          string     `json:"name"`
	Category      string     `json:"category"`
	TotalQuantity float64    `json:"total_quantity"`
	TotalRevenue  float64    `json:"total_revenue"`
	TxCount       int64      `json:"tx_count"`
	AvgDailyQty   float64    `json:"avg_daily_qty"`
	ActiveDays    int64      `json:"active_days"`
	LastSoldAt    *time.Time `json:"last_sold_at"`
}

// DailyTrendPoint represents one day of aggregated demand for charting
type DailyTrendPoint struct {
	Bucket       time.Time `json:"bucket"`
	Quantity     float64   `json:"quantity"`
	TotalAmount  float64   `json:"total_amount"`
	TxCount      int64     `json:"tx_count"`
	AvgUnitPrice float64   `json:"avg_unit_price"`
	AvgDiscount  float64   `json:"avg_discount"`
}

// LocationBreakdown represents per-store demand share for a product
type LocationBreakdown struct {
	LocationID    int64   `json:"location_id"`
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	City          string  `json:"city"`
	TotalQuantity float64 `json:"total_quantity"`
	TotalRevenue  float64 `json:"total_revenue"`
	SharePct      float64 `json:"share_pct"`
}

// ChannelSplit represents demand distribution across sales channels
type ChannelSplit struct {
	Channel       string  `json:"channel"`
	TotalQuantity float64 `json:"total_quantity"`
	TotalRevenue  float64 `json:"total_revenue"`
	TxCount       int64   `json:"tx_count"`
	SharePct      float64 `json:"share_pct"`
}

// StrategyAccuracy holds aggregated forecast accuracy per strategy
type StrategyAccuracy struct {
	StrategyUsed  string  `json:"strategy_used"`
	ForecastCount int64   `json:"forecast_count"`
	ScoredCount   int64   `json:"scored_count"`
	AvgAccuracy   float64 `json:"avg_accuracy"`
	MinAccuracy   float64 `json:"min_accuracy"`
	MaxAccuracy   float64 `json:"max_accuracy"`
}

// DemandDropRow flags a product whose latest full day sold far below its
// running mean
type DemandDropRow struct {
	ProductID    int64   `json:"product_id"`
	YesterdayQty float64 `json:"yesterday_qty"`
	MeanQty      float64 `json:"mean_qty"`
	SampleCount  int64   `json:"sample_count"`
}

// DemandOutlook pairs recent actuals with the latest forecast for a product
type DemandOutlook struct {
	ProductID       int64   `json:"product_id"`
	SKU             string  `json:"sku"`
	Name            string  `json:"name"`
	RecentDailyQty  float64 `json:"recent_daily_qty"`
	PredictedDemand int     `json:"predicted_demand"`
	ConfidenceLower int     `json:"confidence_lower"`
	ConfidenceUpper int     `json:"confidence_upper"`
	StrategyUsed    string  `json:"strategy_used"`
	ChangePct       float64 `json:"change_pct"`
}
