package database

import (
	"time"

	"retail-demand-engine/database/types"
)

// Dashboard Query Methods

// GetTopProducts returns top N products by quantity sold over a lookback window
func (r *DemandRepository) GetTopProducts(lookbackDays int, category string, limit int) ([]types.ProductDemandSummary, error) {
	var results []types.ProductDemandSummary

	query := `
		SELECT
			p.id as product_id,
			p.sku,
			p.name,
			p.category,
			COALESCE(SUM(d.quantity), 0) as total_quantity,
			COALESCE(SUM(d.total_amount), 0) as total_revenue,
			COALESCE(SUM(d.tx_count), 0) as tx_count,
			COUNT(DISTINCT d.bucket) as active_days,
			MAX(d.bucket) as last_sold_at
		FROM products p
		JOIN daily_sales d ON d.product_id = p.id
		WHERE d.bucket >= NOW() - INTERVAL '1 day' * ?
		AND p.is_active = TRUE
	`

	args := []interface{}{lookbackDays}
	if category != "" {
		query += " AND p.category = ?"
		args = append(args, category)
	}

	query += `
		GROUP BY p.id, p.sku, p.name, p.category
		HAVING COALESCE(SUM(d.quantity), 0) > 0
		ORDER BY total_quantity DESC
		LIMIT ?
	`
	args = append(args, limit)

	err := r.db.db.Raw(query, args...).Scan(&results).Error
	if err != nil {
		return nil, err
	}

	// Average over calendar days, not active days, so slow movers rank honestly
	for i := range results {
		if lookbackDays > 0 {
			results[i].AvgDailyQty = results[i].TotalQuantity / float64(lookbackDays)
		}
	}

	return results, nil
}

// GetDailyTrend returns per-day demand for a product, merged across stores
// unless a location filter is given
func (r *DemandRepository) GetDailyTrend(productID int64, locationID *int64, lookbackDays int) ([]types.DailyTrendPoint, error) {
	var points []types.DailyTrendPoint

	query := `
		SELECT
			bucket,
			SUM(quantity) as quantity,
			SUM(total_amount) as total_amount,
			SUM(tx_count) as tx_count,
			COALESCE(SUM(avg_unit_price * quantity) / NULLIF(SUM(quantity), 0), 0) as avg_unit_price,
			COALESCE(SUM(avg_discount * quantity) / NULLIF(SUM(quantity), 0), 0) as avg_discount
		FROM daily_sales
		WHERE product_id = ?
		AND bucket >= NOW() - INTERVAL '1 day' * ?
	`

	args := []interface{}{productID, lookbackDays}
	if locationID != nil {
		query += " AND location_id = ?"
		args = append(args, *locationID)
	}

	query += " GROUP BY bucket ORDER BY bucket ASC"

	err := r.db.db.Raw(query, args...).Scan(&points).Error
	return points, err
}

// GetLocationBreakdown returns per-store demand share for a product
func (r *DemandRepository) GetLocationBreakdown(productID int64, lookbackDays int) ([]types.LocationBreakdown, error) {
	var results []types.LocationBreakdown

	query := `
		SELECT
			l.id as location_id,
			l.code,
			l.name,
			l.city,
			COALESCE(SUM(d.quantity), 0) as total_quantity,
			COALESCE(SUM(d.total_amount), 0) as total_revenue
		FROM store_locations l
		JOIN daily_sales d ON d.location_id = l.id
		WHERE d.product_id = ?
		AND d.bucket >= NOW() - INTERVAL '1 day' * ?
		GROUP BY l.id, l.code, l.name, l.city
		ORDER BY total_quantity DESC
	`

	err := r.db.db.Raw(query, productID, lookbackDays).Scan(&results).Error
	if err != nil {
		return nil, err
	}

	var grandTotal float64
	for _, result := range results {
		grandTotal += result.TotalQuantity
	}
	for i := range results {
		if grandTotal > 0 {
			results[i].SharePct = (results[i].TotalQuantity / grandTotal) * 100
		}
	}

	return results, nil
}

// GetChannelSplit returns demand distribution across sales channels.
// Reads the raw hypertable because channel is not carried into daily_sales.
func (r *DemandRepository) GetChannelSplit(productID int64, lookbackDays int) ([]types.ChannelSplit, error) {
	var results []types.ChannelSplit

	query := `
		SELECT
			COALESCE(channel, 'UNKNOWN') as channel,
			COALESCE(SUM(quantity), 0) as total_quantity,
			COALESCE(SUM(total_amount), 0) as total_revenue,
			COUNT(*) as tx_count
		FROM sales_transactions
		WHERE sold_at >= NOW() - INTERVAL '1 day' * ?
	`

	args := []interface{}{lookbackDays}
	if productID > 0 {
		query += " AND product_id = ?"
		args = append(args, productID)
	}

	query += " GROUP BY channel ORDER BY total_quantity DESC"

	err := r.db.db.Raw(query, args...).Scan(&results).Error
	if err != nil {
		return nil, err
	}

	var grandTotal float64
	for _, result := range results {
		grandTotal += result.TotalQuantity
	}
	for i := range results {
		if grandTotal > 0 {
			results[i].SharePct = (results[i].TotalQuantity / grandTotal) * 100
		}
	}

	return results, nil
}

// GetStrategyAccuracy aggregates forecast accuracy per strategy over a window
func (r *DemandRepository) GetStrategyAccuracy(lookbackDays int) ([]types.StrategyAccuracy, error) {
	var results []types.StrategyAccuracy

	query := `
		SELECT
			strategy_used,
			COUNT(*) as forecast_count,
			COUNT(accuracy) as scored_count,
			COALESCE(AVG(accuracy), 0) as avg_accuracy,
			COALESCE(MIN(accuracy), 0) as min_accuracy,
			COALESCE(MAX(accuracy), 0) as max_accuracy
		FROM demand_forecasts
		WHERE created_at >= NOW() - INTERVAL '1 day' * ?
		GROUP BY strategy_used
		ORDER BY forecast_count DESC
	`

	err := r.db.db.Raw(query, lookbackDays).Scan(&results).Error
	return results, err
}

// GetDemandOutlook pairs each product's recent daily average with its most
// recently created forecast so the dashboard can show expected movement
func (r *DemandRepository) GetDemandOutlook(lookbackDays int, limit int) ([]types.DemandOutlook, error) {
	var results []types.DemandOutlook

	query := `
		WITH recent_actuals AS (
			SELECT
				product_id,
				SUM(quantity) / ? as recent_daily_qty
			FROM daily_sales
			WHERE bucket >= NOW() - INTERVAL '1 day' * ?
			GROUP BY product_id
		),
		latest_forecasts AS (
			SELECT DISTINCT ON (product_id)
				product_id,
				predicted_demand,
				confidence_lower,
				confidence_upper,
				strategy_used
			FROM demand_forecasts
			ORDER BY product_id, created_at DESC
		)
		SELECT
			p.id as product_id,
			p.sku,
			p.name,
			COALESCE(a.recent_daily_qty, 0) as recent_daily_qty,
			f.predicted_demand,
			f.confidence_lower,
			f.confidence_upper,
			f.strategy_used
		FROM products p
		JOIN latest_forecasts f ON f.product_id = p.id
		LEFT JOIN recent_actuals a ON a.product_id = p.id
		WHERE p.is_active = TRUE
		ORDER BY f.predicted_demand DESC
		LIMIT ?
	`

	err := r.db.db.Raw(query, lookbackDays, lookbackDays, limit).Scan(&results).Error
	if err != nil {
		return nil, err
	}

	for i := range results {
		if results[i].RecentDailyQty > 0 {
			results[i].ChangePct = ((float64(results[i].PredictedDemand) - results[i].RecentDailyQty) / results[i].RecentDailyQty) * 100
		}
	}

	return results, nil
}

// GetForecastHistory returns recent forecasts for a product and target date
// range, newest batch first
func (r *DemandRepository) GetForecastHistory(productID int64, startDate, endDate time.Time, limit int) ([]ForecastRecord, error) {
	var records []ForecastRecord
	query := r.db.db.Where("product_id = ?", productID).Order("created_at DESC")

	if !startDate.IsZero() {
		query = query.Where("forecast_date >= ?", startDate)
	}
	if !endDate.IsZero() {
		query = query.Where("forecast_date <= ?", endDate)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&records).Error
	return records, err
}
