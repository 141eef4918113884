package sales

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	models "retail-demand-engine/database/models_pkg"
	"retail-demand-engine/database/types"
	"retail-demand-engine/forecast"
)

// Repository handles database operations for sales line items. It works on
// the raw connection pool rather than GORM because the hot paths here are
// bulk COPY ingest and aggregate reads over the daily_sales view.
type Repository struct {
	conn *sql.DB
}

// NewRepository creates a new sales repository
func NewRepository(conn *sql.DB) *Repository {
	return &Repository{conn: conn}
}

// FetchDailySales returns one row per calendar day for a product, summed
// across stores when locationID is nil. Days with no sales are absent.
// Unit price and discount are quantity-weighted across the merged rows.
func (r *Repository) FetchDailySales(ctx context.Context, productID int64, locationID *int64, from, to time.Time) ([]forecast.Observation, error) {
	query := `
		SELECT
			bucket,
			SUM(quantity) AS quantity,
			COALESCE(SUM(avg_unit_price * quantity) / NULLIF(SUM(quantity), 0), 0) AS unit_price,
			COALESCE(SUM(avg_discount * quantity) / NULLIF(SUM(quantity), 0), 0) AS discount
		FROM daily_sales
		WHERE product_id = $1 AND bucket >= $2 AND bucket <= $3
	`
	args := []interface{}{productID, from, to}

	if locationID != nil {
		query += " AND location_id = $4"
		args = append(args, *locationID)
	}
	query += " GROUP BY bucket ORDER BY bucket ASC"

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("FetchDailySales: %w", err)
	}
	defer rows.Close()

	var observations []forecast.Observation
	for rows.Next() {
		var obs forecast.Observation
		if err := rows.Scan(&obs.Date, &obs.Quantity, &obs.UnitPrice, &obs.Discount); err != nil {
			return nil, fmt.Errorf("FetchDailySales scan: %w", err)
		}
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FetchDailySales rows: %w", err)
	}

	return observations, nil
}

// BatchInsertSales bulk-loads line items via COPY. COPY aborts the whole
// batch on a duplicate receipt line, so on failure it falls back to
// row-by-row inserts that skip duplicates. Returns the number of rows
// actually inserted.
func (r *Repository) BatchInsertSales(ctx context.Context, items []*models.SalesTransaction) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	if err := r.copyInsert(ctx, items); err != nil {
		if !isDuplicateKeyError(err) {
			return 0, fmt.Errorf("BatchInsertSales: %w", err)
		}
		return r.insertSkippingDuplicates(ctx, items)
	}
	return len(items), nil
}

func (r *Repository) copyInsert(ctx context.Context, items []*models.SalesTransaction) error {
	txn, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := txn.Prepare(pq.CopyIn("sales_transactions",
		"sold_at", "product_id", "location_id", "quantity", "unit_price",
		"discount", "total_amount", "channel", "receipt_number"))
	if err != nil {
		txn.Rollback()
		return err
	}

	for _, item := range items {
		if _, err := stmt.Exec(item.SoldAt, item.ProductID, item.LocationID,
			item.Quantity, item.UnitPrice, item.Discount, item.TotalAmount,
			item.Channel, item.ReceiptNumber); err != nil {
			stmt.Close()
			txn.Rollback()
			return err
		}
	}

	// Final Exec flushes the COPY buffer
	if _, err := stmt.Exec(); err != nil {
		stmt.Close()
		txn.Rollback()
		return err
	}
	if err := stmt.Close(); err != nil {
		txn.Rollback()
		return err
	}
	return txn.Commit()
}

func (r *Repository) insertSkippingDuplicates(ctx context.Context, items []*models.SalesTransaction) (int, error) {
	query := `
		INSERT INTO sales_transactions
			(sold_at, product_id, location_id, quantity, unit_price, discount, total_amount, channel, receipt_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	inserted := 0
	for _, item := range items {
		_, err := r.conn.ExecContext(ctx, query, item.SoldAt, item.ProductID,
			item.LocationID, item.Quantity, item.UnitPrice, item.Discount,
			item.TotalAmount, item.Channel, item.ReceiptNumber)
		if err != nil {
			if isDuplicateKeyError(err) {
				// Same receipt line delivered twice, ignore
				continue
			}
			return inserted, fmt.Errorf("insertSkippingDuplicates: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint") ||
		strings.Contains(err.Error(), "idx_sales_unique_receipt_line")
}

// GetDemandStats calculates daily demand statistics from recent history.
// Uses the daily_sales view for efficient aggregation.
func (r *Repository) GetDemandStats(ctx context.Context, productID, locationID int64, lookbackDays int) (*types.DemandStats, error) {
	var stats types.DemandStats

	query := `
		SELECT
			COALESCE(AVG(quantity), 0) AS mean_quantity,
			COALESCE(STDDEV(quantity), 0) AS std_dev_quantity,
			COALESCE(AVG(total_amount), 0) AS mean_revenue,
			COALESCE(MAX(quantity), 0) AS max_quantity,
			COUNT(*) AS sample_count
		FROM daily_sales
		WHERE product_id = $1 AND location_id = $2
		AND bucket >= NOW() - INTERVAL '1 day' * $3
	`

	err := r.conn.QueryRowContext(ctx, query, productID, locationID, lookbackDays).Scan(
		&stats.MeanQuantity, &stats.StdDevQuantity, &stats.MeanRevenue,
		&stats.MaxQuantity, &stats.SampleCount)
	if err != nil {
		return nil, fmt.Errorf("GetDemandStats: %w", err)
	}

	return &stats, nil
}

// GetTodayQuantity returns the running quantity total for the current day,
// across every store when locationID is zero. Reads the raw hypertable
// because the continuous aggregate lags behind.
func (r *Repository) GetTodayQuantity(ctx context.Context, productID, locationID int64) (float64, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM sales_transactions
		WHERE product_id = $1
		AND sold_at >= DATE_TRUNC('day', NOW())
	`

	args := []interface{}{productID}
	if locationID > 0 {
		query += " AND location_id = $2"
		args = append(args, locationID)
	}

	var total float64
	err := r.conn.QueryRowContext(ctx, query, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("GetTodayQuantity: %w", err)
	}
	return total, nil
}

// FindDemandDrops flags products whose most recent full day sold below
// mean/dropRatio, scanned set-based in the database. The baseline window
// excludes yesterday so the drop does not drag down its own reference.
// Products with no row at all yesterday count as zero, since total silence
// is the strongest drop signal.
func (r *Repository) FindDemandDrops(ctx context.Context, dropRatio float64, minSamples, lookbackDays int, minMeanQty float64) ([]types.DemandDropRow, error) {
	query := `
		WITH baseline AS (
			SELECT product_id,
				AVG(day_qty) AS mean_qty,
				COUNT(*) AS sample_count
			FROM (
				SELECT product_id, bucket, SUM(quantity) AS day_qty
				FROM daily_sales
				WHERE bucket >= NOW() - INTERVAL '1 day' * $1
				AND bucket < DATE_TRUNC('day', NOW()) - INTERVAL '1 day'
				GROUP BY product_id, bucket
			) daily
			GROUP BY product_id
		),
		yesterday AS (
			SELECT product_id, SUM(quantity) AS day_qty
			FROM daily_sales
			WHERE bucket = DATE_TRUNC('day', NOW()) - INTERVAL '1 day'
			GROUP BY product_id
		)
		SELECT b.product_id,
			COALESCE(y.day_qty, 0) AS yesterday_qty,
			b.mean_qty,
			b.sample_count
		FROM baseline b
		LEFT JOIN yesterday y ON y.product_id = b.product_id
		WHERE b.sample_count >= $2
		AND b.mean_qty >= $3
		AND COALESCE(y.day_qty, 0) * $4 < b.mean_qty
		ORDER BY COALESCE(y.day_qty, 0) / b.mean_qty ASC
	`

	rows, err := r.conn.QueryContext(ctx, query, lookbackDays, minSamples, minMeanQty, dropRatio)
	if err != nil {
		return nil, fmt.Errorf("FindDemandDrops: %w", err)
	}
	defer rows.Close()

	var drops []types.DemandDropRow
	for rows.Next() {
		var d types.DemandDropRow
		if err := rows.Scan(&d.ProductID, &d.YesterdayQty, &d.MeanQty, &d.SampleCount); err != nil {
			return nil, fmt.Errorf("FindDemandDrops scan: %w", err)
		}
		drops = append(drops, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindDemandDrops rows: %w", err)
	}

	return drops, nil
}
