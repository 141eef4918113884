package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"retail-demand-engine/database/types"
)

// Dashboard API Handlers

const topProductsCacheDuration = 60 * time.Second

// handleDashboardTopProducts returns best sellers ranked by quantity sold
func (s *Server) handleDashboardTopProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	category := query.Get("category")

	lookbackDays := getIntParam(r, "days", 30, nil, nil)

	limitStr := query.Get("limit")
	limit := 20 // default
	if limitStr != "" {
		if val, err := strconv.Atoi(limitStr); err == nil && val > 0 {
			if val > 100 {
				val = 100 // Cap at 100
			}
			limit = val
		}
	}

	// The ranking scans a month of aggregate rows, so cache it briefly
	cacheKey := fmt.Sprintf("api:top_products:%d:%s:%d", lookbackDays, category, limit)

	var products []types.ProductDemandSummary
	if s.redis != nil {
		if err := s.redis.Get(context.Background(), cacheKey, &products); err == nil {
			s.writeTopProducts(w, products, lookbackDays, limit)
			return
		}
	}

	products, err := s.repo.GetTopProducts(lookbackDays, category, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if s.redis != nil {
		_ = s.redis.Set(context.Background(), cacheKey, products, topProductsCacheDuration)
	}

	s.writeTopProducts(w, products, lookbackDays, limit)
}

func (s *Server) writeTopProducts(w http.ResponseWriter, products []types.ProductDemandSummary, lookbackDays, limit int) {
	response := map[string]interface{}{
		"data":          products,
		"count":         len(products),
		"lookback_days": lookbackDays,
		"limit":         limit,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleDashboardOutlook returns recent demand vs predicted demand per product
func (s *Server) handleDashboardOutlook(w http.ResponseWriter, r *http.Request) {
	lookbackDays := getIntParam(r, "days", 30, nil, nil)

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 100 {
				limit = 100
			}
		}
	}

	outlook, err := s.repo.GetDemandOutlook(lookbackDays, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data":          outlook,
		"count":         len(outlook),
		"lookback_days": lookbackDays,
		"store_status":  getStoreStatus(time.Now()),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleDashboardTrend returns the daily sales trend for a product
func (s *Server) handleDashboardTrend(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.PathValue("productID"), 10, 64)
	if err != nil || productID <= 0 {
		http.Error(w, "Invalid product ID", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()

	var locationID *int64
	if l := query.Get("location_id"); l != "" {
		if val, err := strconv.ParseInt(l, 10, 64); err == nil && val > 0 {
			locationID = &val
		}
	}

	lookbackDays := getIntParam(r, "days", 30, nil, nil)
	if lookbackDays > 365 {
		lookbackDays = 365
	}

	trend, err := s.repo.GetDailyTrend(productID, locationID, lookbackDays)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data":          trend,
		"count":         len(trend),
		"product_id":    productID,
		"lookback_days": lookbackDays,
	}

	// daily_sales refreshes hourly, so today's running total comes from the
	// raw hypertable
	if s.salesRepo != nil {
		var locID int64
		if locationID != nil {
			locID = *locationID
		}
		if today, err := s.salesRepo.GetTodayQuantity(r.Context(), productID, locID); err == nil {
			response["today_so_far"] = today
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleDashboardLocations returns per-store demand share for a product
func (s *Server) handleDashboardLocations(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.PathValue("productID"), 10, 64)
	if err != nil || productID <= 0 {
		http.Error(w, "Invalid product ID", http.StatusBadRequest)
		return
	}

	lookbackDays := getIntParam(r, "days", 30, nil, nil)

	breakdown, err := s.repo.GetLocationBreakdown(productID, lookbackDays)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data":          breakdown,
		"count":         len(breakdown),
		"product_id":    productID,
		"lookback_days": lookbackDays,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleDashboardChannels returns the sales channel split for a product
func (s *Server) handleDashboardChannels(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.PathValue("productID"), 10, 64)
	if err != nil || productID <= 0 {
		http.Error(w, "Invalid product ID", http.StatusBadRequest)
		return
	}

	lookbackDays := getIntParam(r, "days", 30, nil, nil)

	split, err := s.repo.GetChannelSplit(productID, lookbackDays)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data":          split,
		"count":         len(split),
		"product_id":    productID,
		"lookback_days": lookbackDays,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
