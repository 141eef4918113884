package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"retail-demand-engine/database"
	"retail-demand-engine/database/types"
	"retail-demand-engine/forecast"
	"retail-demand-engine/realtime"
)

// Forecasts change on the refresh cycle, so read endpoints cache briefly
const forecastCacheDuration = 60 * time.Second

// Forecast Handlers

// handleRunForecasts executes a forecast batch on demand
func (s *Server) handleRunForecasts(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		http.Error(w, "Forecasting is not available", http.StatusServiceUnavailable)
		return
	}

	var req forecast.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Empty product list means every active product
	if len(req.ProductIDs) == 0 {
		ids, err := s.repo.ListActiveProductIDs()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		req.ProductIDs = ids
	}

	response, err := s.orchestrator.Run(r.Context(), req)
	if err != nil {
		var validationErr *forecast.ValidationError
		if errors.As(err, &validationErr) {
			http.Error(w, validationErr.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	log.Printf("📊 Forecast batch via API: %d results, %d failures", len(response.Results), len(response.Failures))

	// Notify dashboard clients that fresh forecasts landed
	if s.broker != nil {
		s.broker.Broadcast(realtime.EventForecastRefresh, map[string]interface{}{
			"generated":    len(response.Results),
			"failed":       len(response.Failures),
			"horizon_days": req.HorizonDays,
			"strategy":     req.Strategy,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleGetLatestForecasts returns the most recent forecasts with filters
func (s *Server) handleGetLatestForecasts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	strategy := query.Get("strategy")

	var productID int64
	if p := query.Get("product_id"); p != "" {
		if val, err := strconv.ParseInt(p, 10, 64); err == nil && val > 0 {
			productID = val
		}
	}

	var locationID *int64
	if l := query.Get("location_id"); l != "" {
		if val, err := strconv.ParseInt(l, 10, 64); err == nil && val > 0 {
			locationID = &val
		}
	}

	limit := 50
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 500 {
				limit = 500
			}
		}
	}

	var locKey int64
	if locationID != nil {
		locKey = *locationID
	}
	cacheKey := fmt.Sprintf("api:forecasts:latest:%d:%d:%s:%d", productID, locKey, strategy, limit)

	if s.redis != nil {
		var cached []database.ForecastRecord
		if err := s.redis.Get(r.Context(), cacheKey, &cached); err == nil {
			writeForecastList(w, cached, limit)
			return
		}
	}

	forecasts, err := s.repo.GetLatestForecasts(productID, locationID, strategy, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if s.redis != nil {
		s.redis.Set(r.Context(), cacheKey, forecasts, forecastCacheDuration)
	}

	writeForecastList(w, forecasts, limit)
}

func writeForecastList(w http.ResponseWriter, forecasts []database.ForecastRecord, limit int) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":  forecasts,
		"count": len(forecasts),
		"limit": limit,
	})
}

// handleGetForecastHistory returns stored forecasts for one product over a date range
func (s *Server) handleGetForecastHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	productID, err := strconv.ParseInt(query.Get("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		http.Error(w, "product_id is required", http.StatusBadRequest)
		return
	}

	// Time range parsing (RFC3339). Forecast dates run into the future, so
	// the default window is centered on today.
	now := time.Now()
	startDate := now.AddDate(0, 0, -30)
	endDate := now.AddDate(0, 0, 30)

	if startStr := query.Get("start"); startStr != "" {
		if parsed, err := time.Parse(time.RFC3339, startStr); err == nil {
			startDate = parsed
		}
	}
	if endStr := query.Get("end"); endStr != "" {
		if parsed, err := time.Parse(time.RFC3339, endStr); err == nil {
			endDate = parsed
		}
	}

	limit := 200
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 1000 {
				limit = 1000
			}
		}
	}

	history, err := s.repo.GetForecastHistory(productID, startDate, endDate, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":       history,
		"count":      len(history),
		"product_id": productID,
		"start":      startDate,
		"end":        endDate,
	})
}

// handleGetStrategyAccuracy returns scored accuracy per strategy
func (s *Server) handleGetStrategyAccuracy(w http.ResponseWriter, r *http.Request) {
	lookbackDays := getIntParam(r, "days", 30, nil, nil)

	cacheKey := fmt.Sprintf("api:accuracy:strategy:%d", lookbackDays)
	if s.redis != nil {
		var cached []types.StrategyAccuracy
		if err := s.redis.Get(r.Context(), cacheKey, &cached); err == nil {
			writeStrategyAccuracy(w, cached, lookbackDays)
			return
		}
	}

	accuracy, err := s.repo.GetStrategyAccuracy(lookbackDays)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if s.redis != nil {
		s.redis.Set(r.Context(), cacheKey, accuracy, forecastCacheDuration)
	}

	writeStrategyAccuracy(w, accuracy, lookbackDays)
}

func writeStrategyAccuracy(w http.ResponseWriter, accuracy []types.StrategyAccuracy, lookbackDays int) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":          accuracy,
		"count":         len(accuracy),
		"lookback_days": lookbackDays,
	})
}

// Alert Handlers

func (s *Server) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	alertType := query.Get("type")

	var productID int64
	if p := query.Get("product_id"); p != "" {
		if val, err := strconv.ParseInt(p, 10, 64); err == nil && val > 0 {
			productID = val
		}
	}

	// Default to last 7 days of alerts
	hoursBack := getIntParam(r, "hours", 168, nil, nil)
	startTime := time.Now().Add(-time.Duration(hoursBack) * time.Hour)

	// Optional severity floor on the observed/expected ratio
	minRatio := getFloatParam(r, "min_ratio", 0)

	limit := 50
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 200 {
				limit = 200
			}
		}
	}

	alerts, err := s.repo.GetRecentAlerts(alertType, productID, minRatio, startTime, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data":       alerts,
		"count":      len(alerts),
		"hours_back": hoursBack,
	}
	if minRatio > 0 {
		response["min_ratio"] = minRatio
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid alert ID", http.StatusBadRequest)
		return
	}

	if err := s.repo.AcknowledgeAlert(id); err != nil {
		var notFound *database.NotFoundError
		if errors.As(err, &notFound) {
			http.Error(w, notFound.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":           id,
		"acknowledged": true,
	})
}
