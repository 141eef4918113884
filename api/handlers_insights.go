package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"retail-demand-engine/cache"
	"retail-demand-engine/database"
	"retail-demand-engine/llm"
)

// Insight generation settings
const (
	insightCacheTTL     = 6 * time.Hour    // Same-data insights are served from cache
	insightCooldown     = 10 * time.Minute // Minimum gap between generations per product
	insightTrendDays    = 90               // Sales history window fed to the model
	insightForecastRows = 14               // Recent forecasts included for context
)

// handleProductInsight returns an LLM demand analysis for one product
func (s *Server) handleProductInsight(w http.ResponseWriter, r *http.Request) {
	if !s.llmEnabled || s.llmClient == nil {
		http.Error(w, "LLM is not enabled", http.StatusServiceUnavailable)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid product ID", http.StatusBadRequest)
		return
	}

	product, err := s.repo.GetProductByID(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if product == nil {
		http.Error(w, "Product not found", http.StatusNotFound)
		return
	}

	points, err := s.repo.GetDailyTrend(id, nil, insightTrendDays)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(points) == 0 {
		http.Error(w, "No sales history for this product", http.StatusNotFound)
		return
	}

	forecasts, err := s.repo.GetLatestForecasts(id, nil, "", insightForecastRows)
	if err != nil {
		log.Printf("Failed to fetch forecasts for insight context: %v", err)
	}

	// Identical sales data produces the identical insight, so key the cache
	// on a hash of the trend points
	dataHash := cache.GenerateDataHash(points)

	if s.insightCache != nil {
		if entry, ok := s.insightCache.GetInsight(r.Context(), id, dataHash); ok {
			s.writeInsight(w, entry, true)
			return
		}

		if s.insightCache.IsInCooldown(r.Context(), id) {
			http.Error(w, "Insight generation is cooling down, retry shortly", http.StatusTooManyRequests)
			return
		}
	}

	summary, err := llm.AnalyzeProductContext(s.llmClient, product, points, forecasts)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "LLM analysis failed", err)
		return
	}

	entry := &cache.InsightEntry{
		ProductID:   id,
		Summary:     summary,
		Model:       s.llmClient.Model(),
		GeneratedAt: time.Now(),
	}

	if s.insightCache != nil {
		if err := s.insightCache.SetInsight(r.Context(), id, dataHash, entry, insightCacheTTL); err != nil {
			log.Printf("Failed to cache insight for product %d: %v", id, err)
		}
		_ = s.insightCache.SetCooldown(r.Context(), id, insightCooldown)
	}

	s.writeInsight(w, entry, false)
}

func (s *Server) writeInsight(w http.ResponseWriter, entry *cache.InsightEntry, cached bool) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"product_id":   entry.ProductID,
		"insight":      entry.Summary,
		"model":        entry.Model,
		"generated_at": entry.GeneratedAt,
		"cached":       cached,
	})
}

// handleProductInsightStream streams the LLM demand analysis via SSE
func (s *Server) handleProductInsightStream(w http.ResponseWriter, r *http.Request) {
	// Check if LLM is enabled
	if !s.llmEnabled || s.llmClient == nil {
		http.Error(w, "LLM is not enabled", http.StatusServiceUnavailable)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid product ID", http.StatusBadRequest)
		return
	}

	product, err := s.repo.GetProductByID(id)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error(), err)
		return
	}
	if product == nil {
		http.Error(w, "Product not found", http.StatusNotFound)
		return
	}

	points, err := s.repo.GetDailyTrend(id, nil, insightTrendDays)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error(), err)
		return
	}
	if len(points) == 0 {
		http.Error(w, "No sales history for this product", http.StatusNotFound)
		return
	}

	forecasts, err := s.repo.GetLatestForecasts(id, nil, "", insightForecastRows)
	if err != nil {
		log.Printf("Failed to fetch forecasts for insight context: %v", err)
	}

	// Set SSE headers
	flusher, ok := setupSSE(w)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "Streaming not supported", nil)
		return
	}

	// Generate prompt
	prompt := llm.FormatDemandInsightPrompt(product, points, forecasts)

	// Stream LLM response
	err = s.llmClient.AnalyzeStream(r.Context(), prompt, func(chunk string) error {
		// Properly format multi-line chunks for SSE
		lines := strings.Split(chunk, "\n")
		for i, line := range lines {
			if i < len(lines)-1 {
				fmt.Fprintf(w, "data: %s\n", line)
			} else {
				fmt.Fprintf(w, "data: %s\n\n", line)
			}
		}
		flusher.Flush()
		return nil
	})

	if err != nil {
		log.Printf("LLM streaming failed: %v", err)
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
		flusher.Flush()
		return
	}

	// Send completion event
	fmt.Fprintf(w, "event: done\ndata: Stream completed\n\n")
	flusher.Flush()
}

// handleAlertDigest returns recent alerts with an LLM summary on top
func (s *Server) handleAlertDigest(w http.ResponseWriter, r *http.Request) {
	hoursBack := getIntParam(r, "hours", 24, nil, nil)
	startTime := time.Now().Add(-time.Duration(hoursBack) * time.Hour)

	alerts, err := s.repo.GetRecentAlerts("", 0, 0, startTime, database.DefaultLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"alerts":      alerts,
		"count":       len(alerts),
		"hours_back":  hoursBack,
		"llm_enabled": s.llmEnabled,
	}

	// Add LLM digest if enabled
	if s.llmEnabled && s.llmClient != nil && len(alerts) > 0 {
		prompt := llm.FormatAlertDigestPrompt(alerts)
		if insight, err := s.llmClient.Analyze(r.Context(), prompt); err == nil {
			response["llm_insight"] = insight
		} else {
			log.Printf("LLM analysis failed: %v", err)
			response["llm_error"] = err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
