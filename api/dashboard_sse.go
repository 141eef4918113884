package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// handleDashboardSSE streams all dashboard data via Server-Sent Events
func (s *Server) handleDashboardSSE(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	log.Printf("[SSE] New dashboard connection from %s", r.RemoteAddr)

	// Create tickers for different data types
	outlookTicker := time.NewTicker(10 * time.Second) // Outlook, recent alerts
	rankingTicker := time.NewTicker(30 * time.Second) // Top products, strategy accuracy
	defer outlookTicker.Stop()
	defer rankingTicker.Stop()

	// Send initial data immediately
	s.sendOutlookData(w, flusher)
	s.sendRankingData(w, flusher)

	// Stream updates
	for {
		select {
		case <-outlookTicker.C:
			s.sendOutlookData(w, flusher)

		case <-rankingTicker.C:
			s.sendRankingData(w, flusher)

		case <-r.Context().Done():
			log.Printf("[SSE] Client disconnected: %s", r.RemoteAddr)
			return
		}
	}
}

func (s *Server) sendOutlookData(w http.ResponseWriter, flusher http.Flusher) {
	// Demand Outlook
	outlook, err := s.repo.GetDemandOutlook(30, 20)
	if err == nil {
		data := map[string]interface{}{
			"data": outlook,
		}
		s.sendSSEEvent(w, "demand_outlook", data)
	}

	// Recent Alerts - last 24 hours
	startTime := time.Now().Add(-24 * time.Hour)
	alerts, err := s.repo.GetRecentAlerts("", 0, 0, startTime, 20)
	if err == nil {
		data := map[string]interface{}{
			"data": alerts,
		}
		s.sendSSEEvent(w, "recent_alerts", data)
	}

	flusher.Flush()
}

func (s *Server) sendRankingData(w http.ResponseWriter, flusher http.Flusher) {
	// Top Products
	products, err := s.repo.GetTopProducts(30, "", 20)
	if err == nil {
		data := map[string]interface{}{
			"data": products,
		}
		s.sendSSEEvent(w, "top_products", data)
	}

	// Strategy Accuracy
	accuracy, err := s.repo.GetStrategyAccuracy(30)
	if err == nil {
		data := map[string]interface{}{
			"data": accuracy,
		}
		s.sendSSEEvent(w, "strategy_accuracy", data)
	}

	flusher.Flush()
}

func (s *Server) sendSSEEvent(w http.ResponseWriter, event string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[SSE] Error marshaling %s: %v", event, err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}
