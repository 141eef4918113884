package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"retail-demand-engine/cache"
	"retail-demand-engine/database"
	"retail-demand-engine/database/sales"
	"retail-demand-engine/forecast"
	"retail-demand-engine/llm"
	"retail-demand-engine/notifications"
	"retail-demand-engine/realtime"
)

// Server handles HTTP API requests
type Server struct {
	repo         *database.DemandRepository
	salesRepo    *sales.Repository
	webhookMq    *notifications.WebhookManager
	broker       *realtime.Broker
	orchestrator *forecast.Orchestrator
	redis        *cache.RedisClient
	llmClient    *llm.Client
	llmEnabled   bool
	insightCache *cache.InsightCache
}

// NewServer creates a new API server instance
func NewServer(repo *database.DemandRepository, salesRepo *sales.Repository, webhookMq *notifications.WebhookManager, broker *realtime.Broker, orchestrator *forecast.Orchestrator, redis *cache.RedisClient, llmClient *llm.Client, llmEnabled bool) *Server {
	srv := &Server{
		repo:         repo,
		salesRepo:    salesRepo,
		webhookMq:    webhookMq,
		broker:       broker,
		orchestrator: orchestrator,
		redis:        redis,
		llmClient:    llmClient,
		llmEnabled:   llmEnabled,
	}

	if redis != nil {
		srv.insightCache = cache.NewInsightCache(redis)
	}

	return srv
}

// Start starts the HTTP server on the specified port
func (s *Server) Start(port int) error {
	mux := http.NewServeMux()

	// Register routes
	mux.Handle("GET /api/events", s.broker) // SSE Endpoint

	// Master Data Routes
	mux.HandleFunc("GET /api/products", s.handleGetProducts)
	mux.HandleFunc("POST /api/products", s.handleCreateProduct)
	mux.HandleFunc("GET /api/products/{id}", s.handleGetProduct)
	mux.HandleFunc("PUT /api/products/{id}", s.handleUpdateProduct)
	mux.HandleFunc("GET /api/locations", s.handleGetLocations)
	mux.HandleFunc("POST /api/locations", s.handleCreateLocation)
	mux.HandleFunc("GET /api/locations/{id}", s.handleGetLocation)

	// Forecast Routes
	mux.HandleFunc("POST /api/forecasts/run", s.handleRunForecasts)
	mux.HandleFunc("GET /api/forecasts/latest", s.handleGetLatestForecasts)
	mux.HandleFunc("GET /api/forecasts/history", s.handleGetForecastHistory)
	mux.HandleFunc("GET /api/forecasts/accuracy", s.handleGetStrategyAccuracy)

	// Alert Routes
	mux.HandleFunc("GET /api/alerts", s.handleGetAlerts)
	mux.HandleFunc("POST /api/alerts/{id}/ack", s.handleAcknowledgeAlert)

	// Webhook Management Routes
	mux.HandleFunc("GET /api/config/webhooks", s.handleGetWebhooks)
	mux.HandleFunc("POST /api/config/webhooks", s.handleCreateWebhook)
	mux.HandleFunc("GET /api/config/webhooks/{id}", s.handleGetWebhook)
	mux.HandleFunc("PUT /api/config/webhooks/{id}", s.handleUpdateWebhook)
	mux.HandleFunc("DELETE /api/config/webhooks/{id}", s.handleDeleteWebhook)
	mux.HandleFunc("GET /api/config/webhooks/{id}/logs", s.handleGetWebhookLogs)

	// Dashboard Routes
	mux.HandleFunc("GET /api/dashboard/top-products", s.handleDashboardTopProducts)
	mux.HandleFunc("GET /api/dashboard/outlook", s.handleDashboardOutlook)
	mux.HandleFunc("GET /api/dashboard/trend/{productID}", s.handleDashboardTrend)
	mux.HandleFunc("GET /api/dashboard/locations/{productID}", s.handleDashboardLocations)
	mux.HandleFunc("GET /api/dashboard/channels/{productID}", s.handleDashboardChannels)
	mux.HandleFunc("GET /api/dashboard/stream", s.handleDashboardSSE)

	// Insight Routes (LLM)
	mux.HandleFunc("GET /api/insights/products/{id}", s.handleProductInsight)
	mux.HandleFunc("GET /api/insights/products/{id}/stream", s.handleProductInsightStream)
	mux.HandleFunc("GET /api/insights/alerts", s.handleAlertDigest)

	mux.HandleFunc("GET /health", s.handleHealth)

	// Serve Static Files (Public UI)
	fs := http.FileServer(http.Dir("./public"))
	mux.Handle("GET /", fs)

	// Add middleware
	handler := s.corsMiddleware(s.loggingMiddleware(mux))

	serverAddr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Printf("🚀 API Server starting on %s", serverAddr)
	return http.ListenAndServe(serverAddr, handler)
}

// Middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// Handlers are distributed across multiple files:
// - handlers_products.go: Product and store location master data
// - handlers_forecasts.go: Forecast runs, history, accuracy, alerts
// - handlers_dashboard.go: Aggregated dashboard queries
// - handlers_insights.go: LLM demand analysis
// - handlers_config.go: Webhooks, health check
