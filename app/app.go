package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"retail-demand-engine/api"
	"retail-demand-engine/cache"
	"retail-demand-engine/config"
	"retail-demand-engine/database"
	"retail-demand-engine/database/sales"
	"retail-demand-engine/forecast"
	"retail-demand-engine/handlers"
	"retail-demand-engine/llm"
	"retail-demand-engine/notifications"
	"retail-demand-engine/realtime"
	"retail-demand-engine/websocket"
	"sync"
)

// App represents the main application
type App struct {
	config          *config.Config
	feedManager     *websocket.ConnectionManager
	handlerManager  *handlers.HandlerManager
	db              *database.Database
	pool            *database.IngestPool // raw pool for the bulk ingest path
	redis           *cache.RedisClient
	demandRepo      *database.DemandRepository
	salesRepo       *sales.Repository
	webhookManager  *notifications.WebhookManager
	broker          *realtime.Broker
	orchestrator    *forecast.Orchestrator
	saleHandler     *handlers.SaleEventHandler
	scheduler       *ForecastScheduler
	accuracyTracker *AccuracyTracker
}

// New creates a new application instance
func New(cfg *config.Config) *App {
	// Initialize POS Feed Manager
	feedManager := websocket.NewConnectionManager(cfg.Feed.WSURL, cfg.Feed.APIKey, cfg.Feed.StoreGroup)

	return &App{
		config:         cfg,
		feedManager:    feedManager,
		handlerManager: handlers.NewHandlerManager(),
		db:             nil, // Will be initialized in Start()
		redis:          nil, // Will be initialized in Start()
		demandRepo:     nil,
	}
}

// Start starts the application
func (a *App) Start() error {
	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Database Connection
	fmt.Println("🗄️  Connecting to database...")

	dbPort, err := strconv.Atoi(a.config.DatabasePort)
	if err != nil {
		return fmt.Errorf("invalid database port: %w", err)
	}

	db, err := database.Connect(
		a.config.DatabaseHost,
		dbPort,
		a.config.DatabaseName,
		a.config.DatabaseUser,
		a.config.DatabasePassword,
	)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	a.db = db

	// 2. Raw connection pool for COPY-based ingest and aggregate reads
	fmt.Println("🔌 Opening ingest connection pool...")
	pool, err := database.NewIngestPool(database.PoolConfig{
		Host:     a.config.DatabaseHost,
		Port:     a.config.DatabasePort,
		User:     a.config.DatabaseUser,
		Password: a.config.DatabasePassword,
		DBName:   a.config.DatabaseName,
	})
	if err != nil {
		return fmt.Errorf("ingest pool connection failed: %w", err)
	}
	a.pool = pool

	// 3. Redis Connection
	fmt.Println("🧠 Connecting to Redis...")
	redisClient := cache.NewRedisClient(
		a.config.RedisHost,
		a.config.RedisPort,
		a.config.RedisPassword,
	)

	if redisClient == nil {
		fmt.Println("⚠️  Redis connection failed. Caching disabled.")
	} else {
		a.redis = redisClient
	}

	// Initialize schema (AutoMigrate + TimescaleDB setup)
	a.demandRepo = database.NewDemandRepository(a.db)
	if err := a.demandRepo.InitSchema(); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	// Sales repository rides the raw pool
	a.salesRepo = sales.NewRepository(a.pool.Conn())

	// Initialize Webhook Manager (with Redis)
	a.webhookManager = notifications.NewWebhookManager(a.demandRepo, a.redis)

	// Initialize Realtime Broker
	a.broker = realtime.NewBroker()
	go a.broker.Run()

	// 4. Initialize LLM client if enabled
	var llmClient *llm.Client
	if a.config.LLM.Enabled {
		llmClient = llm.NewClient(a.config.LLM.Endpoint, a.config.LLM.APIKey, a.config.LLM.Model)
		log.Printf("✅ LLM Demand Analysis ENABLED (Model: %s)", a.config.LLM.Model)
	} else {
		log.Println("ℹ️  LLM Demand Analysis DISABLED")
	}

	// 5. Build the forecasting pipeline
	a.orchestrator = a.buildOrchestrator()

	// 6. Start background workers
	log.Println("🚀 Starting demand workers...")

	// Scheduled Forecast Refresh
	a.scheduler = NewForecastScheduler(a.demandRepo, a.orchestrator, a.broker, a.config)
	go a.scheduler.Start()

	// Forecast Accuracy Tracker
	a.accuracyTracker = NewAccuracyTracker(a.demandRepo, a.salesRepo, a.webhookManager, a.broker, a.config)
	go a.accuracyTracker.Start()

	// 7. Start API Server
	apiServer := api.NewServer(a.demandRepo, a.salesRepo, a.webhookManager, a.broker, a.orchestrator, a.redis, llmClient, a.config.LLM.Enabled)

	go func() {
		if err := apiServer.Start(a.config.APIPort); err != nil {
			log.Printf("⚠️  API Server failed: %v", err)
		}
	}()

	// Setup WaitGroup for goroutines
	var wg sync.WaitGroup

	// 8. Connect POS sales feed
	if a.config.Feed.Enabled {
		if err := a.feedManager.Connect(); err != nil {
			return fmt.Errorf("POS feed connection failed: %w", err)
		}
		// 9. Start ping
		a.feedManager.StartPing(25 * time.Second)
		log.Println("✅ POS sales feed connected")

		// 10. Setup handlers
		a.setupHandlers()

		// 11. Start WebSocket health monitoring
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.feedManager.RunHealthMonitor(ctx)
		}()

		// 12. Start frame processing
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.readAndProcessFrames(ctx)
		}()
	} else {
		log.Println("ℹ️  POS sales feed DISABLED (dashboard-only mode)")
	}

	// 13. Wait for interrupt and perform graceful shutdown
	err = a.gracefulShutdown(cancel)
	wg.Wait()
	return err
}

// buildOrchestrator wires the forecasting pipeline onto the repositories
func (a *App) buildOrchestrator() *forecast.Orchestrator {
	fc := a.config.Forecast

	seasons := forecast.DefaultSeasonalProfile()
	year := time.Now().Year()
	holidays := forecast.DefaultHolidayCalendar(year, year+1)

	opts := forecast.Options{
		MinObservations: fc.MinObservations,
		LookbackDays:    fc.LookbackDays,
		SequenceWindow:  fc.SequenceWindow,
		Workers:         fc.Workers,
		FetchTimeout:    time.Duration(fc.FetchTimeoutSeconds) * time.Second,
		PersistTimeout:  time.Duration(fc.PersistTimeoutSeconds) * time.Second,
		Weights: forecast.EnsembleWeights{
			Sequence:      fc.WeightSequence,
			Trend:         fc.WeightTrend,
			Decomposition: fc.WeightDecomposition,
		},
	}

	orchestrator := forecast.NewOrchestrator(a.salesRepo, a.demandRepo, a.demandRepo, seasons, holidays, opts)

	evaluator := forecast.NewAccuracyEvaluator(a.demandRepo, a.salesRepo, fc.AccuracyWindowDays)
	orchestrator.SetAccuracyEvaluator(evaluator)

	return orchestrator
}

// gracefulShutdown handles graceful shutdown with timeout
func (a *App) gracefulShutdown(cancel context.CancelFunc) error {
	// Setup signal handling
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	// Wait for interrupt signal
	<-interrupt
	fmt.Println("\n🛑 Shutdown signal received, initiating graceful shutdown...")

	// Cancel context to stop all goroutines
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Shutdown tasks with timeout
	shutdownComplete := make(chan struct{})
	go func() {
		// Stop workers
		if a.scheduler != nil {
			fmt.Println("📊 Stopping forecast scheduler...")
			a.scheduler.Stop()
		}
		if a.accuracyTracker != nil {
			fmt.Println("🎯 Stopping accuracy tracker...")
			a.accuracyTracker.Stop()
		}

		// Persist any buffered sales before connections close
		if a.saleHandler != nil {
			fmt.Println("💾 Flushing buffered sales...")
			a.saleHandler.FlushPending()
		}

		// Close WebSocket connection
		if a.config.Feed.Enabled {
			fmt.Println("📡 Closing POS feed connection...")
			if err := a.feedManager.Close(); err != nil {
				log.Printf("Error closing POS feed: %v", err)
			} else {
				fmt.Println("✅ POS feed closed")
			}
		}

		// Close database connections
		if a.pool != nil {
			if err := a.pool.Close(); err != nil {
				log.Printf("Error closing ingest pool: %v", err)
			} else {
				fmt.Println("✅ Ingest pool closed")
			}
		}
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				log.Printf("Error closing database: %v", err)
			} else {
				fmt.Println("✅ Database connection closed")
			}
		}

		// Close Redis connection
		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				log.Printf("Error closing redis: %v", err)
			} else {
				fmt.Println("✅ Redis connection closed")
			}
		}

		close(shutdownComplete)
	}()

	// Wait for shutdown to complete or timeout
	select {
	case <-shutdownComplete:
		fmt.Println("✅ Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		fmt.Println("⚠️  Shutdown timeout exceeded, forcing exit")
		return fmt.Errorf("shutdown timeout")
	}
}

// readAndProcessFrames reads frames from the POS feed and processes them
func (a *App) readAndProcessFrames(ctx context.Context) {
	reconnectDelay := 5 * time.Second
	maxReconnectDelay := 60 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
			frame, err := a.feedManager.ReadFrame()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					// WebSocket connection error - attempt reconnection
					log.Printf("⚠️  POS feed error: %v", err)
					log.Printf("🔄 Attempting to reconnect in %v...", reconnectDelay)

					// Wait before reconnecting
					select {
					case <-ctx.Done():
						return
					case <-time.After(reconnectDelay):
					}

					// Try to reconnect via manager
					if err := a.feedManager.Reconnect(); err != nil {
						log.Printf("❌ Reconnection failed: %v", err)
						// Exponential backoff
						reconnectDelay = reconnectDelay * 2
						if reconnectDelay > maxReconnectDelay {
							reconnectDelay = maxReconnectDelay
						}
						continue
					}

					// Reset delay on successful reconnection
					reconnectDelay = 5 * time.Second
					continue
				}
			}

			// Process the JSON frame
			err = a.handlerManager.HandleFrame("sale_event", frame)
			if err != nil {
				log.Printf("Handler error: %v", err)
				// Don't terminate on handler errors, just log and continue
				continue
			}
		}
	}
}

// setupHandlers initializes and registers all frame handlers
func (a *App) setupHandlers() {
	// Sale Event Handler
	a.saleHandler = handlers.NewSaleEventHandler(
		a.salesRepo,
		a.demandRepo,
		a.webhookManager,
		a.redis,
		a.broker,
		a.config.Alerts.SpikeRatio,
		a.config.Alerts.SpikeMinSamples,
	)
	a.handlerManager.RegisterHandler("sale_event", a.saleHandler)
}
