package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Database configuration
	DatabaseHost     string
	DatabasePort     string
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string

	// Redis configuration
	RedisHost     string
	RedisPassword string
	RedisPort     string

	// API configuration
	APIPort int

	// POS sales feed configuration
	Feed FeedConfig

	// LLM configuration
	LLM LLMConfig

	// Forecasting configuration
	Forecast ForecastConfig

	// Alerting configuration
	Alerts AlertConfig
}

// FeedConfig holds POS sales feed connection settings
type FeedConfig struct {
	Enabled    bool
	WSURL      string
	APIKey     string
	StoreGroup string // store group subscription filter, "*" for all stores
}

// LLMConfig holds LLM service configuration
type LLMConfig struct {
	Enabled  bool
	Endpoint string
	APIKey   string
	Model    string
}

// ForecastConfig holds forecasting parameters and thresholds
type ForecastConfig struct {
	// Data sufficiency
	MinObservations int // below this the baseline strategy is forced
	LookbackDays    int // historical series window

	// Sequence model
	SequenceWindow int // 30 = enhanced scorer, 7 = basic scorer

	// Batch execution
	DefaultHorizonDays    int
	Workers               int
	FetchTimeoutSeconds   int
	PersistTimeoutSeconds int

	// Scheduled refresh
	RefreshIntervalHours int

	// Ensemble weights (renormalized over successful members at runtime)
	WeightSequence      float64
	WeightTrend         float64
	WeightDecomposition float64

	// Accuracy evaluation
	AccuracyWindowDays int
	AccuracyRefreshHrs int
}

// AlertConfig holds demand alerting thresholds
type AlertConfig struct {
	SpikeRatio      float64 // single-day quantity vs running mean that triggers a spike alert
	LowAccuracy     float64 // accuracy below this raises a LOW_ACCURACY alert
	SpikeMinSamples int     // running mean warm-up before spike detection activates
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		// Database configuration
		DatabaseHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DatabasePort:     getEnvOrDefault("DB_PORT", "5432"),
		DatabaseName:     getEnvOrDefault("DB_NAME", "retail_demand"),
		DatabaseUser:     getEnvOrDefault("DB_USER", "demand"),
		DatabasePassword: getEnvOrDefault("DB_PASSWORD", "demand123"),

		// Redis configuration
		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		APIPort: getEnvInt("API_PORT", 8080),

		// POS sales feed configuration
		Feed: FeedConfig{
			Enabled:    getEnvOrDefault("POS_FEED_ENABLED", "true") == "true",
			WSURL:      getEnvOrDefault("POS_FEED_WS_URL", "wss://pos-feed.retailhub.id/ws"),
			APIKey:     getEnvOrDefault("POS_FEED_API_KEY", ""),
			StoreGroup: getEnvOrDefault("POS_FEED_STORE_GROUP", "*"),
		},

		// LLM configuration
		LLM: LLMConfig{
			Enabled:  getEnvOrDefault("LLM_ENABLED", "false") == "true",
			Endpoint: getEnvOrDefault("LLM_ENDPOINT", "https://ai.onehub.biz.id/v1"),
			APIKey:   getEnvOrDefault("LLM_API_KEY", ""),
			Model:    getEnvOrDefault("LLM_MODEL", "qwen3-max"),
		},

		// Forecasting configuration
		Forecast: ForecastConfig{
			MinObservations: getEnvInt("FORECAST_MIN_OBSERVATIONS", 7),
			LookbackDays:    getEnvInt("FORECAST_LOOKBACK_DAYS", 90),

			SequenceWindow: getEnvInt("FORECAST_SEQUENCE_WINDOW", 30),

			DefaultHorizonDays:    getEnvInt("FORECAST_DEFAULT_HORIZON_DAYS", 7),
			Workers:               getEnvInt("FORECAST_WORKERS", 8),
			FetchTimeoutSeconds:   getEnvInt("FORECAST_FETCH_TIMEOUT_SECONDS", 5),
			PersistTimeoutSeconds: getEnvInt("FORECAST_PERSIST_TIMEOUT_SECONDS", 10),

			RefreshIntervalHours: getEnvInt("FORECAST_REFRESH_INTERVAL_HOURS", 6),

			WeightSequence:      getEnvFloat("FORECAST_WEIGHT_SEQUENCE", 0.4),
			WeightTrend:         getEnvFloat("FORECAST_WEIGHT_TREND", 0.4),
			WeightDecomposition: getEnvFloat("FORECAST_WEIGHT_DECOMP", 0.2),

			AccuracyWindowDays: getEnvInt("ACCURACY_WINDOW_DAYS", 30),
			AccuracyRefreshHrs: getEnvInt("ACCURACY_REFRESH_HOURS", 12),
		},

		// Alerting configuration
		Alerts: AlertConfig{
			SpikeRatio:      getEnvFloat("ALERT_SPIKE_RATIO", 3.0),
			LowAccuracy:     getEnvFloat("ALERT_LOW_ACCURACY", 0.5),
			SpikeMinSamples: getEnvInt("ALERT_SPIKE_MIN_SAMPLES", 20),
		},
	}
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvFloat gets environment variable as float64 or returns default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var floatValue float64
	if _, err := fmt.Sscanf(value, "%f", &floatValue); err != nil {
		return defaultValue
	}
	return floatValue
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
