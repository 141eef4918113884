package database

import "time"

// Time interval constants for TimescaleDB operations
const (
	// Continuous aggregate refresh intervals
	RefreshInterval1Hour = 1 * time.Hour
	RefreshInterval1Day  = 24 * time.Hour

	// Continuous aggregate start offsets
	StartOffset1Hour = 3 * time.Hour
	StartOffset1Day  = 3 * 24 * time.Hour

	// Continuous aggregate end offsets
	EndOffset1Hour = 1 * time.Hour
	EndOffset1Day  = 1 * time.Hour

	// Hypertable chunk intervals
	ChunkInterval1Day  = 1 * 24 * time.Hour
	ChunkInterval7Days = 7 * 24 * time.Hour

	// Data retention policies
	Retention3Months = 3 * 30 * 24 * time.Hour
	Retention6Months = 6 * 30 * 24 * time.Hour
	Retention1Year   = 365 * 24 * time.Hour
	Retention2Years  = 2 * 365 * 24 * time.Hour
)

// Demand alert types
const (
	AlertTypeDemandSpike = "DEMAND_SPIKE"
	AlertTypeDemandDrop  = "DEMAND_DROP"
	AlertTypeLowAccuracy = "LOW_ACCURACY"
)

// Demand alert thresholds
const (
	// Same-day sales above this multiple of the trailing average raise a spike alert
	SpikeRatioDefault = 3.0
	// Same-day sales below this fraction of the trailing average raise a drop alert
	DropRatioDefault = 0.25
	// Products scoring below this trailing accuracy raise a low-accuracy alert
	LowAccuracyThreshold = 0.5
	// Minimum transactions seen before spike detection activates for a pair
	SpikeMinSamples = 20
)

// Webhook delivery statuses
const (
	WebhookStatusSuccess = "SUCCESS"
	WebhookStatusFailed  = "FAILED"
	WebhookStatusTimeout = "TIMEOUT"
)

// Lookback periods for analysis
const (
	LookbackDaysDefault  = 7
	LookbackDaysMonth    = 30
	LookbackDaysForecast = 90
	AccuracyWindowDays   = 30
)

// Query limits
const (
	DefaultLimit = 50
	TopLimit     = 20
	MaxLimit     = 100
)
