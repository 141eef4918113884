// Package database provides database connection management for the retail demand engine.
//
// This package includes:
//   - Database connection management using GORM and PostgreSQL
//   - Support for TimescaleDB hypertables and continuous aggregates
//   - Comprehensive error handling and validation
//
// Key Concepts:
//   - TimescaleDB hypertables for time-series sales data
//   - Continuous aggregates for pre-computed daily sales
//   - Composite primary keys for hypertable compatibility
//   - Automatic retention policies for data lifecycle management
//
// Data Models:
//
//	All data models (Product, SalesTransaction, ForecastRecord, etc.) are defined
//	in the models_pkg package to avoid circular import dependencies.
package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	models "retail-demand-engine/database/models_pkg"
)

// Database holds the GORM database connection and provides access to the underlying DB instance.
// It serves as the central connection point for all database operations in the application.
type Database struct {
	db *gorm.DB
}

// DB returns the underlying GORM database instance for direct access when needed.
// This method provides access to the raw GORM DB for advanced operations.
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Connect establishes database connection using GORM
func Connect(host string, port int, dbname, user, password string) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		host, port, dbname, user, password)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Silent logging for production
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ============================================================================
// Backward Compatibility Type Aliases
// ============================================================================

// These type aliases maintain backward compatibility with existing code
// that imports types from the database package directly.

// Core data models - type aliases for backward compatibility
type Product = models.Product
type StoreLocation = models.StoreLocation
type SalesTransaction = models.SalesTransaction
type DailySale = models.DailySale
type ForecastRecord = models.ForecastRecord
type DemandAlert = models.DemandAlert
type DemandWebhook = models.DemandWebhook
type DemandWebhookLog = models.DemandWebhookLog
