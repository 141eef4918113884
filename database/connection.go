package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// IngestPool is the raw database/sql connection pool used for COPY-based
// sale ingest and the aggregate read queries in database/sales. It runs
// alongside the gorm handle so bulk writes never queue behind ORM traffic.
type IngestPool struct {
	conn *sql.DB
}

// PoolConfig holds connection settings for the raw pool
type PoolConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// NewIngestPool opens and verifies the raw connection pool
func NewIngestPool(cfg PoolConfig) (*IngestPool, error) {
	// application_name makes this pool identifiable in pg_stat_activity
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable application_name=retail-demand-engine",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName,
	)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single aggregator goroutine does the COPY flushes; everything else
	// on this pool is dashboard reads, so size for read bursts
	conn.SetMaxOpenConns(30)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)
	conn.SetConnMaxIdleTime(2 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ Ingest pool connected")

	return &IngestPool{conn: conn}, nil
}

// Close closes the pool
func (p *IngestPool) Close() error {
	if p.conn != nil {
		log.Println("📡 Closing ingest pool...")
		return p.conn.Close()
	}
	return nil
}

// Conn returns the underlying sql.DB for repository construction
func (p *IngestPool) Conn() *sql.DB {
	return p.conn
}
