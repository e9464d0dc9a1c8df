package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS apy_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			cycle_id UUID NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			chain_id BIGINT NOT NULL,
			token_address VARCHAR(42) NOT NULL,
			token_symbol VARCHAR(32) NOT NULL,
			target_leverage DECIMAL(10, 4) NOT NULL,
			staking_yield DECIMAL(12, 8) NOT NULL,
			restaking_yield DECIMAL(12, 8) NOT NULL,
			borrow_rate DECIMAL(12, 8) NOT NULL,
			rewards_apr DECIMAL(12, 8) NOT NULL,
			points DECIMAL(12, 4) NOT NULL,
			total_apy DECIMAL(12, 8) NOT NULL,
			utilization DECIMAL(10, 8),
			reward_tokens JSONB,
			source_errors JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_apy_snapshots_token_timestamp ON apy_snapshots(chain_id, token_address, snapshot_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_apy_snapshots_cycle ON apy_snapshots(cycle_id);

		CREATE TABLE IF NOT EXISTS plan_audits (
			audit_id SERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			plan_type VARCHAR(16) NOT NULL,
			chain_id BIGINT NOT NULL,
			token_address VARCHAR(42) NOT NULL,
			block_number BIGINT NOT NULL,
			slippage_bps INTEGER NOT NULL,
			amount_in TEXT NOT NULL,
			preview_out TEXT NOT NULL,
			min_out TEXT NOT NULL,
			flash_loan_amount TEXT,
			call_count INTEGER NOT NULL,
			tx_hash VARCHAR(66),
			success BOOLEAN
		);
		CREATE INDEX IF NOT EXISTS idx_plan_audits_token ON plan_audits(chain_id, token_address, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_plan_audits_type ON plan_audits(plan_type);

		-- Refresh counter table for persistent global cycle tracking
		CREATE TABLE IF NOT EXISTS refresh_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		INSERT INTO refresh_counter (id, current_cycle)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// ResetSchema drops every levengine table and recreates the schema empty.
// Destructive; meant for the reset script and local development.
func ResetSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	dropSQL := `
		DROP TABLE IF EXISTS apy_snapshots CASCADE;
		DROP TABLE IF EXISTS plan_audits CASCADE;
		DROP TABLE IF EXISTS refresh_counter CASCADE;
	`
	if _, err := DB.Exec(dropSQL); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	log.Info().Msg("Dropped all tables.")

	return EnsureSchema()
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
