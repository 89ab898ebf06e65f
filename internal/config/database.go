package config

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	// Create patients table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS patients (
			username VARCHAR(255) PRIMARY KEY,
			salt BYTEA NOT NULL,
			password_hash BYTEA NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create caregivers table (separate namespace from patients)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS caregivers (
			username VARCHAR(255) PRIMARY KEY,
			salt BYTEA NOT NULL,
			password_hash BYTEA NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create vaccines table; the CHECK backs up the conditional decrement
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vaccines (
			name VARCHAR(255) PRIMARY KEY,
			doses INT NOT NULL CHECK (doses >= 0)
		)
	`)
	if err != nil {
		return err
	}

	// Create availabilities table. One slot per (caregiver, date): duplicate
	// publishing is rejected rather than stacking offers.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS availabilities (
			username VARCHAR(255) NOT NULL REFERENCES caregivers(username) ON DELETE CASCADE,
			time DATE NOT NULL,
			PRIMARY KEY (username, time)
		)
	`)
	if err != nil {
		return err
	}

	// Create appointments table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS appointments (
			appointment_id BIGINT PRIMARY KEY,
			vaccine_name VARCHAR(255) NOT NULL REFERENCES vaccines(name),
			time DATE NOT NULL,
			c_username VARCHAR(255) NOT NULL REFERENCES caregivers(username),
			p_username VARCHAR(255) NOT NULL REFERENCES patients(username)
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_availabilities_time ON availabilities(time)",
		"CREATE INDEX IF NOT EXISTS idx_appointments_patient ON appointments(p_username)",
		"CREATE INDEX IF NOT EXISTS idx_appointments_caregiver ON appointments(c_username)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
