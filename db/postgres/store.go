// Package postgres persists trained model packages in PostgreSQL. A package
// is stored as one JSON document per customer; a training run replaces it
// wholesale inside a transaction so readers observe either the old package
// or the new one, never a partial write.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"deal-margin/decision/training"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

// DefaultConfig returns default development configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		Database: "dealmargin",
		Username: "postgres",
		Password: "",
		SSLMode:  "disable",
	}
}

// ModelStore reads and writes trained model packages.
type ModelStore struct {
	db *sql.DB
}

// NewModelStore connects to PostgreSQL.
func NewModelStore(cfg *Config) (*ModelStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, cfg.SSLMode)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)
	return &ModelStore{db: db}, nil
}

// Ping checks database connectivity.
func (s *ModelStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *ModelStore) Close() error {
	return s.db.Close()
}

// SavePackage replaces the customer's package atomically: delete then insert
// inside one transaction.
func (s *ModelStore) SavePackage(ctx context.Context, pkg *training.Package) error {
	payload, err := json.Marshal(pkg)
	if err != nil {
		return fmt.Errorf("failed to marshal package: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM model_packages WHERE customer_id = $1`, pkg.CustomerID); err != nil {
		return fmt.Errorf("failed to delete previous package: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO model_packages (id, customer_id, version, trained_at, package) VALUES ($1, $2, $3, $4, $5)`,
		pkg.ID, pkg.CustomerID, pkg.Version, pkg.TrainedAt, payload,
	); err != nil {
		return fmt.Errorf("failed to insert package: %w", err)
	}
	return tx.Commit()
}

// GetPackage returns the customer's current package, or nil when the
// customer has never been trained.
func (s *ModelStore) GetPackage(ctx context.Context, customerID string) (*training.Package, error) {
	row := s.db.QueryRowContext(ctx, `SELECT package FROM model_packages WHERE customer_id = $1`, customerID)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	var pkg training.Package
	if err := json.Unmarshal(payload, &pkg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal package: %w", err)
	}
	return &pkg, nil
}
