package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/poubelles/poubelles-backend/pkg/config"
	"github.com/poubelles/poubelles-backend/pkg/logger"
)

// DB wraps sqlx.DB with additional functionality
type DB struct {
	*sqlx.DB
	readOnly bool
	logger   *logger.Logger
}

// New creates a new database connection for the configured driver
func New(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.DriverPostgres
	}

	db, err := sqlx.Connect(driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Info().
		Str("driver", driver).
		Bool("read_only", cfg.ReadOnly).
		Msg("connected to database")

	return &DB{
		DB:       db,
		readOnly: cfg.ReadOnly,
		logger:   log,
	}, nil
}

// Wrap adapts an existing sqlx handle, e.g. a sqlmock connection in tests
func Wrap(db *sqlx.DB, readOnly bool, log *logger.Logger) *DB {
	return &DB{
		DB:       db,
		readOnly: readOnly,
		logger:   log,
	}
}

// ReadOnly reports whether the connection was opened without write capability
func (db *DB) ReadOnly() bool {
	return db.readOnly
}

// Ping checks the database connection
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Health returns the health status of the database
func (db *DB) Health(ctx context.Context) map[string]string {
	status := map[string]string{
		"status": "up",
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}

	return status
}

// Transaction executes a function within a transaction
func (db *DB) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
