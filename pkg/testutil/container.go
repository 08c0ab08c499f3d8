// Package testutil provides testing utilities for the bin services: a sqlmock
// wrapper, a shared PostgreSQL testcontainer, bin fixtures and HTTP helpers.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/poubelles/poubelles-backend/pkg/database"
	"github.com/poubelles/poubelles-backend/pkg/logger"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "poubelles_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer starts a PostgreSQL test container
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	def := DefaultPostgresConfig()
	if cfg.Image == "" {
		cfg.Image = def.Image
	}
	if cfg.Database == "" {
		cfg.Database = def.Database
	}
	if cfg.Username == "" {
		cfg.Username = def.Username
	}
	if cfg.Password == "" {
		cfg.Password = def.Password
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a raw sqlx connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// ConnectDB returns a database.DB handle. With readOnly set the session is
// opened with default_transaction_read_only, as the service does in production.
func (c *PostgresContainer) ConnectDB(ctx context.Context, readOnly bool) (*database.DB, error) {
	dsn := c.DSN
	if readOnly {
		dsn += "&options=-c%20default_transaction_read_only%3Don"
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return database.Wrap(db, readOnly, logger.Nop()), nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

var (
	sharedOnce      sync.Once
	sharedContainer *PostgresContainer
	sharedErr       error
)

// SharedPostgres starts one container per test binary and returns it on every call.
// Callers terminate it from TestMain via TerminateShared.
func SharedPostgres(ctx context.Context) (*PostgresContainer, error) {
	sharedOnce.Do(func() {
		sharedContainer, sharedErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
	})
	return sharedContainer, sharedErr
}

// TerminateShared stops the shared container if it was started
func TerminateShared(ctx context.Context) {
	if sharedContainer != nil {
		sharedContainer.Terminate(ctx)
	}
}
