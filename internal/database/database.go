// Package database provides MySQL database connection management for dentsync.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
)

// Manager handles database connections for the replication source and target.
type Manager struct {
	Source *sql.DB
	Target *sql.DB
	config *config.Config
}

// NewManager creates a new database manager from configuration.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		config: cfg,
	}
}

// Connect establishes connections to the source and target databases.
func (m *Manager) Connect(ctx context.Context) error {
	var err error

	m.Source, err = m.connectWithRetry(ctx, &m.config.Source)
	if err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}

	m.Target, err = m.connectWithRetry(ctx, &m.config.Target)
	if err != nil {
		m.Source.Close()
		return fmt.Errorf("failed to connect to target database: %w", err)
	}

	return nil
}

// ConnectTarget establishes the target connection only.
// Use this when only target access is needed (e.g., status inspection).
func (m *Manager) ConnectTarget(ctx context.Context) error {
	var err error

	m.Target, err = m.connectWithRetry(ctx, &m.config.Target)
	if err != nil {
		return fmt.Errorf("failed to connect to target database: %w", err)
	}

	return nil
}

// connectWithRetry attempts to connect with exponential backoff.
func (m *Manager) connectWithRetry(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	var db *sql.DB
	var err error

	maxRetries := 3
	backoff := time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = m.connect(cfg)
		if err == nil {
			// Verify connection
			if pingErr := db.PingContext(ctx); pingErr == nil {
				return db, nil
			} else {
				db.Close()
				err = pingErr
			}
		}

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", maxRetries, err)
}

// connect creates a database connection.
func (m *Manager) connect(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := BuildDSN(cfg)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	return db, nil
}

// BuildDSN constructs a MySQL DSN from configuration.
func BuildDSN(cfg *config.DatabaseConfig) string {
	// Format: user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
	)

	if cfg.Database != "" {
		dsn += cfg.Database
	}

	// Add TLS configuration
	params := "?parseTime=true&multiStatements=true"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

// Close closes all database connections gracefully.
func (m *Manager) Close() error {
	var errs []error

	if m.Target != nil {
		if err := m.Target.Close(); err != nil {
			errs = append(errs, fmt.Errorf("target close: %w", err))
		}
	}

	if m.Source != nil {
		if err := m.Source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("source close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %v", errs)
	}
	return nil
}

// Ping verifies all connections are alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.Source != nil {
		if err := m.Source.PingContext(ctx); err != nil {
			return fmt.Errorf("source ping failed: %w", err)
		}
	}

	if m.Target != nil {
		if err := m.Target.PingContext(ctx); err != nil {
			return fmt.Errorf("target ping failed: %w", err)
		}
	}

	return nil
}
