// internal/database/db.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"bt-discovery/internal/config"
)

// Supported drivers
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrDisabled is returned by Open when history is kept in memory
var ErrDisabled = errors.New("database disabled")

// DB wraps the connection pool together with the driver it was opened with
type DB struct {
	*sql.DB
	Driver string
	DSN    string
	logger *zap.Logger
}

// Open opens and pings the configured database
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*DB, error) {
	dbCfg := cfg.Database
	if dbCfg.Driver == DriverNone || dbCfg.Driver == "" {
		return nil, ErrDisabled
	}

	if dbCfg.Driver == DriverSQLite && dbCfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(dbCfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return OpenDSN(ctx, dbCfg.Driver, cfg.GetDatabaseDSN(), &dbCfg, logger)
}

// OpenDSN opens a database from an explicit driver and DSN
func OpenDSN(ctx context.Context, driver, dsn string, dbCfg *config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if dbCfg != nil {
		if dbCfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
		}
		if dbCfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
		}
		if dbCfg.MaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(dbCfg.MaxLifetime)
		}
	}
	if driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY under concurrent scans
		sqlDB.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	logger.Info("Database connection established",
		zap.String("driver", driver),
	)

	return &DB{
		DB:     sqlDB,
		Driver: driver,
		DSN:    dsn,
		logger: logger,
	}, nil
}

// Health checks that the database answers
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Close closes the connection pool
func (db *DB) Close() error {
	db.logger.Info("Closing database connection", zap.String("driver", db.Driver))
	return db.DB.Close()
}
