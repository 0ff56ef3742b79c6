// Package database holds the gorm connection helper and table models shared
// by the Postgres-backed run store and tools.
package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/divesync/internal/log"
	"go.uber.org/zap"
)

// PoolOptions sizes the connection pool behind a gorm handle. Zero values
// keep the database/sql defaults.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SlowThreshold   time.Duration
}

// DefaultPoolOptions suits a single writer goroutine plus a few readers
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxOpenConns:    8,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		SlowThreshold:   time.Second,
	}
}

// CreateConnection opens and pings a gorm connection to Postgres/TimescaleDB.
// gorm's own warnings go to the zap logger.
func CreateConnection(ctx context.Context, connectionString string, opts PoolOptions) (*gorm.DB, error) {
	if opts.SlowThreshold == 0 {
		opts.SlowThreshold = time.Second
	}
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             opts.SlowThreshold,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	log.Info("connecting to TimescaleDB...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("opening TimescaleDB connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging TimescaleDB: %w", err)
	}
	log.Info("TimescaleDB connection successful")

	return db, nil
}
