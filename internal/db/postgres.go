package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DB owns the pgx connection pool. Repositories and the Transactor share
// the pool returned by Pool; DB itself only manages its lifetime.
type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New creates a connection pool from a Postgres URL and verifies it with a
// ping. The URL is passed straight to pgxpool.ParseConfig, which is also
// the form DATABASE_URL arrives in, so sslmode and escaped passwords need
// no handling here. The pool is closed again if the ping fails.
func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	// Structure requests are short and bursty; a move holds one connection
	// for the length of its transaction. MaxConns stays well under the
	// usual max_connections of 100 so migrations and psql still get in.
	// Idle and lifetime limits recycle connections across failovers, and
	// the health check finds dead ones before a request does.
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 20 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}

	logger.Info("DB connection established",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.Int32("max_conns", poolConfig.MaxConns),
	)
	return &DB{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close drains the pool. In-flight transactions finish first.
func (db *DB) Close() {
	db.logger.Info("closing database connection pool")
	db.pool.Close()
}

// Pool exposes the pool for repositories and the Transactor.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Health pings one pooled connection. It backs the postgres entry of
// GET /health.
func (db *DB) Health(ctx context.Context) error {
	return db.pool.Ping(ctx)
}
