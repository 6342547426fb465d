// Package repository is the Postgres persistence layer: a connection pool
// with pre-ping health checks and hourly connection recycling, goose-versioned
// schema migrations, and one small repository type per aggregate (suppliers,
// categories, products, supplier items, price history, parsing logs, review
// queue) built directly on raw SQL via pgx, favoring explicit queries over a
// heavy ORM.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig tunes the connection pool's shared-resource limits.
type PoolConfig struct {
	DSN         string
	MinConns    int32
	MaxConns    int32
	MaxConnAge  time.Duration
	HealthCheck time.Duration
}

// DefaultPoolConfig returns conservative defaults: a 1-hour connection
// recycle and a 30-second pre-ping health check interval.
func DefaultPoolConfig(dsn string) PoolConfig {
	return PoolConfig{
		DSN:         dsn,
		MinConns:    2,
		MaxConns:    20,
		MaxConnAge:  time.Hour,
		HealthCheck: 30 * time.Second,
	}
}

// NewPool builds a pgxpool.Pool configured per cfg, verifying connectivity
// with an immediate ping.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("repository: parse DSN: %w", err)
	}

	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnLifetime = cfg.MaxConnAge
	poolCfg.HealthCheckPeriod = cfg.HealthCheck

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("repository: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("repository: ping: %w", err)
	}

	return pool, nil
}
