package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/idan157001/TestShuffleFinal/internal/config"
)

// Database owns the Postgres pool behind the exams table.
type Database struct {
	Pool *pgxpool.Pool
}

// PoolStats is the snapshot of the exams pool reported by /healthz.
type PoolStats struct {
	MaxConns      int32 `json:"max_conns"`
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	AcquireCount  int64 `json:"acquire_count"`
	EmptyAcquires int64 `json:"empty_acquire_count"`
}

// poolConfig applies the configured sizing on top of the URL. Settings left
// at zero keep the pgx defaults or whatever the URL carries.
func poolConfig(databaseURL string, pool config.PoolConfig) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}
	if pool.MaxConns > 0 {
		cfg.MaxConns = pool.MaxConns
	}
	if pool.MinConns > 0 {
		cfg.MinConns = pool.MinConns
	}
	if cfg.MinConns > cfg.MaxConns {
		return nil, fmt.Errorf("min conns %d exceeds max conns %d", cfg.MinConns, cfg.MaxConns)
	}
	if pool.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pool.MaxConnLifetime
	}
	if pool.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pool.MaxConnIdleTime
	}
	return cfg, nil
}

// Connect opens the exams pool and fails unless the server answers a ping.
func Connect(ctx context.Context, databaseURL string, pool config.PoolConfig) (*Database, error) {
	cfg, err := poolConfig(databaseURL, pool)
	if err != nil {
		return nil, err
	}

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return &Database{Pool: p}, nil
}

func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

func (db *Database) HealthCheck(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database pool is nil")
	}
	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func (db *Database) Stats() PoolStats {
	if db.Pool == nil {
		return PoolStats{}
	}
	return statsFrom(db.Pool.Stat())
}

func statsFrom(s *pgxpool.Stat) PoolStats {
	return PoolStats{
		MaxConns:      s.MaxConns(),
		TotalConns:    s.TotalConns(),
		IdleConns:     s.IdleConns(),
		AcquiredConns: s.AcquiredConns(),
		AcquireCount:  s.AcquireCount(),
		EmptyAcquires: s.EmptyAcquireCount(),
	}
}
