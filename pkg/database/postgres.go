// Package database constructs the PostgreSQL connection pool and runs
// schema migrations for the entry store.
package database

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mnemos-ai/mnemos-engine/pkg/config"
	"github.com/mnemos-ai/mnemos-engine/pkg/logging"
	"github.com/mnemos-ai/mnemos-engine/pkg/retry"
)

// DB wraps a pgxpool connection pool.
type DB struct {
	*pgxpool.Pool
}

// NewConnection creates a connection pool from database configuration
// and verifies it with a ping. Transient dial failures (a starting
// database, a dropped connection) are retried with backoff.
func NewConnection(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	resolved := *cfg
	resolved.Host = ResolveHost(cfg.Host)

	connStr := resolved.ConnectionString()

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConnections
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 25
	}
	poolConfig.MinConns = cfg.MinConnections
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*pgxpool.Pool, error) {
		return pgxpool.NewWithConfig(ctx, poolConfig)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		return pool.Ping(ctx)
	}); err != nil {
		pool.Close()
		logger.Error("database ping failed",
			zap.String("host", resolved.Host),
			zap.String("error", logging.RedactError(err)))
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to database",
		zap.String("dsn", logging.RedactConnectionString(connStr)),
		zap.Int32("max_conns", poolConfig.MaxConns))

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

var (
	inDockerOnce   sync.Once
	inDockerResult bool
)

// runningInDocker reports whether the process runs inside a Docker
// container, detected via /.dockerenv. The result is cached.
func runningInDocker() bool {
	inDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		inDockerResult = err == nil
	})
	return inDockerResult
}

// ResolveHost maps loopback hosts to host.docker.internal when the
// process itself runs inside Docker, so a containerized CLI can reach
// a database on the host machine.
func ResolveHost(host string) string {
	return resolveHost(host, runningInDocker())
}

func resolveHost(host string, inDocker bool) string {
	if !inDocker {
		return host
	}
	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}
	return host
}
