package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// postgresApplicationName tags answer-store connections in pg_stat_activity.
const postgresApplicationName = "exstem-runner"

const postgresConnectTimeout = 5 * time.Second

// postgresConfig parses url and applies the runner's pool limits. A session
// writes one row at a time, so a small pool is enough.
func postgresConfig(url string, maxConns int32) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if maxConns < 1 {
		maxConns = 1
	}
	poolCfg.MaxConns = maxConns
	poolCfg.MaxConnIdleTime = time.Minute
	poolCfg.ConnConfig.ConnectTimeout = postgresConnectTimeout
	if poolCfg.ConnConfig.RuntimeParams == nil {
		poolCfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	if _, ok := poolCfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = postgresApplicationName
	}
	return poolCfg, nil
}

// OpenPostgres connects the answer-store pool and checks it is reachable.
// The returned function closes the pool.
func OpenPostgres(ctx context.Context, url string, maxConns int32, log zerolog.Logger) (*pgxpool.Pool, func(), error) {
	poolCfg, err := postgresConfig(url, maxConns)
	if err != nil {
		return nil, nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, postgresConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info().
		Str("host", poolCfg.ConnConfig.Host).
		Str("database", poolCfg.ConnConfig.Database).
		Int32("max_conns", poolCfg.MaxConns).
		Msg("PostgreSQL answer store connected")

	return pool, pool.Close, nil
}
