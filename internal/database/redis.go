package database

import (
	"context"
	"fmt"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/config"
)

// NewRedisClient creates and validates a Redis client connection.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Msg("Redis connected")

	return rdb, nil
}

// OpenRedis returns a client for cfg.RedisURL, or for an in-process server
// when cfg.EmbeddedRedis is set. The close function stops both.
func OpenRedis(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, func(), error) {
	if !cfg.EmbeddedRedis {
		rdb, err := NewRedisClient(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return rdb, func() { rdb.Close() }, nil
	}

	srv, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start embedded redis: %w", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		srv.Close()
		return nil, nil, fmt.Errorf("ping embedded redis: %w", err)
	}

	log.Warn().Str("addr", srv.Addr()).Msg("Embedded Redis started, state is lost on exit")
	return rdb, func() {
		rdb.Close()
		srv.Close()
	}, nil
}
