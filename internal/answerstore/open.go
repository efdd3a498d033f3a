package answerstore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/config"
	"github.com/stemsi/exstem-runner/internal/database"
)

// Backend is a Store that also remembers question order.
type Backend interface {
	Store
	OrderStore
}

// Open builds the backend named by cfg.AnswerStore. The returned close
// function releases the underlying connection.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Backend, func(), error) {
	log = log.With().Str("component", "answerstore").Str("driver", cfg.AnswerStore).Logger()

	switch cfg.AnswerStore {
	case "sqlite":
		db, err := database.NewSQLite(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		store, err := NewSQLite(ctx, db, cfg.SubjectID)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil

	case "redis":
		rdb, closeRedis, err := database.OpenRedis(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return NewRedis(rdb, cfg.SubjectID), closeRedis, nil

	case "postgres":
		if err := Migrate(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		pool, closePool, err := database.OpenPostgres(ctx, cfg.DatabaseURL, cfg.MaxDBConns, log)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgres(pool, cfg.SubjectID), closePool, nil

	case "memory":
		log.Warn().Msg("Answers will not survive a restart")
		return NewMemory(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.AnswerStore)
	}
}
