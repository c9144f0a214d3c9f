package repository

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/evetabi/opportunity/internal/config"
)

// Open builds the backend selected by cfg.Backend. The returned closer
// releases any connection the backend holds. The postgres driver must be
// registered by the caller.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Backend, io.Closer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryBackend(), nopCloser{}, nil

	case config.BackendFile:
		logger.Info("file store", "path", cfg.FilePath)
		return NewFileBackend(cfg.FilePath), nopCloser{}, nil

	case config.BackendPostgres:
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("repository.Open: postgres connect: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

		pg := NewPostgresBackend(db, cfg.Key)
		if err = pg.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("repository.Open: %w", err)
		}
		logger.Info("database connected")
		return pg, db, nil

	case config.BackendRedis:
		rb, err := NewRedisBackend(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.Key)
		if err != nil {
			return nil, nil, fmt.Errorf("repository.Open: %w", err)
		}
		logger.Info("redis connected", "addr", cfg.RedisAddr)
		return rb, rb, nil

	default:
		return nil, nil, fmt.Errorf("repository.Open: unknown backend %q", cfg.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
