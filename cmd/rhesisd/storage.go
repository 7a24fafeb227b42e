package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rhesis-ai/rhesis-backend/domain"
	"github.com/rhesis-ai/rhesis-backend/sietch"
)

// storage holds the shared connections. Without a pool every table lives
// in memory.
type storage struct {
	pool  *pgxpool.Pool
	redis *redis.Client
	ttl   time.Duration
	log   *zap.Logger
}

func openStorage(ctx context.Context, cfg *Config, log *zap.Logger) (*storage, error) {
	s := &storage{ttl: cfg.Redis.TTL, log: log}

	if cfg.Database.DSN == "" {
		log.Warn("no database configured, using in-memory storage")
		return s, nil
	}

	pool, err := sietch.NewPostgresConnPool(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	s.pool = pool

	if cfg.Database.Migrate {
		if err := migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, caching disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			_ = client.Close()
		} else {
			s.redis = client
		}
	}
	return s, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	var (
		defs []*sietch.TableDef
		errs error
	)
	add := func(def *sietch.TableDef, err error) {
		if err != nil {
			errs = multierr.Append(errs, err)
			return
		}
		defs = append(defs, def)
	}
	add(sietch.InferTableDef[domain.TestSet](domain.TableTestSet))
	add(sietch.InferTableDef[domain.Test](domain.TableTest))
	add(sietch.InferTableDef[domain.TestRun](domain.TableTestRun))
	add(sietch.InferTableDef[domain.TestResult](domain.TableTestResult))
	add(sietch.InferTableDef[domain.Model](domain.TableModel))
	if errs != nil {
		return fmt.Errorf("failed to infer schema: %w", errs)
	}
	return sietch.Migrate(ctx, pool, defs...)
}

func (s *storage) Close() error {
	var err error
	if s.redis != nil {
		err = s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// repository builds the repository of table. Cacheable tables get a Redis
// read cache when one is configured; tables holding secrets must not, since
// cached values are JSON and secrets are redacted there.
func repository[T any](s *storage, table string, cacheable bool) (sietch.Repository[T, string], error) {
	if s.pool == nil {
		repo := sietch.NewInMemoryConnector[T](domain.ID[T])
		repo.AddHook(&sietch.TimestampHook[T, string]{})
		return repo, nil
	}

	conn, err := sietch.NewPostgresConnector[T](s.pool, table, domain.ID[T])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", table, err)
	}
	conn.AddHook(&sietch.TimestampHook[T, string]{})
	conn.SetLogger(sietch.NewZapLogger(s.log.Named("sietch")))

	if !cacheable || s.redis == nil {
		return conn, nil
	}
	cache := sietch.NewRedisConnector[T](s.redis, s.ttl, domain.ID[T], func(id string) string {
		return "rhesis:" + table + ":" + id
	})
	return sietch.NewCachedRepository[T, string](conn, cache, s.ttl), nil
}
