package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the cache needs. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresCache is a Cache backed by a relational table, for deployments
// that already run Postgres and do not want a second shared service. TTL is
// enforced in the query, so an expired row behaves as a miss without a
// background sweep.
type PostgresCache struct {
	pool Pool
}

// NewPostgres creates a Postgres-backed cache over an existing pool.
func NewPostgres(pool Pool) *PostgresCache {
	return &PostgresCache{pool: pool}
}

// Migrate creates the cache table if missing.
func (c *PostgresCache) Migrate(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS enrichment_cache (
			cache_key  TEXT PRIMARY KEY,
			result     JSONB NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`)
	return err
}

func (c *PostgresCache) Get(ctx context.Context, key string) (*model.RawModelResult, bool) {
	var raw []byte
	err := c.pool.QueryRow(ctx,
		`SELECT result FROM enrichment_cache WHERE cache_key = $1 AND expires_at > now()`,
		key,
	).Scan(&raw)
	if err != nil {
		if err != pgx.ErrNoRows {
			zap.L().Warn("cache: postgres get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var result model.RawModelResult
	if err := json.Unmarshal(raw, &result); err != nil {
		zap.L().Warn("cache: postgres entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &result, true
}

func (c *PostgresCache) Set(ctx context.Context, key string, result *model.RawModelResult, ttl time.Duration) {
	if result == nil || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		zap.L().Warn("cache: marshal result", zap.String("key", key), zap.Error(err))
		return
	}

	_, err = c.pool.Exec(ctx, `
		INSERT INTO enrichment_cache (cache_key, result, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (cache_key) DO UPDATE SET
			result = EXCLUDED.result,
			expires_at = EXCLUDED.expires_at`,
		key, raw, time.Now().UTC().Add(ttl),
	)
	if err != nil {
		zap.L().Warn("cache: postgres set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *PostgresCache) Delete(ctx context.Context, key string) {
	if _, err := c.pool.Exec(ctx, `DELETE FROM enrichment_cache WHERE cache_key = $1`, key); err != nil {
		zap.L().Warn("cache: postgres delete failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *PostgresCache) Clear(ctx context.Context, pattern string) {
	var err error
	if pattern == "" {
		_, err = c.pool.Exec(ctx, `DELETE FROM enrichment_cache`)
	} else {
		_, err = c.pool.Exec(ctx,
			`DELETE FROM enrichment_cache WHERE cache_key LIKE '%' || $1 || '%'`, pattern)
	}
	if err != nil {
		zap.L().Warn("cache: postgres clear failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
