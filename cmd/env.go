package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/cache"
	"github.com/sells-group/enrich-cli/internal/enrich"
	"github.com/sells-group/enrich-cli/internal/evaluator"
	"github.com/sells-group/enrich-cli/internal/ledger"
	"github.com/sells-group/enrich-cli/internal/ratelimit"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/internal/review"
	"github.com/sells-group/enrich-cli/pkg/llm"
)

// pipelineEnv bundles the wired pipeline components for a command run.
type pipelineEnv struct {
	Store    ledger.Store
	Cache    cache.Cache
	Limiter  *ratelimit.Limiter
	Reviews  *review.Queue
	Enricher *enrich.Enricher

	closers []func()
}

func (e *pipelineEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func initEnv(ctx context.Context) (*pipelineEnv, error) {
	env := &pipelineEnv{}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env.Store = st
	env.closers = append(env.closers, func() { _ = st.Close() })

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	c, err := initCache(ctx, env)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Cache = c

	ev, err := initEvaluator()
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Limiter = ratelimit.NewLimiter(ratelimit.Config{
		PerMinute: cfg.RateLimit.PerMinute,
		PerHour:   cfg.RateLimit.PerHour,
		PerDay:    cfg.RateLimit.PerDay,
	})

	var notifier *review.Notifier
	if cfg.Review.WebhookURL != "" {
		notifier = review.NewNotifier(cfg.Review.WebhookURL)
	}
	env.Reviews = review.NewQueue(st, notifier)

	provider := llm.NewAnthropic(cfg.Anthropic.Key, cfg.Anthropic.Model, llm.WithRateLimit(cfg.Anthropic.RPS))

	enricher, err := enrich.New(enrich.Options{
		Provider:  provider,
		Cache:     env.Cache,
		Limiter:   env.Limiter,
		Evaluator: ev,
		Store:     st,
		Reviews:   env.Reviews,
		Health:    resilience.NewHealth(cfg.Health.FailureThreshold),
		Retry: resilience.RetryConfig{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Retry.MaxDelaySecs) * time.Second,
		},
		CacheTTL:  cfg.Cache.TTL(),
		MaxTokens: cfg.Anthropic.MaxTokens,
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Enricher = enricher

	return env, nil
}

func initStore(ctx context.Context) (ledger.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return ledger.NewPostgres(ctx, cfg.Store.DatabaseURL, &ledger.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite":
		return ledger.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

func initCache(ctx context.Context, env *pipelineEnv) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "memory", "":
		return cache.NewMemory(), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, eris.Wrap(err, "redis: ping")
		}
		env.closers = append(env.closers, func() { _ = client.Close() })
		zap.L().Info("cache backend: redis", zap.String("addr", cfg.Cache.RedisAddr))
		return cache.NewRedis(client, cfg.Cache.Prefix), nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "cache: create pool")
		}
		env.closers = append(env.closers, pool.Close)
		pc := cache.NewPostgres(pool)
		if err := pc.Migrate(ctx); err != nil {
			return nil, eris.Wrap(err, "cache: migrate")
		}
		return pc, nil

	default:
		return nil, eris.Errorf("unknown cache backend: %s", cfg.Cache.Backend)
	}
}

func initEvaluator() (*evaluator.Evaluator, error) {
	evalCfg := evaluator.DefaultConfig()
	if cfg.Evaluator.RulesFile != "" {
		loaded, err := evaluator.LoadRulesFile(cfg.Evaluator.RulesFile)
		if err != nil {
			return nil, err
		}
		evalCfg = loaded
	}
	if cfg.Evaluator.DefaultThreshold > 0 {
		evalCfg.DefaultThreshold = cfg.Evaluator.DefaultThreshold
	}
	if len(cfg.Evaluator.FieldThresholds) > 0 {
		evalCfg.FieldThresholds = cfg.Evaluator.FieldThresholds
	}
	return evaluator.New(evalCfg)
}
