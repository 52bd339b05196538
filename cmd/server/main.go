package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lessonkit/lessonkit/modules/billing"
	"github.com/lessonkit/lessonkit/modules/practice"
	"github.com/lessonkit/lessonkit/pkg/config"
	"github.com/lessonkit/lessonkit/pkg/httpserver"
	"github.com/lessonkit/lessonkit/pkg/logger"
	"github.com/lessonkit/lessonkit/pkg/pg"
	"github.com/lessonkit/lessonkit/pkg/redis"
	"github.com/lessonkit/lessonkit/pkg/subscription"
)

type appConfig struct {
	GracePeriod time.Duration `env:"BILLING_GRACE_PERIOD" envDefault:"336h"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var logCfg logger.Config
	if err := config.Load(&logCfg); err != nil {
		panic(err)
	}
	log := logger.FromConfig(logCfg, logger.WithService("lessonkit"))

	var (
		appCfg     appConfig
		httpCfg    httpserver.Config
		pgCfg      pg.Config
		redisCfg   redis.Config
		paddleCfg  subscription.PaddleConfig
		catalogCfg subscription.CatalogConfig
	)
	if err := errors.Join(
		config.Load(&appCfg),
		config.Load(&httpCfg),
		config.Load(&pgCfg),
		config.Load(&redisCfg),
		config.Load(&paddleCfg),
		config.Load(&catalogCfg),
	); err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		log.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	catalog, err := subscription.NewCatalogFromConfig(catalogCfg)
	if err != nil {
		log.Error("invalid plan catalog", "error", err)
		os.Exit(1)
	}

	provider, err := subscription.NewPaddleProvider(paddleCfg, catalog)
	if err != nil {
		log.Error("failed to create billing provider", "error", err)
		os.Exit(1)
	}

	readiness := []func(context.Context) error{
		func(ctx context.Context) error { return pool.Ping(ctx) },
	}

	opts := []subscription.Option{
		subscription.WithLogger(log),
		subscription.WithGracePeriod(appCfg.GracePeriod),
	}
	if redisCfg.Enabled() {
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer func() { _ = client.Close() }()
		opts = append(opts, subscription.WithDedupeIndex(
			subscription.NewRedisDedupeIndex(client, "lessonkit:billing:event", 0)))
		readiness = append(readiness, redis.Healthcheck(client))
	}

	svc := subscription.NewService(subscription.NewPgStore(pool), provider, catalog, opts...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", httpserver.HealthCheckHandler(log))
	r.Get("/readyz", httpserver.HealthCheckHandler(log, readiness...))
	r.Mount("/", billing.Router(svc, log))
	r.Mount("/practice", practice.Router(practice.NewMemStore(), svc))

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	if err := srv.Run(ctx, r); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}
