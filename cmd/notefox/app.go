package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ManuelReschke/NoteFox/app/controllers"
	"github.com/ManuelReschke/NoteFox/app/repository"
	"github.com/ManuelReschke/NoteFox/internal/pkg/auth"
	"github.com/ManuelReschke/NoteFox/internal/pkg/billing"
	"github.com/ManuelReschke/NoteFox/internal/pkg/cache"
	"github.com/ManuelReschke/NoteFox/internal/pkg/config"
	"github.com/ManuelReschke/NoteFox/internal/pkg/database"
	"github.com/ManuelReschke/NoteFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/NoteFox/internal/pkg/extract"
	"github.com/ManuelReschke/NoteFox/internal/pkg/metrics"
	"github.com/ManuelReschke/NoteFox/internal/pkg/quota"
	"github.com/ManuelReschke/NoteFox/internal/pkg/router"
	"github.com/ManuelReschke/NoteFox/internal/pkg/studio"
)

// Application is the wired HTTP server and the resources it owns.
type Application struct {
	App   *fiber.App
	db    *gorm.DB
	redis *redis.Client
}

func (a *Application) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func NewApplication(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Application, error) {
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// MySQL schemas are managed by cmd/migrate.
	if cfg.Database.Driver == "sqlite" {
		if err := database.Migrate(db); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	a := &Application{db: db}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	checks := map[string]controllers.HealthCheck{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}

	var limiterStorage fiber.Storage
	if cfg.Cache.Addr() != "" {
		a.redis = cache.NewClient(ctx, cfg.Cache, log)
		checks["cache"] = func(ctx context.Context) error { return cache.Ping(ctx, a.redis) }
		if err := cache.Ping(ctx, a.redis); err == nil {
			limiterStorage = cache.LimiterStorage(cfg.Cache)
		} else {
			log.Warn("rate limiting falls back to in-memory counters")
		}
	}

	var store quota.Store
	switch cfg.UsageBackend {
	case "redis":
		store = quota.NewRedisStore(a.redis, "notefox")
	default:
		store = quota.NewSQLStore(db, quota.WithSQLMetrics(m))
	}

	repos := repository.NewFactory(db)
	users := repos.GetUserRepository()
	guard := quota.NewGuard(users, entitlements.DefaultCatalog(), store,
		quota.WithLocation(cfg.Location),
		quota.WithLogger(log),
		quota.WithMetrics(m),
	)
	billingSvc := billing.NewService(billing.NewRepository(db), store, billing.NewPlanLookup(cfg.Razorpay.PlanMap),
		billing.WithLocation(cfg.Location),
		billing.WithLogger(log),
		billing.WithMetrics(m),
	)
	generator := studio.NewTogetherClient(cfg.Together, log)

	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.MaxUploadBytes) + 1<<20,
	})
	app.Use(recover.New(), requestid.New(), logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	// SWAGGER / OPENAPI
	if specPath := findOpenAPISpec(); specPath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: specPath,
			Path:     "v1",
		}))
	}

	router.InstallRouter(app, router.Deps{
		Log:      log,
		Verifier: auth.NewSupabaseClient(cfg.Supabase),
		Users:    users,
		Guard:    guard,

		Study:   controllers.NewStudyController(studio.New(generator), extract.NewFetcher(cfg.MaxUploadBytes), log),
		Billing: controllers.NewBillingController(billingSvc, cfg.Razorpay.WebhookSecret, log),
		Account: controllers.NewAccountController(users, repos.GetSubscriptionRepository(), guard, log),
		Health:  controllers.NewHealthController(checks),

		Metrics:         m,
		MetricsUser:     cfg.Metrics.User,
		MetricsPassword: cfg.Metrics.Password,

		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		RateLimitMax:       cfg.RateLimitMax,
		RateLimitWindow:    cfg.RateLimitWindow,
		LimiterStorage:     limiterStorage,
	})

	a.App = app
	return a, nil
}

func findOpenAPISpec() string {
	for _, base := range []string{"./", "../../", "../../../"} {
		path := base + "docs/v1/openapi.yml"
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
