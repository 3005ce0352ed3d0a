package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/NoteFox/internal/pkg/config"
	"github.com/ManuelReschke/NoteFox/internal/pkg/env"
	"github.com/ManuelReschke/NoteFox/internal/pkg/logging"
	"github.com/ManuelReschke/NoteFox/internal/pkg/metrics"
	"github.com/ManuelReschke/NoteFox/internal/pkg/relay"
)

func main() {
	env.SetupEnvFile()

	cfg, err := config.LoadRelay()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load relay configuration")
	}
	log := logging.New(cfg.AppEnv, os.Stdout)
	m := metrics.New(prometheus.NewRegistry())
	r := relay.New(cfg, log, m)

	app := fiber.New()
	app.Use(recover.New(), logger.New(), cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: fiber.MethodPost,
		AllowHeaders: "*",
	}))
	app.Post("/proxy/razorpay-webhook", r.HandleWebhook)
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if cfg.Metrics.Password != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{cfg.Metrics.User: cfg.Metrics.Password},
		}), m.Handler())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("relay listening on %s, forwarding to %s", cfg.ListenAddr(), cfg.TargetURL)
		errCh <- app.Listen(cfg.ListenAddr())
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("relay stopped")
		}
	case <-ctx.Done():
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Warn("graceful shutdown failed")
		}
	}
}
