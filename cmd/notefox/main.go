package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/NoteFox/internal/pkg/config"
	"github.com/ManuelReschke/NoteFox/internal/pkg/env"
	"github.com/ManuelReschke/NoteFox/internal/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	log := logging.New(cfg.AppEnv, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := NewApplication(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to start application")
	}
	defer application.Close()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.ListenAddr())
		errCh <- application.App.Listen(cfg.ListenAddr())
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("server stopped")
		}
	case <-ctx.Done():
		log.Info("shutting down")
		if err := application.App.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.WithError(err).Warn("graceful shutdown failed")
		}
	}
}
