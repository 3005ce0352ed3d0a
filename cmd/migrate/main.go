package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/NoteFox/internal/pkg/config"
	"github.com/ManuelReschke/NoteFox/internal/pkg/env"
	"github.com/ManuelReschke/NoteFox/internal/pkg/logging"
)

func main() {
	env.SetupEnvFile()
	cfg, err := config.LoadMigrate()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	log := logging.New(cfg.AppEnv, os.Stdout)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]

	log.WithFields(logrus.Fields{
		"user": cfg.Database.User,
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
		"name": cfg.Database.Name,
	}).Info("connecting to database")

	m, err := migrate.New("file://"+cfg.MigrationsPath, cfg.Database.MigrateURL())
	if err != nil {
		log.WithError(err).Fatal("failed to initialize migrations")
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Warnf("failed to close migration resources: %v, %v", sourceErr, dbErr)
		}
	}()

	switch command {
	case "up":
		report(log, m.Up(), "migrations applied")

	case "down":
		report(log, m.Steps(-1), "last migration rolled back")

	case "goto":
		if len(os.Args) < 3 {
			log.Fatal("goto needs a version number")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.WithError(err).Fatal("invalid version number")
		}
		report(log, m.Migrate(uint(version)), fmt.Sprintf("migrated to version %d", version))

	case "status":
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			log.Info("no migrations applied yet")
		case err != nil:
			log.WithError(err).Fatal("failed to read migration version")
		default:
			log.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("current migration version")
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func report(log logrus.FieldLogger, err error, success string) {
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("no change: database is up to date")
	case err != nil:
		log.WithError(err).Fatal("migration failed")
	default:
		log.Info(success)
	}
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go [command]")
	fmt.Println("Commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - show the current migration version")
}
