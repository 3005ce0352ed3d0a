package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/NoteFox/internal/pkg/env"
)

// MigrateConfig configures the schema migration command.
type MigrateConfig struct {
	AppEnv         string `validate:"oneof=dev prod test"`
	Database       Database
	MigrationsPath string `validate:"required"`
}

func LoadMigrate() (*MigrateConfig, error) {
	cfg := &MigrateConfig{
		AppEnv:         env.GetEnv("APP_ENV", "prod"),
		Database:       databaseFromEnv(),
		MigrationsPath: env.GetEnv("MIGRATIONS_PATH", "migrations"),
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid migrate configuration: %w", err)
	}
	// sqlite schemas are created by AutoMigrate at startup.
	if cfg.Database.Driver != "mysql" {
		return nil, errors.New("invalid migrate configuration: migrations require DB_DRIVER=mysql")
	}
	return cfg, nil
}

// MigrateURL returns the golang-migrate database URL of a MySQL database.
func (d Database) MigrateURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}
