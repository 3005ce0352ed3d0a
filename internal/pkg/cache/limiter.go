package cache

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/NoteFox/internal/pkg/config"
)

// LimiterStorage returns the shared rate-limit storage. It uses the database
// after the counters' one so limiter keys never mix with usage hashes.
// The storage pings on creation and panics when the server is unreachable,
// so callers check the connection first.
func LimiterStorage(cfg config.Cache) fiber.Storage {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		port = 6379
	}
	return redisstorage.New(redisstorage.Config{
		Host:     cfg.Host,
		Port:     port,
		Password: cfg.Password,
		Database: limiterDB(cfg.DB),
		Reset:    false,
	})
}

func limiterDB(db int) int {
	if db >= 15 {
		return 14
	}
	return db + 1
}
