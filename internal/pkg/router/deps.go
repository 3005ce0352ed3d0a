package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/NoteFox/app/controllers"
	"github.com/ManuelReschke/NoteFox/internal/pkg/auth"
	"github.com/ManuelReschke/NoteFox/internal/pkg/metrics"
	"github.com/ManuelReschke/NoteFox/internal/pkg/middleware"
)

// UsageGuard is the quota guard as seen by the routes: metered endpoints
// consume through it and /api/usage reads from it.
type UsageGuard interface {
	middleware.UsageGuard
	controllers.UsageReporter
}

// Deps carries everything the routes need. Nil Metrics disables /metrics and
// a nil LimiterStorage keeps rate-limit counters in process memory.
type Deps struct {
	Log      logrus.FieldLogger
	Verifier auth.TokenVerifier
	Users    middleware.UserRegistry
	Guard    UsageGuard

	Study   *controllers.StudyController
	Billing *controllers.BillingController
	Account *controllers.AccountController
	Health  *controllers.HealthController

	Metrics         *metrics.Metrics
	MetricsUser     string
	MetricsPassword string

	CORSAllowedOrigins string
	MaxUploadBytes     int64
	RateLimitMax       int
	RateLimitWindow    time.Duration
	LimiterStorage     fiber.Storage
}
