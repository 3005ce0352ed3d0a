package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
)

type SystemRouter struct {
	deps Deps
}

func (s SystemRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", s.deps.Health.HandleHealthz)

	if s.deps.Metrics != nil && s.deps.MetricsPassword != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{
				s.deps.MetricsUser: s.deps.MetricsPassword,
			},
		}), s.deps.Metrics.Handler())
	}
}

func NewSystemRouter(deps Deps) *SystemRouter {
	return &SystemRouter{deps: deps}
}
