package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/NoteFox/app/models"
	"github.com/ManuelReschke/NoteFox/internal/pkg/auth"
	"github.com/ManuelReschke/NoteFox/internal/pkg/usercontext"
)

// UserRegistry mirrors identity-provider accounts into the local users table.
type UserRegistry interface {
	GetOrCreate(ctx context.Context, id, email string) (*models.User, error)
}

// RequireBearerAuth authenticates the Authorization bearer token and stores
// the caller in the request's user context.
func RequireBearerAuth(verifier auth.TokenVerifier, users UserRegistry, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing bearer token"})
		}

		identity, err := verifier.VerifyToken(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid or expired token"})
			}
			log.WithError(err).Error("auth: token verification failed")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "auth_unavailable", "message": "Authentication service unavailable"})
		}

		user, err := users.GetOrCreate(c.UserContext(), identity.UserID, identity.Email)
		if err != nil {
			log.WithError(err).WithField("user_id", identity.UserID).Error("auth: failed to load user")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
		}

		usercontext.Set(c, usercontext.UserContext{
			UserID:     user.ID,
			Email:      user.Email,
			IsLoggedIn: true,
		})
		return c.Next()
	}
}
