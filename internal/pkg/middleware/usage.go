package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/NoteFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/NoteFox/internal/pkg/quota"
	"github.com/ManuelReschke/NoteFox/internal/pkg/usercontext"
)

// UsageGuard consumes one quota slot per call.
type UsageGuard interface {
	CheckAndConsume(ctx context.Context, userID string, feature entitlements.Feature) (*quota.Grant, error)
}

// EnforceUsageLimit denies the request unless the caller's plan has a slot
// left for feature. It must run after authentication and body validation.
func EnforceUsageLimit(guard UsageGuard, feature entitlements.Feature) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := usercontext.GetUserID(c)
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
		}

		grant, err := guard.CheckAndConsume(c.UserContext(), userID, feature)
		if err != nil {
			return usageError(c, err)
		}
		c.Locals(usercontext.KeyGrant, grant)
		return c.Next()
	}
}

// GrantFrom returns the grant stored by EnforceUsageLimit.
func GrantFrom(c *fiber.Ctx) *quota.Grant {
	g, _ := c.Locals(usercontext.KeyGrant).(*quota.Grant)
	return g
}

func usageError(c *fiber.Ctx, err error) error {
	if !quota.IsDenied(err) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Usage check failed"})
	}

	var limitErr *quota.LimitExceededError
	if !errors.As(err, &limitErr) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "feature_not_entitled", "message": "Your plan does not include this feature"})
	}
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error":      "limit_exceeded",
		"message":    limitErr.Error(),
		"feature":    limitErr.Feature,
		"plan":       limitErr.Plan,
		"period":     limitErr.Period,
		"used_count": limitErr.UsedCount,
		"limit":      limitErr.Limit,
	})
}
