package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ManuelReschke/NoteFox/app/repository"
	"github.com/ManuelReschke/NoteFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/NoteFox/internal/pkg/quota"
	"github.com/ManuelReschke/NoteFox/internal/pkg/usercontext"
)

// UsageReporter reads a user's usage without consuming anything.
type UsageReporter interface {
	Snapshot(ctx context.Context, userID string) (entitlements.Plan, []quota.FeatureUsage, error)
}

type AccountController struct {
	users         repository.UserRepository
	subscriptions repository.SubscriptionRepository
	usage         UsageReporter
	log           logrus.FieldLogger
}

func NewAccountController(users repository.UserRepository, subscriptions repository.SubscriptionRepository, usage UsageReporter, log logrus.FieldLogger) *AccountController {
	return &AccountController{users: users, subscriptions: subscriptions, usage: usage, log: log}
}

// HandleGetMe returns the authenticated user's account and their most recently
// updated subscription, or null when they never subscribed.
func (ac *AccountController) HandleGetMe(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	account, err := ac.users.GetByID(c.UserContext(), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
		}
		ac.log.WithError(err).WithField("user_id", userCtx.UserID).Error("account: failed to load user")
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	subs, err := ac.subscriptions.ListByUser(c.UserContext(), userCtx.UserID)
	if err != nil {
		ac.log.WithError(err).WithField("user_id", userCtx.UserID).Error("account: failed to load subscriptions")
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subscription")
	}
	var subscription interface{}
	if len(subs) > 0 {
		sub := subs[0]
		subscription = fiber.Map{
			"id":          sub.ID,
			"plan":        sub.Plan,
			"status":      sub.Status,
			"started_at":  formatTimePtr(&sub.StartedAt),
			"current_end": formatTimePtr(&sub.CurrentEnd),
		}
	}

	plan, _ := entitlements.ParsePlan(account.Plan)
	return c.JSON(fiber.Map{
		"id":              account.ID,
		"email":           account.Email,
		"plan":            plan,
		"plan_updated_at": formatTimePtr(account.PlanUpdatedAt),
		"subscription":    subscription,
	})
}

// HandleGetUsage returns the caller's per-feature usage for the current windows.
func (ac *AccountController) HandleGetUsage(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	plan, features, err := ac.usage.Snapshot(c.UserContext(), userCtx.UserID)
	if err != nil {
		ac.log.WithError(err).WithField("user_id", userCtx.UserID).Error("account: failed to load usage")
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load usage")
	}
	return c.JSON(fiber.Map{"plan": plan, "features": features})
}
