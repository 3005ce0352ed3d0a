package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/NoteFox/internal/pkg/billing"
)

const (
	HeaderRazorpaySignature = "X-Razorpay-Signature"
	HeaderRazorpayEventID   = "X-Razorpay-Event-Id"
)

// BillingController receives payment provider webhooks.
type BillingController struct {
	svc    *billing.Service
	secret string
	log    logrus.FieldLogger
}

func NewBillingController(svc *billing.Service, webhookSecret string, log logrus.FieldLogger) *BillingController {
	return &BillingController{svc: svc, secret: webhookSecret, log: log}
}

// HandleRazorpayWebhook verifies, records and reconciles a subscription
// webhook. Nothing is persisted for a delivery with a bad signature.
func (bc *BillingController) HandleRazorpayWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get(HeaderRazorpaySignature))
	eventID := strings.TrimSpace(c.Get(HeaderRazorpayEventID))

	if signature == "" {
		return jsonError(c, fiber.StatusBadRequest, "missing_signature", "Missing signature header")
	}
	if !billing.VerifyRazorpayWebhookSignature(rawBody, signature, bc.secret) {
		bc.log.WithField("provider_event_id", eventID).Warn("billing: invalid webhook signature")
		return jsonError(c, fiber.StatusBadRequest, "invalid_signature", "Invalid signature")
	}

	outcome, err := bc.svc.ProcessWebhook(c.UserContext(), eventID, rawBody)
	if err != nil {
		return bc.webhookError(c, eventID, err)
	}

	if outcome.Duplicate {
		return c.JSON(fiber.Map{"status": "success", "duplicate": true})
	}
	return c.JSON(fiber.Map{"status": "success", "result": outcome.Result})
}

func (bc *BillingController) webhookError(c *fiber.Ctx, eventID string, err error) error {
	log := bc.log.WithError(err).WithField("provider_event_id", eventID)
	if !billing.IsClientError(err) {
		log.Error("billing: webhook reconciliation failed")
		return jsonError(c, fiber.StatusInternalServerError, "reconciliation_failed", "Database update failed")
	}

	log.Warn("billing: rejected webhook payload")
	if errors.Is(err, billing.ErrUnrecognizedPlan) {
		return jsonError(c, fiber.StatusBadRequest, "unrecognized_plan", "Unrecognized plan ID")
	}
	return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Missing required subscription fields")
}
