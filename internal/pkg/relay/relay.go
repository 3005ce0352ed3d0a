package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/NoteFox/internal/pkg/billing"
	"github.com/ManuelReschke/NoteFox/internal/pkg/config"
	"github.com/ManuelReschke/NoteFox/internal/pkg/metrics"
)

const (
	headerSignature = "X-Razorpay-Signature"
	headerEventID   = "X-Razorpay-Event-Id"
)

// Relay verifies provider webhooks at the edge and forwards them unchanged
// to the backend.
type Relay struct {
	secret     string
	target     string
	httpClient *http.Client
	log        logrus.FieldLogger
	metrics    *metrics.Metrics
}

func New(cfg *config.RelayConfig, log logrus.FieldLogger, m *metrics.Metrics) *Relay {
	return &Relay{
		secret:     cfg.WebhookSecret,
		target:     cfg.TargetURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
		metrics:    m,
	}
}

// HandleWebhook rejects unsigned or forged deliveries with 400 and answers
// 502 when the backend cannot be reached or refuses the delivery.
func (r *Relay) HandleWebhook(c *fiber.Ctx) error {
	body := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get(headerSignature))
	if signature == "" {
		r.metrics.RelayForward("missing_signature")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_signature", "message": "Missing signature"})
	}
	if !billing.VerifyRazorpayWebhookSignature(body, signature, r.secret) {
		r.metrics.RelayForward("invalid_signature")
		r.log.Warn("relay: invalid webhook signature")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature", "message": "Invalid signature"})
	}

	requestID := uuid.NewString()
	log := r.log.WithField("forward_id", requestID)
	if err := r.forward(c.UserContext(), body, signature, c.Get(headerEventID), c.IP(), requestID); err != nil {
		r.metrics.RelayForward("upstream_error")
		log.WithError(err).Error("relay: forwarding failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "forward_failed", "message": "Failed to forward webhook"})
	}

	r.metrics.RelayForward("forwarded")
	log.Info("relay: webhook forwarded")
	return c.JSON(fiber.Map{"status": "success"})
}

func (r *Relay) forward(ctx context.Context, body []byte, signature, eventID, clientIP, requestID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSignature, signature)
	if eventID != "" {
		req.Header.Set(headerEventID, eventID)
	}
	req.Header.Set("X-Forwarded-For", clientIP)
	req.Header.Set("X-Request-Id", requestID)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("target answered %d", resp.StatusCode)
	}
	return nil
}
