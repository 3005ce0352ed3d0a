package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/NoteFox/app/models"
	"github.com/ManuelReschke/NoteFox/internal/pkg/logging"
	"github.com/ManuelReschke/NoteFox/internal/pkg/metrics"
	"github.com/ManuelReschke/NoteFox/internal/pkg/quota"
)

// UsageResetter zeroes every usage counter of a user.
type UsageResetter interface {
	ResetAll(ctx context.Context, userID string, resetAt time.Time) error
}

// Service reconciles provider subscription state into local tables.
type Service struct {
	repo    Repository
	usage   UsageResetter
	plans   PlanLookup
	loc     *time.Location
	now     func() time.Time
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the time zone "today" is evaluated in for usage resets.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository, usage UsageResetter, plans PlanLookup, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		usage: usage,
		plans: plans,
		loc:   time.UTC,
		now:   time.Now,
		log:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile applies a verified subscription event: it upserts the
// subscription, then writes the user's plan, then resets usage on activation.
// Nothing is written when the plan id is unknown.
func (s *Service) Reconcile(ctx context.Context, ev *SubscriptionEvent) (*ReconcileResult, error) {
	log := s.log.WithFields(logrus.Fields{
		"event":           ev.Event,
		"subscription_id": ev.SubscriptionID,
		"user_id":         ev.CustomerID,
	})

	mapped, ok := s.plans.Resolve(ev.PlanID)
	if !ok {
		log.WithField("plan_id", ev.PlanID).Warn("billing: unrecognized plan id")
		return nil, fmt.Errorf("%w: %s", ErrUnrecognizedPlan, ev.PlanID)
	}

	res := &ReconcileResult{
		UserID:         ev.CustomerID,
		SubscriptionID: ev.SubscriptionID,
		Plan:           string(mapped),
		Status:         ev.Status,
	}

	sub := &models.Subscription{
		ID:             ev.SubscriptionID,
		UserID:         ev.CustomerID,
		Plan:           string(mapped),
		ProviderPlanID: ev.PlanID,
		Status:         ev.Status,
		StartedAt:      ev.StartAt,
		CurrentEnd:     ev.CurrentEnd,
		RawPayloadJSON: ev.RawPayloadJSON,
	}
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		log.WithError(err).Error("billing: upsert subscription failed")
		return nil, fmt.Errorf("%w: upsert subscription: %w", ErrStorage, err)
	}

	now := s.now()
	if err := s.repo.SetUserPlan(ctx, ev.CustomerID, res.Plan, now.UTC()); err != nil {
		log.WithError(err).Error("billing: update user plan failed")
		return nil, &PartialReconciliationError{Step: "user_plan", SubscriptionID: ev.SubscriptionID, Err: err}
	}

	if IsActivationEvent(ev.Event) {
		if err := s.usage.ResetAll(ctx, ev.CustomerID, quota.Today(now, s.loc)); err != nil {
			log.WithError(err).Error("billing: usage reset failed")
			return nil, &PartialReconciliationError{Step: "usage_reset", SubscriptionID: ev.SubscriptionID, Err: err}
		}
		res.UsageReset = true
	}

	log.WithFields(logrus.Fields{"plan": res.Plan, "status": ev.Status, "usage_reset": res.UsageReset}).
		Info("billing: subscription reconciled")
	return res, nil
}

// ProcessWebhook handles the body of a verified webhook delivery. Events are
// recorded in the webhook ledger first; a delivery whose earlier copy was
// processed without error is acknowledged as a duplicate.
func (s *Service) ProcessWebhook(ctx context.Context, providerEventID string, body []byte) (*WebhookOutcome, error) {
	event, err := RazorpayEventType(body)
	if err != nil {
		s.metrics.WebhookEvent("unknown", "malformed")
		return nil, err
	}

	created, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.BillingProviderRazorpay,
		ProviderEventID: providerEventID,
		EventType:       event,
		PayloadJSON:     string(body),
	})
	if err != nil {
		s.metrics.WebhookEvent(event, "error")
		return nil, fmt.Errorf("%w: record webhook event: %w", ErrStorage, err)
	}
	if !created && stored.Succeeded() {
		s.metrics.WebhookEvent(event, "duplicate")
		s.log.WithFields(logrus.Fields{"event": event, "provider_event_id": stored.ProviderEventID}).Info("billing: duplicate webhook")
		return &WebhookOutcome{Duplicate: true}, nil
	}

	ev, err := ParseRazorpaySubscriptionEvent(body)
	if err == nil {
		var res *ReconcileResult
		res, err = s.Reconcile(ctx, ev)
		if err == nil {
			s.markProcessed(ctx, stored.ID, nil)
			s.metrics.WebhookEvent(event, "processed")
			return &WebhookOutcome{Result: res}, nil
		}
	}

	s.markProcessed(ctx, stored.ID, err)
	s.metrics.WebhookEvent(event, outcomeOf(err))
	return nil, err
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, errMsg)
}

func (s *Service) markProcessed(ctx context.Context, id uint, processingErr error) {
	if err := s.MarkWebhookProcessed(ctx, id, processingErr); err != nil {
		s.log.WithError(err).WithField("webhook_event_id", id).Warn("billing: failed to mark webhook processed")
	}
}

func outcomeOf(err error) string {
	var partial *PartialReconciliationError
	switch {
	case errors.Is(err, ErrMalformedPayload):
		return "malformed"
	case errors.Is(err, ErrUnrecognizedPlan):
		return "unrecognized_plan"
	case errors.As(err, &partial):
		return "partial"
	default:
		return "error"
	}
}
