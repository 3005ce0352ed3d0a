package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/NoteFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/NoteFox/internal/pkg/logging"
	"github.com/ManuelReschke/NoteFox/internal/pkg/metrics"
)

// PlanResolver looks up a user's current plan.
type PlanResolver interface {
	ResolvePlan(ctx context.Context, userID string) (entitlements.Plan, error)
}

// Grant is the proof of a consumed slot.
type Grant struct {
	UserID    string
	Feature   entitlements.Feature
	Plan      entitlements.Plan
	Rule      entitlements.Rule
	UsedCount int64
}

// FeatureUsage is the read-only view of one feature for a user's plan.
type FeatureUsage struct {
	Feature   entitlements.Feature `json:"feature"`
	UsedCount int64                `json:"used_count"`
	Limit     entitlements.Limit   `json:"limit"`
	Period    entitlements.Period  `json:"period"`
	ResetAt   time.Time            `json:"reset_at"`
	Remaining *int64               `json:"remaining"`
}

// Guard gates metered features behind the per-plan quotas.
type Guard struct {
	plans   PlanResolver
	catalog entitlements.Catalog
	store   Store
	loc     *time.Location
	now     func() time.Time
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

type Option func(*Guard)

func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithLocation sets the time zone windows roll over in.
func WithLocation(loc *time.Location) Option {
	return func(g *Guard) {
		if loc != nil {
			g.loc = loc
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(g *Guard) { g.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

func NewGuard(plans PlanResolver, catalog entitlements.Catalog, store Store, opts ...Option) *Guard {
	g := &Guard{
		plans:   plans,
		catalog: catalog,
		store:   store,
		loc:     time.UTC,
		now:     time.Now,
		log:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckAndConsume allows the call and consumes one slot, or denies it with
// ErrFeatureNotEntitled or *LimitExceededError. Any lookup or storage failure
// is returned wrapped in ErrStorage and never counts as allowed.
func (g *Guard) CheckAndConsume(ctx context.Context, userID string, feature entitlements.Feature) (*Grant, error) {
	log := g.log.WithFields(logrus.Fields{"user_id": userID, "feature": feature})

	plan, err := g.plans.ResolvePlan(ctx, userID)
	if err != nil {
		log.WithError(err).Error("usage guard: resolve plan failed")
		g.metrics.QuotaDecision(string(feature), "unknown", "error")
		return nil, fmt.Errorf("%w: resolve plan: %w", ErrStorage, err)
	}

	rule, ok := g.catalog.LimitsFor(plan, feature)
	if !ok {
		g.metrics.QuotaDecision(string(feature), string(plan), "not_entitled")
		return nil, fmt.Errorf("%w: %s on %s", ErrFeatureNotEntitled, feature, plan)
	}

	window := WindowStart(rule.Period, g.now(), g.loc)
	decision, err := g.store.Consume(ctx, userID, feature, window, rule.Limit)
	if err != nil {
		if errors.Is(err, ErrContention) {
			log.WithError(err).Warn("usage guard: gave up on contended record")
		} else {
			log.WithError(err).Error("usage guard: store failed")
		}
		g.metrics.QuotaDecision(string(feature), string(plan), "error")
		return nil, fmt.Errorf("%w: consume: %w", ErrStorage, err)
	}

	if !decision.Allowed {
		g.metrics.QuotaDecision(string(feature), string(plan), "limit_exceeded")
		log.WithFields(logrus.Fields{"plan": plan, "used_count": decision.UsedCount}).Info("usage limit reached")
		return nil, &LimitExceededError{
			Feature:   feature,
			Plan:      plan,
			Period:    rule.Period,
			UsedCount: decision.UsedCount,
			Limit:     rule.Limit.Value(),
		}
	}

	g.metrics.QuotaDecision(string(feature), string(plan), "allowed")
	return &Grant{
		UserID:    userID,
		Feature:   feature,
		Plan:      plan,
		Rule:      rule,
		UsedCount: decision.UsedCount,
	}, nil
}

// Snapshot reports the caller's usage of every feature the plan includes,
// applying expired windows logically without writing anything.
func (g *Guard) Snapshot(ctx context.Context, userID string) (entitlements.Plan, []FeatureUsage, error) {
	plan, err := g.plans.ResolvePlan(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("%w: resolve plan: %w", ErrStorage, err)
	}
	stored, err := g.store.List(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("%w: list: %w", ErrStorage, err)
	}
	byFeature := make(map[entitlements.Feature]Usage, len(stored))
	for _, u := range stored {
		byFeature[u.Feature] = u
	}

	now := g.now()
	out := make([]FeatureUsage, 0, len(entitlements.Features()))
	for _, f := range entitlements.Features() {
		rule, ok := g.catalog.LimitsFor(plan, f)
		if !ok {
			continue
		}
		window := WindowStart(rule.Period, now, g.loc)
		fu := FeatureUsage{Feature: f, Limit: rule.Limit, Period: rule.Period, ResetAt: window}
		if u, ok := byFeature[f]; ok && !expired(u.ResetAt, window) {
			fu.UsedCount = u.UsedCount
		}
		if !rule.Limit.IsUnbounded() {
			remaining := rule.Limit.Remaining(fu.UsedCount)
			fu.Remaining = &remaining
		}
		out = append(out, fu)
	}
	return plan, out, nil
}
