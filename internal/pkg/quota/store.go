package quota

import (
	"context"
	"time"

	"github.com/ManuelReschke/NoteFox/internal/pkg/entitlements"
)

// Decision is the outcome of one atomic check-and-consume against a store.
// UsedCount is the count after the increment when Allowed, otherwise the
// count that blocked the call.
type Decision struct {
	Allowed   bool
	UsedCount int64
}

// Usage is a stored counter as last written.
type Usage struct {
	Feature   entitlements.Feature
	UsedCount int64
	ResetAt   time.Time
}

// Store persists per-(user, feature) counters. Consume must be free of lost
// updates for a single key: it rolls the record over when it belongs to an
// expired window, checks the limit after the rollover, and increments only
// when the limit allows it, all as one logical atomic step.
type Store interface {
	Consume(ctx context.Context, userID string, feature entitlements.Feature, window time.Time, limit entitlements.Limit) (Decision, error)
	ResetAll(ctx context.Context, userID string, resetAt time.Time) error
	List(ctx context.Context, userID string) ([]Usage, error)
}
