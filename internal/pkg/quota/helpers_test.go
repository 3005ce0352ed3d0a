package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/NoteFox/internal/pkg/database"
	"github.com/ManuelReschke/NoteFox/internal/pkg/entitlements"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type staticPlans map[string]entitlements.Plan

func (p staticPlans) ResolvePlan(_ context.Context, userID string) (entitlements.Plan, error) {
	if plan, ok := p[userID]; ok {
		return plan, nil
	}
	return entitlements.PlanFree, nil
}

type failingPlans struct{}

func (failingPlans) ResolvePlan(context.Context, string) (entitlements.Plan, error) {
	return "", errors.New("connection refused")
}

type failingStore struct{}

func (failingStore) Consume(context.Context, string, entitlements.Feature, time.Time, entitlements.Limit) (Decision, error) {
	return Decision{Allowed: true}, errors.New("disk full")
}

func (failingStore) ResetAll(context.Context, string, time.Time) error { return errors.New("disk full") }

func (failingStore) List(context.Context, string) ([]Usage, error) { return nil, errors.New("disk full") }

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(now time.Time) *clock { return &clock{now: now} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
