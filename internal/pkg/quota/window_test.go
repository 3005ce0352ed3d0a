package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/NoteFox/internal/pkg/entitlements"
)

func TestWindowStart(t *testing.T) {
	now := time.Date(2026, 3, 17, 15, 4, 5, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC), WindowStart(entitlements.PeriodDay, now, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), WindowStart(entitlements.PeriodMonth, now, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC), WindowStart(entitlements.PeriodDay, now, nil))
}

func TestWindowStartUsesLocation(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 20:00 UTC on the last day of March is already April 1st in India.
	now := time.Date(2026, 3, 31, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), WindowStart(entitlements.PeriodDay, now, time.UTC))
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), WindowStart(entitlements.PeriodDay, now, kolkata))
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), WindowStart(entitlements.PeriodMonth, now, kolkata))
}

func TestExpired(t *testing.T) {
	window := time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)

	assert.True(t, expired(time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), window))
	assert.False(t, expired(window, window))
	assert.False(t, expired(time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC), window))

	// A driver may hand the same civil date back in another location.
	berlin := time.FixedZone("CET", 3600)
	assert.False(t, expired(time.Date(2026, 3, 17, 0, 0, 0, 0, berlin), window))
	assert.True(t, expired(time.Date(2026, 3, 16, 0, 0, 0, 0, berlin), window))
}
