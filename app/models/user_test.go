package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&User{}, &UsageLimit{}, &Subscription{}, &BillingWebhookEvent{}))
	return db
}

func TestUserValidate(t *testing.T) {
	assert.NoError(t, (&User{ID: "cust_Q1", Plan: "free"}).Validate())
	assert.NoError(t, (&User{ID: "cust_Q1", Email: "a@example.com", Plan: "pro"}).Validate())
	assert.Error(t, (&User{ID: "", Plan: "free"}).Validate())
	assert.Error(t, (&User{ID: "cust_Q1", Plan: "gold"}).Validate())
	assert.Error(t, (&User{ID: "cust_Q1", Email: "nope", Plan: "free"}).Validate())
}

func TestGetOrCreateUser(t *testing.T) {
	db := newTestDB(t)

	u, err := GetOrCreateUser(db, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultPlan, u.Plan)
	assert.Equal(t, "", u.Email)

	// Existing plans are never overwritten, missing emails are backfilled.
	require.NoError(t, db.Model(&User{}).Where("id = ?", "user-1").Update("plan", "premium").Error)
	u, err = GetOrCreateUser(db, "user-1", "one@example.com")
	require.NoError(t, err)
	assert.Equal(t, "premium", u.Plan)
	assert.Equal(t, "one@example.com", u.Email)

	var count int64
	require.NoError(t, db.Model(&User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = GetOrCreateUser(db, " ", "")
	assert.Error(t, err)
}

func TestBillingWebhookEventSucceeded(t *testing.T) {
	var nilEvent *BillingWebhookEvent
	assert.False(t, nilEvent.Succeeded())

	e := &BillingWebhookEvent{}
	assert.False(t, e.Succeeded())

	now := e.CreatedAt
	e.ProcessedAt = &now
	assert.True(t, e.Succeeded())

	e.ProcessingError = "boom"
	assert.False(t, e.Succeeded())
}
