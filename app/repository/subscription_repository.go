package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/NoteFox/app/models"
)

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// ListByUser returns a user's subscriptions, most recently updated first
func (r *subscriptionRepository) ListByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at DESC").Find(&subs).Error
	return subs, err
}
