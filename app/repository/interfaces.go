package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/NoteFox/app/models"
	"github.com/ManuelReschke/NoteFox/internal/pkg/entitlements"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetOrCreate(ctx context.Context, id, email string) (*models.User, error)
	ResolvePlan(ctx context.Context, id string) (entitlements.Plan, error)
}

// SubscriptionRepository defines read access to mirrored provider subscriptions
type SubscriptionRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Subscription, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Subscription SubscriptionRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Subscription: NewSubscriptionRepository(db),
	}
}
