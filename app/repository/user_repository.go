package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ManuelReschke/NoteFox/app/models"
	"github.com/ManuelReschke/NoteFox/internal/pkg/entitlements"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetOrCreate returns the user, registering unknown identities on the free plan
func (r *userRepository) GetOrCreate(ctx context.Context, id, email string) (*models.User, error) {
	return models.GetOrCreateUser(r.db.WithContext(ctx), id, email)
}

// ResolvePlan returns the cached plan of a user. Users without a record and
// unrecognized plan names resolve to the free plan.
func (r *userRepository) ResolvePlan(ctx context.Context, id string) (entitlements.Plan, error) {
	user, err := r.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entitlements.PlanFree, nil
	}
	if err != nil {
		return "", err
	}
	plan, _ := entitlements.ParsePlan(user.Plan)
	return plan, nil
}
