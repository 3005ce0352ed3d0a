package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultPlan = "free"

// User mirrors an identity-provider account. Plan is a denormalized cache of
// the effective subscription plan, written by billing reconciliation.
type User struct {
	ID            string     `gorm:"type:varchar(191);primaryKey" json:"id" validate:"required,max=191"`
	Email         string     `gorm:"type:varchar(200);default:''" json:"email" validate:"omitempty,email,max=200"`
	Plan          string     `gorm:"type:varchar(50);not null;default:'free'" json:"plan" validate:"oneof=free basic premium pro"`
	PlanUpdatedAt *time.Time `gorm:"type:timestamp;default:null" json:"plan_updated_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// GetOrCreateUser returns the user with the given id, creating it on the
// free plan when it does not exist yet. A non-empty email is backfilled.
func GetOrCreateUser(db *gorm.DB, id, email string) (*User, error) {
	email = strings.TrimSpace(email)
	u := User{ID: strings.TrimSpace(id), Email: email, Plan: DefaultPlan}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	// Concurrent first requests race on the insert; the loser just reads.
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&u).Error; err != nil {
		return nil, err
	}

	var stored User
	if err := db.Where("id = ?", u.ID).First(&stored).Error; err != nil {
		return nil, err
	}
	if email != "" && stored.Email == "" {
		if err := db.Model(&User{}).Where("id = ?", stored.ID).Update("email", email).Error; err != nil {
			return nil, err
		}
		stored.Email = email
	}
	return &stored, nil
}
