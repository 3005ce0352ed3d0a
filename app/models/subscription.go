package models

import "time"

// Subscription mirrors the payment provider's subscription entity. It is
// upserted wholesale on every verified webhook.
type Subscription struct {
	ID             string    `gorm:"type:varchar(191);primaryKey" json:"id"`
	UserID         string    `gorm:"type:varchar(191);not null;index" json:"user_id"`
	Plan           string    `gorm:"type:varchar(50);not null" json:"plan"`
	ProviderPlanID string    `gorm:"type:varchar(191);not null;default:''" json:"provider_plan_id"`
	Status         string    `gorm:"type:varchar(32);not null;index" json:"status"`
	StartedAt      time.Time `gorm:"type:timestamp;not null" json:"started_at"`
	CurrentEnd     time.Time `gorm:"type:timestamp;not null" json:"current_end"`
	RawPayloadJSON string    `gorm:"type:text" json:"-"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }
