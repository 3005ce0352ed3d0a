package models

import "time"

// UsageLimit is the per-(user, feature) counter of the current window.
// ResetAt holds the civil date the window starts on, stored as midnight UTC.
// Version increases on every write and guards conditional updates.
type UsageLimit struct {
	UserID    string    `gorm:"type:varchar(191);primaryKey" json:"user_id"`
	Feature   string    `gorm:"type:varchar(50);primaryKey" json:"feature"`
	UsedCount int64     `gorm:"not null;default:0" json:"used_count"`
	ResetAt   time.Time `gorm:"type:date;not null" json:"reset_at"`
	Version   int64     `gorm:"not null;default:0" json:"-"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UsageLimit) TableName() string { return "usage_limits" }
