package models

import "time"

// Tier constants shared by entitlement-related models.
const (
	TierFree     = "free"
	TierPro      = "pro"
	TierInvestor = "investor"
)

// AccountEntitlement is the authoritative record of a user's subscription
// tier. Readers must treat a lapsed TierExpiresAt as free; the stored tier
// string alone is never trusted.
type AccountEntitlement struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	Tier          string     `gorm:"type:varchar(20);not null;default:'free'" json:"tier"`
	TierExpiresAt *time.Time `gorm:"type:timestamp;default:null" json:"tier_expires_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
