package models

import "time"

// ListingBoost stores the paid visibility window of a listing. Whether a
// boost is active is derived from BoostExpiresAt at read time and is
// intentionally not stored as a flag.
type ListingBoost struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ListingID      uint       `gorm:"not null;uniqueIndex" json:"listing_id"`
	BoostExpiresAt *time.Time `gorm:"type:timestamp;default:null" json:"boost_expires_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
