package models

import "time"

// Product family constants for checkout intents.
const (
	ProductFamilySubscription = "subscription"
	ProductFamilyBoost        = "boost"
)

// CheckoutIntent is an append-only audit record of an outbound checkout
// session. The correlation payload is attached to the provider session as
// metadata; this row exists for audit and as a fallback lookup, it is never
// mutated after creation.
type CheckoutIntent struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ProviderSessionID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"provider_session_id"`
	UserID            uint      `gorm:"not null;index" json:"user_id"`
	ProductFamily     string    `gorm:"type:varchar(20);not null" json:"product_family"`
	Plan              string    `gorm:"type:varchar(20);default:''" json:"plan"`
	BillingCycle      string    `gorm:"type:varchar(16);default:''" json:"billing_cycle"`
	BoostQuantity     int64     `gorm:"default:0" json:"boost_quantity"`
	TargetListingID   uint      `gorm:"default:0" json:"target_listing_id"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}
