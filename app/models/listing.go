package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ListingStatusDraft    = "draft"
	ListingStatusActive   = "active"
	ListingStatusArchived = "archived"
)

type Listing struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UUID        string         `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	Title       string         `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=3,max=200"`
	Description string         `gorm:"type:text" json:"description" validate:"max=10000"`
	PriceCents  int64          `gorm:"not null;default:0" json:"price_cents" validate:"gte=0"`
	Currency    string         `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency" validate:"len=3"`
	City        string         `gorm:"type:varchar(120);index" json:"city" validate:"max=120"`
	Status      string         `gorm:"type:varchar(20);not null;default:'draft';index" json:"status" validate:"oneof=draft active archived"`
	ViewCount   uint64         `gorm:"default:0" json:"view_count"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (l *Listing) Validate() error {
	v := validator.New()

	return v.Struct(l)
}

// IsActive reports whether the listing counts against its owner's quota.
func (l *Listing) IsActive() bool {
	return l.Status == ListingStatusActive
}
