package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Event is a calendar entry (open house, auction, local meetup). Pure CRUD,
// no entitlement interaction.
type Event struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UUID        string         `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	Title       string         `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=3,max=200"`
	Description string         `gorm:"type:text" json:"description" validate:"max=5000"`
	Location    string         `gorm:"type:varchar(255)" json:"location" validate:"max=255"`
	StartsAt    time.Time      `gorm:"not null;index" json:"starts_at" validate:"required"`
	EndsAt      *time.Time     `gorm:"type:timestamp;default:null" json:"ends_at,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (e *Event) Validate() error {
	v := validator.New()

	return v.Struct(e)
}
