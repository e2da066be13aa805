package repository

import (
	"time"

	"github.com/FlorianMaier/HausMarkt/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	Search(query string) ([]models.User, error)
}

// ListingRepository defines the interface for listing-related database operations
type ListingRepository interface {
	Create(listing *models.Listing) error
	GetByID(id uint) (*models.Listing, error)
	GetByUUID(uuid string) (*models.Listing, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Listing, error)
	Update(listing *models.Listing) error
	Delete(id uint) error
	ListActive(offset, limit int) ([]models.Listing, error)
	Count() (int64, error)
	CountActiveByUserID(userID uint) (int64, error)
	Search(query string, offset, limit int) ([]models.Listing, error)
}

// EventRepository defines the interface for calendar event operations
type EventRepository interface {
	Create(event *models.Event) error
	GetByID(id uint) (*models.Event, error)
	GetByUUID(uuid string) (*models.Event, error)
	GetByUserID(userID uint) ([]models.Event, error)
	GetUpcoming(from time.Time, limit int) ([]models.Event, error)
	Update(event *models.Event) error
	Delete(id uint) error
	Count() (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User    UserRepository
	Listing ListingRepository
	Event   EventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Listing: NewListingRepository(db),
		Event:   NewEventRepository(db),
	}
}
