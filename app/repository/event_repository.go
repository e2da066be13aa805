package repository

import (
	"time"

	"github.com/FlorianMaier/HausMarkt/app/models"
	"gorm.io/gorm"
)

// eventRepository implements the EventRepository interface
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository instance
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Create creates a new event in the database
func (r *eventRepository) Create(event *models.Event) error {
	return r.db.Create(event).Error
}

// GetByID retrieves an event by its ID
func (r *eventRepository) GetByID(id uint) (*models.Event, error) {
	var event models.Event
	err := r.db.First(&event, id).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// GetByUUID retrieves an event by its UUID
func (r *eventRepository) GetByUUID(uuid string) (*models.Event, error) {
	var event models.Event
	err := r.db.Where("uuid = ?", uuid).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// GetByUserID retrieves all events created by a user, soonest first
func (r *eventRepository) GetByUserID(userID uint) ([]models.Event, error) {
	var events []models.Event
	err := r.db.Where("user_id = ?", userID).Order("starts_at ASC").Find(&events).Error
	return events, err
}

// GetUpcoming retrieves events starting at or after the given time
func (r *eventRepository) GetUpcoming(from time.Time, limit int) ([]models.Event, error) {
	var events []models.Event
	err := r.db.Where("starts_at >= ?", from).Order("starts_at ASC").Limit(limit).Find(&events).Error
	return events, err
}

// Update updates an existing event in the database
func (r *eventRepository) Update(event *models.Event) error {
	return r.db.Save(event).Error
}

// Delete soft deletes an event by its ID
func (r *eventRepository) Delete(id uint) error {
	return r.db.Delete(&models.Event{}, id).Error
}

// Count returns the total number of events
func (r *eventRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Event{}).Count(&count).Error
	return count, err
}
