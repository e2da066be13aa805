package repository

import (
	"strings"

	"github.com/FlorianMaier/HausMarkt/app/models"
	"gorm.io/gorm"
)

// listingRepository implements the ListingRepository interface
type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository creates a new listing repository instance
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

// Create creates a new listing in the database
func (r *listingRepository) Create(listing *models.Listing) error {
	return r.db.Create(listing).Error
}

// GetByID retrieves a listing by its ID
func (r *listingRepository) GetByID(id uint) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.First(&listing, id).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// GetByUUID retrieves a listing by its UUID
func (r *listingRepository) GetByUUID(uuid string) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.Where("uuid = ?", uuid).First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// GetByUserID retrieves a paginated list of a user's listings, newest first
func (r *listingRepository) GetByUserID(userID uint, offset, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&listings).Error
	return listings, err
}

// Update updates an existing listing in the database
func (r *listingRepository) Update(listing *models.Listing) error {
	return r.db.Save(listing).Error
}

// Delete soft deletes a listing by its ID
func (r *listingRepository) Delete(id uint) error {
	return r.db.Delete(&models.Listing{}, id).Error
}

// ListActive retrieves publicly visible listings, newest first
func (r *listingRepository) ListActive(offset, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.Where("status = ?", models.ListingStatusActive).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&listings).Error
	return listings, err
}

// Count returns the total number of listings
func (r *listingRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Listing{}).Count(&count).Error
	return count, err
}

// CountActiveByUserID counts a user's listings in active status.
// This is the number quota decisions are made against.
func (r *listingRepository) CountActiveByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Listing{}).
		Where("user_id = ? AND status = ?", userID, models.ListingStatusActive).
		Count(&count).Error
	return count, err
}

// Search searches active listings by title or city
func (r *listingRepository) Search(query string, offset, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	searchPattern := "%" + strings.TrimSpace(query) + "%"
	err := r.db.Where("status = ? AND (title LIKE ? OR city LIKE ?)",
		models.ListingStatusActive, searchPattern, searchPattern).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&listings).Error
	return listings, err
}
