package entitlements

import (
	"github.com/FlorianMaier/HausMarkt/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations for entitlement and boost rows.
type Repository interface {
	GetEntitlement(userID uint) (*models.AccountEntitlement, error)
	UpsertEntitlement(ent *models.AccountEntitlement) error
	GetBoost(listingID uint) (*models.ListingBoost, error)
	UpsertBoost(boost *models.ListingBoost) error
	DeleteBoost(listingID uint) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an entitlement repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetEntitlement(userID uint) (*models.AccountEntitlement, error) {
	var ent models.AccountEntitlement
	if err := r.db.Where("user_id = ?", userID).First(&ent).Error; err != nil {
		return nil, err
	}
	return &ent, nil
}

func (r *gormRepository) UpsertEntitlement(ent *models.AccountEntitlement) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"tier",
			"tier_expires_at",
			"updated_at",
		}),
	}).Create(ent).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("user_id = ?", ent.UserID).First(ent).Error
}

func (r *gormRepository) GetBoost(listingID uint) (*models.ListingBoost, error) {
	var boost models.ListingBoost
	if err := r.db.Where("listing_id = ?", listingID).First(&boost).Error; err != nil {
		return nil, err
	}
	return &boost, nil
}

func (r *gormRepository) UpsertBoost(boost *models.ListingBoost) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "listing_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"boost_expires_at",
			"updated_at",
		}),
	}).Create(boost).Error; err != nil {
		return err
	}

	return r.db.Where("listing_id = ?", boost.ListingID).First(boost).Error
}

func (r *gormRepository) DeleteBoost(listingID uint) error {
	return r.db.Where("listing_id = ?", listingID).Delete(&models.ListingBoost{}).Error
}
