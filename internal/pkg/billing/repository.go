package billing

import (
	"time"

	"github.com/FlorianMaier/HausMarkt/app/models"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/entitlements"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the checkout factory and the
// event reconciler. It embeds the entitlement repository so reconciliation
// can mutate entitlements and the idempotency ledger inside one
// transaction.
type Repository interface {
	entitlements.Repository

	// WithinTransaction runs fn against a repository bound to a single DB
	// transaction. The ledger check-then-write and the entitlement write
	// must share one transaction so concurrent deliveries of the same
	// event id cannot double-apply.
	WithinTransaction(fn func(Repository) error) error

	// RecordProcessedEvent inserts a ledger row unless the provider event
	// id is already present. Returns true when the row was created.
	RecordProcessedEvent(event *models.BillingWebhookEvent) (bool, error)
	MarkEventProcessed(id uint, processingError string) error

	CreateCheckoutIntent(intent *models.CheckoutIntent) error
	GetCheckoutIntentBySessionID(sessionID string) (*models.CheckoutIntent, error)

	FindActivePlanMappingByRef(provider, providerPlanRef string) (*models.BillingPlanMapping, error)
	FindPlanRefForTier(provider, tier, interval string) (string, error)
}

type gormRepository struct {
	entitlements.Repository
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Repository: entitlements.NewRepository(db), db: db}
}

func (r *gormRepository) WithinTransaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

func (r *gormRepository) RecordProcessedEvent(event *models.BillingWebhookEvent) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}
	if tx.RowsAffected == 0 {
		return false, nil
	}

	// Ensure ID is populated after insert.
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(event).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *gormRepository) MarkEventProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) CreateCheckoutIntent(intent *models.CheckoutIntent) error {
	return r.db.Create(intent).Error
}

func (r *gormRepository) GetCheckoutIntentBySessionID(sessionID string) (*models.CheckoutIntent, error) {
	var intent models.CheckoutIntent
	if err := r.db.Where("provider_session_id = ?", sessionID).First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *gormRepository) FindActivePlanMappingByRef(provider, providerPlanRef string) (*models.BillingPlanMapping, error) {
	var m models.BillingPlanMapping
	err := r.db.
		Where("provider = ? AND provider_plan_ref = ? AND is_active = ?", provider, providerPlanRef, true).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) FindPlanRefForTier(provider, tier, interval string) (string, error) {
	var m models.BillingPlanMapping
	err := r.db.
		Where("provider = ? AND internal_tier = ? AND billing_interval = ? AND is_active = ?", provider, tier, interval, true).
		First(&m).Error
	if err != nil {
		return "", err
	}
	return m.ProviderPlanRef, nil
}
