package billing

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/FlorianMaier/HausMarkt/app/models"
)

// fakeRepository is an in-memory Repository double with copy-on-write
// transaction semantics: mutations inside WithinTransaction only become
// visible when fn returns nil, mirroring the rollback behavior of the GORM
// implementation.
type fakeRepository struct {
	state *fakeState
}

type fakeState struct {
	entitlements map[uint]*models.AccountEntitlement
	boosts       map[uint]*models.ListingBoost
	events       map[string]*models.BillingWebhookEvent
	eventSeq     uint
	intents      map[string]*models.CheckoutIntent
	mappings     []models.BillingPlanMapping

	failUpsertEntitlement bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{state: &fakeState{
		entitlements: make(map[uint]*models.AccountEntitlement),
		boosts:       make(map[uint]*models.ListingBoost),
		events:       make(map[string]*models.BillingWebhookEvent),
		intents:      make(map[string]*models.CheckoutIntent),
	}}
}

func (s *fakeState) clone() *fakeState {
	cp := &fakeState{
		entitlements:          make(map[uint]*models.AccountEntitlement, len(s.entitlements)),
		boosts:                make(map[uint]*models.ListingBoost, len(s.boosts)),
		events:                make(map[string]*models.BillingWebhookEvent, len(s.events)),
		eventSeq:              s.eventSeq,
		intents:               make(map[string]*models.CheckoutIntent, len(s.intents)),
		mappings:              append([]models.BillingPlanMapping(nil), s.mappings...),
		failUpsertEntitlement: s.failUpsertEntitlement,
	}
	for k, v := range s.entitlements {
		c := *v
		cp.entitlements[k] = &c
	}
	for k, v := range s.boosts {
		c := *v
		cp.boosts[k] = &c
	}
	for k, v := range s.events {
		c := *v
		cp.events[k] = &c
	}
	for k, v := range s.intents {
		c := *v
		cp.intents[k] = &c
	}
	return cp
}

func (f *fakeRepository) WithinTransaction(fn func(Repository) error) error {
	work := f.state.clone()
	if err := fn(&fakeRepository{state: work}); err != nil {
		return err
	}
	f.state = work
	return nil
}

func (f *fakeRepository) GetEntitlement(userID uint) (*models.AccountEntitlement, error) {
	ent, ok := f.state.entitlements[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *ent
	return &cp, nil
}

func (f *fakeRepository) UpsertEntitlement(ent *models.AccountEntitlement) error {
	if f.state.failUpsertEntitlement {
		return errors.New("entitlement write failed")
	}
	cp := *ent
	f.state.entitlements[ent.UserID] = &cp
	return nil
}

func (f *fakeRepository) GetBoost(listingID uint) (*models.ListingBoost, error) {
	boost, ok := f.state.boosts[listingID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *boost
	return &cp, nil
}

func (f *fakeRepository) UpsertBoost(boost *models.ListingBoost) error {
	cp := *boost
	f.state.boosts[boost.ListingID] = &cp
	return nil
}

func (f *fakeRepository) DeleteBoost(listingID uint) error {
	delete(f.state.boosts, listingID)
	return nil
}

func (f *fakeRepository) RecordProcessedEvent(event *models.BillingWebhookEvent) (bool, error) {
	key := event.Provider + ":" + event.ProviderEventID
	if _, exists := f.state.events[key]; exists {
		return false, nil
	}
	f.state.eventSeq++
	event.ID = f.state.eventSeq
	cp := *event
	f.state.events[key] = &cp
	return true, nil
}

func (f *fakeRepository) MarkEventProcessed(id uint, processingError string) error {
	for _, ev := range f.state.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) CreateCheckoutIntent(intent *models.CheckoutIntent) error {
	cp := *intent
	f.state.intents[intent.ProviderSessionID] = &cp
	return nil
}

func (f *fakeRepository) GetCheckoutIntentBySessionID(sessionID string) (*models.CheckoutIntent, error) {
	intent, ok := f.state.intents[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *intent
	return &cp, nil
}

func (f *fakeRepository) FindActivePlanMappingByRef(provider, providerPlanRef string) (*models.BillingPlanMapping, error) {
	for _, m := range f.state.mappings {
		if m.Provider == provider && m.ProviderPlanRef == providerPlanRef && m.IsActive {
			cp := m
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindPlanRefForTier(provider, tier, interval string) (string, error) {
	for _, m := range f.state.mappings {
		if m.Provider == provider && m.InternalTier == tier && m.BillingInterval == interval && m.IsActive {
			return m.ProviderPlanRef, nil
		}
	}
	return "", gorm.ErrRecordNotFound
}
