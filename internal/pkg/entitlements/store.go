package entitlements

import (
	"errors"
	"time"

	"github.com/FlorianMaier/HausMarkt/app/models"
	"gorm.io/gorm"
)

// Entitlement is the resolved, expiry-aware tier of an account.
// Effective is false when the stored tier has lapsed; callers must then
// treat the account as free regardless of the Tier field.
type Entitlement struct {
	Tier      Tier
	ExpiresAt *time.Time
	Effective bool
}

// EffectiveTier returns the tier readers should act on.
func (e Entitlement) EffectiveTier() Tier {
	if !e.Effective {
		return TierFree
	}
	return e.Tier
}

// Boost is the resolved boost state of a listing. Active is derived from
// the expiry at read time, never from a stored flag.
type Boost struct {
	Active    bool
	ExpiresAt *time.Time
}

// Store is the authoritative reader/writer for account tiers and listing
// boosts. All reads recompute effectiveness from now() so a stale "active"
// state can never outlive its expiry.
type Store struct {
	repo Repository
	now  func() time.Time
}

// NewStore creates a store from an injected repository.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo, now: time.Now}
}

// NewStoreFromDB creates a store from a GORM DB handle.
func NewStoreFromDB(db *gorm.DB) *Store {
	return NewStore(NewRepository(db))
}

// GetEntitlement resolves the current tier for a user. A missing row or a
// lapsed expiry resolves to free.
func (s *Store) GetEntitlement(userID uint) (Entitlement, error) {
	ent, err := s.repo.GetEntitlement(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Entitlement{Tier: TierFree}, nil
		}
		return Entitlement{}, err
	}

	tier := NormalizeTier(ent.Tier)
	if tier == TierFree {
		return Entitlement{Tier: TierFree, ExpiresAt: ent.TierExpiresAt}, nil
	}
	if ent.TierExpiresAt == nil || !ent.TierExpiresAt.After(s.now()) {
		// Expiry dominates the stored tier string.
		return Entitlement{Tier: tier, ExpiresAt: ent.TierExpiresAt}, nil
	}
	return Entitlement{Tier: tier, ExpiresAt: ent.TierExpiresAt, Effective: true}, nil
}

// SetEntitlement writes the tier and expiry for a user.
func (s *Store) SetEntitlement(userID uint, tier Tier, expiresAt *time.Time) error {
	if userID == 0 {
		return errors.New("user_id is required")
	}
	return s.repo.UpsertEntitlement(&models.AccountEntitlement{
		UserID:        userID,
		Tier:          string(NormalizeTier(string(tier))),
		TierExpiresAt: expiresAt,
	})
}

// GetBoost resolves the boost state of a listing from its expiry.
func (s *Store) GetBoost(listingID uint) (Boost, error) {
	boost, err := s.repo.GetBoost(listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Boost{}, nil
		}
		return Boost{}, err
	}
	if boost.BoostExpiresAt == nil {
		return Boost{}, nil
	}
	return Boost{
		Active:    boost.BoostExpiresAt.After(s.now()),
		ExpiresAt: boost.BoostExpiresAt,
	}, nil
}

// SetBoost writes the boost expiry for a listing.
func (s *Store) SetBoost(listingID uint, expiresAt time.Time) error {
	if listingID == 0 {
		return errors.New("listing_id is required")
	}
	return s.repo.UpsertBoost(&models.ListingBoost{
		ListingID:      listingID,
		BoostExpiresAt: &expiresAt,
	})
}

// ClearBoost removes the boost row for a listing. Used by the listing
// lifecycle when a listing is deleted.
func (s *Store) ClearBoost(listingID uint) error {
	return s.repo.DeleteBoost(listingID)
}
