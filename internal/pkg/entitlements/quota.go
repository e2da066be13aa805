package entitlements

// QuotaDecision is the user-visible outcome of a listing quota check. On a
// denial the current/max counts and the tier name are surfaced so the user
// can self-diagnose.
type QuotaDecision struct {
	Allowed bool   `json:"allowed"`
	Current int    `json:"current"`
	Max     int    `json:"max"`
	Tier    Tier   `json:"tier"`
	Reason  string `json:"reason,omitempty"`
}

// QuotaEnforcer decides whether an account may create another listing.
// It is a read-only consumer of the entitlement store.
type QuotaEnforcer struct {
	store *Store
}

func NewQuotaEnforcer(store *Store) *QuotaEnforcer {
	return &QuotaEnforcer{store: store}
}

// CanCreateListing checks the caller-supplied active listing count against
// the account's tier quota. The entitlement is read fresh on every call
// because a tier can lapse between requests.
func (q *QuotaEnforcer) CanCreateListing(userID uint, currentActiveCount int) (QuotaDecision, error) {
	ent, err := q.store.GetEntitlement(userID)
	if err != nil {
		return QuotaDecision{}, err
	}

	tier := ent.EffectiveTier()
	max := MaxActiveListings(tier)
	if max == Unbounded || currentActiveCount < max {
		return QuotaDecision{
			Allowed: true,
			Current: currentActiveCount,
			Max:     max,
			Tier:    tier,
		}, nil
	}

	return QuotaDecision{
		Allowed: false,
		Current: currentActiveCount,
		Max:     max,
		Tier:    tier,
		Reason:  "listing quota reached for current tier",
	}, nil
}
