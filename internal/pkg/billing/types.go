package billing

import (
	"fmt"

	"github.com/FlorianMaier/HausMarkt/internal/pkg/entitlements"
)

// SubscriptionCheckout is the normalized input for starting a recurring
// subscription checkout.
type SubscriptionCheckout struct {
	UserID uint
	Plan   entitlements.Tier
	Cycle  string // models.BillingIntervalMonth or ...Year
}

// BoostCheckout is the normalized input for starting a one-time boost
// purchase for a listing.
type BoostCheckout struct {
	UserID          uint
	Quantity        int64
	TargetListingID uint
}

// CheckoutCreationError is returned when the provider rejects session
// creation or the outbound call fails after its retry. The caller surfaces
// it as a retryable, user-visible failure and must not redirect anywhere.
type CheckoutCreationError struct {
	Reason string
	Err    error
}

func (e *CheckoutCreationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("checkout creation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("checkout creation failed: %s", e.Reason)
}

func (e *CheckoutCreationError) Unwrap() error {
	return e.Err
}

// Correlation metadata keys attached to the provider-side session object.
// Only data attached there is guaranteed to come back on the terminal
// webhook, so the full payload lives on the session, not just in the local
// checkout_intents table.
const (
	metaUserID          = "user_id"
	metaProductFamily   = "product_family"
	metaPlan            = "plan"
	metaBillingCycle    = "billing_cycle"
	metaBoostQuantity   = "boost_quantity"
	metaTargetListingID = "target_listing_id"
)
