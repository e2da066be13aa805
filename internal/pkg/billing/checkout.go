package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/FlorianMaier/HausMarkt/app/models"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/entitlements"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/env"
	stripe "github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
)

const checkoutTimeout = 10 * time.Second

type createSessionFunc func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// IntentFactory builds outbound Stripe checkout sessions. The correlation
// payload (user, product family, plan/cycle or quantity/listing) is
// attached to the session object itself and mirrored into the local
// checkout_intents audit table.
type IntentFactory struct {
	repo          Repository
	createSession createSessionFunc

	publicDomain string
	boostPriceID string
}

// NewIntentFactory creates a factory from an injected repository. Stripe
// credentials and URLs come from the environment.
func NewIntentFactory(repo Repository) *IntentFactory {
	stripe.Key = strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", ""))
	return &IntentFactory{
		repo:          repo,
		createSession: stripesession.New,
		publicDomain:  strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000"), "/"),
		boostPriceID:  strings.TrimSpace(env.GetEnv("STRIPE_BOOST_PRICE_ID", "")),
	}
}

// CreateSubscriptionIntent starts a recurring checkout for a tier upgrade
// and returns the provider redirect URL.
func (f *IntentFactory) CreateSubscriptionIntent(ctx context.Context, in SubscriptionCheckout) (string, error) {
	if in.UserID == 0 {
		return "", errors.New("user_id is required")
	}
	plan := entitlements.NormalizeTier(string(in.Plan))
	if plan == entitlements.TierFree {
		return "", errors.New("free tier has no checkout")
	}
	cycle := normalizeInterval(in.Cycle)
	if cycle == models.BillingIntervalUnknown {
		return "", errors.New("billing cycle must be month or year")
	}

	priceRef, err := f.repo.FindPlanRefForTier(models.BillingProviderStripe, string(plan), cycle)
	if err != nil {
		return "", &CheckoutCreationError{Reason: fmt.Sprintf("no active price mapping for %s/%s", plan, cycle), Err: err}
	}

	meta := map[string]string{
		metaUserID:        strconv.FormatUint(uint64(in.UserID), 10),
		metaProductFamily: models.ProductFamilySubscription,
		metaPlan:          string(plan),
		metaBillingCycle:  cycle,
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(f.publicDomain + "/user/settings/membership?checkout=success"),
		CancelURL:         stripe.String(f.publicDomain + "/user/settings/membership?checkout=cancelled"),
		ClientReferenceID: stripe.String(strconv.FormatUint(uint64(in.UserID), 10)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceRef),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: meta,
		// Mirror the correlation payload onto the subscription object so
		// later subscription.* events carry it too.
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: meta,
		},
	}

	sess, err := f.create(ctx, params)
	if err != nil {
		return "", err
	}

	if err := f.repo.CreateCheckoutIntent(&models.CheckoutIntent{
		ProviderSessionID: sess.ID,
		UserID:            in.UserID,
		ProductFamily:     models.ProductFamilySubscription,
		Plan:              string(plan),
		BillingCycle:      cycle,
	}); err != nil {
		return "", err
	}

	return sess.URL, nil
}

// CreateBoostIntent starts a one-time checkout for listing visibility and
// returns the provider redirect URL.
func (f *IntentFactory) CreateBoostIntent(ctx context.Context, in BoostCheckout) (string, error) {
	if in.UserID == 0 || in.TargetListingID == 0 {
		return "", errors.New("user_id and target_listing_id are required")
	}
	if in.Quantity < 1 {
		in.Quantity = 1
	}
	if f.boostPriceID == "" {
		return "", &CheckoutCreationError{Reason: "STRIPE_BOOST_PRICE_ID is not configured"}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(fmt.Sprintf("%s/listings/%d?boost=success", f.publicDomain, in.TargetListingID)),
		CancelURL:         stripe.String(fmt.Sprintf("%s/listings/%d?boost=cancelled", f.publicDomain, in.TargetListingID)),
		ClientReferenceID: stripe.String(strconv.FormatUint(uint64(in.UserID), 10)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(f.boostPriceID),
				Quantity: stripe.Int64(in.Quantity),
			},
		},
		Metadata: map[string]string{
			metaUserID:          strconv.FormatUint(uint64(in.UserID), 10),
			metaProductFamily:   models.ProductFamilyBoost,
			metaBoostQuantity:   strconv.FormatInt(in.Quantity, 10),
			metaTargetListingID: strconv.FormatUint(uint64(in.TargetListingID), 10),
		},
	}

	sess, err := f.create(ctx, params)
	if err != nil {
		return "", err
	}

	if err := f.repo.CreateCheckoutIntent(&models.CheckoutIntent{
		ProviderSessionID: sess.ID,
		UserID:            in.UserID,
		ProductFamily:     models.ProductFamilyBoost,
		BoostQuantity:     in.Quantity,
		TargetListingID:   in.TargetListingID,
	}); err != nil {
		return "", err
	}

	return sess.URL, nil
}

// create performs the outbound call with a bounded timeout and a single
// retry on transient transport failure, then fails closed. A provider-side
// rejection (bad price id, invalid params) is never retried.
func (f *IntentFactory) create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, checkoutTimeout)
		params.Context = attemptCtx
		sess, err := f.createSession(params)
		cancel()
		if err == nil {
			if sess == nil || strings.TrimSpace(sess.URL) == "" {
				return nil, &CheckoutCreationError{Reason: "provider returned empty checkout URL"}
			}
			return sess, nil
		}
		lastErr = err

		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return nil, &CheckoutCreationError{Reason: "provider rejected session", Err: err}
		}
	}
	return nil, &CheckoutCreationError{Reason: "session creation did not succeed after retry", Err: lastErr}
}
