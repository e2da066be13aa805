package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"

	"github.com/FlorianMaier/HausMarkt/app/models"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/entitlements"
)

func newTestFactory(repo Repository, create createSessionFunc) *IntentFactory {
	return &IntentFactory{
		repo:          repo,
		createSession: create,
		publicDomain:  "https://hausmarkt.test",
		boostPriceID:  "price_boost_week",
	}
}

func proMonthMapping() models.BillingPlanMapping {
	return models.BillingPlanMapping{
		Provider:        models.BillingProviderStripe,
		ProviderPlanRef: "price_pro_month",
		InternalTier:    "pro",
		BillingInterval: "month",
		IsActive:        true,
	}
}

func TestCreateSubscriptionIntent(t *testing.T) {
	repo := newFakeRepository()
	repo.state.mappings = []models.BillingPlanMapping{proMonthMapping()}

	var gotParams *stripe.CheckoutSessionParams
	factory := newTestFactory(repo, func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		gotParams = params
		return &stripe.CheckoutSession{ID: "cs_123", URL: "https://checkout.stripe.test/cs_123"}, nil
	})

	url, err := factory.CreateSubscriptionIntent(context.Background(), SubscriptionCheckout{
		UserID: 1,
		Plan:   entitlements.TierPro,
		Cycle:  "month",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/cs_123", url)

	require.NotNil(t, gotParams)
	assert.Equal(t, string(stripe.CheckoutSessionModeSubscription), *gotParams.Mode)
	require.Len(t, gotParams.LineItems, 1)
	assert.Equal(t, "price_pro_month", *gotParams.LineItems[0].Price)
	assert.Equal(t, "1", gotParams.Metadata["user_id"])
	assert.Equal(t, models.ProductFamilySubscription, gotParams.Metadata["product_family"])
	// The correlation payload must be mirrored onto the subscription so
	// later subscription.* events carry it.
	require.NotNil(t, gotParams.SubscriptionData)
	assert.Equal(t, gotParams.Metadata, gotParams.SubscriptionData.Metadata)

	intent, err := repo.GetCheckoutIntentBySessionID("cs_123")
	require.NoError(t, err)
	assert.Equal(t, uint(1), intent.UserID)
	assert.Equal(t, "pro", intent.Plan)
	assert.Equal(t, "month", intent.BillingCycle)
}

func TestCreateSubscriptionIntentRejectsFreePlan(t *testing.T) {
	factory := newTestFactory(newFakeRepository(), nil)

	_, err := factory.CreateSubscriptionIntent(context.Background(), SubscriptionCheckout{
		UserID: 1,
		Plan:   entitlements.TierFree,
		Cycle:  "month",
	})
	assert.Error(t, err)
}

func TestCreateSubscriptionIntentRejectsBadCycle(t *testing.T) {
	factory := newTestFactory(newFakeRepository(), nil)

	_, err := factory.CreateSubscriptionIntent(context.Background(), SubscriptionCheckout{
		UserID: 1,
		Plan:   entitlements.TierPro,
		Cycle:  "weekly",
	})
	assert.Error(t, err)
}

func TestCreateSubscriptionIntentWithoutMapping(t *testing.T) {
	factory := newTestFactory(newFakeRepository(), nil)

	_, err := factory.CreateSubscriptionIntent(context.Background(), SubscriptionCheckout{
		UserID: 1,
		Plan:   entitlements.TierPro,
		Cycle:  "month",
	})

	var creationErr *CheckoutCreationError
	assert.ErrorAs(t, err, &creationErr)
}

func TestCreateBoostIntent(t *testing.T) {
	repo := newFakeRepository()

	var gotParams *stripe.CheckoutSessionParams
	factory := newTestFactory(repo, func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		gotParams = params
		return &stripe.CheckoutSession{ID: "cs_boost", URL: "https://checkout.stripe.test/cs_boost"}, nil
	})

	url, err := factory.CreateBoostIntent(context.Background(), BoostCheckout{
		UserID:          2,
		Quantity:        3,
		TargetListingID: 10,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	assert.Equal(t, string(stripe.CheckoutSessionModePayment), *gotParams.Mode)
	assert.Equal(t, "price_boost_week", *gotParams.LineItems[0].Price)
	assert.Equal(t, int64(3), *gotParams.LineItems[0].Quantity)
	assert.Equal(t, "10", gotParams.Metadata["target_listing_id"])

	intent, err := repo.GetCheckoutIntentBySessionID("cs_boost")
	require.NoError(t, err)
	assert.Equal(t, int64(3), intent.BoostQuantity)
	assert.Equal(t, uint(10), intent.TargetListingID)
}

func TestCreateRetriesTransportFailureOnce(t *testing.T) {
	attempts := 0
	factory := newTestFactory(newFakeRepository(), func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		attempts++
		return nil, errors.New("connection reset")
	})

	_, err := factory.CreateBoostIntent(context.Background(), BoostCheckout{
		UserID:          1,
		Quantity:        1,
		TargetListingID: 10,
	})

	var creationErr *CheckoutCreationError
	require.ErrorAs(t, err, &creationErr)
	assert.Equal(t, 2, attempts)
}

func TestCreateDoesNotRetryProviderRejection(t *testing.T) {
	attempts := 0
	factory := newTestFactory(newFakeRepository(), func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		attempts++
		return nil, &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "no such price"}
	})

	_, err := factory.CreateBoostIntent(context.Background(), BoostCheckout{
		UserID:          1,
		Quantity:        1,
		TargetListingID: 10,
	})

	var creationErr *CheckoutCreationError
	require.ErrorAs(t, err, &creationErr)
	assert.Equal(t, 1, attempts)
}

func TestCreateFailsOnEmptyURL(t *testing.T) {
	factory := newTestFactory(newFakeRepository(), func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return &stripe.CheckoutSession{ID: "cs_nourl"}, nil
	})

	_, err := factory.CreateBoostIntent(context.Background(), BoostCheckout{
		UserID:          1,
		Quantity:        1,
		TargetListingID: 10,
	})

	var creationErr *CheckoutCreationError
	assert.ErrorAs(t, err, &creationErr)
}

func TestCreateBoostIntentValidation(t *testing.T) {
	factory := newTestFactory(newFakeRepository(), nil)

	_, err := factory.CreateBoostIntent(context.Background(), BoostCheckout{UserID: 0, TargetListingID: 10})
	assert.Error(t, err)

	_, err = factory.CreateBoostIntent(context.Background(), BoostCheckout{UserID: 1, TargetListingID: 0})
	assert.Error(t, err)
}
