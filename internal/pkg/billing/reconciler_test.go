package billing

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlorianMaier/HausMarkt/app/models"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/entitlements"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestReconciler(repo Repository) *Reconciler {
	r := NewReconciler(repo)
	r.now = func() time.Time { return testNow }
	return r
}

func subscriptionCheckoutEvent(eventID string, userID uint, plan, cycle string) ProviderEvent {
	payload, _ := json.Marshal(map[string]interface{}{
		"id":   "cs_" + eventID,
		"mode": "subscription",
		"metadata": map[string]string{
			"user_id":        fmt.Sprintf("%d", userID),
			"product_family": models.ProductFamilySubscription,
			"plan":           plan,
			"billing_cycle":  cycle,
		},
	})
	return ProviderEvent{
		ID:      eventID,
		Type:    "checkout.session.completed",
		Kind:    EventKindCheckoutCompleted,
		Payload: payload,
	}
}

func boostCheckoutEvent(eventID string, userID, listingID uint, quantity int64) ProviderEvent {
	payload, _ := json.Marshal(map[string]interface{}{
		"id":   "cs_" + eventID,
		"mode": "payment",
		"metadata": map[string]string{
			"user_id":           fmt.Sprintf("%d", userID),
			"product_family":    models.ProductFamilyBoost,
			"boost_quantity":    fmt.Sprintf("%d", quantity),
			"target_listing_id": fmt.Sprintf("%d", listingID),
		},
	})
	return ProviderEvent{
		ID:      eventID,
		Type:    "checkout.session.completed",
		Kind:    EventKindCheckoutCompleted,
		Payload: payload,
	}
}

func subscriptionEvent(eventID, eventType, status string, userID uint, periodEnd int64, priceID string) ProviderEvent {
	payload, _ := json.Marshal(map[string]interface{}{
		"id":                 "sub_" + eventID,
		"status":             status,
		"current_period_end": periodEnd,
		"items": map[string]interface{}{
			"data": []map[string]interface{}{
				{"price": map[string]string{"id": priceID}},
			},
		},
		"metadata": map[string]string{
			"user_id": fmt.Sprintf("%d", userID),
		},
	})
	kind := parseEventKind(eventType)
	return ProviderEvent{ID: eventID, Type: eventType, Kind: kind, Payload: payload}
}

func TestApplyCheckoutCompletedSubscription(t *testing.T) {
	repo := newFakeRepository()
	reconciler := newTestReconciler(repo)

	outcome, err := reconciler.Apply(subscriptionCheckoutEvent("evt_1", 1, "pro", "month"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	ent, err := repo.GetEntitlement(1)
	require.NoError(t, err)
	assert.Equal(t, "pro", ent.Tier)
	require.NotNil(t, ent.TierExpiresAt)
	assert.True(t, ent.TierExpiresAt.Equal(testNow.AddDate(0, 1, 0)))

	ledger := repo.state.events["stripe:evt_1"]
	require.NotNil(t, ledger)
	assert.NotNil(t, ledger.ProcessedAt)
	assert.Empty(t, ledger.ProcessingError)
}

func TestApplyDuplicateEventIsNoOp(t *testing.T) {
	repo := newFakeRepository()
	reconciler := newTestReconciler(repo)

	_, err := reconciler.Apply(subscriptionCheckoutEvent("evt_dup", 1, "pro", "month"))
	require.NoError(t, err)

	// Same event id again, this time claiming a different plan. Nothing may
	// change.
	outcome, err := reconciler.Apply(subscriptionCheckoutEvent("evt_dup", 1, "investor", "year"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	ent, err := repo.GetEntitlement(1)
	require.NoError(t, err)
	assert.Equal(t, "pro", ent.Tier)
	assert.Len(t, repo.state.events, 1)
}

func TestApplyBoostCheckoutCreatesWindow(t *testing.T) {
	repo := newFakeRepository()
	reconciler := newTestReconciler(repo)

	outcome, err := reconciler.Apply(boostCheckoutEvent("evt_b1", 1, 10, 1))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	boost, err := repo.GetBoost(10)
	require.NoError(t, err)
	require.NotNil(t, boost.BoostExpiresAt)
	assert.True(t, boost.BoostExpiresAt.Equal(testNow.Add(entitlements.BoostDuration)))
}

func TestApplyBoostCheckoutStacksOnUnexpiredWindow(t *testing.T) {
	repo := newFakeRepository()
	reconciler := newTestReconciler(repo)

	existing := testNow.Add(3 * 24 * time.Hour)
	require.NoError(t, repo.UpsertBoost(&models.ListingBoost{ListingID: 10, BoostExpiresAt: &existing}))

	_, err := reconciler.Apply(boostCheckoutEvent("evt_b2", 1, 10, 2))
	require.NoError(t, err)

	boost, err := repo.GetBoost(10)
	require.NoError(t, err)
	// Two boost units extend the current window end, not now.
	assert.True(t, boost.BoostExpiresAt.Equal(existing.Add(2*entitlements.BoostDuration)))
}

func TestApplyBoostCheckoutExpiredWindowRestartsFromNow(t *testing.T) {
	repo := newFakeRepository()
	reconciler := newTestReconciler(repo)

	expired := testNow.Add(-time.Hour)
	require.NoError(t, repo.UpsertBoost(&models.ListingBoost{ListingID: 10, BoostExpiresAt: &expired}))

	_, err := reconciler.Apply(boostCheckoutEvent("evt_b3", 1, 10, 1))
	require.NoError(t, err)

	boost, err := repo.GetBoost(10)
	require.NoError(t, err)
	assert.True(t, boost.BoostExpiresAt.Equal(testNow.Add(entitlements.BoostDuration)))
}

func TestApplyCheckoutCompletedFallsBackToIntent(t *testing.T) {
	repo := newFakeRepository()
	reconciler := newTestReconciler(repo)

	require.NoError(t, repo.CreateCheckoutIntent(&models.CheckoutIntent{
		ProviderSessionID: "cs_no_meta",
		UserID:            7,
		ProductFamily:     models.ProductFamilySubscription,
		Plan:              "investor",
		BillingCycle:      "year",
	}))

	payload, _ := json.Marshal(map[string]interface{}{"id": "cs_no_meta"})
	outcome, err := reconciler.Apply(ProviderEvent{
		ID:      "evt_fallback",
		Type:    "checkout.session.completed",
		Kind:    EventKindCheckoutCompleted,
		Payload: payload,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	ent, err := repo.GetEntitlement(7)
	require.NoError(t, err)
	assert.Equal(t, "investor", ent.Tier)
	assert.True(t, ent.TierExpiresAt.Equal(testNow.AddDate(1, 0, 0)))
}

func TestApplyCheckoutCompletedWithoutLinkageIsIgnored(t *testing.T) {
	repo := newFakeRepository()
	reconciler := newTestReconciler(repo)

	payload, _ := json.Marshal(map[string]interface{}{"id": "cs_orphan"})
	outcome, err := reconciler.Apply(ProviderEvent{
		ID:      "evt_orphan",
		Type:    "checkout.session.completed",
		Kind:    EventKindCheckoutCompleted,
		Payload: payload,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)

	// Acknowledged and recorded: the provider must not retry it.
	assert.Len(t, repo.state.events, 1)
	assert.Empty(t, repo.state.entitlements)
}

func TestApplySubscriptionUpdatedMapsPriceRef(t *testing.T) {
	repo := newFakeRepository()
	repo.state.mappings = []models.BillingPlanMapping{{
		Provider:        models.BillingProviderStripe,
		ProviderPlanRef: "price_pro_month",
		InternalTier:    "pro",
		BillingInterval: "month",
		IsActive:        true,
	}}
	reconciler := newTestReconciler(repo)

	periodEnd := testNow.Add(30 * 24 * time.Hour).Unix()
	outcome, err := reconciler.Apply(subscriptionEvent("evt_s1", "customer.subscription.updated", "active", 3, periodEnd, "price_pro_month"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	ent, err := repo.GetEntitlement(3)
	require.NoError(t, err)
	assert.Equal(t, "pro", ent.Tier)
	assert.Equal(t, periodEnd, ent.TierExpiresAt.Unix())
}

func TestApplySubscriptionUpdatedNonEntitlingStatusKeepsState(t *testing.T) {
	repo := newFakeRepository()
	reconciler := newTestReconciler(repo)

	future := testNow.Add(10 * 24 * time.Hour)
	require.NoError(t, repo.UpsertEntitlement(&models.AccountEntitlement{
		UserID:        3,
		Tier:          "pro",
		TierExpiresAt: &future,
	}))

	outcome, err := reconciler.Apply(subscriptionEvent("evt_s2", "customer.subscription.updated", "past_due", 3, 0, "price_pro_month"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	// No downgrade on a missed charge; the deletion event is authoritative.
	ent, err := repo.GetEntitlement(3)
	require.NoError(t, err)
	assert.Equal(t, "pro", ent.Tier)
	assert.True(t, ent.TierExpiresAt.Equal(future))
}

func TestApplySubscriptionDeletedDowngradesToFree(t *testing.T) {
	repo := newFakeRepository()
	reconciler := newTestReconciler(repo)

	future := testNow.Add(10 * 24 * time.Hour)
	require.NoError(t, repo.UpsertEntitlement(&models.AccountEntitlement{
		UserID:        3,
		Tier:          "pro",
		TierExpiresAt: &future,
	}))

	outcome, err := reconciler.Apply(subscriptionEvent("evt_s3", "customer.subscription.deleted", "canceled", 3, 0, ""))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	ent, err := repo.GetEntitlement(3)
	require.NoError(t, err)
	assert.Equal(t, "free", ent.Tier)
	assert.Nil(t, ent.TierExpiresAt)
}

func TestApplyInvoicePaymentFailedChangesNothing(t *testing.T) {
	repo := newFakeRepository()
	reconciler := newTestReconciler(repo)

	future := testNow.Add(10 * 24 * time.Hour)
	require.NoError(t, repo.UpsertEntitlement(&models.AccountEntitlement{
		UserID:        3,
		Tier:          "pro",
		TierExpiresAt: &future,
	}))

	payload, _ := json.Marshal(map[string]interface{}{"id": "in_1"})
	outcome, err := reconciler.Apply(ProviderEvent{
		ID:      "evt_inv",
		Type:    "invoice.payment_failed",
		Kind:    EventKindInvoicePaymentFailed,
		Payload: payload,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	ent, err := repo.GetEntitlement(3)
	require.NoError(t, err)
	assert.Equal(t, "pro", ent.Tier)
}

func TestApplyUnknownEventTypeIsIgnoredButRecorded(t *testing.T) {
	repo := newFakeRepository()
	reconciler := newTestReconciler(repo)

	outcome, err := reconciler.Apply(ProviderEvent{
		ID:      "evt_unknown",
		Type:    "customer.created",
		Kind:    parseEventKind("customer.created"),
		Payload: json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Len(t, repo.state.events, 1)
}

func TestApplyRollsBackLedgerOnHandlerFailure(t *testing.T) {
	repo := newFakeRepository()
	repo.state.failUpsertEntitlement = true
	reconciler := newTestReconciler(repo)

	_, err := reconciler.Apply(subscriptionCheckoutEvent("evt_fail", 1, "pro", "month"))
	require.Error(t, err)

	// The ledger row must roll back with the failed mutation so the
	// provider's retry gets a fresh attempt.
	assert.Empty(t, repo.state.events)

	repo.state.failUpsertEntitlement = false
	outcome, err := reconciler.Apply(subscriptionCheckoutEvent("evt_fail", 1, "pro", "month"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
}

func TestApplyRequiresEventID(t *testing.T) {
	reconciler := newTestReconciler(newFakeRepository())

	_, err := reconciler.Apply(ProviderEvent{Type: "checkout.session.completed"})
	assert.Error(t, err)
}
