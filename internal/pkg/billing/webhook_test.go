package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signedPayload(t *testing.T, body string) (rawBody []byte, header string) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(body),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

func TestIngestRejectsMissingSignature(t *testing.T) {
	gateway := NewGateway(testWebhookSecret, newTestReconciler(newFakeRepository()))

	_, err := gateway.Ingest([]byte(`{}`), "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestIngestRejectsBadSignature(t *testing.T) {
	gateway := NewGateway(testWebhookSecret, newTestReconciler(newFakeRepository()))

	_, err := gateway.Ingest([]byte(`{"id":"evt_1"}`), "t=123,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestIngestRejectsWrongSecret(t *testing.T) {
	body, header := signedPayload(t, `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{}}}`)

	gateway := NewGateway("whsec_other_secret", newTestReconciler(newFakeRepository()))
	_, err := gateway.Ingest(body, header)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestIngestDispatchesToReconciler(t *testing.T) {
	repo := newFakeRepository()
	gateway := NewGateway(testWebhookSecret, newTestReconciler(repo))

	body, header := signedPayload(t, `{
		"id": "evt_sub_del",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_1", "metadata": {"user_id": "5"}}}
	}`)

	outcome, err := gateway.Ingest(body, header)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	ent, err := repo.GetEntitlement(5)
	require.NoError(t, err)
	assert.Equal(t, "free", ent.Tier)
}

func TestIngestAcknowledgesUnknownEventTypes(t *testing.T) {
	repo := newFakeRepository()
	gateway := NewGateway(testWebhookSecret, newTestReconciler(repo))

	body, header := signedPayload(t, `{
		"id": "evt_cust",
		"type": "customer.created",
		"data": {"object": {"id": "cus_1"}}
	}`)

	outcome, err := gateway.Ingest(body, header)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
}

func TestIngestDuplicateDelivery(t *testing.T) {
	repo := newFakeRepository()
	gateway := NewGateway(testWebhookSecret, newTestReconciler(repo))

	body, header := signedPayload(t, `{
		"id": "evt_once",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_1", "metadata": {"user_id": "5"}}}
	}`)

	first, err := gateway.Ingest(body, header)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, first)

	second, err := gateway.Ingest(body, header)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second)
}
