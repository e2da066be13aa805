package billing

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v82/webhook"
)

// ErrInvalidSignature is returned by Ingest when the payload cannot be
// authenticated. The body is not parsed in that case.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// EventKind is the closed set of provider notifications the reconciler
// handles. Anything else is acknowledged and ignored so the provider is
// never induced to retry it.
type EventKind int

const (
	EventKindUnknown EventKind = iota
	EventKindCheckoutCompleted
	EventKindSubscriptionUpdated
	EventKindSubscriptionDeleted
	EventKindInvoicePaymentFailed
)

func parseEventKind(eventType string) EventKind {
	switch strings.TrimSpace(eventType) {
	case "checkout.session.completed":
		return EventKindCheckoutCompleted
	case "customer.subscription.updated":
		return EventKindSubscriptionUpdated
	case "customer.subscription.deleted":
		return EventKindSubscriptionDeleted
	case "invoice.payment_failed":
		return EventKindInvoicePaymentFailed
	default:
		return EventKindUnknown
	}
}

// ProviderEvent is the parsed envelope handed to the reconciler.
type ProviderEvent struct {
	ID      string
	Type    string
	Kind    EventKind
	Payload json.RawMessage
}

// Outcome tells the HTTP layer how an ingested event ended up. All three
// outcomes are acknowledged with a 2xx.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Gateway authenticates inbound provider notifications and routes them to
// the reconciler. It holds no business logic.
type Gateway struct {
	secret     string
	reconciler *Reconciler
}

func NewGateway(webhookSecret string, reconciler *Reconciler) *Gateway {
	return &Gateway{secret: strings.TrimSpace(webhookSecret), reconciler: reconciler}
}

// Ingest verifies the signature against the shared secret before anything
// else, then parses the envelope and dispatches by event kind. Reconciler
// failures propagate so the HTTP layer answers 5xx and the provider
// retries; retries are safe because of the idempotency ledger.
func (g *Gateway) Ingest(rawBody []byte, signatureHeader string) (Outcome, error) {
	if g.secret == "" || strings.TrimSpace(signatureHeader) == "" {
		return "", ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(rawBody, signatureHeader, g.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return "", ErrInvalidSignature
	}

	eventType := string(event.Type)
	return g.reconciler.Apply(ProviderEvent{
		ID:      event.ID,
		Type:    eventType,
		Kind:    parseEventKind(eventType),
		Payload: event.Data.Raw,
	})
}
