package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/FlorianMaier/HausMarkt/app/models"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/entitlements"
	"gorm.io/gorm"
)

var errDuplicateEvent = errors.New("duplicate provider event")

// Reconciler translates provider notifications into authoritative
// entitlement state. Every handler starts with the idempotency-ledger
// check and commits the ledger row in the same transaction as the
// entitlement mutation, so a crash between the two cannot half-apply an
// event and a replayed event id is always a no-op.
type Reconciler struct {
	repo Repository
	now  func() time.Time
}

// NewReconciler creates a reconciler from an injected repository.
func NewReconciler(repo Repository) *Reconciler {
	return &Reconciler{repo: repo, now: time.Now}
}

// NewReconcilerFromDB creates a reconciler from a GORM DB handle.
func NewReconcilerFromDB(db *gorm.DB) *Reconciler {
	return NewReconciler(NewRepository(db))
}

// Apply processes one provider event. Returns OutcomeDuplicate without any
// state mutation when the event id is already in the ledger.
func (r *Reconciler) Apply(ev ProviderEvent) (Outcome, error) {
	if ev.ID == "" {
		return "", errors.New("provider event id is required")
	}

	outcome := OutcomeProcessed
	err := r.repo.WithinTransaction(func(tx Repository) error {
		record := &models.BillingWebhookEvent{
			Provider:        models.BillingProviderStripe,
			ProviderEventID: ev.ID,
			EventType:       ev.Type,
			PayloadJSON:     string(ev.Payload),
		}
		created, err := tx.RecordProcessedEvent(record)
		if err != nil {
			return err
		}
		if !created {
			return errDuplicateEvent
		}

		var ignored bool
		switch ev.Kind {
		case EventKindCheckoutCompleted:
			ignored, err = r.applyCheckoutCompleted(tx, ev)
		case EventKindSubscriptionUpdated:
			ignored, err = r.applySubscriptionUpdated(tx, ev)
		case EventKindSubscriptionDeleted:
			ignored, err = r.applySubscriptionDeleted(tx, ev)
		case EventKindInvoicePaymentFailed:
			// A single missed charge never downgrades on its own; a later
			// subscription-status event is authoritative.
			log.Printf("[Billing] invoice.payment_failed recorded, no entitlement change (event=%s)", ev.ID)
		default:
			log.Printf("[Billing] ignoring unhandled event type %s (event=%s)", ev.Type, ev.ID)
			ignored = true
		}
		if err != nil {
			// Roll back the ledger row too: the provider will retry and
			// the retry must get a fresh attempt.
			return err
		}
		if ignored {
			outcome = OutcomeIgnored
		}
		return tx.MarkEventProcessed(record.ID, "")
	})
	if errors.Is(err, errDuplicateEvent) {
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return "", err
	}
	return outcome, nil
}

type checkoutSessionPayload struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type subscriptionPayload struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	Items            struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

func (r *Reconciler) applyCheckoutCompleted(tx Repository, ev ProviderEvent) (bool, error) {
	var session checkoutSessionPayload
	if err := json.Unmarshal(ev.Payload, &session); err != nil {
		return false, fmt.Errorf("decode checkout.session: %w", err)
	}

	meta := session.Metadata
	if meta[metaProductFamily] == "" {
		// The session metadata is the source of truth; the local intent
		// row is an audit fallback for sessions created before metadata
		// was attached.
		intent, err := tx.GetCheckoutIntentBySessionID(session.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("[Billing] checkout.session.completed without correlation payload, ignoring (session=%s event=%s)", session.ID, ev.ID)
				return true, nil
			}
			return false, err
		}
		meta = map[string]string{
			metaUserID:          strconv.FormatUint(uint64(intent.UserID), 10),
			metaProductFamily:   intent.ProductFamily,
			metaPlan:            intent.Plan,
			metaBillingCycle:    intent.BillingCycle,
			metaBoostQuantity:   strconv.FormatInt(intent.BoostQuantity, 10),
			metaTargetListingID: strconv.FormatUint(uint64(intent.TargetListingID), 10),
		}
	}

	userID := parseUintMeta(meta, metaUserID)
	if userID == 0 {
		log.Printf("[Billing] checkout.session.completed without user linkage, ignoring (session=%s event=%s)", session.ID, ev.ID)
		return true, nil
	}

	switch meta[metaProductFamily] {
	case models.ProductFamilySubscription:
		plan := entitlements.NormalizeTier(meta[metaPlan])
		if plan == entitlements.TierFree {
			log.Printf("[Billing] checkout completed with unmapped plan %q, ignoring (event=%s)", meta[metaPlan], ev.ID)
			return true, nil
		}
		expiry := cycleExpiry(r.now(), meta[metaBillingCycle])
		if err := tx.UpsertEntitlement(&models.AccountEntitlement{
			UserID:        userID,
			Tier:          string(plan),
			TierExpiresAt: &expiry,
		}); err != nil {
			return false, err
		}
		log.Printf("[Billing] checkout completed: user=%d tier=%s until=%s (event=%s)", userID, plan, expiry.Format(time.RFC3339), ev.ID)
		return false, nil

	case models.ProductFamilyBoost:
		listingID := parseUintMeta(meta, metaTargetListingID)
		if listingID == 0 {
			log.Printf("[Billing] boost checkout without target listing, ignoring (event=%s)", ev.ID)
			return true, nil
		}
		quantity, _ := strconv.ParseInt(meta[metaBoostQuantity], 10, 64)
		if quantity < 1 {
			quantity = 1
		}

		// Stacked purchases extend an unexpired window from its current
		// end, not from now.
		base := r.now()
		if existing, err := tx.GetBoost(listingID); err == nil {
			if existing.BoostExpiresAt != nil && existing.BoostExpiresAt.After(base) {
				base = *existing.BoostExpiresAt
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, err
		}
		expiry := base.Add(time.Duration(quantity) * entitlements.BoostDuration)
		if err := tx.UpsertBoost(&models.ListingBoost{
			ListingID:      listingID,
			BoostExpiresAt: &expiry,
		}); err != nil {
			return false, err
		}
		log.Printf("[Billing] boost applied: listing=%d until=%s (event=%s)", listingID, expiry.Format(time.RFC3339), ev.ID)
		return false, nil

	default:
		log.Printf("[Billing] checkout completed with unknown product family %q, ignoring (event=%s)", meta[metaProductFamily], ev.ID)
		return true, nil
	}
}

func (r *Reconciler) applySubscriptionUpdated(tx Repository, ev ProviderEvent) (bool, error) {
	var sub subscriptionPayload
	if err := json.Unmarshal(ev.Payload, &sub); err != nil {
		return false, fmt.Errorf("decode subscription: %w", err)
	}

	userID := parseUintMeta(sub.Metadata, metaUserID)
	if userID == 0 {
		log.Printf("[Billing] subscription.updated without user linkage, ignoring (sub=%s event=%s)", sub.ID, ev.ID)
		return true, nil
	}

	if !isEntitlingStatus(sub.Status) {
		// No entitlement change; an explicit deletion event drives the
		// downgrade.
		log.Printf("[Billing] subscription.updated status=%s, no entitlement change (user=%d event=%s)", sub.Status, userID, ev.ID)
		return false, nil
	}

	plan, cycle := r.resolveSubscriptionPlan(tx, sub)
	if plan == entitlements.TierFree {
		log.Printf("[Billing] subscription.updated with unmapped plan, ignoring (sub=%s event=%s)", sub.ID, ev.ID)
		return true, nil
	}

	var expiry time.Time
	if sub.CurrentPeriodEnd > 0 {
		expiry = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	} else {
		expiry = cycleExpiry(r.now(), cycle)
	}
	if err := tx.UpsertEntitlement(&models.AccountEntitlement{
		UserID:        userID,
		Tier:          string(plan),
		TierExpiresAt: &expiry,
	}); err != nil {
		return false, err
	}
	log.Printf("[Billing] subscription updated: user=%d tier=%s until=%s (event=%s)", userID, plan, expiry.Format(time.RFC3339), ev.ID)
	return false, nil
}

func (r *Reconciler) applySubscriptionDeleted(tx Repository, ev ProviderEvent) (bool, error) {
	var sub subscriptionPayload
	if err := json.Unmarshal(ev.Payload, &sub); err != nil {
		return false, fmt.Errorf("decode subscription: %w", err)
	}

	userID := parseUintMeta(sub.Metadata, metaUserID)
	if userID == 0 {
		log.Printf("[Billing] subscription.deleted without user linkage, ignoring (sub=%s event=%s)", sub.ID, ev.ID)
		return true, nil
	}

	if err := tx.UpsertEntitlement(&models.AccountEntitlement{
		UserID:        userID,
		Tier:          string(entitlements.TierFree),
		TierExpiresAt: nil,
	}); err != nil {
		return false, err
	}
	log.Printf("[Billing] subscription deleted: user=%d downgraded to free (event=%s)", userID, ev.ID)
	return false, nil
}

// resolveSubscriptionPlan maps the subscription's price ref to an internal
// tier, falling back to the plan name mirrored into subscription metadata.
func (r *Reconciler) resolveSubscriptionPlan(tx Repository, sub subscriptionPayload) (entitlements.Tier, string) {
	for _, item := range sub.Items.Data {
		if item.Price.ID == "" {
			continue
		}
		m, err := tx.FindActivePlanMappingByRef(models.BillingProviderStripe, item.Price.ID)
		if err == nil {
			return entitlements.NormalizeTier(m.InternalTier), m.BillingInterval
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Billing] plan mapping lookup failed for price %s: %v", item.Price.ID, err)
		}
	}
	return entitlements.NormalizeTier(sub.Metadata[metaPlan]), normalizeInterval(sub.Metadata[metaBillingCycle])
}

func parseUintMeta(meta map[string]string, key string) uint {
	if meta == nil {
		return 0
	}
	v, err := strconv.ParseUint(meta[key], 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}
