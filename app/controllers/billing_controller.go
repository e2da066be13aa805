package controllers

import (
	"errors"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/FlorianMaier/HausMarkt/app/repository"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/billing"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/database"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/entitlements"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/env"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/usercontext"
)

var (
	billingOnce    sync.Once
	intentFactory  *billing.IntentFactory
	webhookGateway *billing.Gateway
)

func billingComponents() (*billing.IntentFactory, *billing.Gateway) {
	billingOnce.Do(func() {
		repo := billing.NewRepository(database.GetDB())
		intentFactory = billing.NewIntentFactory(repo)
		webhookGateway = billing.NewGateway(
			env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
			billing.NewReconciler(repo),
		)
	})
	return intentFactory, webhookGateway
}

// HandleSubscriptionCheckout starts a recurring checkout for a tier upgrade
// and redirects the browser to the provider-hosted payment page.
func HandleSubscriptionCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}

	factory, _ := billingComponents()
	url, err := factory.CreateSubscriptionIntent(c.Context(), billing.SubscriptionCheckout{
		UserID: userCtx.UserID,
		Plan:   entitlements.Tier(strings.TrimSpace(c.FormValue("plan"))),
		Cycle:  strings.TrimSpace(c.FormValue("cycle")),
	})
	if err != nil {
		log.Printf("subscription checkout for user %d failed: %v", userCtx.UserID, err)
		fm := fiber.Map{
			"type":    "error",
			"message": "Der Bezahlvorgang konnte nicht gestartet werden. Bitte versuche es erneut.",
		}
		return flash.WithError(c, fm).Redirect("/pricing")
	}

	return c.Redirect(url, fiber.StatusSeeOther)
}

// HandleBoostCheckout starts a one-time checkout that boosts one of the
// user's own listings.
func HandleBoostCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}

	listing, err := repository.GetGlobalRepositories().Listing.GetByUUID(strings.TrimSpace(c.FormValue("listing_uuid")))
	if err != nil || listing.UserID != userCtx.UserID {
		fm := fiber.Map{
			"type":    "error",
			"message": "Dieses Inserat gehoert nicht zu deinem Konto.",
		}
		return flash.WithError(c, fm).Redirect("/user/listings")
	}

	quantity, err := strconv.ParseInt(strings.TrimSpace(c.FormValue("quantity", "1")), 10, 64)
	if err != nil || quantity < 1 {
		quantity = 1
	}

	factory, _ := billingComponents()
	url, err := factory.CreateBoostIntent(c.Context(), billing.BoostCheckout{
		UserID:          userCtx.UserID,
		Quantity:        quantity,
		TargetListingID: listing.ID,
	})
	if err != nil {
		log.Printf("boost checkout for listing %d failed: %v", listing.ID, err)
		fm := fiber.Map{
			"type":    "error",
			"message": "Der Bezahlvorgang konnte nicht gestartet werden. Bitte versuche es erneut.",
		}
		return flash.WithError(c, fm).Redirect("/user/listings")
	}

	return c.Redirect(url, fiber.StatusSeeOther)
}

// HandleStripeWebhook receives provider notifications. Invalid signatures
// answer 400, reconciliation failures answer 500 so the provider retries,
// everything else (processed, duplicate, ignored) is acknowledged with 200.
func HandleStripeWebhook(c *fiber.Ctx) error {
	_, gateway := billingComponents()

	outcome, err := gateway.Ingest(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid signature",
			})
		}
		log.Printf("webhook reconciliation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "reconciliation failed",
		})
	}

	return c.JSON(fiber.Map{
		"status": string(outcome),
	})
}
