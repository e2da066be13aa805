package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/FlorianMaier/HausMarkt/app/repository"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/database"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/entitlements"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/statistics"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/usercontext"
)

const defaultPageSize = 24

// HandleStart renders the marketplace start page with the newest active
// listings.
func HandleStart(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	listings, err := repository.GetGlobalRepositories().Listing.ListActive((page-1)*defaultPageSize, defaultPageSize)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not load listings")
	}

	return c.Render("index", fiber.Map{
		"Title":         "HausMarkt",
		"FromProtected": isLoggedIn(c),
		"Username":      ExtractUsername(c),
		"Flash":         flash.Get(c),
		"CsrfToken":     csrfToken(c),
		"Listings":      listings,
		"Page":          page,
		"PrevPage":      page - 1,
		"NextPage":      page + 1,
		"Stats":         statistics.GetStatistics(),
	}, "layouts/main")
}

// HandleListingPage renders the public detail page for a single listing.
// Boost state is derived at read time, an expired boost window renders the
// same as no boost at all.
func HandleListingPage(c *fiber.Ctx) error {
	listing, err := repository.GetGlobalRepositories().Listing.GetByUUID(c.Params("uuid"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "listing not found")
	}

	boost, err := entitlements.NewStoreFromDB(database.GetDB()).GetBoost(listing.ID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not load listing")
	}

	return c.Render("listing", fiber.Map{
		"Title":         listing.Title,
		"FromProtected": isLoggedIn(c),
		"Username":      ExtractUsername(c),
		"Flash":         flash.Get(c),
		"CsrfToken":     csrfToken(c),
		"Listing":       listing,
		"Boosted":       boost.Active,
		"BoostUntil":    boost.ExpiresAt,
	}, "layouts/main")
}

// HandlePricing renders the tier comparison page.
func HandlePricing(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	return c.Render("pricing", fiber.Map{
		"Title":         "Preise",
		"FromProtected": isLoggedIn(c),
		"Username":      userCtx.Username,
		"Flash":         flash.Get(c),
		"CsrfToken":     csrfToken(c),
		"CurrentTier":   userCtx.Tier,
	}, "layouts/main")
}

// HandleUserListings renders the logged-in user's own listings with quota
// usage.
func HandleUserListings(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	repos := repository.GetGlobalRepositories()

	listings, err := repos.Listing.GetByUserID(userCtx.UserID, 0, 100)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not load listings")
	}

	activeCount, err := repos.Listing.CountActiveByUserID(userCtx.UserID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not load listings")
	}

	store := entitlements.NewStoreFromDB(database.GetDB())
	decision, err := entitlements.NewQuotaEnforcer(store).CanCreateListing(userCtx.UserID, int(activeCount))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not load quota")
	}

	return c.Render("user/listings", fiber.Map{
		"Title":         "Meine Inserate",
		"FromProtected": isLoggedIn(c),
		"Username":      userCtx.Username,
		"Flash":         flash.Get(c),
		"CsrfToken":     csrfToken(c),
		"Listings":      listings,
		"Quota":         decision,
	}, "layouts/main")
}
