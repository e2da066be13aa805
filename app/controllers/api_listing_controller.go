package controllers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/FlorianMaier/HausMarkt/app/models"
	"github.com/FlorianMaier/HausMarkt/app/repository"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/database"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/entitlements"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/usercontext"
)

type listingRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	City        string `json:"city"`
	Status      string `json:"status"`
}

type listingResponse struct {
	models.Listing
	Boosted      bool    `json:"boosted"`
	BoostedUntil *string `json:"boosted_until,omitempty"`
}

func listingWithBoost(listing models.Listing) listingResponse {
	resp := listingResponse{Listing: listing}
	boost, err := entitlements.NewStoreFromDB(database.GetDB()).GetBoost(listing.ID)
	if err != nil {
		return resp
	}
	resp.Boosted = boost.Active
	if boost.Active && boost.ExpiresAt != nil {
		until := boost.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		resp.BoostedUntil = &until
	}
	return resp
}

// checkListingQuota runs the tier quota check for one more active listing.
// Returns a non-nil response when the request must be rejected.
func checkListingQuota(c *fiber.Ctx, userID uint) error {
	activeCount, err := repository.GetGlobalRepositories().Listing.CountActiveByUserID(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not determine listing count",
		})
	}

	store := entitlements.NewStoreFromDB(database.GetDB())
	decision, err := entitlements.NewQuotaEnforcer(store).CanCreateListing(userID, int(activeCount))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not check quota",
		})
	}

	if !decision.Allowed {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "quota_exceeded",
			"message": decision.Reason,
			"current": decision.Current,
			"max":     decision.Max,
			"tier":    decision.Tier,
		})
	}

	return nil
}

// ApiCreateListing creates a listing for the logged-in user. Activating it
// immediately counts against the tier quota; drafts do not.
func ApiCreateListing(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req listingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = models.ListingStatusDraft
	}

	if status == models.ListingStatusActive {
		if resp := checkListingQuota(c, userCtx.UserID); resp != nil {
			return resp
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "EUR"
	}

	listing := &models.Listing{
		UUID:        uuid.New().String(),
		UserID:      userCtx.UserID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    currency,
		City:        strings.TrimSpace(req.City),
		Status:      status,
	}

	if err := listing.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "validation failed",
			"message": err.Error(),
		})
	}

	if err := repository.GetGlobalRepositories().Listing.Create(listing); err != nil {
		log.Printf("failed to create listing for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not create listing",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(listingWithBoost(*listing))
}

// ApiListListings returns publicly visible listings, optionally filtered by
// a search query.
func ApiListListings(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * defaultPageSize

	repos := repository.GetGlobalRepositories()
	var (
		listings []models.Listing
		err      error
	)
	if query := strings.TrimSpace(c.Query("q")); query != "" {
		listings, err = repos.Listing.Search(query, offset, defaultPageSize)
	} else {
		listings, err = repos.Listing.ListActive(offset, defaultPageSize)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not load listings",
		})
	}

	result := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		result = append(result, listingWithBoost(l))
	}

	return c.JSON(fiber.Map{
		"listings": result,
		"page":     page,
	})
}

// ApiGetListing returns a single listing by UUID. Drafts and archived
// listings are only visible to their owner.
func ApiGetListing(c *fiber.Ctx) error {
	listing, err := repository.GetGlobalRepositories().Listing.GetByUUID(c.Params("uuid"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "listing not found",
		})
	}

	if !listing.IsActive() && listing.UserID != usercontext.GetUserID(c) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "listing not found",
		})
	}

	return c.JSON(listingWithBoost(*listing))
}

// ApiUpdateListing updates a listing owned by the logged-in user. A status
// transition into active re-runs the quota check.
func ApiUpdateListing(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	listing, err := repository.GetGlobalRepositories().Listing.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "listing not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not load listing",
		})
	}

	if listing.UserID != userCtx.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "not your listing",
		})
	}

	var req listingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	newStatus := strings.TrimSpace(req.Status)
	if newStatus != "" && newStatus != listing.Status && newStatus == models.ListingStatusActive {
		if resp := checkListingQuota(c, userCtx.UserID); resp != nil {
			return resp
		}
	}

	if req.Title != "" {
		listing.Title = strings.TrimSpace(req.Title)
	}
	if req.Description != "" {
		listing.Description = req.Description
	}
	if req.PriceCents > 0 {
		listing.PriceCents = req.PriceCents
	}
	if req.City != "" {
		listing.City = strings.TrimSpace(req.City)
	}
	if newStatus != "" {
		listing.Status = newStatus
	}

	if err := listing.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "validation failed",
			"message": err.Error(),
		})
	}

	if err := repository.GetGlobalRepositories().Listing.Update(listing); err != nil {
		log.Printf("failed to update listing %d: %v", listing.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not update listing",
		})
	}

	return c.JSON(listingWithBoost(*listing))
}

// ApiDeleteListing soft deletes a listing owned by the logged-in user and
// drops any boost window attached to it. Paid boost time on a deleted
// listing is forfeited, not refunded or transferred.
func ApiDeleteListing(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	listing, err := repository.GetGlobalRepositories().Listing.GetByUUID(c.Params("uuid"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "listing not found",
		})
	}

	if listing.UserID != userCtx.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "not your listing",
		})
	}

	if err := repository.GetGlobalRepositories().Listing.Delete(listing.ID); err != nil {
		log.Printf("failed to delete listing %d: %v", listing.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not delete listing",
		})
	}

	if err := entitlements.NewStoreFromDB(database.GetDB()).ClearBoost(listing.ID); err != nil {
		log.Printf("failed to clear boost for deleted listing %d: %v", listing.ID, err)
	}

	return c.JSON(fiber.Map{
		"status": "deleted",
	})
}
