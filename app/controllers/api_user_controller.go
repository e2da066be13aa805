package controllers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/FlorianMaier/HausMarkt/app/repository"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/database"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/entitlements"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/usercontext"
)

// ApiGetProfile returns the logged-in user's profile together with the
// effective entitlement and current quota usage. The tier is computed fresh
// from the store so a lapsed expiry is reflected immediately.
func ApiGetProfile(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	repos := repository.GetGlobalRepositories()

	user, err := repos.User.GetByID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "user not found",
		})
	}

	store := entitlements.NewStoreFromDB(database.GetDB())
	ent, err := store.GetEntitlement(user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not load entitlement",
		})
	}

	activeCount, err := repos.Listing.CountActiveByUserID(user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not load listings",
		})
	}

	decision, err := entitlements.NewQuotaEnforcer(store).CanCreateListing(user.ID, int(activeCount))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not load quota",
		})
	}

	resp := fiber.Map{
		"user": user,
		"entitlement": fiber.Map{
			"tier":      ent.EffectiveTier(),
			"effective": ent.Effective,
		},
		"quota": decision,
	}
	if ent.ExpiresAt != nil {
		resp["entitlement"].(fiber.Map)["expires_at"] = ent.ExpiresAt.UTC()
	}

	return c.JSON(resp)
}

// ApiUpdateProfile updates mutable profile fields of the logged-in user.
func ApiUpdateProfile(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	user, err := repository.GetGlobalRepositories().User.GetByID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "user not found",
		})
	}

	var req struct {
		Name  string `json:"name"`
		Bio   string `json:"bio"`
		Phone string `json:"phone"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.Name != "" {
		user.Name = strings.TrimSpace(req.Name)
	}
	if req.Bio != "" {
		user.Bio = req.Bio
	}
	if req.Phone != "" {
		user.Phone = strings.TrimSpace(req.Phone)
	}

	if err := user.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "validation failed",
			"message": err.Error(),
		})
	}

	if err := repository.GetGlobalRepositories().User.Update(user); err != nil {
		log.Printf("failed to update user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not update profile",
		})
	}

	return c.JSON(user)
}
