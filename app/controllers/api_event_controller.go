package controllers

import (
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/FlorianMaier/HausMarkt/app/models"
	"github.com/FlorianMaier/HausMarkt/app/repository"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/usercontext"
)

type eventRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

// ApiCreateEvent creates a calendar event for the logged-in user.
func ApiCreateEvent(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req eventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	event := &models.Event{
		UUID:        uuid.New().String(),
		UserID:      userCtx.UserID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Location:    strings.TrimSpace(req.Location),
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	}

	if err := event.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "validation failed",
			"message": err.Error(),
		})
	}

	if err := repository.GetGlobalRepositories().Event.Create(event); err != nil {
		log.Printf("failed to create event for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not create event",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(event)
}

// ApiListUpcomingEvents returns events starting from now, soonest first.
func ApiListUpcomingEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	events, err := repository.GetGlobalRepositories().Event.GetUpcoming(time.Now(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not load events",
		})
	}

	return c.JSON(fiber.Map{
		"events": events,
	})
}

// ApiGetEvent returns a single event by UUID.
func ApiGetEvent(c *fiber.Ctx) error {
	event, err := repository.GetGlobalRepositories().Event.GetByUUID(c.Params("uuid"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "event not found",
		})
	}

	return c.JSON(event)
}

// ApiUpdateEvent updates an event owned by the logged-in user.
func ApiUpdateEvent(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	event, err := repository.GetGlobalRepositories().Event.GetByUUID(c.Params("uuid"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "event not found",
		})
	}

	if event.UserID != userCtx.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "not your event",
		})
	}

	var req eventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.Title != "" {
		event.Title = strings.TrimSpace(req.Title)
	}
	if req.Description != "" {
		event.Description = req.Description
	}
	if req.Location != "" {
		event.Location = strings.TrimSpace(req.Location)
	}
	if !req.StartsAt.IsZero() {
		event.StartsAt = req.StartsAt
	}
	if req.EndsAt != nil {
		event.EndsAt = req.EndsAt
	}

	if err := event.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "validation failed",
			"message": err.Error(),
		})
	}

	if err := repository.GetGlobalRepositories().Event.Update(event); err != nil {
		log.Printf("failed to update event %d: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not update event",
		})
	}

	return c.JSON(event)
}

// ApiDeleteEvent soft deletes an event owned by the logged-in user.
func ApiDeleteEvent(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	event, err := repository.GetGlobalRepositories().Event.GetByUUID(c.Params("uuid"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "event not found",
		})
	}

	if event.UserID != userCtx.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "not your event",
		})
	}

	if err := repository.GetGlobalRepositories().Event.Delete(event.ID); err != nil {
		log.Printf("failed to delete event %d: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not delete event",
		})
	}

	return c.JSON(fiber.Map{
		"status": "deleted",
	})
}
