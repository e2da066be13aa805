package router

import (
	"github.com/FlorianMaier/HausMarkt/app/controllers"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Listings: browsing is public, mutations need a session
	v1.Get("/listings", controllers.ApiListListings)
	v1.Get("/listings/:uuid", controllers.ApiGetListing)
	v1.Post("/listings", middleware.RequireAPISessionAuth, controllers.ApiCreateListing)
	v1.Put("/listings/:uuid", middleware.RequireAPISessionAuth, controllers.ApiUpdateListing)
	v1.Delete("/listings/:uuid", middleware.RequireAPISessionAuth, controllers.ApiDeleteListing)

	// Calendar events
	v1.Get("/events", controllers.ApiListUpcomingEvents)
	v1.Get("/events/:uuid", controllers.ApiGetEvent)
	v1.Post("/events", middleware.RequireAPISessionAuth, controllers.ApiCreateEvent)
	v1.Put("/events/:uuid", middleware.RequireAPISessionAuth, controllers.ApiUpdateEvent)
	v1.Delete("/events/:uuid", middleware.RequireAPISessionAuth, controllers.ApiDeleteEvent)

	// Profile with entitlement and quota readout
	v1.Get("/user/profile", middleware.RequireAPISessionAuth, controllers.ApiGetProfile)
	v1.Put("/user/profile", middleware.RequireAPISessionAuth, controllers.ApiUpdateProfile)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
