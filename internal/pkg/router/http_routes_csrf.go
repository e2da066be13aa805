package router

import (
	"strings"
	"time"

	"github.com/FlorianMaier/HausMarkt/app/controllers"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/env"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"
)

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			// API routes authenticate via session and webhook routes via
			// provider signature, neither carries the CSRF form field.
			return strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Path(), "/webhooks/")
		},
	}

	group := app.Group("", cors.New(), csrf.New(csrfConf))
	group.Get("/", loggedInMiddleware, controllers.HandleStart)
	group.Get("/pricing", loggedInMiddleware, controllers.HandlePricing)
	group.Get("/listings/:uuid", loggedInMiddleware, controllers.HandleListingPage)
	group.Get("/login", loggedInMiddleware, controllers.HandleAuthLogin)
	group.Post("/login", loggedInMiddleware, controllers.HandleAuthLogin)
	group.Get("/register", loggedInMiddleware, controllers.HandleAuthRegister)
	group.Post("/register", loggedInMiddleware, controllers.HandleAuthRegister)

	// User area
	group.Get("/user/listings", middleware.RequireAuth, controllers.HandleUserListings)

	// Checkout (redirects to the provider-hosted payment page)
	group.Post("/user/checkout/subscription", middleware.RequireAuth, controllers.HandleSubscriptionCheckout)
	group.Post("/user/checkout/boost", middleware.RequireAuth, controllers.HandleBoostCheckout)
}
