// Package webapi provides the HTTP API of the card ledger.
// It is organized into sub-packages for different domains:
// - auth: Registration and login
// - card: Customer and administrator card endpoints
// - common: Response envelope and problem details
package webapi

import (
	"github.com/amirasaad/bankcards/pkg/app"
	authweb "github.com/amirasaad/bankcards/webapi/auth"
	cardweb "github.com/amirasaad/bankcards/webapi/card"
	"github.com/amirasaad/bankcards/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"

	_ "github.com/amirasaad/bankcards/webapi/docs"
)

// SetupApp Initialize Fiber with custom configuration
func SetupApp(a *app.App) *fiber.App {
	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})

	fiberApp.Get("/swagger/*", swagger.New(swagger.Config{
		TryItOutEnabled:      true,
		WithCredentials:      true,
		PersistAuthorization: true,
	}))

	fiberApp.Use(recover.New())
	fiberApp.Use(requestid.New())

	if a.Config.Env != "test" {
		fiberApp.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		}))
	}

	// Health check endpoint
	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Bank cards API is running! 🚀")
	})

	authweb.Routes(fiberApp, a.AuthService)
	cardweb.Routes(fiberApp, a.CardService, a.Config)
	cardweb.AdminRoutes(fiberApp, a.CardService, a.Config)
	return fiberApp
}
