package routes

import (
	controller "graphmail/controllers"
	"graphmail/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

// Version is reported by the health route.
var Version = "1.0.0"

// SetupRoutes mounts the notification webhook and the health check. limiter
// may be nil.
func SetupRoutes(app *fiber.App, notifications *controller.NotificationController, limiter fiber.Handler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": Version,
		})
	})

	handlers := []fiber.Handler{logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	})}
	if limiter != nil {
		handlers = append(handlers, limiter)
	}
	api := app.Group("/api", handlers...)

	api.Get("/notifications", notifications.Ping)
	api.Post("/notifications", notifications.Receive)
	api.All("/notifications", notifications.MethodNotAllowed)
}

// NewApp builds the fiber app with JSON errors and panic recovery installed.
func NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "graphmail",
		ErrorHandler: middleware.ErrorHandler,
	})
	app.Use(middleware.Recover())
	return app
}
