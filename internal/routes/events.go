package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/waply/waply-web/internal/events"
)

// RegisterEventRoutes wires the reminder list and its edit workflow.
func RegisterEventRoutes(app *fiber.App, h *events.Handler) {
	app.Get("/events/:urlId", h.List)
	app.Get("/events/:urlId/reminders/:id/edit", h.EditOpen)
	app.Post("/events/:urlId/reminders/:id", h.Update)
	app.Post("/events/:urlId/reminders/:id/delete", h.Delete)
}
