package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/waply/waply-web/internal/middleware"
	"github.com/waply/waply-web/internal/pin"
)

// RegisterPinRoutes wires the enter-PIN and set-PIN pages. Keypresses and
// PIN submissions are rate limited per identifier.
func RegisterPinRoutes(app *fiber.App, h *pin.Handler, cache *redis.Client) {
	app.Get("/enter-pin/:urlId", h.EnterPinPage)
	app.Post("/enter-pin/:urlId/key", middleware.RateLimit(cache, "keypress", keypressPerMin), h.Keypress)

	app.Get("/set-pin/:urlId", h.SetPinPage)
	app.Post("/set-pin/:urlId", middleware.RateLimit(cache, "set-pin", setPinPerMin), h.SetPinSubmit)
}
