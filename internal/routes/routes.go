package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/waply/waply-web/internal/config"
	"github.com/waply/waply-web/internal/events"
	"github.com/waply/waply-web/internal/middleware"
	"github.com/waply/waply-web/internal/pin"
	"github.com/waply/waply-web/internal/session"
	"github.com/waply/waply-web/internal/upstream"
	"github.com/waply/waply-web/internal/web"
)

const (
	keypressPerMin = 60
	setPinPerMin   = 10
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	Cache  *redis.Client
	API    upstream.API
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. The bare
// identifier route is registered last so the named pages win the match.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	app.Use(middleware.Session(d.Cfg.SessionTTL))

	RegisterHealthRoutes(app, d)

	sessions := session.New(d.Cache, d.Cfg.SessionTTL)
	render := web.New()

	pinHandler := pin.NewHandler(d.API, sessions, render, d.Logger)
	eventsHandler := events.NewHandler(d.API, sessions, render, d.Logger)

	RegisterPinRoutes(app, pinHandler, d.Cache)
	RegisterEventRoutes(app, eventsHandler)

	app.Get("/error", pinHandler.ErrorPage)
	app.Get("/:urlId", pinHandler.Status)

	return nil
}
