package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/waply/waply-web/internal/session"
)

// Session ensures every request carries a session cookie and exposes the
// session identifier to handlers via locals.
func Session(ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies(session.CookieName)
		if sid == "" {
			sid = uuid.NewString()
			c.Cookie(&fiber.Cookie{
				Name:     session.CookieName,
				Value:    sid,
				MaxAge:   int(ttl.Seconds()),
				HTTPOnly: true,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}

		c.Locals(session.LocalsKey, sid)

		return c.Next()
	}
}
