package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/supplyhub/backend/internal/config"
)

// AdminAuth requires the admin API key in X-Admin-Token or a bearer token. An
// empty key disables the check. Browsers cannot set headers on websocket
// upgrades, so the "token" query parameter is accepted as well.
func AdminAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := cfg.Auth.AdminAPIKey
		if apiKey == "" {
			return c.Next()
		}

		token := c.Get("X-Admin-Token")
		if token == "" {
			const prefix = "Bearer "
			if auth := c.Get("Authorization"); strings.HasPrefix(auth, prefix) {
				token = auth[len(prefix):]
			}
		}
		if token == "" {
			token = c.Query("token")
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}
		return c.Next()
	}
}
