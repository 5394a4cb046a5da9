package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// APIKeyHeader carries the public client key.
const APIKeyHeader = "X-API-Key"

// APIKeyRequired rejects requests whose X-API-Key does not match key.
// An empty key disables the check.
func APIKeyRequired(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return c.Next()
		}
		got := c.Get(APIKeyHeader)
		if got == "" {
			got = c.Query("apikey")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid API key",
				"code":  "UNAUTHORIZED",
			})
		}
		return c.Next()
	}
}
