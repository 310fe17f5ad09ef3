package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimit creates a per-user rate limiter. Anonymous callers are keyed by IP.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			userID := c.IP()
			if value := c.Locals("user_id"); value != nil {
				if rendered := fmt.Sprintf("%v", value); rendered != "" && rendered != "0" {
					userID = rendered
				}
			}
			return fmt.Sprintf("%s:%s", identifier, userID)
		},
	})
}
