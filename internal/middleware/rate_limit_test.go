package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/training-progress-api/internal/middleware"
)

func TestRateLimit_PerUserBuckets(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if user := c.Get("X-User"); user == "ana" {
			c.Locals("user_id", uint(1))
		} else {
			c.Locals("user_id", uint(2))
		}
		return c.Next()
	})
	app.Post("/progress", middleware.RateLimit("progress-writes", 1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/progress", nil)
		req.Header.Set("X-User", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	require.Equal(t, fiber.StatusNoContent, send("ana"))
	require.Equal(t, fiber.StatusTooManyRequests, send("ana"))
	require.Equal(t, fiber.StatusNoContent, send("ben"))
}
