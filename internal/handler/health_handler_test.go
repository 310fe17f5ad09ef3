package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/training-progress-api/internal/config"
	"github.com/noah-isme/training-progress-api/internal/handler"
)

func TestHealthCheck_ReportsProbes(t *testing.T) {
	cfg := config.Config{AppName: "Training Progress API", AppEnv: "test"}

	cases := []struct {
		name   string
		probes map[string]handler.HealthProbe
		status int
		state  string
	}{
		{name: "no probes", status: fiber.StatusOK, state: "ok"},
		{
			name: "all healthy",
			probes: map[string]handler.HealthProbe{
				"database": func(context.Context) error { return nil },
			},
			status: fiber.StatusOK,
			state:  "ok",
		},
		{
			name: "redis down",
			probes: map[string]handler.HealthProbe{
				"database": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return errors.New("connection refused") },
			},
			status: fiber.StatusServiceUnavailable,
			state:  "degraded",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/health", handler.HealthCheck(cfg, tc.probes))

			resp, err := app.Test(jsonRequest(t, http.MethodGet, "/health", nil))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			var body handler.HealthResponse
			decodeEnvelope(t, resp, &body)
			require.Equal(t, tc.state, body.Status)
			require.Equal(t, "Training Progress API", body.Service)
			if tc.state == "degraded" {
				require.Equal(t, "connection refused", body.Checks["redis"])
				require.Equal(t, "ok", body.Checks["database"])
			}
		})
	}
}
