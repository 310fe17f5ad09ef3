package handler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/training-progress-api/internal/middleware"
	"github.com/noah-isme/training-progress-api/internal/progress"
	"github.com/noah-isme/training-progress-api/internal/service"
	"github.com/noah-isme/training-progress-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseOptionalUintQuery(c *fiber.Ctx, key string) (*uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return nil, errors.New("invalid " + key)
	}
	id := uint(parsed)
	return &id, nil
}

func parseUintParam(c *fiber.Ctx, name string) (uint, bool) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(c.Params(name)), 10, 64)
	if err != nil || parsed == 0 {
		return 0, false
	}
	return uint(parsed), true
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Namespace()] = fieldErr.Tag()
	}
	return details
}

// entryValidationError flattens validator output into a single ErrValidation.
func entryValidationError(err error) error {
	details := validationDetails(err)
	if len(details) == 0 {
		return fmt.Errorf("%w: %v", progress.ErrValidation, err)
	}
	fields := make([]string, 0, len(details))
	for field, tag := range details {
		fields = append(fields, field+" "+tag)
	}
	sort.Strings(fields)
	return fmt.Errorf("%w: %s", progress.ErrValidation, strings.Join(fields, ", "))
}

// statusForError maps domain errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case isValidationError(err), errors.Is(err, progress.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, progress.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, progress.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, progress.ErrAttemptsExceeded):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes the error envelope. Unexpected failures are logged and masked
// behind fallback.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	status := statusForError(err)
	if status == fiber.StatusInternalServerError {
		requestLogger(logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, status, fallback)
	}
	if details := validationDetails(err); details != nil {
		return utils.Fail(c, status, "validation failed", details)
	}
	return utils.SendError(c, status, err.Error())
}

func passthrough(c *fiber.Ctx) error {
	return c.Next()
}

func guardOrPassthrough(guard fiber.Handler) fiber.Handler {
	if guard == nil {
		return passthrough
	}
	return guard
}
