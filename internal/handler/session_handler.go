package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/training-progress-api/internal/dto"
	"github.com/noah-isme/training-progress-api/internal/service"
	"github.com/noah-isme/training-progress-api/internal/utils"
)

// SessionHandler exposes session instantiation and enrollment override endpoints.
type SessionHandler struct {
	service service.SessionService
	logger  zerolog.Logger
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(service service.SessionService, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		logger:  logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register wires session routes on the API root.
func (h *SessionHandler) Register(router fiber.Router, staff fiber.Handler) {
	staff = guardOrPassthrough(staff)

	router.Post("/templates/:id/sessions", staff, h.instantiate)
	router.Get("/sessions/:sessionId", h.get)
	router.Put("/sessions/:sessionId/enrollments/:enrollmentId/overrides", staff, h.updateOverrides)
}

func (h *SessionHandler) instantiate(c *fiber.Ctx) error {
	templateID, ok := parseUintParam(c, "id")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid template id")
	}

	var req dto.SessionInstantiateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	session, err := h.service.Instantiate(requestContext(c), templateID, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to instantiate session")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session instantiated", dto.NewSessionResponse(session))
}

func (h *SessionHandler) get(c *fiber.Ctx) error {
	sessionID, ok := parseUintParam(c, "sessionId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid session id")
	}

	session, err := h.service.Get(requestContext(c), sessionID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load session")
	}

	return utils.SendSuccess(c, "session retrieved", dto.NewSessionResponse(session))
}

func (h *SessionHandler) updateOverrides(c *fiber.Ctx) error {
	sessionID, ok := parseUintParam(c, "sessionId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid session id")
	}
	enrollmentID, ok := parseUintParam(c, "enrollmentId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid enrollment id")
	}

	var req dto.EnrollmentOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	enrollment, err := h.service.UpdateEnrollmentOverrides(requestContext(c), sessionID, enrollmentID, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update enrollment overrides")
	}

	return utils.SendSuccess(c, "enrollment overrides updated", dto.NewSessionEnrollmentResponse(enrollment))
}
