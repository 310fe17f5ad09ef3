package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/training-progress-api/internal/dto"
	"github.com/noah-isme/training-progress-api/internal/service"
	"github.com/noah-isme/training-progress-api/internal/utils"
)

// ReportHandler exposes the derived student and session roll-ups plus the audit trail.
type ReportHandler struct {
	service service.ProgressQueryService
	logger  zerolog.Logger
}

// NewReportHandler constructs a report handler.
func NewReportHandler(service service.ProgressQueryService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  logger.With().Str("component", "report_handler").Logger(),
	}
}

// Register wires report routes on the API root.
func (h *ReportHandler) Register(router fiber.Router) {
	router.Get("/sessions/:sessionId/students/:enrollmentId", h.student)
	router.Get("/sessions/:sessionId/summary", h.summary)
	router.Get("/sessions/:sessionId/components/:componentId/breakdown", h.breakdown)
	router.Get("/sessions/:sessionId/events", h.events)
}

func (h *ReportHandler) student(c *fiber.Ctx) error {
	sessionID, ok := parseUintParam(c, "sessionId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid session id")
	}
	enrollmentID, ok := parseUintParam(c, "enrollmentId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid enrollment id")
	}

	student, err := h.service.GetStudentProgress(requestContext(c), sessionID, enrollmentID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load student progress")
	}

	return utils.SendSuccess(c, "student progress retrieved", dto.NewStudentProgressResponse(student, true))
}

func (h *ReportHandler) summary(c *fiber.Ctx) error {
	sessionID, ok := parseUintParam(c, "sessionId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid session id")
	}

	summary, err := h.service.GetSessionSummary(requestContext(c), sessionID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to summarise session")
	}

	return utils.SendSuccess(c, "session summary retrieved", dto.NewSessionSummaryResponse(summary))
}

func (h *ReportHandler) breakdown(c *fiber.Ctx) error {
	sessionID, ok := parseUintParam(c, "sessionId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid session id")
	}
	componentID, ok := parseUintParam(c, "componentId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid component id")
	}

	breakdown, err := h.service.GetComponentBreakdown(requestContext(c), sessionID, componentID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load component breakdown")
	}

	return utils.SendSuccess(c, "component breakdown retrieved", dto.NewComponentBreakdownResponse(breakdown))
}

func (h *ReportHandler) events(c *fiber.Ctx) error {
	sessionID, ok := parseUintParam(c, "sessionId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid session id")
	}

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}
	enrollmentID, err := parseOptionalUintQuery(c, "enrollment_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	componentID, err := parseOptionalUintQuery(c, "component_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	events, pagination, err := h.service.ListEvents(requestContext(c), sessionID, dto.ProgressEventListRequest{
		EnrollmentID: enrollmentID,
		ComponentID:  componentID,
		Page:         page,
		PageSize:     pageSize,
	})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list progress events")
	}

	items := make([]dto.ProgressEventResponse, 0, len(events))
	for _, event := range events {
		items = append(items, dto.NewProgressEventResponse(event))
	}

	return utils.OK(c, items, "progress events retrieved", fiber.Map{"pagination": pagination})
}
