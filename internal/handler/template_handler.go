package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/training-progress-api/internal/dto"
	"github.com/noah-isme/training-progress-api/internal/service"
	"github.com/noah-isme/training-progress-api/internal/utils"
)

// TemplateHandler exposes session template endpoints.
type TemplateHandler struct {
	service service.TemplateService
	logger  zerolog.Logger
}

// NewTemplateHandler constructs a template handler.
func NewTemplateHandler(service service.TemplateService, logger zerolog.Logger) *TemplateHandler {
	return &TemplateHandler{
		service: service,
		logger:  logger.With().Str("component", "template_handler").Logger(),
	}
}

// Register wires template routes. staff guards every mutating route.
func (h *TemplateHandler) Register(router fiber.Router, staff fiber.Handler) {
	staff = guardOrPassthrough(staff)

	router.Get("/", h.list)
	router.Post("/", staff, h.create)
	router.Post("/import", staff, h.importDocument)
	router.Get("/:id", h.get)
	router.Patch("/:id/components/:componentId/order", staff, h.reorder)
}

func (h *TemplateHandler) create(c *fiber.Ctx) error {
	var req dto.TemplateCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	template, err := h.service.Create(requestContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create template")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "template created", dto.NewTemplateResponse(template))
}

func (h *TemplateHandler) importDocument(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "template document required")
	}

	template, err := h.service.Import(requestContext(c), body)
	if err != nil {
		return respondError(c, h.logger, err, "failed to import template")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "template imported", dto.NewTemplateResponse(template))
}

func (h *TemplateHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	templates, pagination, err := h.service.List(requestContext(c), dto.TemplateListRequest{
		Page:     page,
		PageSize: pageSize,
		Search:   c.Query("search"),
	})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list templates")
	}

	items := make([]dto.TemplateResponse, 0, len(templates))
	for _, template := range templates {
		items = append(items, dto.NewTemplateResponse(template))
	}

	return utils.OK(c, items, "templates retrieved", fiber.Map{"pagination": pagination})
}

func (h *TemplateHandler) get(c *fiber.Ctx) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid template id")
	}

	template, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load template")
	}

	return utils.SendSuccess(c, "template retrieved", dto.NewTemplateResponse(template))
}

func (h *TemplateHandler) reorder(c *fiber.Ctx) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid template id")
	}
	componentID, ok := parseUintParam(c, "componentId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid component id")
	}

	var req dto.ComponentReorderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if req.SequenceOrder <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "sequence_order must be positive")
	}

	template, err := h.service.Reorder(requestContext(c), id, componentID, req.SequenceOrder)
	if err != nil {
		return respondError(c, h.logger, err, "failed to reorder component")
	}

	return utils.SendSuccess(c, "component reordered", dto.NewTemplateResponse(template))
}
