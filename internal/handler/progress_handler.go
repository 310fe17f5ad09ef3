package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/training-progress-api/internal/dto"
	"github.com/noah-isme/training-progress-api/internal/repository"
	"github.com/noah-isme/training-progress-api/internal/service"
	"github.com/noah-isme/training-progress-api/internal/utils"
)

// ProgressHandler exposes per-component progress reads and updates.
type ProgressHandler struct {
	store     service.ProgressStore
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewProgressHandler constructs a progress handler.
func NewProgressHandler(store service.ProgressStore, validate *validator.Validate, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		store:     store,
		validator: validate,
		logger:    logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register wires progress routes on the API root.
func (h *ProgressHandler) Register(router fiber.Router, staff fiber.Handler) {
	staff = guardOrPassthrough(staff)

	router.Post("/sessions/:sessionId/progress/bulk", staff, h.bulkUpdate)
	router.Get("/sessions/:sessionId/progress/:enrollmentId/:componentId", h.get)
	router.Patch("/sessions/:sessionId/progress/:enrollmentId/:componentId", staff, h.update)
}

func progressKeyFromParams(c *fiber.Ctx) (repository.ProgressKey, string) {
	sessionID, ok := parseUintParam(c, "sessionId")
	if !ok {
		return repository.ProgressKey{}, "invalid session id"
	}
	enrollmentID, ok := parseUintParam(c, "enrollmentId")
	if !ok {
		return repository.ProgressKey{}, "invalid enrollment id"
	}
	componentID, ok := parseUintParam(c, "componentId")
	if !ok {
		return repository.ProgressKey{}, "invalid component id"
	}
	return repository.ProgressKey{SessionID: sessionID, EnrollmentID: enrollmentID, ComponentID: componentID}, ""
}

func (h *ProgressHandler) get(c *fiber.Ctx) error {
	key, problem := progressKeyFromParams(c)
	if problem != "" {
		return utils.SendError(c, fiber.StatusBadRequest, problem)
	}

	record, err := h.store.Get(requestContext(c), key)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load progress")
	}

	return utils.SendSuccess(c, "progress retrieved", dto.NewProgressResponse(record))
}

func (h *ProgressHandler) update(c *fiber.Ctx) error {
	key, problem := progressKeyFromParams(c)
	if problem != "" {
		return utils.SendError(c, fiber.StatusBadRequest, problem)
	}

	var req dto.ProgressUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(req); err != nil {
		return respondError(c, h.logger, err, "failed to update progress")
	}

	record, err := h.store.Update(requestContext(c), key, req.ToPatch(), actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to update progress")
	}

	return utils.SendSuccess(c, "progress updated", dto.NewProgressResponse(record))
}

func (h *ProgressHandler) bulkUpdate(c *fiber.Ctx) error {
	sessionID, ok := parseUintParam(c, "sessionId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid session id")
	}

	var req dto.BulkProgressRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(req); err != nil {
		return respondError(c, h.logger, err, "failed to apply bulk update")
	}

	results := make([]service.BulkResult, len(req.Entries))
	items := make([]service.BulkItem, 0, len(req.Entries))
	positions := make([]int, 0, len(req.Entries))
	for index, entry := range req.Entries {
		key := repository.ProgressKey{
			SessionID:    sessionID,
			EnrollmentID: entry.EnrollmentID,
			ComponentID:  entry.ComponentID,
		}
		results[index] = service.BulkResult{Index: index, Key: key}
		if err := h.validator.Struct(entry); err != nil {
			results[index].Err = entryValidationError(err)
			continue
		}
		items = append(items, service.BulkItem{Key: key, Patch: entry.ToPatch()})
		positions = append(positions, index)
	}

	if len(items) > 0 {
		for _, result := range h.store.BulkUpdate(requestContext(c), items, actorFromContext(c)) {
			if result.Index < 0 || result.Index >= len(positions) {
				continue
			}
			result.Index = positions[result.Index]
			results[result.Index] = result
		}
	}

	response := dto.BulkProgressResponse{Results: make([]dto.BulkEntryResult, 0, len(results))}
	for _, result := range results {
		entry := dto.BulkEntryResult{
			Index:        result.Index,
			EnrollmentID: result.Key.EnrollmentID,
			ComponentID:  result.Key.ComponentID,
		}
		switch {
		case result.Err != nil:
			response.Failed++
			entry.Error = result.Err.Error()
			if statusForError(result.Err) == fiber.StatusInternalServerError {
				requestLogger(h.logger, c).Error().Err(result.Err).Int("index", result.Index).Msg("bulk entry failed")
				entry.Error = "internal error"
			}
		case result.Progress != nil:
			response.Succeeded++
			entry.Success = true
			progress := dto.NewProgressResponse(*result.Progress)
			entry.Progress = &progress
		default:
			response.Failed++
			entry.Error = "internal error"
		}
		response.Results = append(response.Results, entry)
	}

	status := fiber.StatusOK
	if response.Succeeded > 0 && response.Failed > 0 {
		status = fiber.StatusMultiStatus
	}
	return utils.SendSuccessWithStatus(c, status, "bulk update processed", response)
}
