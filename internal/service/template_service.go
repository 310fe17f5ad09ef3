package service

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/training-progress-api/internal/dto"
	"github.com/noah-isme/training-progress-api/internal/models"
	"github.com/noah-isme/training-progress-api/internal/progress"
	"github.com/noah-isme/training-progress-api/internal/repository"
)

//go:embed schema/template.schema.json
var templateSchemaDocument string

const templateSchemaURL = "mem://training/template.schema.json"

// TemplateService manages reusable session templates.
type TemplateService interface {
	Create(ctx context.Context, req dto.TemplateCreateRequest) (models.SessionTemplate, error)
	Import(ctx context.Context, document []byte) (models.SessionTemplate, error)
	Get(ctx context.Context, id uint) (models.SessionTemplate, error)
	List(ctx context.Context, req dto.TemplateListRequest) ([]models.SessionTemplate, dto.PaginationMeta, error)
	Reorder(ctx context.Context, templateID, componentID uint, newOrder int) (models.SessionTemplate, error)
}

type templateService struct {
	repo      repository.TemplateRepository
	validator *validator.Validate
	schema    *jsonschema.Schema
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewTemplateService constructs the template service.
func NewTemplateService(repo repository.TemplateRepository, validate *validator.Validate, logger zerolog.Logger) (TemplateService, error) {
	schema, err := jsonschema.CompileString(templateSchemaURL, templateSchemaDocument)
	if err != nil {
		return nil, fmt.Errorf("compile template schema: %w", err)
	}

	return &templateService{
		repo:      repo,
		validator: validate,
		schema:    schema,
		logger:    logger.With().Str("component", "template_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/training-progress-api/internal/service/template"),
	}, nil
}

func (s *templateService) Create(ctx context.Context, req dto.TemplateCreateRequest) (models.SessionTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.SessionTemplate{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "templates.create", trace.WithAttributes(
		attribute.Int("template.components", len(req.Components)),
	))
	defer span.End()

	template, err := progress.NewTemplate(req.Name, req.Description, req.ToComponentDefinitions())
	if err != nil {
		span.RecordError(err)
		return models.SessionTemplate{}, err
	}

	if err := s.repo.Create(spanCtx, &template); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist template")
		return models.SessionTemplate{}, err
	}

	s.logger.Info().
		Uint("template_id", template.ID).
		Int("components", len(template.Components)).
		Int("total_duration_minutes", template.TotalDurationMinutes).
		Msg("session template created")

	return template, nil
}

func (s *templateService) Import(ctx context.Context, document []byte) (models.SessionTemplate, error) {
	decoder := json.NewDecoder(bytes.NewReader(document))
	decoder.UseNumber()

	var raw interface{}
	if err := decoder.Decode(&raw); err != nil {
		return models.SessionTemplate{}, fmt.Errorf("%w: template document is not valid json: %s", progress.ErrValidation, err.Error())
	}
	if err := s.schema.Validate(raw); err != nil {
		return models.SessionTemplate{}, fmt.Errorf("%w: %s", progress.ErrValidation, schemaMessage(err))
	}

	var req dto.TemplateCreateRequest
	if err := json.Unmarshal(document, &req); err != nil {
		return models.SessionTemplate{}, fmt.Errorf("%w: %s", progress.ErrValidation, err.Error())
	}
	return s.Create(ctx, req)
}

func schemaMessage(err error) string {
	if validationErr, ok := err.(*jsonschema.ValidationError); ok {
		leaf := validationErr
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		location := leaf.InstanceLocation
		if location == "" {
			location = "/"
		}
		return fmt.Sprintf("template document invalid at %s: %s", location, leaf.Message)
	}
	return err.Error()
}

func (s *templateService) Get(ctx context.Context, id uint) (models.SessionTemplate, error) {
	template, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.SessionTemplate{}, notFound(err, "template %d", id)
	}
	return template, nil
}

func (s *templateService) List(ctx context.Context, req dto.TemplateListRequest) ([]models.SessionTemplate, dto.PaginationMeta, error) {
	filter := repository.TemplateFilter{
		Search:   strings.TrimSpace(req.Search),
		Page:     normalizePage(req.Page),
		PageSize: clampPageSize(req.PageSize),
	}

	templates, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, dto.PaginationMeta{}, err
	}

	return templates, dto.PaginationMeta{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalItems: total,
		TotalPages: calculateTotalPages(total, filter.PageSize),
	}, nil
}

func (s *templateService) Reorder(ctx context.Context, templateID, componentID uint, newOrder int) (models.SessionTemplate, error) {
	spanCtx, span := s.tracer.Start(ctx, "templates.reorder", trace.WithAttributes(
		attribute.Int("template.id", int(templateID)),
		attribute.Int("component.id", int(componentID)),
		attribute.Int("component.new_order", newOrder),
	))
	defer span.End()

	start := time.Now()
	reordered, err := s.repo.MutateOrdering(spanCtx, templateID, func(template models.SessionTemplate) (models.SessionTemplate, error) {
		return progress.Reorder(template, componentID, newOrder)
	})
	if err != nil {
		span.RecordError(err)
		if !progress.IsDomainError(err) {
			span.SetStatus(codes.Error, "failed to persist ordering")
		}
		return models.SessionTemplate{}, notFound(err, "template %d", templateID)
	}

	s.logger.Info().
		Uint("template_id", templateID).
		Uint("component_id", componentID).
		Int("sequence_order", newOrder).
		Dur("elapsed", time.Since(start)).
		Msg("template component reordered")

	return reordered, nil
}
