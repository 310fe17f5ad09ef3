package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/training-progress-api/internal/dto"
	"github.com/noah-isme/training-progress-api/internal/models"
	"github.com/noah-isme/training-progress-api/internal/progress"
	"github.com/noah-isme/training-progress-api/internal/repository"
)

// ProgressQueryService derives roll-ups on read. Nothing it returns is persisted.
type ProgressQueryService interface {
	GetStudentProgress(ctx context.Context, sessionID, enrollmentID uint) (progress.StudentProgress, error)
	GetSessionSummary(ctx context.Context, sessionID uint) (progress.SessionSummary, error)
	GetComponentBreakdown(ctx context.Context, sessionID, componentID uint) (progress.ComponentBreakdown, error)
	ListEvents(ctx context.Context, sessionID uint, req dto.ProgressEventListRequest) ([]models.ProgressEvent, dto.PaginationMeta, error)
}

type progressQueryService struct {
	sessions repository.SessionRepository
	progress repository.ComponentProgressRepository
	events   repository.ProgressEventRepository
	catalog  ComponentCatalog
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewProgressQueryService constructs the read-side service.
func NewProgressQueryService(sessions repository.SessionRepository, progressRepo repository.ComponentProgressRepository, events repository.ProgressEventRepository, catalog ComponentCatalog, logger zerolog.Logger) ProgressQueryService {
	return &progressQueryService{
		sessions: sessions,
		progress: progressRepo,
		events:   events,
		catalog:  catalog,
		logger:   logger.With().Str("component", "progress_query_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/training-progress-api/internal/service/progress_query"),
	}
}

func identityOf(enrollment models.SessionEnrollment) progress.StudentIdentity {
	return progress.StudentIdentity{
		EnrollmentID:         enrollment.EnrollmentID,
		Name:                 enrollment.StudentName,
		Email:                enrollment.StudentEmail,
		AttendancePercentage: enrollment.AttendancePercentage,
		ParticipationScore:   enrollment.ParticipationScore,
	}
}

func (s *progressQueryService) GetStudentProgress(ctx context.Context, sessionID, enrollmentID uint) (progress.StudentProgress, error) {
	spanCtx, span := s.tracer.Start(ctx, "progress.student", trace.WithAttributes(
		attribute.Int("session.id", int(sessionID)),
		attribute.Int("enrollment.id", int(enrollmentID)),
	))
	defer span.End()

	enrollment, err := s.sessions.GetEnrollment(spanCtx, sessionID, enrollmentID)
	if err != nil {
		return progress.StudentProgress{}, notFound(err, "enrollment %d in session %d", enrollmentID, sessionID)
	}

	components, err := s.catalog.Components(spanCtx, sessionID)
	if err != nil {
		span.RecordError(err)
		return progress.StudentProgress{}, err
	}

	records, err := s.progress.ListByEnrollment(spanCtx, sessionID, enrollmentID)
	if err != nil {
		span.RecordError(err)
		return progress.StudentProgress{}, err
	}

	return progress.AggregateStudent(identityOf(enrollment), components, records), nil
}

func (s *progressQueryService) GetSessionSummary(ctx context.Context, sessionID uint) (progress.SessionSummary, error) {
	spanCtx, span := s.tracer.Start(ctx, "progress.session_summary", trace.WithAttributes(
		attribute.Int("session.id", int(sessionID)),
	))
	defer span.End()

	session, err := s.sessions.GetByID(spanCtx, sessionID)
	if err != nil {
		return progress.SessionSummary{}, notFound(err, "session %d", sessionID)
	}

	components, err := s.catalog.Components(spanCtx, sessionID)
	if err != nil {
		span.RecordError(err)
		return progress.SessionSummary{}, err
	}

	records, err := s.progress.ListBySession(spanCtx, sessionID)
	if err != nil {
		span.RecordError(err)
		return progress.SessionSummary{}, err
	}

	students := make([]progress.StudentIdentity, 0, len(session.Enrollments))
	for _, enrollment := range session.Enrollments {
		students = append(students, identityOf(enrollment))
	}

	summary := progress.SummarizeSession(sessionID, components, students, records)
	if summary.Misconfigured {
		s.logger.Warn().Uint("session_id", sessionID).Msg("session template has no mandatory components")
	}
	return summary, nil
}

func (s *progressQueryService) GetComponentBreakdown(ctx context.Context, sessionID, componentID uint) (progress.ComponentBreakdown, error) {
	component, err := s.catalog.Component(ctx, sessionID, componentID)
	if err != nil {
		return progress.ComponentBreakdown{}, err
	}

	records, err := s.progress.ListByComponent(ctx, sessionID, componentID)
	if err != nil {
		return progress.ComponentBreakdown{}, err
	}

	return progress.BreakdownComponent(component, records), nil
}

func (s *progressQueryService) ListEvents(ctx context.Context, sessionID uint, req dto.ProgressEventListRequest) ([]models.ProgressEvent, dto.PaginationMeta, error) {
	if sessionID == 0 {
		return nil, dto.PaginationMeta{}, fmt.Errorf("%w: session id is required", progress.ErrValidation)
	}

	filter := repository.ProgressEventFilter{
		SessionID:    sessionID,
		EnrollmentID: req.EnrollmentID,
		ComponentID:  req.ComponentID,
		Page:         normalizePage(req.Page),
		PageSize:     clampPageSize(req.PageSize),
	}

	events, total, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, dto.PaginationMeta{}, err
	}

	return events, dto.PaginationMeta{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalItems: total,
		TotalPages: calculateTotalPages(total, filter.PageSize),
	}, nil
}
