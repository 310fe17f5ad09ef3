package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/training-progress-api/internal/dto"
	"github.com/noah-isme/training-progress-api/internal/models"
	"github.com/noah-isme/training-progress-api/internal/progress"
	"github.com/noah-isme/training-progress-api/internal/repository"
)

// EnrollmentProvider supplies the active roster of a training session.
type EnrollmentProvider interface {
	ActiveEnrollments(ctx context.Context, sessionID uint) ([]models.Enrollment, error)
}

type repositoryEnrollmentProvider struct {
	repo repository.EnrollmentRepository
}

// NewEnrollmentProvider reads the roster from the enrollments table.
func NewEnrollmentProvider(repo repository.EnrollmentRepository) EnrollmentProvider {
	return &repositoryEnrollmentProvider{repo: repo}
}

func (p *repositoryEnrollmentProvider) ActiveEnrollments(ctx context.Context, sessionID uint) ([]models.Enrollment, error) {
	return p.repo.ListActiveBySession(ctx, sessionID)
}

// SessionService instantiates sessions from templates and maintains enrollment overrides.
type SessionService interface {
	Instantiate(ctx context.Context, templateID uint, req dto.SessionInstantiateRequest) (models.SessionInstance, error)
	Get(ctx context.Context, sessionID uint) (models.SessionInstance, error)
	UpdateEnrollmentOverrides(ctx context.Context, sessionID, enrollmentID uint, req dto.EnrollmentOverrideRequest) (models.SessionEnrollment, error)
}

type sessionService struct {
	sessions    repository.SessionRepository
	templates   repository.TemplateRepository
	enrollments EnrollmentProvider
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewSessionService constructs the session service.
func NewSessionService(sessions repository.SessionRepository, templates repository.TemplateRepository, enrollments EnrollmentProvider, validate *validator.Validate, logger zerolog.Logger) SessionService {
	return &sessionService{
		sessions:    sessions,
		templates:   templates,
		enrollments: enrollments,
		validator:   validate,
		logger:      logger.With().Str("component", "session_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/training-progress-api/internal/service/session"),
	}
}

func (s *sessionService) Instantiate(ctx context.Context, templateID uint, req dto.SessionInstantiateRequest) (models.SessionInstance, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.SessionInstance{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "sessions.instantiate", trace.WithAttributes(
		attribute.Int("session.id", int(req.SessionID)),
		attribute.Int("template.id", int(templateID)),
	))
	defer span.End()

	exists, err := s.sessions.Exists(spanCtx, req.SessionID)
	if err != nil {
		span.RecordError(err)
		return models.SessionInstance{}, err
	}
	if exists {
		return models.SessionInstance{}, fmt.Errorf("%w: session %d already instantiated", progress.ErrValidation, req.SessionID)
	}

	template, err := s.templates.GetByID(spanCtx, templateID)
	if err != nil {
		return models.SessionInstance{}, notFound(err, "template %d", templateID)
	}

	snapshots, err := s.resolveEnrollments(spanCtx, req)
	if err != nil {
		span.RecordError(err)
		return models.SessionInstance{}, err
	}

	ids := make([]uint, 0, len(snapshots))
	for _, snapshot := range snapshots {
		ids = append(ids, snapshot.EnrollmentID)
	}

	rows, err := progress.Instantiate(req.SessionID, template, ids)
	if err != nil {
		return models.SessionInstance{}, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = template.Name
	}
	session := models.SessionInstance{
		ID:         req.SessionID,
		TemplateID: template.ID,
		Title:      title,
		StartsAt:   req.StartsAt,
	}

	if err := s.sessions.CreateWithProgress(spanCtx, &session, snapshots, rows); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist session")
		return models.SessionInstance{}, err
	}
	session.Enrollments = snapshots

	s.logger.Info().
		Uint("session_id", session.ID).
		Uint("template_id", template.ID).
		Int("enrollments", len(snapshots)).
		Int("progress_rows", len(rows)).
		Msg("session instantiated")

	return session, nil
}

func (s *sessionService) resolveEnrollments(ctx context.Context, req dto.SessionInstantiateRequest) ([]models.SessionEnrollment, error) {
	if len(req.Enrollments) > 0 {
		snapshots := make([]models.SessionEnrollment, 0, len(req.Enrollments))
		for _, enrollment := range req.Enrollments {
			snapshots = append(snapshots, models.SessionEnrollment{
				SessionID:    req.SessionID,
				EnrollmentID: enrollment.EnrollmentID,
				StudentName:  strings.TrimSpace(enrollment.StudentName),
				StudentEmail: strings.TrimSpace(enrollment.StudentEmail),
			})
		}
		return snapshots, nil
	}

	if s.enrollments == nil {
		return nil, fmt.Errorf("%w: enrollments are required", progress.ErrValidation)
	}

	roster, err := s.enrollments.ActiveEnrollments(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	snapshots := make([]models.SessionEnrollment, 0, len(roster))
	for _, enrollment := range roster {
		snapshots = append(snapshots, models.SessionEnrollment{
			SessionID:    req.SessionID,
			EnrollmentID: enrollment.ID,
			StudentName:  enrollment.StudentName,
			StudentEmail: enrollment.StudentEmail,
		})
	}
	return snapshots, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID uint) (models.SessionInstance, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return models.SessionInstance{}, notFound(err, "session %d", sessionID)
	}
	return session, nil
}

func (s *sessionService) UpdateEnrollmentOverrides(ctx context.Context, sessionID, enrollmentID uint, req dto.EnrollmentOverrideRequest) (models.SessionEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.SessionEnrollment{}, err
	}

	enrollment, err := s.sessions.GetEnrollment(ctx, sessionID, enrollmentID)
	if err != nil {
		return models.SessionEnrollment{}, notFound(err, "enrollment %d in session %d", enrollmentID, sessionID)
	}

	enrollment.AttendancePercentage = req.AttendancePercentage
	enrollment.ParticipationScore = req.ParticipationScore

	if err := s.sessions.UpdateEnrollment(ctx, &enrollment); err != nil {
		return models.SessionEnrollment{}, err
	}

	s.logger.Info().
		Uint("session_id", sessionID).
		Uint("enrollment_id", enrollmentID).
		Bool("attendance_override", req.AttendancePercentage != nil).
		Bool("participation_override", req.ParticipationScore != nil).
		Msg("enrollment overrides updated")

	return enrollment, nil
}
