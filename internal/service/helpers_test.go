package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/training-progress-api/internal/dto"
	"github.com/noah-isme/training-progress-api/internal/models"
	"github.com/noah-isme/training-progress-api/internal/progress"
	"github.com/noah-isme/training-progress-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// sqlite serialises writers; a single connection keeps concurrent tests free of lock errors
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.SessionTemplate{},
		&models.ComponentDefinition{},
		&models.SessionInstance{},
		&models.SessionEnrollment{},
		&models.Enrollment{},
		&models.ComponentProgress{},
		&models.ProgressEvent{},
	))
	return db
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.ProgressEvent
	err    error
}

func (r *recordingSink) Publish(_ context.Context, events []models.ProgressEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return r.err
}

func (r *recordingSink) snapshot() []models.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ProgressEvent(nil), r.events...)
}

type trainingFixture struct {
	db         *gorm.DB
	templates  TemplateService
	sessions   SessionService
	catalog    ComponentCatalog
	store      ProgressStore
	queries    ProgressQueryService
	sink       *recordingSink
	template   models.SessionTemplate
	session    models.SessionInstance
	course     models.ComponentDefinition
	assessment models.ComponentDefinition
}

// newTrainingFixture builds a lecture + exam template (exam allows two attempts) and a
// session with the given enrollments.
func newTrainingFixture(t *testing.T, enrollments ...uint) *trainingFixture {
	t.Helper()
	db := newServiceDB(t)
	validate := validator.New()
	ctx := context.Background()

	templateRepo := repository.NewTemplateRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	progressRepo := repository.NewComponentProgressRepository(db)
	eventRepo := repository.NewProgressEventRepository(db)

	templates, err := NewTemplateService(templateRepo, validate, testLogger())
	require.NoError(t, err)
	sessions := NewSessionService(sessionRepo, templateRepo, NewEnrollmentProvider(repository.NewEnrollmentRepository(db)), validate, testLogger())
	catalog := NewComponentCatalog(sessionRepo, templateRepo)
	sink := &recordingSink{}
	store := NewProgressStore(progressRepo, catalog, MultiSink{NewAuditEventSink(eventRepo), sink}, 4, testLogger())
	queries := NewProgressQueryService(sessionRepo, progressRepo, eventRepo, catalog, testLogger())

	template, err := templates.Create(ctx, dto.TemplateCreateRequest{
		Name: "Forklift certification",
		Components: []dto.ComponentDefinitionRequest{
			{Type: "ASSESSMENT", Title: "Exam", SequenceOrder: 2, DurationMinutes: 30, IsMandatory: true, HasAssessment: true, MaxAttempts: 2},
			{Type: "COURSE", Title: "Lecture", SequenceOrder: 1, DurationMinutes: 60, IsMandatory: true},
		},
	})
	require.NoError(t, err)

	request := dto.SessionInstantiateRequest{SessionID: 100, Title: "Morning cohort"}
	for _, id := range enrollments {
		request.Enrollments = append(request.Enrollments, dto.SessionEnrollmentRequest{
			EnrollmentID: id,
			StudentName:  fmt.Sprintf("Student %d", id),
			StudentEmail: fmt.Sprintf("student%d@example.com", id),
		})
	}
	session, err := sessions.Instantiate(ctx, template.ID, request)
	require.NoError(t, err)

	return &trainingFixture{
		db:         db,
		templates:  templates,
		sessions:   sessions,
		catalog:    catalog,
		store:      store,
		queries:    queries,
		sink:       sink,
		template:   template,
		session:    session,
		course:     template.Components[0],
		assessment: template.Components[1],
	}
}

func (f *trainingFixture) key(enrollmentID uint, component models.ComponentDefinition) repository.ProgressKey {
	return repository.ProgressKey{SessionID: f.session.ID, EnrollmentID: enrollmentID, ComponentID: component.ID}
}

func statusPatch(status models.ProgressStatus) progress.Patch {
	return progress.Patch{Status: &status}
}

func scorePatch(score float64) progress.Patch {
	return progress.Patch{Score: &score}
}
