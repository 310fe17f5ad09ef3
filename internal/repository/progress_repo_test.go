package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/training-progress-api/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
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

func seedTemplate(t *testing.T, db *gorm.DB) models.SessionTemplate {
	t.Helper()
	template := models.SessionTemplate{
		Name:                 "First aid",
		TotalDurationMinutes: 90,
		Components: []models.ComponentDefinition{
			{Type: models.ComponentTypeAssessment, Title: "Exam", SequenceOrder: 2, DurationMinutes: 30, IsMandatory: true, HasAssessment: true, MaxAttempts: 1},
			{Type: models.ComponentTypeCourse, Title: "Lecture", SequenceOrder: 1, DurationMinutes: 60, IsMandatory: true, MaxAttempts: 1},
		},
	}
	require.NoError(t, NewTemplateRepository(db).Create(context.Background(), &template))
	return template
}

func TestTemplateRepositoryOrdersComponents(t *testing.T) {
	db := newTestDB(t)
	repo := NewTemplateRepository(db)
	created := seedTemplate(t, db)

	loaded, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Components, 2)
	require.Equal(t, "Lecture", loaded.Components[0].Title)
	require.Equal(t, "Exam", loaded.Components[1].Title)

	saved, err := repo.MutateOrdering(context.Background(), created.ID, func(current models.SessionTemplate) (models.SessionTemplate, error) {
		require.Equal(t, "Lecture", current.Components[0].Title)
		current.Components[0].SequenceOrder, current.Components[1].SequenceOrder = 2, 1
		return current, nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, saved.Components[0].SequenceOrder)

	reloaded, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, "Exam", reloaded.Components[0].Title)

	rejected := errors.New("rejected")
	_, err = repo.MutateOrdering(context.Background(), created.ID, func(current models.SessionTemplate) (models.SessionTemplate, error) {
		current.Components[0].SequenceOrder = 99
		return current, rejected
	})
	require.ErrorIs(t, err, rejected)
	unchanged, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, unchanged.Components[0].SequenceOrder)

	_, err = repo.MutateOrdering(context.Background(), created.ID+50, func(current models.SessionTemplate) (models.SessionTemplate, error) {
		return current, nil
	})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	templates, total, err := repo.List(context.Background(), TemplateFilter{Search: "first", PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, templates, 1)
}

func TestSessionRepositoryCreateWithProgress(t *testing.T) {
	db := newTestDB(t)
	template := seedTemplate(t, db)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	exists, err := repo.Exists(ctx, 77)
	require.NoError(t, err)
	require.False(t, exists)

	session := models.SessionInstance{ID: 77, TemplateID: template.ID, Title: "Morning cohort"}
	enrollments := []models.SessionEnrollment{
		{SessionID: 77, EnrollmentID: 1, StudentName: "Ana", StudentEmail: "ana@example.com"},
	}
	rows := []models.ComponentProgress{
		{SessionID: 77, EnrollmentID: 1, ComponentID: template.Components[0].ID, Status: models.ProgressStatusNotStarted, AttendanceStatus: models.AttendanceStatusRegistered},
		{SessionID: 77, EnrollmentID: 1, ComponentID: template.Components[1].ID, Status: models.ProgressStatusNotStarted, AttendanceStatus: models.AttendanceStatusRegistered},
	}
	require.NoError(t, repo.CreateWithProgress(ctx, &session, enrollments, rows))

	exists, err = repo.Exists(ctx, 77)
	require.NoError(t, err)
	require.True(t, exists)

	loaded, err := repo.GetByID(ctx, 77)
	require.NoError(t, err)
	require.Len(t, loaded.Enrollments, 1)
	require.Equal(t, "Ana", loaded.Enrollments[0].StudentName)

	progressRows, err := NewComponentProgressRepository(db).ListBySession(ctx, 77)
	require.NoError(t, err)
	require.Len(t, progressRows, 2)
}

func TestComponentProgressRepositoryMutate(t *testing.T) {
	db := newTestDB(t)
	repo := NewComponentProgressRepository(db)
	ctx := context.Background()

	row := models.ComponentProgress{SessionID: 5, EnrollmentID: 2, ComponentID: 3, Status: models.ProgressStatusNotStarted, AttendanceStatus: models.AttendanceStatusRegistered}
	require.NoError(t, db.Create(&row).Error)
	key := ProgressKey{SessionID: 5, EnrollmentID: 2, ComponentID: 3}

	started := time.Now().UTC()
	updated, err := repo.Mutate(ctx, key, func(record *models.ComponentProgress) error {
		record.Status = models.ProgressStatusInProgress
		record.StartTime = &started
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, models.ProgressStatusInProgress, updated.Status)

	boom := errors.New("rejected")
	_, err = repo.Mutate(ctx, key, func(record *models.ComponentProgress) error {
		record.Status = models.ProgressStatusSkipped
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := repo.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, models.ProgressStatusInProgress, stored.Status, "failed mutation must not persist")

	_, err = repo.Mutate(ctx, ProgressKey{SessionID: 5, EnrollmentID: 9, ComponentID: 3}, func(*models.ComponentProgress) error { return nil })
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestProgressEventRepositoryListsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	repo := NewProgressEventRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.CreateBatch(ctx, []models.ProgressEvent{
		{EventID: "a", SessionID: 1, EnrollmentID: 1, ComponentID: 1, PreviousStatus: models.ProgressStatusNotStarted, NewStatus: models.ProgressStatusInProgress, OccurredAt: now.Add(-time.Minute)},
		{EventID: "b", SessionID: 1, EnrollmentID: 1, ComponentID: 1, PreviousStatus: models.ProgressStatusInProgress, NewStatus: models.ProgressStatusCompleted, OccurredAt: now},
		{EventID: "c", SessionID: 2, EnrollmentID: 4, ComponentID: 1, PreviousStatus: models.ProgressStatusNotStarted, NewStatus: models.ProgressStatusSkipped, OccurredAt: now},
	}))

	events, total, err := repo.List(ctx, ProgressEventFilter{SessionID: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Equal(t, "b", events[0].EventID)
}

func TestEnrollmentRepositoryListsActiveOnly(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&[]models.Enrollment{
		{SessionID: 3, StudentName: "Ana", StudentEmail: "ana@example.com", Status: models.EnrollmentStatusActive},
		{SessionID: 3, StudentName: "Ben", StudentEmail: "ben@example.com", Status: "withdrawn"},
		{SessionID: 4, StudentName: "Cy", StudentEmail: "cy@example.com", Status: models.EnrollmentStatusActive},
	}).Error)

	enrollments, err := NewEnrollmentRepository(db).ListActiveBySession(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	require.Equal(t, "Ana", enrollments[0].StudentName)
}
