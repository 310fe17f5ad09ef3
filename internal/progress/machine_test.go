package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/training-progress-api/internal/models"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func statusPtr(status models.ProgressStatus) *models.ProgressStatus {
	return &status
}

func stringPtr(v string) *string {
	return &v
}

func newRecord(componentID uint) models.ComponentProgress {
	return models.ComponentProgress{
		SessionID:        1,
		EnrollmentID:     1,
		ComponentID:      componentID,
		Status:           models.ProgressStatusNotStarted,
		AttendanceStatus: models.AttendanceStatusRegistered,
	}
}

func course() models.ComponentDefinition {
	return models.ComponentDefinition{ID: 1, Type: models.ComponentTypeCourse, SequenceOrder: 1, DurationMinutes: 60, IsMandatory: true}
}

func assessment(maxAttempts int) models.ComponentDefinition {
	return models.ComponentDefinition{ID: 2, Type: models.ComponentTypeAssessment, SequenceOrder: 2, DurationMinutes: 30, IsMandatory: true, HasAssessment: true, MaxAttempts: maxAttempts}
}

func TestApplyStartSetsStartTimeOnce(t *testing.T) {
	earlier := fixedNow.Add(-time.Hour)
	record := newRecord(1)
	record.StartTime = &earlier

	next, transitions, err := Apply(course(), record, Patch{Status: statusPtr(models.ProgressStatusInProgress)}, fixedNow)
	require.NoError(t, err)
	require.Equal(t, models.ProgressStatusInProgress, next.Status)
	require.Equal(t, earlier, *next.StartTime)
	require.Len(t, transitions, 1)
	require.Equal(t, models.ProgressStatusNotStarted, transitions[0].From)
}

func TestApplyCompleteNonAssessed(t *testing.T) {
	started, _, err := Apply(course(), newRecord(1), Patch{Status: statusPtr(models.ProgressStatusInProgress)}, fixedNow)
	require.NoError(t, err)

	done, transitions, err := Apply(course(), started, Patch{Status: statusPtr(models.ProgressStatusCompleted)}, fixedNow.Add(45*time.Minute))
	require.NoError(t, err)
	require.Equal(t, models.ProgressStatusCompleted, done.Status)
	require.NotNil(t, done.EndTime)
	require.NotNil(t, done.ActualDurationMinutes)
	require.Equal(t, 45, *done.ActualDurationMinutes)
	require.Len(t, transitions, 1)
}

func TestApplyCompleteBackfillsStartTime(t *testing.T) {
	done, transitions, err := Apply(course(), newRecord(1), Patch{Status: statusPtr(models.ProgressStatusCompleted)}, fixedNow)
	require.NoError(t, err)
	require.Equal(t, fixedNow, *done.StartTime)
	require.Equal(t, fixedNow, *done.EndTime)
	require.Equal(t, 0, *done.ActualDurationMinutes)
	require.Len(t, transitions, 2)
}

func TestApplyCompleteAssessedWithoutScoreFails(t *testing.T) {
	record := newRecord(2)
	_, _, err := Apply(assessment(1), record, Patch{Status: statusPtr(models.ProgressStatusCompleted)}, fixedNow)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, _, err = Apply(assessment(1), record, Patch{Status: statusPtr(models.ProgressStatusPassed)}, fixedNow)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApplyScoreOnNonAssessedFails(t *testing.T) {
	_, _, err := Apply(course(), newRecord(1), Patch{Score: floatPointer(90)}, fixedNow)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApplyScoreDerivesStatus(t *testing.T) {
	for _, tc := range []struct {
		score  float64
		status models.ProgressStatus
	}{
		{score: 80, status: models.ProgressStatusPassed},
		{score: 100, status: models.ProgressStatusPassed},
		{score: 79.99, status: models.ProgressStatusFailed},
		{score: 0, status: models.ProgressStatusFailed},
	} {
		next, _, err := Apply(assessment(1), newRecord(2), Patch{Score: floatPointer(tc.score)}, fixedNow)
		require.NoError(t, err)
		require.Equal(t, tc.status, next.Status, "score %v", tc.score)
		require.NotNil(t, next.Passed)
		require.Equal(t, tc.status == models.ProgressStatusPassed, *next.Passed)
		require.Equal(t, 1, next.Attempts)
		require.NotNil(t, next.EndTime)
	}
}

func TestApplyScoreHonoursComponentThreshold(t *testing.T) {
	component := assessment(1)
	component.PassingScore = floatPointer(60)

	next, _, err := Apply(component, newRecord(2), Patch{Score: floatPointer(65)}, fixedNow)
	require.NoError(t, err)
	require.Equal(t, models.ProgressStatusPassed, next.Status)
}

func TestApplyRequestedStatusDoesNotOverrideDerivation(t *testing.T) {
	next, _, err := Apply(assessment(1), newRecord(2), Patch{Status: statusPtr(models.ProgressStatusPassed), Score: floatPointer(50)}, fixedNow)
	require.NoError(t, err)
	require.Equal(t, models.ProgressStatusFailed, next.Status)
}

func TestApplyTerminalClosure(t *testing.T) {
	terminalStatuses := []models.ProgressStatus{
		models.ProgressStatusCompleted,
		models.ProgressStatusSkipped,
		models.ProgressStatusExcused,
	}
	for _, terminal := range terminalStatuses {
		record := newRecord(1)
		record.Status = terminal

		for _, target := range models.ProgressStatuses {
			if target == terminal {
				continue
			}
			_, _, err := Apply(course(), record, Patch{Status: statusPtr(target)}, fixedNow)
			require.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", terminal, target)
		}

		amended, transitions, err := Apply(course(), record, Patch{InstructorNotes: stringPtr("left at noon"), ParticipantFeedback: stringPtr("great")}, fixedNow)
		require.NoError(t, err)
		require.Empty(t, transitions)
		require.Equal(t, "left at noon", amended.InstructorNotes)
		require.Equal(t, "great", amended.ParticipantFeedback)
		require.Equal(t, terminal, amended.Status)
	}
}

func TestApplySameStatusIsNotATransition(t *testing.T) {
	record := newRecord(1)
	record.Status = models.ProgressStatusCompleted

	next, transitions, err := Apply(course(), record, Patch{Status: statusPtr(models.ProgressStatusCompleted), InstructorNotes: stringPtr("ok")}, fixedNow)
	require.NoError(t, err)
	require.Empty(t, transitions)
	require.Equal(t, "ok", next.InstructorNotes)
}

func TestApplySkipAndExcuse(t *testing.T) {
	skipped, transitions, err := Apply(course(), newRecord(1), Patch{Status: statusPtr(models.ProgressStatusSkipped)}, fixedNow)
	require.NoError(t, err)
	require.Equal(t, models.ProgressStatusSkipped, skipped.Status)
	require.Nil(t, skipped.StartTime)
	require.NotNil(t, skipped.EndTime)
	require.Len(t, transitions, 1)

	inProgress := newRecord(2)
	inProgress.Status = models.ProgressStatusInProgress
	excused, _, err := Apply(assessment(1), inProgress, Patch{Status: statusPtr(models.ProgressStatusExcused)}, fixedNow)
	require.NoError(t, err)
	require.Equal(t, models.ProgressStatusExcused, excused.Status)
}

func TestApplyBackwardsTransitionFails(t *testing.T) {
	record := newRecord(1)
	record.Status = models.ProgressStatusInProgress
	_, _, err := Apply(course(), record, Patch{Status: statusPtr(models.ProgressStatusNotStarted)}, fixedNow)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApplyAttemptsCeiling(t *testing.T) {
	component := assessment(2)
	inProgress := statusPtr(models.ProgressStatusInProgress)

	first, _, err := Apply(component, newRecord(2), Patch{Status: inProgress, Score: floatPointer(60)}, fixedNow)
	require.NoError(t, err)
	require.Equal(t, models.ProgressStatusInProgress, first.Status, "first practice attempt stays open")
	require.Equal(t, 1, first.Attempts)
	require.Nil(t, first.Passed)

	second, transitions, err := Apply(component, first, Patch{Status: inProgress, Score: floatPointer(70)}, fixedNow)
	require.NoError(t, err)
	require.Equal(t, 2, second.Attempts)
	require.Equal(t, models.ProgressStatusFailed, second.Status, "the last allowed attempt forces resolution")
	require.Len(t, transitions, 1)

	_, _, err = Apply(component, second, Patch{Score: floatPointer(95)}, fixedNow)
	require.ErrorIs(t, err, ErrAttemptsExceeded)
}

func TestApplyAttendanceIndependentOfStatus(t *testing.T) {
	record := newRecord(1)
	record.Status = models.ProgressStatusCompleted
	late := models.AttendanceStatusLate

	next, _, err := Apply(course(), record, Patch{AttendanceStatus: &late, ParticipationScore: floatPointer(75)}, fixedNow)
	require.NoError(t, err)
	require.Equal(t, models.AttendanceStatusLate, next.AttendanceStatus)
	require.Equal(t, 75.0, *next.ParticipationScore)
}

func TestApplyValidation(t *testing.T) {
	bogus := models.ProgressStatus("DONE")
	_, _, err := Apply(course(), newRecord(1), Patch{Status: &bogus}, fixedNow)
	require.ErrorIs(t, err, ErrValidation)

	_, _, err = Apply(assessment(1), newRecord(2), Patch{Score: floatPointer(101)}, fixedNow)
	require.ErrorIs(t, err, ErrValidation)

	start := fixedNow
	end := fixedNow.Add(-time.Minute)
	_, _, err = Apply(course(), newRecord(1), Patch{StartTime: &start, EndTime: &end}, fixedNow)
	require.ErrorIs(t, err, ErrValidation)
}

func TestApplyErrorLeavesRecordUnchanged(t *testing.T) {
	record := newRecord(2)
	record.Status = models.ProgressStatusFailed
	record.Attempts = 1

	returned, transitions, err := Apply(assessment(2), record, Patch{Score: floatPointer(85), InstructorNotes: stringPtr("retry")}, fixedNow)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Nil(t, transitions)
	require.Equal(t, record, returned)
}
