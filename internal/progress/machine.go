package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/noah-isme/training-progress-api/internal/models"
)

// Patch describes a partial update to a component progress record. Nil fields are left untouched.
type Patch struct {
	Status              *models.ProgressStatus
	AttendanceStatus    *models.AttendanceStatus
	Score               *float64
	ParticipationScore  *float64
	StartTime           *time.Time
	EndTime             *time.Time
	InstructorNotes     *string
	ParticipantFeedback *string
}

// IsEmpty reports whether the patch carries no changes.
func (p Patch) IsEmpty() bool {
	return p.Status == nil && p.AttendanceStatus == nil && p.Score == nil &&
		p.ParticipationScore == nil && p.StartTime == nil && p.EndTime == nil &&
		p.InstructorNotes == nil && p.ParticipantFeedback == nil
}

// Transition records a single status change applied by the state machine.
type Transition struct {
	From models.ProgressStatus
	To   models.ProgressStatus
	At   time.Time
}

// Apply validates the patch against the transition rules and returns the updated record
// together with the transitions it produced. On error the returned record is the
// unchanged input.
func Apply(component models.ComponentDefinition, current models.ComponentProgress, patch Patch, now time.Time) (models.ComponentProgress, []Transition, error) {
	if current.ComponentID != 0 && component.ID != 0 && current.ComponentID != component.ID {
		return current, nil, validationError("progress row references component %d, got definition %d", current.ComponentID, component.ID)
	}
	if err := validatePatch(patch); err != nil {
		return current, nil, err
	}

	next := current
	if patch.StartTime != nil {
		next.StartTime = timePointer(*patch.StartTime)
	}

	var (
		transitions []Transition
		err         error
	)
	switch {
	case patch.Score != nil:
		transitions, err = applyScore(component, &next, patch, now)
	case patch.Status != nil && *patch.Status != next.Status:
		transitions, err = applyStatus(component, &next, *patch.Status, now)
	}
	if err != nil {
		return current, nil, err
	}

	if patch.EndTime != nil {
		next.EndTime = timePointer(*patch.EndTime)
	}
	if next.StartTime != nil && next.EndTime != nil && next.EndTime.Before(*next.StartTime) {
		return current, nil, validationError("end time must not precede start time")
	}

	if patch.AttendanceStatus != nil {
		next.AttendanceStatus = *patch.AttendanceStatus
	}
	if patch.ParticipationScore != nil {
		next.ParticipationScore = floatPointer(*patch.ParticipationScore)
	}
	if patch.InstructorNotes != nil {
		next.InstructorNotes = *patch.InstructorNotes
	}
	if patch.ParticipantFeedback != nil {
		next.ParticipantFeedback = *patch.ParticipantFeedback
	}

	next.ActualDurationMinutes = next.DurationMinutes()
	return next, transitions, nil
}

func validatePatch(patch Patch) error {
	if patch.Status != nil && !patch.Status.Valid() {
		return validationError("unsupported status %q", *patch.Status)
	}
	if patch.AttendanceStatus != nil && !patch.AttendanceStatus.Valid() {
		return validationError("unsupported attendance status %q", *patch.AttendanceStatus)
	}
	if patch.Score != nil && !inScoreRange(*patch.Score) {
		return validationError("score must be between 0 and 100")
	}
	if patch.ParticipationScore != nil && !inScoreRange(*patch.ParticipationScore) {
		return validationError("participation score must be between 0 and 100")
	}
	return nil
}

func applyScore(component models.ComponentDefinition, next *models.ComponentProgress, patch Patch, now time.Time) ([]Transition, error) {
	if !component.HasAssessment {
		return nil, transitionError("component %d does not carry an assessment", component.ID)
	}

	maxAttempts := component.EffectiveMaxAttempts()
	if next.Status.IsTerminal() {
		if next.Attempts >= maxAttempts {
			return nil, fmt.Errorf("%w: %d of %d attempts used on component %d", ErrAttemptsExceeded, next.Attempts, maxAttempts, component.ID)
		}
		return nil, transitionError("component %d already resolved as %s", component.ID, next.Status)
	}

	resolve := true
	if patch.Status != nil {
		switch *patch.Status {
		case models.ProgressStatusInProgress:
			resolve = false
		case models.ProgressStatusPassed, models.ProgressStatusFailed, models.ProgressStatusCompleted:
		default:
			return nil, transitionError("a score cannot be combined with status %s", *patch.Status)
		}
	}

	var transitions []Transition
	if next.Status == models.ProgressStatusNotStarted {
		transitions = append(transitions, start(next, now))
	}

	if next.Attempts < maxAttempts {
		next.Attempts++
	}
	next.Score = floatPointer(*patch.Score)

	if !resolve && next.Attempts < maxAttempts {
		return transitions, nil
	}

	status := models.ProgressStatusFailed
	if *patch.Score >= component.EffectivePassingScore() {
		status = models.ProgressStatusPassed
	}
	passed := status == models.ProgressStatusPassed
	next.Passed = &passed

	transitions = append(transitions, finish(next, status, now))
	return transitions, nil
}

func applyStatus(component models.ComponentDefinition, next *models.ComponentProgress, target models.ProgressStatus, now time.Time) ([]Transition, error) {
	from := next.Status
	if from.IsTerminal() {
		return nil, transitionError("cannot move component %d from terminal %s to %s", component.ID, from, target)
	}

	switch target {
	case models.ProgressStatusNotStarted:
		return nil, transitionError("cannot move component %d back to %s", component.ID, target)
	case models.ProgressStatusInProgress:
		return []Transition{start(next, now)}, nil
	case models.ProgressStatusCompleted:
		if component.HasAssessment {
			return nil, transitionError("assessed component %d requires a score to resolve", component.ID)
		}
		var transitions []Transition
		if from == models.ProgressStatusNotStarted {
			transitions = append(transitions, start(next, now))
		}
		return append(transitions, finish(next, models.ProgressStatusCompleted, now)), nil
	case models.ProgressStatusPassed, models.ProgressStatusFailed:
		if !component.HasAssessment {
			return nil, transitionError("component %d has no assessment and cannot be %s", component.ID, target)
		}
		return nil, transitionError("a score is required to resolve component %d", component.ID)
	case models.ProgressStatusSkipped, models.ProgressStatusExcused:
		return []Transition{finish(next, target, now)}, nil
	default:
		return nil, validationError("unsupported status %q", target)
	}
}

func start(next *models.ComponentProgress, now time.Time) Transition {
	from := next.Status
	next.Status = models.ProgressStatusInProgress
	if next.StartTime == nil {
		next.StartTime = timePointer(now)
	}
	return Transition{From: from, To: next.Status, At: now}
}

func finish(next *models.ComponentProgress, status models.ProgressStatus, now time.Time) Transition {
	from := next.Status
	next.Status = status
	if next.StartTime == nil && status != models.ProgressStatusSkipped && status != models.ProgressStatusExcused {
		next.StartTime = timePointer(now)
	}
	next.EndTime = timePointer(now)
	return Transition{From: from, To: status, At: now}
}

func inScoreRange(value float64) bool {
	return !math.IsNaN(value) && value >= 0 && value <= 100
}

func timePointer(t time.Time) *time.Time {
	return &t
}

func floatPointer(v float64) *float64 {
	return &v
}
