package dto

import (
	"time"

	"github.com/noah-isme/training-progress-api/internal/models"
	"github.com/noah-isme/training-progress-api/internal/progress"
)

// ProgressUpdateRequest is a partial update of one component progress record.
type ProgressUpdateRequest struct {
	Status              *string    `json:"status" validate:"omitempty,oneof=NOT_STARTED IN_PROGRESS COMPLETED PASSED FAILED SKIPPED EXCUSED"`
	AttendanceStatus    *string    `json:"attendance_status" validate:"omitempty,oneof=REGISTERED PRESENT ABSENT LATE EARLY_DEPARTURE EXCUSED"`
	Score               *float64   `json:"score" validate:"omitempty,gte=0,lte=100"`
	ParticipationScore  *float64   `json:"participation_score" validate:"omitempty,gte=0,lte=100"`
	StartTime           *time.Time `json:"start_time"`
	EndTime             *time.Time `json:"end_time"`
	InstructorNotes     *string    `json:"instructor_notes" validate:"omitempty,max=4000"`
	ParticipantFeedback *string    `json:"participant_feedback" validate:"omitempty,max=4000"`
}

// ToPatch converts the request into a state machine patch.
func (r ProgressUpdateRequest) ToPatch() progress.Patch {
	patch := progress.Patch{
		Score:               r.Score,
		ParticipationScore:  r.ParticipationScore,
		StartTime:           r.StartTime,
		EndTime:             r.EndTime,
		InstructorNotes:     r.InstructorNotes,
		ParticipantFeedback: r.ParticipantFeedback,
	}
	if r.Status != nil {
		status := models.ProgressStatus(*r.Status)
		patch.Status = &status
	}
	if r.AttendanceStatus != nil {
		attendance := models.AttendanceStatus(*r.AttendanceStatus)
		patch.AttendanceStatus = &attendance
	}
	return patch
}

// BulkProgressEntry addresses one record inside a bulk update.
type BulkProgressEntry struct {
	EnrollmentID uint `json:"enrollment_id" validate:"required"`
	ComponentID  uint `json:"component_id" validate:"required"`
	ProgressUpdateRequest
}

// BulkProgressRequest batches updates for one session. Entries are validated one by one so
// a bad entry fails alone.
type BulkProgressRequest struct {
	Entries []BulkProgressEntry `json:"entries" validate:"required,min=1,max=1000"`
}

// BulkEntryResult reports the outcome of one bulk entry.
type BulkEntryResult struct {
	Index        int               `json:"index"`
	EnrollmentID uint              `json:"enrollment_id"`
	ComponentID  uint              `json:"component_id"`
	Success      bool              `json:"success"`
	Progress     *ProgressResponse `json:"progress,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// BulkProgressResponse summarises a bulk update.
type BulkProgressResponse struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Results   []BulkEntryResult `json:"results"`
}

// ProgressResponse serializes a component progress record.
type ProgressResponse struct {
	SessionID             uint       `json:"session_id"`
	EnrollmentID          uint       `json:"enrollment_id"`
	ComponentID           uint       `json:"component_id"`
	Status                string     `json:"status"`
	AttendanceStatus      string     `json:"attendance_status"`
	StartTime             *time.Time `json:"start_time,omitempty"`
	EndTime               *time.Time `json:"end_time,omitempty"`
	ActualDurationMinutes *int       `json:"actual_duration_minutes,omitempty"`
	Score                 *float64   `json:"score,omitempty"`
	Passed                *bool      `json:"passed,omitempty"`
	Attempts              int        `json:"attempts"`
	ParticipationScore    *float64   `json:"participation_score,omitempty"`
	InstructorNotes       string     `json:"instructor_notes,omitempty"`
	ParticipantFeedback   string     `json:"participant_feedback,omitempty"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// NewProgressResponse converts a progress record.
func NewProgressResponse(record models.ComponentProgress) ProgressResponse {
	return ProgressResponse{
		SessionID:             record.SessionID,
		EnrollmentID:          record.EnrollmentID,
		ComponentID:           record.ComponentID,
		Status:                string(record.Status),
		AttendanceStatus:      string(record.AttendanceStatus),
		StartTime:             record.StartTime,
		EndTime:               record.EndTime,
		ActualDurationMinutes: record.ActualDurationMinutes,
		Score:                 record.Score,
		Passed:                record.Passed,
		Attempts:              record.Attempts,
		ParticipationScore:    record.ParticipationScore,
		InstructorNotes:       record.InstructorNotes,
		ParticipantFeedback:   record.ParticipantFeedback,
		UpdatedAt:             record.UpdatedAt,
	}
}

// ComponentProgressItem pairs a component definition with the student's record.
type ComponentProgressItem struct {
	Component ComponentDefinitionResponse `json:"component"`
	Progress  ProgressResponse            `json:"progress"`
}

// StudentProgressResponse serializes a student's roll-up.
type StudentProgressResponse struct {
	EnrollmentID         uint                    `json:"enrollment_id"`
	StudentName          string                  `json:"student_name"`
	StudentEmail         string                  `json:"student_email"`
	OverallStatus        string                  `json:"overall_status"`
	OverallScore         *float64                `json:"overall_score"`
	OverallPassed        *bool                   `json:"overall_passed"`
	CompletionPercentage float64                 `json:"completion_percentage"`
	AttendancePercentage *float64                `json:"attendance_percentage"`
	ParticipationScore   *float64                `json:"participation_score"`
	Misconfigured        bool                    `json:"misconfigured,omitempty"`
	Components           []ComponentProgressItem `json:"components,omitempty"`
}

// NewStudentProgressResponse converts a roll-up. withComponents controls whether the
// per-component detail is included.
func NewStudentProgressResponse(student progress.StudentProgress, withComponents bool) StudentProgressResponse {
	response := StudentProgressResponse{
		EnrollmentID:         student.EnrollmentID,
		StudentName:          student.StudentName,
		StudentEmail:         student.StudentEmail,
		OverallStatus:        string(student.OverallStatus),
		OverallScore:         student.OverallScore,
		OverallPassed:        student.OverallPassed,
		CompletionPercentage: student.CompletionPercentage,
		AttendancePercentage: student.AttendancePercentage,
		ParticipationScore:   student.ParticipationScore,
		Misconfigured:        student.Misconfigured,
	}
	if withComponents {
		response.Components = make([]ComponentProgressItem, 0, len(student.Components))
		for _, view := range student.Components {
			response.Components = append(response.Components, ComponentProgressItem{
				Component: NewComponentDefinitionResponse(view.Component),
				Progress:  NewProgressResponse(view.Progress),
			})
		}
	}
	return response
}

// ComponentBreakdownResponse serializes the distribution of one component.
type ComponentBreakdownResponse struct {
	Component              ComponentDefinitionResponse `json:"component"`
	Total                  int                         `json:"total"`
	StatusCounts           map[string]int              `json:"status_counts"`
	AttendanceCounts       map[string]int              `json:"attendance_counts"`
	AverageScore           *float64                    `json:"average_score"`
	PassRate               *float64                    `json:"pass_rate"`
	AverageDurationMinutes *float64                    `json:"average_duration_minutes"`
}

// NewComponentBreakdownResponse converts a component breakdown.
func NewComponentBreakdownResponse(breakdown progress.ComponentBreakdown) ComponentBreakdownResponse {
	statuses := make(map[string]int, len(breakdown.StatusCounts))
	for status, count := range breakdown.StatusCounts {
		statuses[string(status)] = count
	}
	attendance := make(map[string]int, len(breakdown.AttendanceCounts))
	for status, count := range breakdown.AttendanceCounts {
		attendance[string(status)] = count
	}
	return ComponentBreakdownResponse{
		Component:              NewComponentDefinitionResponse(breakdown.Component),
		Total:                  breakdown.Total,
		StatusCounts:           statuses,
		AttendanceCounts:       attendance,
		AverageScore:           breakdown.AverageScore,
		PassRate:               breakdown.PassRate,
		AverageDurationMinutes: breakdown.AverageDurationMinutes,
	}
}

// SessionSummaryResponse serializes the roll-up of a whole session.
type SessionSummaryResponse struct {
	SessionID         uint                         `json:"session_id"`
	TotalStudents     int                          `json:"total_students"`
	StatusCounts      map[string]int               `json:"status_counts"`
	AverageCompletion float64                      `json:"average_completion"`
	AverageAttendance *float64                     `json:"average_attendance"`
	AverageScore      *float64                     `json:"average_score"`
	Misconfigured     bool                         `json:"misconfigured,omitempty"`
	Students          []StudentProgressResponse    `json:"students"`
	Components        []ComponentBreakdownResponse `json:"components"`
}

// NewSessionSummaryResponse converts a session summary.
func NewSessionSummaryResponse(summary progress.SessionSummary) SessionSummaryResponse {
	counts := make(map[string]int, len(summary.StatusCounts))
	for status, count := range summary.StatusCounts {
		counts[string(status)] = count
	}
	students := make([]StudentProgressResponse, 0, len(summary.Students))
	for _, student := range summary.Students {
		students = append(students, NewStudentProgressResponse(student, false))
	}
	components := make([]ComponentBreakdownResponse, 0, len(summary.Components))
	for _, breakdown := range summary.Components {
		components = append(components, NewComponentBreakdownResponse(breakdown))
	}
	return SessionSummaryResponse{
		SessionID:         summary.SessionID,
		TotalStudents:     summary.TotalStudents,
		StatusCounts:      counts,
		AverageCompletion: summary.AverageCompletion,
		AverageAttendance: summary.AverageAttendance,
		AverageScore:      summary.AverageScore,
		Misconfigured:     summary.Misconfigured,
		Students:          students,
		Components:        components,
	}
}

// ProgressEventListRequest captures query params for the audit trail.
type ProgressEventListRequest struct {
	EnrollmentID *uint
	ComponentID  *uint
	Page         int
	PageSize     int
}

// ProgressEventResponse serializes a transition event.
type ProgressEventResponse struct {
	EventID        string                 `json:"event_id"`
	SessionID      uint                   `json:"session_id"`
	EnrollmentID   uint                   `json:"enrollment_id"`
	ComponentID    uint                   `json:"component_id"`
	PreviousStatus string                 `json:"previous_status"`
	NewStatus      string                 `json:"new_status"`
	Score          *float64               `json:"score,omitempty"`
	Attempts       int                    `json:"attempts"`
	ActorID        uint                   `json:"actor_id"`
	OccurredAt     time.Time              `json:"occurred_at"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// ProgressEventListResult wraps a page of audit events.
type ProgressEventListResult struct {
	Items      []ProgressEventResponse `json:"items"`
	Pagination PaginationMeta          `json:"pagination"`
}

// NewProgressEventResponse converts an event model.
func NewProgressEventResponse(event models.ProgressEvent) ProgressEventResponse {
	return ProgressEventResponse{
		EventID:        event.EventID,
		SessionID:      event.SessionID,
		EnrollmentID:   event.EnrollmentID,
		ComponentID:    event.ComponentID,
		PreviousStatus: string(event.PreviousStatus),
		NewStatus:      string(event.NewStatus),
		Score:          event.Score,
		Attempts:       event.Attempts,
		ActorID:        event.ActorID,
		OccurredAt:     event.OccurredAt,
		Metadata:       map[string]interface{}(event.Metadata),
	}
}
