package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// DefaultPassingScore is applied to assessed components without an explicit threshold.
	DefaultPassingScore = 80.0
	// DefaultMaxAttempts is applied to components that do not declare an attempt ceiling.
	DefaultMaxAttempts = 1
)

// SessionTemplate is a reusable, ordered set of components.
type SessionTemplate struct {
	ID                   uint                  `gorm:"primaryKey" json:"id"`
	Name                 string                `gorm:"size:255;not null" json:"name"`
	Description          string                `gorm:"type:text" json:"description"`
	TotalDurationMinutes int                   `gorm:"not null;default:0" json:"total_duration_minutes"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
	Components           []ComponentDefinition `gorm:"foreignKey:TemplateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"components"`
}

// ComponentDefinition describes one slot in a session template.
type ComponentDefinition struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	TemplateID      uint          `gorm:"not null;index" json:"template_id"`
	Type            ComponentType `gorm:"size:32;not null" json:"type"`
	Title           string        `gorm:"size:255" json:"title"`
	SequenceOrder   int           `gorm:"not null" json:"sequence_order"`
	DurationMinutes int           `gorm:"not null;default:0" json:"duration_minutes"`
	IsMandatory     bool          `gorm:"not null" json:"is_mandatory"`
	HasAssessment   bool          `gorm:"not null" json:"has_assessment"`
	MaxAttempts     int           `gorm:"not null;default:1" json:"max_attempts"`
	PassingScore    *float64      `json:"passing_score"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// EffectiveMaxAttempts returns the attempt ceiling, defaulting to one.
func (c ComponentDefinition) EffectiveMaxAttempts() int {
	if c.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return c.MaxAttempts
}

// EffectivePassingScore returns the passing threshold, defaulting to 80.
func (c ComponentDefinition) EffectivePassingScore() float64 {
	if c.PassingScore == nil {
		return DefaultPassingScore
	}
	return *c.PassingScore
}

// SessionInstance is a concrete session instantiated from a template. Its ID is the
// identifier of the externally owned training session.
type SessionInstance struct {
	ID          uint                `gorm:"primaryKey;autoIncrement:false" json:"id"`
	TemplateID  uint                `gorm:"not null;index" json:"template_id"`
	Title       string              `gorm:"size:255" json:"title"`
	StartsAt    *time.Time          `json:"starts_at"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Enrollments []SessionEnrollment `gorm:"foreignKey:SessionID" json:"enrollments"`
}

// SessionEnrollment snapshots student identity at instantiation time and holds directly
// entered attendance and participation values.
type SessionEnrollment struct {
	SessionID            uint      `gorm:"primaryKey;autoIncrement:false" json:"session_id"`
	EnrollmentID         uint      `gorm:"primaryKey;autoIncrement:false" json:"enrollment_id"`
	StudentName          string    `gorm:"size:255" json:"student_name"`
	StudentEmail         string    `gorm:"size:255" json:"student_email"`
	AttendancePercentage *float64  `json:"attendance_percentage"`
	ParticipationScore   *float64  `json:"participation_score"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Enrollment is the externally owned enrollment record read by the enrollment provider.
type Enrollment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SessionID    uint      `gorm:"not null;index" json:"session_id"`
	StudentName  string    `gorm:"size:255;not null" json:"student_name"`
	StudentEmail string    `gorm:"size:255;not null" json:"student_email"`
	Status       string    `gorm:"size:32;not null;default:active" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EnrollmentStatusActive marks enrollments that should receive progress rows.
const EnrollmentStatusActive = "active"

// ComponentProgress is the per-student, per-component mutable state.
type ComponentProgress struct {
	ID                    uint             `gorm:"primaryKey" json:"id"`
	SessionID             uint             `gorm:"not null;uniqueIndex:idx_progress_key,priority:1" json:"session_id"`
	EnrollmentID          uint             `gorm:"not null;uniqueIndex:idx_progress_key,priority:2" json:"enrollment_id"`
	ComponentID           uint             `gorm:"not null;uniqueIndex:idx_progress_key,priority:3;index" json:"component_id"`
	Status                ProgressStatus   `gorm:"size:32;not null;default:NOT_STARTED" json:"status"`
	AttendanceStatus      AttendanceStatus `gorm:"size:32;not null;default:REGISTERED" json:"attendance_status"`
	StartTime             *time.Time       `json:"start_time"`
	EndTime               *time.Time       `json:"end_time"`
	ActualDurationMinutes *int             `json:"actual_duration_minutes"`
	Score                 *float64         `json:"score"`
	Passed                *bool            `json:"passed"`
	Attempts              int              `gorm:"not null;default:0" json:"attempts"`
	ParticipationScore    *float64         `json:"participation_score"`
	InstructorNotes       string           `gorm:"type:text" json:"instructor_notes"`
	ParticipantFeedback   string           `gorm:"type:text" json:"participant_feedback"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// DurationMinutes derives the elapsed minutes between start and end when both are known.
func (p ComponentProgress) DurationMinutes() *int {
	if p.StartTime == nil || p.EndTime == nil {
		return nil
	}
	minutes := int(p.EndTime.Sub(*p.StartTime) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	return &minutes
}

// ProgressEvent is the audit record of a single status transition.
type ProgressEvent struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	EventID        string            `gorm:"size:64;uniqueIndex;not null" json:"event_id"`
	SessionID      uint              `gorm:"not null;index" json:"session_id"`
	EnrollmentID   uint              `gorm:"not null;index" json:"enrollment_id"`
	ComponentID    uint              `gorm:"not null" json:"component_id"`
	PreviousStatus ProgressStatus    `gorm:"size:32;not null" json:"previous_status"`
	NewStatus      ProgressStatus    `gorm:"size:32;not null" json:"new_status"`
	Score          *float64          `json:"score"`
	Attempts       int               `json:"attempts"`
	ActorID        uint              `json:"actor_id"`
	OccurredAt     time.Time         `gorm:"not null;index" json:"occurred_at"`
	Metadata       datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt      time.Time         `json:"created_at"`
}
