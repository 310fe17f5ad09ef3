package dto

import (
	"time"

	"github.com/noah-isme/training-progress-api/internal/models"
)

// SessionEnrollmentRequest lists a student to enrol when instantiating a session.
type SessionEnrollmentRequest struct {
	EnrollmentID uint   `json:"enrollment_id" validate:"required"`
	StudentName  string `json:"student_name" validate:"omitempty,max=255"`
	StudentEmail string `json:"student_email" validate:"omitempty,email,max=255"`
}

// SessionInstantiateRequest creates a session from a template. When Enrollments is empty
// the active roster is read from the enrollment provider.
type SessionInstantiateRequest struct {
	SessionID   uint                       `json:"session_id" validate:"required"`
	Title       string                     `json:"title" validate:"omitempty,max=255"`
	StartsAt    *time.Time                 `json:"starts_at"`
	Enrollments []SessionEnrollmentRequest `json:"enrollments" validate:"omitempty,dive"`
}

// EnrollmentOverrideRequest sets directly entered roll-up values. Nil clears the override.
type EnrollmentOverrideRequest struct {
	AttendancePercentage *float64 `json:"attendance_percentage" validate:"omitempty,gte=0,lte=100"`
	ParticipationScore   *float64 `json:"participation_score" validate:"omitempty,gte=0,lte=100"`
}

// SessionEnrollmentResponse serializes an enrollment snapshot.
type SessionEnrollmentResponse struct {
	EnrollmentID         uint     `json:"enrollment_id"`
	StudentName          string   `json:"student_name"`
	StudentEmail         string   `json:"student_email"`
	AttendancePercentage *float64 `json:"attendance_percentage,omitempty"`
	ParticipationScore   *float64 `json:"participation_score,omitempty"`
}

// SessionResponse serializes an instantiated session.
type SessionResponse struct {
	ID          uint                        `json:"id"`
	TemplateID  uint                        `json:"template_id"`
	Title       string                      `json:"title"`
	StartsAt    *time.Time                  `json:"starts_at,omitempty"`
	Enrollments []SessionEnrollmentResponse `json:"enrollments"`
	CreatedAt   time.Time                   `json:"created_at"`
}

// NewSessionEnrollmentResponse converts an enrollment snapshot.
func NewSessionEnrollmentResponse(enrollment models.SessionEnrollment) SessionEnrollmentResponse {
	return SessionEnrollmentResponse{
		EnrollmentID:         enrollment.EnrollmentID,
		StudentName:          enrollment.StudentName,
		StudentEmail:         enrollment.StudentEmail,
		AttendancePercentage: enrollment.AttendancePercentage,
		ParticipationScore:   enrollment.ParticipationScore,
	}
}

// NewSessionResponse converts a session model.
func NewSessionResponse(session models.SessionInstance) SessionResponse {
	enrollments := make([]SessionEnrollmentResponse, 0, len(session.Enrollments))
	for _, enrollment := range session.Enrollments {
		enrollments = append(enrollments, NewSessionEnrollmentResponse(enrollment))
	}
	return SessionResponse{
		ID:          session.ID,
		TemplateID:  session.TemplateID,
		Title:       session.Title,
		StartsAt:    session.StartsAt,
		Enrollments: enrollments,
		CreatedAt:   session.CreatedAt,
	}
}
