package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/training-progress-api/internal/models"
)

// EnrollmentRepository reads the externally owned enrollment roster.
type EnrollmentRepository interface {
	ListActiveBySession(ctx context.Context, sessionID uint) ([]models.Enrollment, error)
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository constructs the enrollment reader.
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) ListActiveBySession(ctx context.Context, sessionID uint) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND status = ?", sessionID, models.EnrollmentStatusActive).
		Order("id ASC").
		Find(&enrollments).Error; err != nil {
		return nil, err
	}
	return enrollments, nil
}
