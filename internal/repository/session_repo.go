package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/training-progress-api/internal/models"
)

const progressBatchSize = 200

// SessionRepository persists instantiated sessions together with their enrollment snapshots.
type SessionRepository interface {
	Exists(ctx context.Context, id uint) (bool, error)
	CreateWithProgress(ctx context.Context, session *models.SessionInstance, enrollments []models.SessionEnrollment, rows []models.ComponentProgress) error
	GetByID(ctx context.Context, id uint) (models.SessionInstance, error)
	ListRecent(ctx context.Context, limit int) ([]models.SessionInstance, error)
	GetEnrollment(ctx context.Context, sessionID, enrollmentID uint) (models.SessionEnrollment, error)
	UpdateEnrollment(ctx context.Context, enrollment *models.SessionEnrollment) error
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository constructs a session repository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var session models.SessionInstance
	err := r.db.WithContext(ctx).Select("id").First(&session, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *sessionRepository) CreateWithProgress(ctx context.Context, session *models.SessionInstance, enrollments []models.SessionEnrollment, rows []models.ComponentProgress) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Enrollments").Create(session).Error; err != nil {
			return err
		}
		if len(enrollments) > 0 {
			if err := tx.CreateInBatches(&enrollments, progressBatchSize).Error; err != nil {
				return err
			}
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(&rows, progressBatchSize).Error; err != nil {
				return err
			}
		}
		session.Enrollments = enrollments
		return nil
	})
}

func (r *sessionRepository) GetByID(ctx context.Context, id uint) (models.SessionInstance, error) {
	var session models.SessionInstance
	if err := r.db.WithContext(ctx).
		Preload("Enrollments", func(db *gorm.DB) *gorm.DB {
			return db.Order("enrollment_id ASC")
		}).
		First(&session, id).Error; err != nil {
		return models.SessionInstance{}, err
	}
	return session, nil
}

func (r *sessionRepository) ListRecent(ctx context.Context, limit int) ([]models.SessionInstance, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var sessions []models.SessionInstance
	if err := query.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepository) GetEnrollment(ctx context.Context, sessionID, enrollmentID uint) (models.SessionEnrollment, error) {
	var enrollment models.SessionEnrollment
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND enrollment_id = ?", sessionID, enrollmentID).
		First(&enrollment).Error; err != nil {
		return models.SessionEnrollment{}, err
	}
	return enrollment, nil
}

func (r *sessionRepository) UpdateEnrollment(ctx context.Context, enrollment *models.SessionEnrollment) error {
	return r.db.WithContext(ctx).Save(enrollment).Error
}
