package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/training-progress-api/internal/models"
)

// ProgressKey identifies a single student × component record within a session.
type ProgressKey struct {
	SessionID    uint
	EnrollmentID uint
	ComponentID  uint
}

// ComponentProgressRepository persists per-student component progress.
type ComponentProgressRepository interface {
	Get(ctx context.Context, key ProgressKey) (models.ComponentProgress, error)
	ListBySession(ctx context.Context, sessionID uint) ([]models.ComponentProgress, error)
	ListByEnrollment(ctx context.Context, sessionID, enrollmentID uint) ([]models.ComponentProgress, error)
	ListByComponent(ctx context.Context, sessionID, componentID uint) ([]models.ComponentProgress, error)
	// Mutate loads the row under a write lock, hands it to fn and saves the result in the
	// same transaction. When fn returns an error nothing is written.
	Mutate(ctx context.Context, key ProgressKey, fn func(record *models.ComponentProgress) error) (models.ComponentProgress, error)
}

type componentProgressRepository struct {
	db *gorm.DB
}

// NewComponentProgressRepository constructs the repository.
func NewComponentProgressRepository(db *gorm.DB) ComponentProgressRepository {
	return &componentProgressRepository{db: db}
}

func keyScope(key ProgressKey) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("session_id = ? AND enrollment_id = ? AND component_id = ?", key.SessionID, key.EnrollmentID, key.ComponentID)
	}
}

func (r *componentProgressRepository) Get(ctx context.Context, key ProgressKey) (models.ComponentProgress, error) {
	var record models.ComponentProgress
	if err := r.db.WithContext(ctx).Scopes(keyScope(key)).First(&record).Error; err != nil {
		return models.ComponentProgress{}, err
	}
	return record, nil
}

func (r *componentProgressRepository) ListBySession(ctx context.Context, sessionID uint) ([]models.ComponentProgress, error) {
	var records []models.ComponentProgress
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("enrollment_id ASC, component_id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *componentProgressRepository) ListByEnrollment(ctx context.Context, sessionID, enrollmentID uint) ([]models.ComponentProgress, error) {
	var records []models.ComponentProgress
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND enrollment_id = ?", sessionID, enrollmentID).
		Order("component_id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *componentProgressRepository) ListByComponent(ctx context.Context, sessionID, componentID uint) ([]models.ComponentProgress, error) {
	var records []models.ComponentProgress
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND component_id = ?", sessionID, componentID).
		Order("enrollment_id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *componentProgressRepository) Mutate(ctx context.Context, key ProgressKey, fn func(record *models.ComponentProgress) error) (models.ComponentProgress, error) {
	var updated models.ComponentProgress
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.ComponentProgress
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Scopes(keyScope(key)).
			First(&record).Error; err != nil {
			return err
		}

		if err := fn(&record); err != nil {
			return err
		}

		if err := tx.Save(&record).Error; err != nil {
			return err
		}
		updated = record
		return nil
	})
	if err != nil {
		return models.ComponentProgress{}, err
	}
	return updated, nil
}
