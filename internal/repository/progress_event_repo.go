package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/training-progress-api/internal/models"
)

// ProgressEventFilter narrows audit trail queries.
type ProgressEventFilter struct {
	SessionID    uint
	EnrollmentID *uint
	ComponentID  *uint
	Page         int
	PageSize     int
}

// ProgressEventRepository stores the transition audit trail.
type ProgressEventRepository interface {
	CreateBatch(ctx context.Context, events []models.ProgressEvent) error
	List(ctx context.Context, filter ProgressEventFilter) ([]models.ProgressEvent, int64, error)
}

type progressEventRepository struct {
	db *gorm.DB
}

// NewProgressEventRepository constructs the audit repository.
func NewProgressEventRepository(db *gorm.DB) ProgressEventRepository {
	return &progressEventRepository{db: db}
}

func (r *progressEventRepository) CreateBatch(ctx context.Context, events []models.ProgressEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&events).Error
}

func (r *progressEventRepository) List(ctx context.Context, filter ProgressEventFilter) ([]models.ProgressEvent, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ProgressEvent{}).Where("session_id = ?", filter.SessionID)

	if filter.EnrollmentID != nil {
		query = query.Where("enrollment_id = ?", *filter.EnrollmentID)
	}
	if filter.ComponentID != nil {
		query = query.Where("component_id = ?", *filter.ComponentID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var events []models.ProgressEvent
	if err := query.Order("occurred_at DESC, id DESC").Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}
