package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/training-progress-api/internal/models"
)

// TemplateFilter narrows template listings.
type TemplateFilter struct {
	Search   string
	Page     int
	PageSize int
}

// TemplateRepository persists session templates and their component definitions.
type TemplateRepository interface {
	Create(ctx context.Context, template *models.SessionTemplate) error
	GetByID(ctx context.Context, id uint) (models.SessionTemplate, error)
	List(ctx context.Context, filter TemplateFilter) ([]models.SessionTemplate, int64, error)
	MutateOrdering(ctx context.Context, id uint, fn func(models.SessionTemplate) (models.SessionTemplate, error)) (models.SessionTemplate, error)
}

type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository constructs a template repository.
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.SessionTemplate{}).
		Preload("Components", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence_order ASC")
		})
}

func (r *templateRepository) Create(ctx context.Context, template *models.SessionTemplate) error {
	return r.db.WithContext(ctx).Create(template).Error
}

func (r *templateRepository) GetByID(ctx context.Context, id uint) (models.SessionTemplate, error) {
	var template models.SessionTemplate
	if err := r.baseQuery(ctx).First(&template, id).Error; err != nil {
		return models.SessionTemplate{}, err
	}
	return template, nil
}

func (r *templateRepository) List(ctx context.Context, filter TemplateFilter) ([]models.SessionTemplate, int64, error) {
	query := r.baseQuery(ctx)

	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
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

	var templates []models.SessionTemplate
	if err := query.Order("created_at DESC").Find(&templates).Error; err != nil {
		return nil, 0, err
	}
	return templates, total, nil
}

// MutateOrdering locks the template row, hands the current template to fn and writes back
// every component's sequence order and the template duration in the same transaction.
func (r *templateRepository) MutateOrdering(ctx context.Context, id uint, fn func(models.SessionTemplate) (models.SessionTemplate, error)) (models.SessionTemplate, error) {
	var saved models.SessionTemplate
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.SessionTemplate
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Components", func(db *gorm.DB) *gorm.DB {
				return db.Order("sequence_order ASC")
			}).
			First(&current, id).Error; err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		for _, component := range next.Components {
			result := tx.Model(&models.ComponentDefinition{}).
				Where("id = ? AND template_id = ?", component.ID, current.ID).
				Update("sequence_order", component.SequenceOrder)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}

		if err := tx.Model(&models.SessionTemplate{}).
			Where("id = ?", current.ID).
			Update("total_duration_minutes", next.TotalDurationMinutes).Error; err != nil {
			return err
		}
		saved = next
		return nil
	})
	if err != nil {
		return models.SessionTemplate{}, err
	}
	return saved, nil
}
