package dto

import (
	"time"

	"github.com/noah-isme/training-progress-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// ComponentDefinitionRequest describes one component of a template payload.
type ComponentDefinitionRequest struct {
	Type            string   `json:"type" validate:"required,oneof=COURSE BREAK LUNCH ASSESSMENT ACTIVITY"`
	Title           string   `json:"title" validate:"omitempty,max=255"`
	SequenceOrder   int      `json:"sequence_order" validate:"required,gte=1"`
	DurationMinutes int      `json:"duration_minutes" validate:"gte=0"`
	IsMandatory     bool     `json:"is_mandatory"`
	HasAssessment   bool     `json:"has_assessment"`
	MaxAttempts     int      `json:"max_attempts" validate:"gte=0"`
	PassingScore    *float64 `json:"passing_score" validate:"omitempty,gte=0,lte=100"`
}

// TemplateCreateRequest is the payload for creating a session template.
type TemplateCreateRequest struct {
	Name        string                       `json:"name" validate:"required,max=255"`
	Description string                       `json:"description" validate:"omitempty,max=4000"`
	Components  []ComponentDefinitionRequest `json:"components" validate:"required,min=1,dive"`
}

// ToComponentDefinitions converts the payload into unsaved component models.
func (r TemplateCreateRequest) ToComponentDefinitions() []models.ComponentDefinition {
	components := make([]models.ComponentDefinition, 0, len(r.Components))
	for _, component := range r.Components {
		var passing *float64
		if component.PassingScore != nil {
			value := *component.PassingScore
			passing = &value
		}
		components = append(components, models.ComponentDefinition{
			Type:            models.ComponentType(component.Type),
			Title:           component.Title,
			SequenceOrder:   component.SequenceOrder,
			DurationMinutes: component.DurationMinutes,
			IsMandatory:     component.IsMandatory,
			HasAssessment:   component.HasAssessment,
			MaxAttempts:     component.MaxAttempts,
			PassingScore:    passing,
		})
	}
	return components
}

// TemplateListRequest captures query params for listing templates.
type TemplateListRequest struct {
	Page     int
	PageSize int
	Search   string
}

// ComponentReorderRequest moves a component to a new sequence position.
type ComponentReorderRequest struct {
	SequenceOrder int `json:"sequence_order" validate:"required,gte=1"`
}

// ComponentDefinitionResponse serializes a component definition.
type ComponentDefinitionResponse struct {
	ID              uint     `json:"id"`
	Type            string   `json:"type"`
	Title           string   `json:"title"`
	SequenceOrder   int      `json:"sequence_order"`
	DurationMinutes int      `json:"duration_minutes"`
	IsMandatory     bool     `json:"is_mandatory"`
	HasAssessment   bool     `json:"has_assessment"`
	MaxAttempts     int      `json:"max_attempts"`
	PassingScore    *float64 `json:"passing_score,omitempty"`
}

// TemplateResponse serializes a session template with its ordered components.
type TemplateResponse struct {
	ID                   uint                          `json:"id"`
	Name                 string                        `json:"name"`
	Description          string                        `json:"description"`
	TotalDurationMinutes int                           `json:"total_duration_minutes"`
	Components           []ComponentDefinitionResponse `json:"components"`
	CreatedAt            time.Time                     `json:"created_at"`
	UpdatedAt            time.Time                     `json:"updated_at"`
}

// TemplateListResult wraps paginated templates.
type TemplateListResult struct {
	Items      []TemplateResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// NewComponentDefinitionResponse converts a component definition.
func NewComponentDefinitionResponse(component models.ComponentDefinition) ComponentDefinitionResponse {
	var passing *float64
	if component.HasAssessment {
		value := component.EffectivePassingScore()
		passing = &value
	}
	return ComponentDefinitionResponse{
		ID:              component.ID,
		Type:            string(component.Type),
		Title:           component.Title,
		SequenceOrder:   component.SequenceOrder,
		DurationMinutes: component.DurationMinutes,
		IsMandatory:     component.IsMandatory,
		HasAssessment:   component.HasAssessment,
		MaxAttempts:     component.EffectiveMaxAttempts(),
		PassingScore:    passing,
	}
}

// NewTemplateResponse converts a template model.
func NewTemplateResponse(template models.SessionTemplate) TemplateResponse {
	components := make([]ComponentDefinitionResponse, 0, len(template.Components))
	for _, component := range template.Components {
		components = append(components, NewComponentDefinitionResponse(component))
	}
	return TemplateResponse{
		ID:                   template.ID,
		Name:                 template.Name,
		Description:          template.Description,
		TotalDurationMinutes: template.TotalDurationMinutes,
		Components:           components,
		CreatedAt:            template.CreatedAt,
		UpdatedAt:            template.UpdatedAt,
	}
}
