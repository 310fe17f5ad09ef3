package progress

import (
	"sort"
	"strings"

	"github.com/noah-isme/training-progress-api/internal/models"
)

// NewTemplate validates the component list and assembles an ordered template.
func NewTemplate(name, description string, components []models.ComponentDefinition) (models.SessionTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.SessionTemplate{}, validationError("template name is required")
	}

	if err := ValidateComponents(components); err != nil {
		return models.SessionTemplate{}, err
	}

	ordered := make([]models.ComponentDefinition, len(components))
	copy(ordered, components)
	for i := range ordered {
		if ordered[i].MaxAttempts == 0 {
			ordered[i].MaxAttempts = models.DefaultMaxAttempts
		}
		ordered[i].Title = strings.TrimSpace(ordered[i].Title)
	}
	SortComponents(ordered)

	return models.SessionTemplate{
		Name:                 name,
		Description:          strings.TrimSpace(description),
		TotalDurationMinutes: TotalDuration(ordered),
		Components:           ordered,
	}, nil
}

// ValidateComponents checks the per-component constraints and that sequence orders form
// a duplicate-free, strictly increasing sequence once sorted.
func ValidateComponents(components []models.ComponentDefinition) error {
	if len(components) == 0 {
		return validationError("template must contain at least one component")
	}

	seen := make(map[int]struct{}, len(components))
	for idx, component := range components {
		if !component.Type.Valid() {
			return validationError("component %d has unsupported type %q", idx, component.Type)
		}
		if component.SequenceOrder <= 0 {
			return validationError("component %d has non-positive sequence order %d", idx, component.SequenceOrder)
		}
		if _, exists := seen[component.SequenceOrder]; exists {
			return validationError("duplicate sequence order %d", component.SequenceOrder)
		}
		seen[component.SequenceOrder] = struct{}{}

		if component.DurationMinutes < 0 {
			return validationError("component %d has negative duration", idx)
		}
		if component.MaxAttempts < 0 {
			return validationError("component %d has negative max attempts", idx)
		}
		if component.PassingScore != nil && !inScoreRange(*component.PassingScore) {
			return validationError("component %d passing score must be between 0 and 100", idx)
		}
	}

	return nil
}

// SortComponents orders components by ascending sequence order in place.
func SortComponents(components []models.ComponentDefinition) {
	sort.SliceStable(components, func(i, j int) bool {
		return components[i].SequenceOrder < components[j].SequenceOrder
	})
}

// TotalDuration sums planned component durations.
func TotalDuration(components []models.ComponentDefinition) int {
	total := 0
	for _, component := range components {
		total += component.DurationMinutes
	}
	return total
}

// Reorder moves a component to newOrder by swapping sequence orders with the component
// currently occupying that position. The input template is not modified.
func Reorder(template models.SessionTemplate, componentID uint, newOrder int) (models.SessionTemplate, error) {
	components := make([]models.ComponentDefinition, len(template.Components))
	copy(components, template.Components)

	target := -1
	occupant := -1
	for idx, component := range components {
		if component.ID == componentID {
			target = idx
		}
		if component.SequenceOrder == newOrder {
			occupant = idx
		}
	}

	if target < 0 {
		return models.SessionTemplate{}, notFoundError("component %d not in template %d", componentID, template.ID)
	}
	if occupant < 0 {
		return models.SessionTemplate{}, notFoundError("no component at sequence order %d in template %d", newOrder, template.ID)
	}

	if target != occupant {
		components[target].SequenceOrder, components[occupant].SequenceOrder =
			components[occupant].SequenceOrder, components[target].SequenceOrder
	}
	SortComponents(components)

	reordered := template
	reordered.Components = components
	reordered.TotalDurationMinutes = TotalDuration(components)
	return reordered, nil
}

// Instantiate creates one NOT_STARTED progress row per enrollment and component.
func Instantiate(sessionID uint, template models.SessionTemplate, enrollments []uint) ([]models.ComponentProgress, error) {
	if sessionID == 0 {
		return nil, validationError("session id is required")
	}
	if len(template.Components) == 0 {
		return nil, validationError("template %d has no components", template.ID)
	}
	if len(enrollments) == 0 {
		return nil, validationError("at least one enrollment is required")
	}

	components := make([]models.ComponentDefinition, len(template.Components))
	copy(components, template.Components)
	SortComponents(components)

	seen := make(map[uint]struct{}, len(enrollments))
	rows := make([]models.ComponentProgress, 0, len(enrollments)*len(components))
	for _, enrollmentID := range enrollments {
		if enrollmentID == 0 {
			return nil, validationError("enrollment id must be positive")
		}
		if _, dup := seen[enrollmentID]; dup {
			return nil, validationError("duplicate enrollment %d", enrollmentID)
		}
		seen[enrollmentID] = struct{}{}

		for _, component := range components {
			rows = append(rows, models.ComponentProgress{
				SessionID:        sessionID,
				EnrollmentID:     enrollmentID,
				ComponentID:      component.ID,
				Status:           models.ProgressStatusNotStarted,
				AttendanceStatus: models.AttendanceStatusRegistered,
				Attempts:         0,
			})
		}
	}

	return rows, nil
}
