package progress

import (
	"github.com/noah-isme/training-progress-api/internal/models"
)

// StudentIdentity carries the enrollment snapshot and any directly entered roll-up values.
type StudentIdentity struct {
	EnrollmentID         uint
	Name                 string
	Email                string
	AttendancePercentage *float64
	ParticipationScore   *float64
}

// ComponentProgressView pairs a progress record with the definition it refers to.
type ComponentProgressView struct {
	Component models.ComponentDefinition
	Progress  models.ComponentProgress
}

// StudentProgress is the derived roll-up for one student in one session.
type StudentProgress struct {
	EnrollmentID         uint
	StudentName          string
	StudentEmail         string
	OverallStatus        models.OverallStatus
	OverallScore         *float64
	OverallPassed        *bool
	CompletionPercentage float64
	AttendancePercentage *float64
	ParticipationScore   *float64
	Misconfigured        bool
	Components           []ComponentProgressView
}

// AggregateStudent derives a student's roll-up from their progress records. Records for
// other enrollments or unknown components are ignored; a component without a record is
// treated as NOT_STARTED.
func AggregateStudent(student StudentIdentity, components []models.ComponentDefinition, records []models.ComponentProgress) StudentProgress {
	ordered := make([]models.ComponentDefinition, len(components))
	copy(ordered, components)
	SortComponents(ordered)

	byComponent := make(map[uint]models.ComponentProgress, len(records))
	for _, record := range records {
		if record.EnrollmentID != student.EnrollmentID {
			continue
		}
		byComponent[record.ComponentID] = record
	}

	result := StudentProgress{
		EnrollmentID: student.EnrollmentID,
		StudentName:  student.Name,
		StudentEmail: student.Email,
		Components:   make([]ComponentProgressView, 0, len(ordered)),
	}

	var (
		mandatory     int
		notStarted    int
		terminal      int
		counted       int
		assessed      int
		failed        bool
		passed        bool
		scoreTotal    float64
		scoreCount    int
		attended      int
		marked        int
		participation []float64
	)

	for _, component := range ordered {
		record, ok := byComponent[component.ID]
		if !ok {
			record = models.ComponentProgress{
				EnrollmentID:     student.EnrollmentID,
				ComponentID:      component.ID,
				Status:           models.ProgressStatusNotStarted,
				AttendanceStatus: models.AttendanceStatusRegistered,
			}
		}
		result.Components = append(result.Components, ComponentProgressView{Component: component, Progress: record})

		if record.ParticipationScore != nil {
			participation = append(participation, *record.ParticipationScore)
		}

		if !component.IsMandatory {
			continue
		}
		mandatory++

		switch {
		case record.Status == models.ProgressStatusNotStarted:
			notStarted++
		case record.Status.IsTerminal():
			terminal++
		}
		if record.Status.CountsTowardCompletion() {
			counted++
		}

		if record.AttendanceStatus.Marked() {
			marked++
			if record.AttendanceStatus.Attended() {
				attended++
			}
		}

		if !component.HasAssessment {
			continue
		}
		assessed++
		switch record.Status {
		case models.ProgressStatusFailed:
			failed = true
		case models.ProgressStatusPassed:
			passed = true
		}
		if record.Score != nil {
			scoreTotal += *record.Score
			scoreCount++
		}
	}

	if mandatory == 0 {
		result.Misconfigured = true
		result.OverallStatus = models.OverallStatusNotStarted
	} else {
		result.CompletionPercentage = float64(counted) / float64(mandatory)
		result.OverallStatus = overallStatus(mandatory, notStarted, terminal, assessed, failed, passed)
	}

	if scoreCount > 0 {
		result.OverallScore = floatPointer(scoreTotal / float64(scoreCount))
	}

	switch result.OverallStatus {
	case models.OverallStatusPassed, models.OverallStatusCompleted:
		result.OverallPassed = boolPointer(true)
	case models.OverallStatusFailed:
		result.OverallPassed = boolPointer(false)
	}

	if student.AttendancePercentage != nil {
		result.AttendancePercentage = floatPointer(*student.AttendancePercentage)
	} else if marked > 0 {
		result.AttendancePercentage = floatPointer(float64(attended) / float64(marked) * 100)
	}

	if student.ParticipationScore != nil {
		result.ParticipationScore = floatPointer(*student.ParticipationScore)
	} else {
		result.ParticipationScore = mean(participation)
	}

	return result
}

func overallStatus(mandatory, notStarted, terminal, assessed int, failed, passed bool) models.OverallStatus {
	switch {
	case failed:
		return models.OverallStatusFailed
	case notStarted == mandatory:
		return models.OverallStatusNotStarted
	case terminal < mandatory:
		return models.OverallStatusInProgress
	case passed:
		return models.OverallStatusPassed
	case assessed > 0:
		// every mandatory assessment was skipped or excused, so nothing was passed
		return models.OverallStatusFailed
	default:
		return models.OverallStatusCompleted
	}
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	total := 0.0
	for _, value := range values {
		total += value
	}
	avg := total / float64(len(values))
	return &avg
}

func boolPointer(v bool) *bool {
	return &v
}
