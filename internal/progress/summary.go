package progress

import (
	"sort"

	"github.com/noah-isme/training-progress-api/internal/models"
)

// ComponentBreakdown is the distribution of student progress across a single component.
type ComponentBreakdown struct {
	Component              models.ComponentDefinition
	Total                  int
	StatusCounts           map[models.ProgressStatus]int
	AttendanceCounts       map[models.AttendanceStatus]int
	AverageScore           *float64
	PassRate               *float64
	AverageDurationMinutes *float64
}

// SessionSummary aggregates every student's roll-up for one session.
type SessionSummary struct {
	SessionID         uint
	TotalStudents     int
	StatusCounts      map[models.OverallStatus]int
	AverageCompletion float64
	AverageAttendance *float64
	AverageScore      *float64
	Misconfigured     bool
	Students          []StudentProgress
	Components        []ComponentBreakdown
}

// BreakdownComponent tallies the records that belong to the given component.
func BreakdownComponent(component models.ComponentDefinition, records []models.ComponentProgress) ComponentBreakdown {
	breakdown := ComponentBreakdown{
		Component:        component,
		StatusCounts:     make(map[models.ProgressStatus]int, len(models.ProgressStatuses)),
		AttendanceCounts: make(map[models.AttendanceStatus]int, len(models.AttendanceStatuses)),
	}
	for _, status := range models.ProgressStatuses {
		breakdown.StatusCounts[status] = 0
	}
	for _, status := range models.AttendanceStatuses {
		breakdown.AttendanceCounts[status] = 0
	}

	var (
		scores    []float64
		durations []float64
		passed    int
		resolved  int
	)
	for _, record := range records {
		if record.ComponentID != component.ID {
			continue
		}
		breakdown.Total++
		breakdown.StatusCounts[record.Status]++
		breakdown.AttendanceCounts[record.AttendanceStatus]++

		if record.Score != nil {
			scores = append(scores, *record.Score)
		}
		if minutes := record.DurationMinutes(); minutes != nil {
			durations = append(durations, float64(*minutes))
		}
		switch record.Status {
		case models.ProgressStatusPassed:
			passed++
			resolved++
		case models.ProgressStatusFailed:
			resolved++
		}
	}

	breakdown.AverageScore = mean(scores)
	breakdown.AverageDurationMinutes = mean(durations)
	if component.HasAssessment && resolved > 0 {
		breakdown.PassRate = floatPointer(float64(passed) / float64(resolved))
	}

	return breakdown
}

// SummarizeSession derives every student's roll-up plus per-component breakdowns from
// the same set of records.
func SummarizeSession(sessionID uint, components []models.ComponentDefinition, students []StudentIdentity, records []models.ComponentProgress) SessionSummary {
	ordered := make([]models.ComponentDefinition, len(components))
	copy(ordered, components)
	SortComponents(ordered)

	summary := SessionSummary{
		SessionID:     sessionID,
		TotalStudents: len(students),
		StatusCounts:  make(map[models.OverallStatus]int, len(models.OverallStatuses)),
		Students:      make([]StudentProgress, 0, len(students)),
		Components:    make([]ComponentBreakdown, 0, len(ordered)),
	}
	for _, status := range models.OverallStatuses {
		summary.StatusCounts[status] = 0
	}

	roster := make([]StudentIdentity, len(students))
	copy(roster, students)
	sort.SliceStable(roster, func(i, j int) bool {
		return roster[i].EnrollmentID < roster[j].EnrollmentID
	})

	var (
		completion float64
		attendance []float64
		scores     []float64
	)
	for _, student := range roster {
		aggregate := AggregateStudent(student, ordered, records)
		summary.Students = append(summary.Students, aggregate)
		summary.StatusCounts[aggregate.OverallStatus]++
		completion += aggregate.CompletionPercentage
		if aggregate.Misconfigured {
			summary.Misconfigured = true
		}
		if aggregate.AttendancePercentage != nil {
			attendance = append(attendance, *aggregate.AttendancePercentage)
		}
		if aggregate.OverallScore != nil {
			scores = append(scores, *aggregate.OverallScore)
		}
	}

	if len(roster) > 0 {
		summary.AverageCompletion = completion / float64(len(roster))
	}
	summary.AverageAttendance = mean(attendance)
	summary.AverageScore = mean(scores)

	for _, component := range ordered {
		summary.Components = append(summary.Components, BreakdownComponent(component, records))
	}

	return summary
}
