package models

// ComponentType enumerates the kinds of slots a session template can hold.
type ComponentType string

const (
	ComponentTypeCourse     ComponentType = "COURSE"
	ComponentTypeBreak      ComponentType = "BREAK"
	ComponentTypeLunch      ComponentType = "LUNCH"
	ComponentTypeAssessment ComponentType = "ASSESSMENT"
	ComponentTypeActivity   ComponentType = "ACTIVITY"
)

// Valid returns true when the component type is supported.
func (t ComponentType) Valid() bool {
	switch t {
	case ComponentTypeCourse, ComponentTypeBreak, ComponentTypeLunch, ComponentTypeAssessment, ComponentTypeActivity:
		return true
	default:
		return false
	}
}

// ProgressStatus is the lifecycle status of a single component for a single student.
type ProgressStatus string

const (
	ProgressStatusNotStarted ProgressStatus = "NOT_STARTED"
	ProgressStatusInProgress ProgressStatus = "IN_PROGRESS"
	ProgressStatusCompleted  ProgressStatus = "COMPLETED"
	ProgressStatusPassed     ProgressStatus = "PASSED"
	ProgressStatusFailed     ProgressStatus = "FAILED"
	ProgressStatusSkipped    ProgressStatus = "SKIPPED"
	ProgressStatusExcused    ProgressStatus = "EXCUSED"
)

// ProgressStatuses lists every status in lifecycle order.
var ProgressStatuses = []ProgressStatus{
	ProgressStatusNotStarted,
	ProgressStatusInProgress,
	ProgressStatusCompleted,
	ProgressStatusPassed,
	ProgressStatusFailed,
	ProgressStatusSkipped,
	ProgressStatusExcused,
}

// Valid returns true when the status is a supported value.
func (s ProgressStatus) Valid() bool {
	switch s {
	case ProgressStatusNotStarted, ProgressStatusInProgress, ProgressStatusCompleted,
		ProgressStatusPassed, ProgressStatusFailed, ProgressStatusSkipped, ProgressStatusExcused:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further status transition is permitted.
func (s ProgressStatus) IsTerminal() bool {
	switch s {
	case ProgressStatusCompleted, ProgressStatusPassed, ProgressStatusFailed, ProgressStatusSkipped, ProgressStatusExcused:
		return true
	default:
		return false
	}
}

// CountsTowardCompletion reports whether the status counts as a completed mandatory component.
func (s ProgressStatus) CountsTowardCompletion() bool {
	switch s {
	case ProgressStatusCompleted, ProgressStatusPassed, ProgressStatusFailed:
		return true
	default:
		return false
	}
}

// AttendanceStatus tracks presence independently from the completion lifecycle.
type AttendanceStatus string

const (
	AttendanceStatusRegistered     AttendanceStatus = "REGISTERED"
	AttendanceStatusPresent        AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent         AttendanceStatus = "ABSENT"
	AttendanceStatusLate           AttendanceStatus = "LATE"
	AttendanceStatusEarlyDeparture AttendanceStatus = "EARLY_DEPARTURE"
	AttendanceStatusExcused        AttendanceStatus = "EXCUSED"
)

// AttendanceStatuses lists every attendance status.
var AttendanceStatuses = []AttendanceStatus{
	AttendanceStatusRegistered,
	AttendanceStatusPresent,
	AttendanceStatusAbsent,
	AttendanceStatusLate,
	AttendanceStatusEarlyDeparture,
	AttendanceStatusExcused,
}

// Valid returns true when the attendance status is supported.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusRegistered, AttendanceStatusPresent, AttendanceStatusAbsent,
		AttendanceStatusLate, AttendanceStatusEarlyDeparture, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// Attended reports whether the student was physically present for at least part of the component.
func (s AttendanceStatus) Attended() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusLate, AttendanceStatusEarlyDeparture:
		return true
	default:
		return false
	}
}

// Marked reports whether an instructor has recorded attendance that counts toward the percentage.
func (s AttendanceStatus) Marked() bool {
	return s != AttendanceStatusRegistered && s != AttendanceStatusExcused && s.Valid()
}

// OverallStatus is the derived roll-up status for a student within a session.
type OverallStatus string

const (
	OverallStatusNotStarted OverallStatus = "NOT_STARTED"
	OverallStatusInProgress OverallStatus = "IN_PROGRESS"
	OverallStatusCompleted  OverallStatus = "COMPLETED"
	OverallStatusPassed     OverallStatus = "PASSED"
	OverallStatusFailed     OverallStatus = "FAILED"
)

// OverallStatuses lists every overall status.
var OverallStatuses = []OverallStatus{
	OverallStatusNotStarted,
	OverallStatusInProgress,
	OverallStatusCompleted,
	OverallStatusPassed,
	OverallStatusFailed,
}

// Successful reports whether the overall status counts as a pass.
func (s OverallStatus) Successful() bool {
	return s == OverallStatusPassed || s == OverallStatusCompleted
}
