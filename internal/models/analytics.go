package models

// Percentiles is a generic struct for storing percentiles for any distribution of data.
type Percentiles struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P99 float64 `json:"p99"`
}

// Overview holds the counters shown on the administrator dashboard.
type Overview struct {
	ActiveStudents     int `json:"activeStudents"`
	PendingStudents    int `json:"pendingStudents"`
	Classes            int `json:"classes"`
	Materials          int `json:"materials"`
	Tasks              int `json:"tasks"`
	UngradedSubmission int `json:"ungradedSubmissions"`
	// Grades is the distribution of every recorded grade.
	Grades Percentiles `json:"grades"`
}

// ClassSummary is a ClassRoom together with the number of active students in it.
type ClassSummary struct {
	ClassRoom
	StudentCount int `json:"studentCount"`
}

type DeadlineStatus string

const (
	DeadlineActive  DeadlineStatus = "active"
	DeadlineDueSoon DeadlineStatus = "due_soon"
	DeadlineExpired DeadlineStatus = "expired"
)

type GradeLevel string

const (
	LevelLegend   GradeLevel = "Legend"
	LevelExpert   GradeLevel = "Expert"
	LevelExplorer GradeLevel = "Explorer"
	LevelRising   GradeLevel = "Rising"
)

// StudentProgress summarises a student's graded work.
type StudentProgress struct {
	StudentID      string     `json:"studentId"`
	GradedCount    int        `json:"gradedCount"`
	SubmittedCount int        `json:"submittedCount"`
	Average        float64    `json:"average"`
	Level          GradeLevel `json:"level"`
}

// TaskWithStatus is a Task annotated for a particular student.
type TaskWithStatus struct {
	Task
	Deadline   DeadlineStatus `json:"deadline"`
	Submission *Submission    `json:"submission,omitempty"`
}

// ReportRow is one line of the grade recap for a class.
type ReportRow struct {
	Student  UserProfile     `json:"student"`
	Progress StudentProgress `json:"progress"`
}
