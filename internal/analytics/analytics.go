package analytics

import (
	"sort"
	"time"

	"elearning/internal/models"
)

// Number of days before the due date at which a task counts as due soon.
const dueSoonDays = 2

// GenerateOverview computes the administrator dashboard counters. Does not need/use any store
// connection.
func GenerateOverview(users []*models.UserProfile, classes []*models.ClassRoom, materials []*models.Material,
	tasks []*models.Task, submissions []*models.Submission) *models.Overview {
	overview := &models.Overview{
		Classes:   len(classes),
		Materials: len(materials),
		Tasks:     len(tasks),
	}

	for _, user := range users {
		if user.Role != models.RoleStudent {
			continue
		}
		switch user.Status {
		case models.StatusActive:
			overview.ActiveStudents++
		case models.StatusPending:
			overview.PendingStudents++
		}
	}

	var grades []int
	for _, submission := range submissions {
		if submission.Grade == nil {
			overview.UngradedSubmission++
		} else {
			grades = append(grades, *submission.Grade)
		}
	}
	overview.Grades = CalculatePercentiles(grades)

	return overview
}

// SummarizeClasses annotates each class with the number of active students whose ClassID matches
// the class name.
func SummarizeClasses(classes []*models.ClassRoom, users []*models.UserProfile) []*models.ClassSummary {
	counts := make(map[string]int)
	for _, user := range users {
		if user.Role == models.RoleStudent && user.Status == models.StatusActive {
			counts[user.ClassID]++
		}
	}

	summaries := make([]*models.ClassSummary, 0, len(classes))
	for _, class := range classes {
		summaries = append(summaries, &models.ClassSummary{ClassRoom: *class, StudentCount: counts[class.Name]})
	}
	return summaries
}

// DeadlineOf classifies a due date relative to now. Unparseable dates count as active.
func DeadlineOf(dueDate string, now time.Time) models.DeadlineStatus {
	due, err := time.ParseInLocation(models.DueDateLayout, dueDate, now.Location())
	if err != nil {
		return models.DeadlineActive
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	days := int(due.Sub(today).Hours() / 24)

	if due.Before(today) {
		return models.DeadlineExpired
	} else if days <= dueSoonDays {
		return models.DeadlineDueSoon
	}
	return models.DeadlineActive
}

// LevelFor maps an average grade to a level badge.
func LevelFor(average float64) models.GradeLevel {
	switch {
	case average >= 90:
		return models.LevelLegend
	case average >= 80:
		return models.LevelExpert
	case average >= 70:
		return models.LevelExplorer
	default:
		return models.LevelRising
	}
}

// GenerateStudentProgress computes a student's average over their graded submissions.
func GenerateStudentProgress(studentID string, submissions []*models.Submission) *models.StudentProgress {
	progress := &models.StudentProgress{StudentID: studentID}

	var total int
	for _, submission := range submissions {
		if submission.StudentID != studentID {
			continue
		}
		progress.SubmittedCount++
		if submission.Grade != nil {
			progress.GradedCount++
			total += *submission.Grade
		}
	}

	if progress.GradedCount > 0 {
		progress.Average = float64(total) / float64(progress.GradedCount)
	}
	progress.Level = LevelFor(progress.Average)

	return progress
}

func CalculatePercentiles(data []int) models.Percentiles {
	if len(data) == 0 {
		return models.Percentiles{}
	}

	sorted := make([]int, len(data))
	copy(sorted, data)
	sort.Ints(sorted)

	calculatePercentile := func(percentile float64) float64 {
		rank := percentile / 100 * float64(len(sorted)-1)
		rankInt := int(rank)

		// If the rank is an integer, return the value at that index
		if rank == float64(rankInt) {
			return float64(sorted[rankInt])
		}

		// Otherwise, linearly interpolate
		baseline := sorted[rankInt]
		interpolation := (rank - float64(rankInt)) * float64(sorted[rankInt+1]-sorted[rankInt])

		return float64(baseline) + interpolation
	}

	return models.Percentiles{
		P50: calculatePercentile(50),
		P90: calculatePercentile(90),
		P99: calculatePercentile(99),
	}
}
