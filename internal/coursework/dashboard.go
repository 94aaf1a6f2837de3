package coursework

import (
	"context"
	"sort"

	"elearning/internal/analytics"
	"elearning/internal/models"
)

type TaskFilter string

const (
	TasksAll       TaskFilter = "all"
	TasksPending   TaskFilter = "pending"
	TasksCompleted TaskFilter = "completed"
)

type TaskStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

type SubmissionStats struct {
	Total   int `json:"total"`
	Graded  int `json:"graded"`
	Pending int `json:"pending"`
}

// Overview computes the administrator dashboard counters.
func (s *Service) Overview(ctx context.Context) *models.Overview {
	return analytics.GenerateOverview(
		s.repo.ListUserProfiles(ctx),
		s.repo.ListClasses(ctx),
		s.repo.ListMaterials(ctx),
		s.repo.ListTasks(ctx),
		s.repo.ListSubmissions(ctx),
	)
}

// StudentTasks returns the tasks visible to a student with their deadline status and the student's
// current submission. Stats always cover every visible task.
func (s *Service) StudentTasks(ctx context.Context, student *models.UserProfile, filter TaskFilter) ([]*models.TaskWithStatus, TaskStats) {
	tasks := VisibleTasks(s.repo.ListTasks(ctx), student)
	submissions := s.repo.ListSubmissionsByStudent(ctx, student.ID)
	now := s.now()

	var stats TaskStats
	out := make([]*models.TaskWithStatus, 0, len(tasks))
	for _, task := range tasks {
		current := CurrentSubmission(submissions, task.ID, student.ID)

		stats.Total++
		if current != nil {
			stats.Completed++
		} else {
			stats.Pending++
		}

		if (filter == TasksPending && current != nil) || (filter == TasksCompleted && current == nil) {
			continue
		}
		out = append(out, &models.TaskWithStatus{
			Task:       *task,
			Deadline:   analytics.DeadlineOf(task.DueDate, now),
			Submission: current,
		})
	}
	return out, stats
}

// StudentProgress summarises a student's grades.
func (s *Service) StudentProgress(ctx context.Context, student *models.UserProfile) *models.StudentProgress {
	return analytics.GenerateStudentProgress(student.ID, s.repo.ListSubmissionsByStudent(ctx, student.ID))
}

// GradeReport returns the active students of a class, or of every class when className is empty,
// with their progress, sorted by name.
func (s *Service) GradeReport(ctx context.Context, className string) []*models.ReportRow {
	submissions := s.repo.ListSubmissions(ctx)

	var rows []*models.ReportRow
	for _, student := range s.repo.ListStudents(ctx) {
		if student.Status != models.StatusActive {
			continue
		}
		if className != "" && student.ClassID != className {
			continue
		}
		rows = append(rows, &models.ReportRow{
			Student:  *student,
			Progress: *analytics.GenerateStudentProgress(student.ID, submissions),
		})
	}
	return rows
}

// GradingQueue returns the submissions matching the filters, ungraded first and then newest first.
// Empty filters match everything.
func (s *Service) GradingQueue(ctx context.Context, className, taskID string) ([]*models.Submission, SubmissionStats) {
	classOf := make(map[string]string)
	for _, student := range s.repo.ListStudents(ctx) {
		classOf[student.ID] = student.ClassID
	}

	var stats SubmissionStats
	var queue []*models.Submission
	for _, submission := range s.repo.ListSubmissions(ctx) {
		if taskID != "" && submission.TaskID != taskID {
			continue
		}
		if className != "" && classOf[submission.StudentID] != className {
			continue
		}
		queue = append(queue, submission)
		stats.Total++
		if submission.IsGraded() {
			stats.Graded++
		} else {
			stats.Pending++
		}
	}

	sort.SliceStable(queue, func(i, j int) bool {
		a, b := queue[i], queue[j]
		if a.IsGraded() != b.IsGraded() {
			return !a.IsGraded()
		}
		return a.SubmittedAt.After(b.SubmittedAt)
	})
	return queue, stats
}
