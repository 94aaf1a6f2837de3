package coursework

import (
	"context"
	"strings"

	"elearning/internal/models"
	"elearning/internal/qerrors"
	"elearning/internal/repository"
	"elearning/internal/validation"
)

// Submit records a student's submission for a task. Tasks that take submissions need a link;
// others are marked done with DefaultSubmissionContent.
func (s *Service) Submit(ctx context.Context, student *models.UserProfile, req *models.SubmitTaskRequest) (*models.Submission, error) {
	req.StudentID = student.ID
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	task, err := s.repo.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}
	if student.IsAdmin() || !VisibleTo(student, task.TargetClassIDs) {
		return nil, qerrors.SubmissionNotVisibleError
	}

	content := strings.TrimSpace(req.Content)
	if task.IsSubmissionEnabled {
		if content == "" {
			return nil, validation.Field("content", "a link to your work is required")
		}
		if !validation.IsHTTPURL(content) {
			return nil, validation.Field("content", "must be a link starting with http:// or https://")
		}
	} else if content == "" {
		content = DefaultSubmissionContent
	}

	// Submissions stored before composite IDs were used have their own IDs.
	existing := CurrentSubmission(s.repo.ListSubmissionsByStudent(ctx, student.ID), task.ID, student.ID)
	if existing != nil {
		return nil, qerrors.AlreadySubmittedError
	}

	submission := &models.Submission{
		ID:          models.SubmissionID(task.ID, student.ID),
		TaskID:      task.ID,
		StudentID:   student.ID,
		Content:     content,
		SubmittedAt: s.now(),
	}
	if err := s.repo.InsertSubmission(ctx, submission); err != nil {
		return nil, err
	}
	return submission, nil
}

// Grade sets a submission's grade and feedback, then notifies the student once.
func (s *Service) Grade(ctx context.Context, req *models.GradeSubmissionRequest) (*models.Submission, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	submission, err := s.repo.GetSubmission(ctx, req.SubmissionID)
	if err != nil {
		return nil, err
	}

	grade := *req.Grade
	if err := s.repo.SaveGrade(ctx, submission.ID, grade, req.Feedback); err != nil {
		return nil, err
	}
	submission.Grade = &grade
	submission.Feedback = req.Feedback

	s.notifier.Graded(ctx, submission.StudentID, grade)
	return submission, nil
}

// DeleteSubmission lets a task be submitted again.
func (s *Service) DeleteSubmission(ctx context.Context, id string) error {
	if _, err := s.repo.GetSubmission(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteSubmission(ctx, id)
}

// SubmissionsFor returns every submission for administrators and a student's own for students.
func (s *Service) SubmissionsFor(ctx context.Context, user *models.UserProfile) []*models.Submission {
	if user.IsAdmin() {
		return s.repo.ListSubmissions(ctx)
	}
	return s.repo.ListSubmissionsByStudent(ctx, user.ID)
}

// CurrentSubmission picks the submission that counts for (taskID, studentID): the earliest one,
// ties broken by ID. It returns nil when there is none.
func CurrentSubmission(submissions []*models.Submission, taskID, studentID string) *models.Submission {
	var matches []*models.Submission
	for _, submission := range submissions {
		if submission.TaskID == taskID && submission.StudentID == studentID {
			matches = append(matches, submission)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	repository.SortSubmissions(matches)
	return matches[0]
}
