package repository

import (
	"context"
	"sort"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"elearning/internal/models"
	"elearning/internal/qerrors"
	"elearning/internal/store"
)

func (r *Repository) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	doc := r.FetchOne(ctx, models.FirestoreSubmissionsCollection, id)
	if doc == nil {
		return nil, qerrors.SubmissionNotFoundError
	}
	var submission models.Submission
	if err := decode(doc, &submission); err != nil {
		return nil, err
	}
	return &submission, nil
}

// ListSubmissions returns every submission, oldest first.
func (r *Repository) ListSubmissions(ctx context.Context) []*models.Submission {
	return decodeSubmissions(r.FetchAll(ctx, models.FirestoreSubmissionsCollection))
}

// ListSubmissionsByStudent returns a student's own submissions, oldest first.
func (r *Repository) ListSubmissionsByStudent(ctx context.Context, studentID string) []*models.Submission {
	return decodeSubmissions(r.FetchWhere(ctx, models.FirestoreSubmissionsCollection, "studentId", studentID))
}

// ListSubmissionsByTask returns the submissions for a task, oldest first.
func (r *Repository) ListSubmissionsByTask(ctx context.Context, taskID string) []*models.Submission {
	return decodeSubmissions(r.FetchWhere(ctx, models.FirestoreSubmissionsCollection, "taskId", taskID))
}

// InsertSubmission stores a new submission under its composite ID. It fails with
// qerrors.AlreadySubmittedError if the student already submitted the task.
func (r *Repository) InsertSubmission(ctx context.Context, s *models.Submission) error {
	err := r.Insert(ctx, models.FirestoreSubmissionsCollection, s.ID, map[string]interface{}{
		"id":          s.ID,
		"taskId":      s.TaskID,
		"studentId":   s.StudentID,
		"content":     s.Content,
		"submittedAt": s.SubmittedAt,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return qerrors.AlreadySubmittedError
	}
	return err
}

// SaveGrade sets the grade and feedback of a submission.
func (r *Repository) SaveGrade(ctx context.Context, id string, grade int, feedback string) error {
	return r.Upsert(ctx, models.FirestoreSubmissionsCollection, id, map[string]interface{}{
		"grade":    grade,
		"feedback": feedback,
	})
}

func (r *Repository) DeleteSubmission(ctx context.Context, id string) error {
	return r.Remove(ctx, models.FirestoreSubmissionsCollection, id)
}

// WatchSubmissionsByStudent calls handler with a student's submissions on every change.
func (r *Repository) WatchSubmissionsByStudent(ctx context.Context, studentID string, handler func([]*models.Submission, error)) store.Subscription {
	return r.WatchWhere(ctx, models.FirestoreSubmissionsCollection, "studentId", studentID, func(docs []*store.Document, err error) {
		if err != nil {
			handler(nil, err)
			return
		}
		handler(decodeSubmissions(docs), nil)
	})
}

// Helpers

func decodeSubmissions(docs []*store.Document) []*models.Submission {
	submissions := make([]*models.Submission, 0, len(docs))
	for _, doc := range docs {
		var submission models.Submission
		if err := decode(doc, &submission); err != nil {
			glog.Warningf("skipping malformed submission %s: %v", doc.ID, err)
			continue
		}
		submissions = append(submissions, &submission)
	}
	SortSubmissions(submissions)
	return submissions
}

// SortSubmissions orders submissions by submittedAt, then by ID.
func SortSubmissions(submissions []*models.Submission) {
	sort.SliceStable(submissions, func(i, j int) bool {
		a, b := submissions[i], submissions[j]
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.ID < b.ID
	})
}
