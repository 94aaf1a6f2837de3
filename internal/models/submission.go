package models

import (
	"time"
)

// Submission is a student's answer to a Task.
type Submission struct {
	ID          string    `json:"id" mapstructure:"id"`
	TaskID      string    `json:"taskId" mapstructure:"taskId"`
	StudentID   string    `json:"studentId" mapstructure:"studentId"`
	Content     string    `json:"content" mapstructure:"content"`
	SubmittedAt time.Time `json:"submittedAt" mapstructure:"submittedAt"`
	Grade       *int      `json:"grade,omitempty" mapstructure:"grade"`
	Feedback    string    `json:"feedback,omitempty" mapstructure:"feedback"`
}

// IsGraded reports whether a grade has been recorded.
func (s *Submission) IsGraded() bool {
	return s.Grade != nil
}

// SubmissionID is the composite document ID of a student's submission for a task. Using it as the
// document key makes "one submission per (task, student)" a property of the store.
func SubmissionID(taskID, studentID string) string {
	return taskID + "_" + studentID
}

// SubmitTaskRequest is the parameter struct for the SubmitTask function.
type SubmitTaskRequest struct {
	TaskID string `json:"taskId" validate:"required"`
	// Will be set from context
	StudentID string `json:",omitempty"`
	Content   string `json:"content"`
}

// GradeSubmissionRequest is the parameter struct for the GradeSubmission function.
type GradeSubmissionRequest struct {
	// Will be set from the URL
	SubmissionID string `json:",omitempty"`
	Grade        *int   `json:"grade" validate:"required,min=0,max=100"`
	Feedback     string `json:"feedback"`
}
