// Package coursework implements the administrator and student operations on classes, materials,
// tasks and submissions.
package coursework

import (
	"time"

	"elearning/internal/notify"
	"elearning/internal/repository"
)

// DefaultSubmissionContent is recorded when a student completes a task that takes no link.
const DefaultSubmissionContent = "Tugas Selesai (Sesuai Instruksi)"

type Service struct {
	repo     *repository.Repository
	notifier *notify.Notifier
	now      func() time.Time
}

func NewService(repo *repository.Repository, notifier *notify.Notifier) *Service {
	return &Service{repo: repo, notifier: notifier, now: time.Now}
}

// SetClock replaces the service's clock. Tests use it to pin deadlines.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}
