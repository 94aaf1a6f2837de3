package account

import (
	"context"
	"sort"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"elearning/internal/models"
	"elearning/internal/qerrors"
)

// Support audit actions.
const (
	AuditPasswordReset = "password_reset"
)

// SupportTools are administrator-only operations that touch another user's credential. Every use
// is written to the support audit log.
type SupportTools struct {
	svc *Service
}

func (s *Service) SupportTools() *SupportTools {
	return &SupportTools{svc: s}
}

// ResetStudentPassword mails the student a reset link and sets their password to the configured
// temporary password, which is returned to the administrator once. It is never stored on the
// profile.
func (t *SupportTools) ResetStudentPassword(ctx context.Context, actor *models.UserProfile, studentID string) (string, error) {
	if actor == nil || !actor.IsAdmin() {
		return "", qerrors.ForbiddenError
	}

	student, err := t.svc.student(ctx, studentID)
	if err != nil {
		return "", err
	}

	address := t.svc.gateway.Address(student.Username)
	if err := t.svc.gateway.Backend().SendPasswordReset(ctx, address); err != nil {
		glog.Warningf("error sending password reset to %s: %v\n", student.ID, err)
	}

	temporary := t.svc.cfg.SupportTemporaryPassword
	if err := t.svc.gateway.Backend().SetPassword(ctx, student.ID, temporary); err != nil {
		return "", errors.Wrap(err, "setting temporary password")
	}

	if _, err := t.svc.repo.AddSupportAudit(ctx, AuditPasswordReset, actor.ID, student.ID); err != nil {
		glog.Errorf("password of %s reset by %s but the audit entry could not be written: %v\n", student.ID, actor.ID, err)
	}
	glog.Infof("password of %s reset by %s\n", student.ID, actor.ID)

	return temporary, nil
}

// Audit returns the support audit log, newest first.
func (t *SupportTools) Audit(ctx context.Context, actor *models.UserProfile) ([]*models.SupportAuditEntry, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, qerrors.ForbiddenError
	}
	entries := t.svc.repo.ListSupportAudit(ctx)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}
