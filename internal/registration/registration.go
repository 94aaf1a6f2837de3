// Package registration moves student registrations from PENDING to ACTIVE or deleted.
package registration

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"elearning/internal/auth"
	"elearning/internal/identity"
	"elearning/internal/models"
	"elearning/internal/notify"
	"elearning/internal/qerrors"
	"elearning/internal/repository"
	"elearning/internal/store"
)

type Service struct {
	gateway  *auth.Gateway
	repo     *repository.Repository
	notifier *notify.Notifier
}

func NewService(gateway *auth.Gateway, repo *repository.Repository, notifier *notify.Notifier) *Service {
	return &Service{gateway: gateway, repo: repo, notifier: notifier}
}

// Submit registers a new PENDING student.
func (s *Service) Submit(ctx context.Context, client identity.Client, req *models.SignupRequest, observer auth.SignupObserver) (*models.UserProfile, error) {
	return s.gateway.Signup(ctx, client, req, observer)
}

// Approve activates a pending registration and tells the student. Approving an ACTIVE student does
// nothing.
func (s *Service) Approve(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile, err := s.pending(ctx, userID)
	if errors.Is(err, qerrors.NotPendingError) && profile.Role == models.RoleStudent && profile.Status == models.StatusActive {
		return profile, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.repo.UpdateUserProfile(ctx, userID, map[string]interface{}{
		"status":      string(models.StatusActive),
		"activatedAt": now,
	})
	if err != nil {
		return nil, err
	}
	profile.Status = models.StatusActive
	profile.ActivatedAt = &now

	s.notifier.Approved(ctx, userID)
	return profile, nil
}

// RejectAndLeaveCredential deletes a pending registration's profile. The Identity Service
// credential stays behind, so the username's login address remains taken.
func (s *Service) RejectAndLeaveCredential(ctx context.Context, userID string) error {
	if _, err := s.pending(ctx, userID); err != nil {
		return err
	}
	return s.repo.DeleteUserProfile(ctx, userID)
}

// RejectAndRevokeCredential deletes a pending registration's profile and then its credential.
func (s *Service) RejectAndRevokeCredential(ctx context.Context, userID string) error {
	if err := s.RejectAndLeaveCredential(ctx, userID); err != nil {
		return err
	}
	if err := s.gateway.Backend().DeleteCredential(ctx, userID); err != nil {
		glog.Errorf("profile %s deleted but its credential could not be revoked: %v\n", userID, err)
		return errors.Wrap(err, "revoking credential")
	}
	return nil
}

// WatchPending calls handler with the pending registrations, newest first, on every change.
func (s *Service) WatchPending(ctx context.Context, handler func([]*models.UserProfile, error)) store.Subscription {
	return s.repo.WatchUserProfilesWhere(ctx, "status", string(models.StatusPending), func(profiles []*models.UserProfile, err error) {
		if err != nil {
			handler(nil, err)
			return
		}
		handler(PendingList(profiles, ""), nil)
	})
}

// ListPending returns the pending registrations matching search, newest first.
func (s *Service) ListPending(ctx context.Context, search string) []*models.UserProfile {
	return PendingList(s.repo.ListUserProfilesWhere(ctx, "status", string(models.StatusPending)), search)
}

// PendingList keeps the pending students whose name or username contains search (case
// insensitive) and sorts them newest first.
func PendingList(profiles []*models.UserProfile, search string) []*models.UserProfile {
	search = strings.ToLower(strings.TrimSpace(search))

	out := make([]*models.UserProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.Role != models.RoleStudent || p.Status != models.StatusPending {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Username), search) {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// pending returns the profile of userID, with NotPendingError when it is not a pending student.
func (s *Service) pending(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile, err := s.repo.GetUserProfile(ctx, userID)
	if errors.Is(err, qerrors.ProfileNotFoundError) {
		return nil, qerrors.UserNotFoundError
	}
	if err != nil {
		return nil, err
	}
	if profile.Role != models.RoleStudent || profile.Status != models.StatusPending {
		return profile, qerrors.NotPendingError
	}
	return profile, nil
}
