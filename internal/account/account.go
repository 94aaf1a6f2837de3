// Package account updates a user's own profile and credential, and holds the administrator's
// student management and support tools.
package account

import (
	"context"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"elearning/internal/auth"
	"elearning/internal/config"
	"elearning/internal/identity"
	"elearning/internal/models"
	"elearning/internal/qerrors"
	"elearning/internal/repository"
	"elearning/internal/validation"
)

type Service struct {
	gateway *auth.Gateway
	repo    *repository.Repository
	cfg     *config.ServerConfig
}

func NewService(gateway *auth.Gateway, repo *repository.Repository, cfg *config.ServerConfig) *Service {
	return &Service{gateway: gateway, repo: repo, cfg: cfg}
}

// Result reports each step of an account update. A step that was not needed reports false with no
// error.
type Result struct {
	Profile                   *models.UserProfile `json:"profile"`
	ProfileUpdated            bool                `json:"profileUpdated"`
	CredentialEmailUpdated    bool                `json:"credentialEmailUpdated"`
	CredentialPasswordUpdated bool                `json:"credentialPasswordUpdated"`
	EmailError                string              `json:"emailError,omitempty"`
	PasswordError             string              `json:"passwordError,omitempty"`
}

// Complete reports whether every requested step succeeded.
func (r *Result) Complete() bool {
	return r.ProfileUpdated && r.EmailError == "" && r.PasswordError == ""
}

// UpdateAccount changes the signed-in user's name, avatar, username and password. The credential
// is updated first: a failed password change is only reported, and a failed username change keeps
// the old username in the profile. The profile fields are written either way and are not rolled
// back. The returned error is set only when the profile write itself fails.
func (s *Service) UpdateAccount(ctx context.Context, client identity.Client, req *models.UpdateAccountRequest) (*Result, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	profile, err := s.repo.GetUserProfile(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	username := validation.NormalizeUsername(req.Username)
	usernameChanged := username != profile.Username
	if usernameChanged && !s.repo.IsUsernameAvailable(ctx, username) {
		return nil, qerrors.UsernameTakenError
	}

	result := &Result{}

	if req.Password != "" {
		if err := client.UpdatePassword(ctx, req.Password); err != nil {
			glog.Warningf("error updating password of %s: %v\n", profile.ID, err)
			result.PasswordError = "password could not be changed"
		} else {
			result.CredentialPasswordUpdated = true
		}
	}

	if usernameChanged {
		if err := client.UpdateEmail(ctx, s.gateway.Address(username)); err != nil {
			glog.Warningf("error updating login address of %s: %v\n", profile.ID, err)
			result.EmailError = "username could not be changed"
			username = profile.Username
		} else {
			result.CredentialEmailUpdated = true
		}
	}

	avatar := strings.TrimSpace(req.Avatar)
	if avatar == "" {
		avatar = profile.Avatar
	}

	err = s.repo.UpdateUserProfile(ctx, profile.ID, map[string]interface{}{
		"name":     strings.TrimSpace(req.Name),
		"username": username,
		"avatar":   avatar,
	})
	if err != nil {
		return result, errors.Wrap(err, "saving profile")
	}

	profile.Name = strings.TrimSpace(req.Name)
	profile.Username = username
	profile.Avatar = avatar
	result.Profile = profile
	result.ProfileUpdated = true
	return result, nil
}

// Students

// ListStudents returns the ACTIVE students whose name or username contains search, optionally
// limited to one class.
func (s *Service) ListStudents(ctx context.Context, search, className string) []*models.UserProfile {
	search = strings.ToLower(strings.TrimSpace(search))

	var students []*models.UserProfile
	for _, student := range s.repo.ListStudents(ctx) {
		if student.Status != models.StatusActive {
			continue
		}
		if className != "" && student.ClassID != className {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(student.Name), search) &&
			!strings.Contains(strings.ToLower(student.Username), search) {
			continue
		}
		students = append(students, student)
	}
	sort.SliceStable(students, func(i, j int) bool {
		return students[i].Name < students[j].Name
	})
	return students
}

// UpdateStudent edits a student's name, class and avatar on behalf of an administrator.
func (s *Service) UpdateStudent(ctx context.Context, req *models.UpdateStudentRequest) (*models.UserProfile, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	student, err := s.student(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	student.Name = strings.TrimSpace(req.Name)
	student.ClassID = req.ClassID
	if req.Avatar != "" {
		student.Avatar = req.Avatar
	}

	err = s.repo.UpdateUserProfile(ctx, student.ID, map[string]interface{}{
		"name":    student.Name,
		"classId": student.ClassID,
		"avatar":  student.Avatar,
	})
	if err != nil {
		return nil, err
	}
	return student, nil
}

// DeleteStudent deletes a student's profile, and their credential when revokeCredential is set.
func (s *Service) DeleteStudent(ctx context.Context, id string, revokeCredential bool) error {
	if _, err := s.student(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteUserProfile(ctx, id); err != nil {
		return err
	}
	if !revokeCredential {
		return nil
	}
	if err := s.gateway.Backend().DeleteCredential(ctx, id); err != nil {
		return errors.Wrap(qerrors.DeleteUserError, err.Error())
	}
	return nil
}

// Settings

func (s *Service) SiteSettings(ctx context.Context) *models.SiteSettings {
	return s.repo.GetSiteSettings(ctx)
}

func (s *Service) UpdateSiteSettings(ctx context.Context, settings *models.SiteSettings) (*models.SiteSettings, error) {
	if err := validation.Struct(settings); err != nil {
		return nil, err
	}
	if err := s.repo.SaveSiteSettings(ctx, settings); err != nil {
		return nil, err
	}
	return s.repo.GetSiteSettings(ctx), nil
}

func (s *Service) student(ctx context.Context, id string) (*models.UserProfile, error) {
	profile, err := s.repo.GetUserProfile(ctx, id)
	if errors.Is(err, qerrors.ProfileNotFoundError) {
		return nil, qerrors.UserNotFoundError
	}
	if err != nil {
		return nil, err
	}
	if profile.Role != models.RoleStudent {
		return nil, qerrors.UserNotFoundError
	}
	return profile, nil
}
