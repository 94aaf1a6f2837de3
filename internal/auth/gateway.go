// Package auth bridges Identity Service sign-in to the user profiles kept in the Directory Store.
package auth

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"elearning/internal/config"
	"elearning/internal/identity"
	"elearning/internal/models"
	"elearning/internal/notify"
	"elearning/internal/qerrors"
	"elearning/internal/repository"
	"elearning/internal/validation"
)

// SignupObserver is told when a signup starts and ends on a client, so that whoever watches the
// client's profile does not force a sign-out while the new PENDING profile is being written.
type SignupObserver interface {
	SignupStarted()
	SignupFinished()
}

type Gateway struct {
	repo     *repository.Repository
	notifier *notify.Notifier
	backend  identity.Backend
	cfg      *config.ServerConfig
}

func NewGateway(repo *repository.Repository, notifier *notify.Notifier, backend identity.Backend, cfg *config.ServerConfig) *Gateway {
	return &Gateway{
		repo:     repo,
		notifier: notifier,
		backend:  backend,
		cfg:      cfg,
	}
}

// Backend returns the Identity Service backend the gateway signs users in with.
func (g *Gateway) Backend() identity.Backend {
	return g.backend
}

// Login signs client in and returns the caller's profile. Every failure after the credential check
// signs the identity back out before returning.
func (g *Gateway) Login(ctx context.Context, client identity.Client, req *models.LoginRequest) (*models.UserProfile, *identity.Identity, error) {
	if err := validation.Struct(req); err != nil {
		return nil, nil, err
	}

	id, err := client.SignIn(ctx, g.address(req.Username), req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredential) || errors.Is(err, identity.ErrUserNotFound) {
			return nil, nil, qerrors.InvalidCredentialError
		}
		return nil, nil, err
	}

	profile, err := g.repo.GetUserProfile(ctx, id.UID)
	if err != nil {
		g.signOut(ctx, client)
		if errors.Is(err, qerrors.ProfileNotFoundError) {
			return nil, nil, qerrors.ProfileNotFoundError
		}
		return nil, nil, err
	}

	if req.Role != "" && profile.Role != req.Role {
		g.signOut(ctx, client)
		return nil, nil, qerrors.RoleMismatchError
	}

	if !profile.IsActive() {
		g.signOut(ctx, client)
		return nil, nil, qerrors.PendingApprovalError
	}

	return profile, id, nil
}

// Signup registers a student. The new account is PENDING until an administrator approves it, so
// the identity is signed out again before Signup returns.
func (g *Gateway) Signup(ctx context.Context, client identity.Client, req *models.SignupRequest, observer SignupObserver) (*models.UserProfile, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	username := validation.NormalizeUsername(req.Username)
	if !g.repo.IsUsernameAvailable(ctx, username) {
		return nil, qerrors.UsernameTakenError
	}

	if observer != nil {
		observer.SignupStarted()
		defer observer.SignupFinished()
	}

	id, err := client.SignUp(ctx, g.address(username), req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrEmailInUse) {
			return nil, qerrors.EmailInUseError
		}
		return nil, err
	}

	profile := &models.UserProfile{
		ID:        id.UID,
		Username:  username,
		Name:      req.Name,
		Role:      models.RoleStudent,
		Status:    models.StatusPending,
		ClassID:   req.ClassID,
		Avatar:    g.cfg.AvatarBaseURL + username,
		CreatedAt: time.Now(),
	}
	if err := g.repo.SaveUserProfile(ctx, profile); err != nil {
		g.signOut(ctx, client)
		// Without a profile the credential would only block the username.
		if delErr := g.backend.DeleteCredential(ctx, id.UID); delErr != nil {
			glog.Warningf("error removing credential %s after failed signup: %v\n", id.UID, delErr)
		}
		return nil, errors.Wrap(err, "saving profile")
	}

	g.notifier.NewRegistration(ctx, profile.Name, profile.ClassID)

	select {
	case <-time.After(g.cfg.SignupGraceDelay):
	case <-ctx.Done():
	}
	g.signOut(ctx, client)

	return profile, nil
}

// RequestPasswordReset sends a reset message to the username's login address. Unknown usernames
// are not reported.
func (g *Gateway) RequestPasswordReset(ctx context.Context, client identity.Client, req *models.PasswordResetRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}

	err := client.SendPasswordReset(ctx, g.address(req.Username))
	if err != nil && !errors.Is(err, identity.ErrUserNotFound) {
		return err
	}
	return nil
}

func (g *Gateway) Logout(ctx context.Context, client identity.Client) error {
	return client.SignOut(ctx)
}

// NeedsBootstrap reports whether the directory has no users yet. A failed read counts as false.
func (g *Gateway) NeedsBootstrap(ctx context.Context) bool {
	count, err := g.repo.CountUserProfiles(ctx)
	return err == nil && count == 0
}

// BootstrapAdmin creates the initial administrator when the directory has no users. It returns
// nil when users already exist.
func (g *Gateway) BootstrapAdmin(ctx context.Context) (*models.UserProfile, error) {
	count, err := g.repo.CountUserProfiles(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, nil
	}

	username := validation.NormalizeUsername(g.cfg.BootstrapAdminUsername)
	address := g.address(username)

	uid, err := g.backend.CreateCredential(ctx, address, g.cfg.BootstrapAdminPassword)
	if errors.Is(err, identity.ErrEmailInUse) {
		// A credential survived an earlier, wiped directory. Recover its UID by signing in.
		client := g.backend.NewClient()
		id, signInErr := client.SignIn(ctx, address, g.cfg.BootstrapAdminPassword)
		if signInErr != nil {
			return nil, errors.Wrap(err, "bootstrap administrator credential exists with a different password")
		}
		uid = id.UID
		g.signOut(ctx, client)
	} else if err != nil {
		return nil, errors.Wrap(err, "creating bootstrap administrator credential")
	}

	now := time.Now()
	profile := &models.UserProfile{
		ID:          uid,
		Username:    username,
		Name:        g.cfg.BootstrapAdminName,
		Role:        models.RoleAdmin,
		Status:      models.StatusActive,
		Avatar:      g.cfg.AvatarBaseURL + username,
		CreatedAt:   now,
		ActivatedAt: &now,
	}
	if err := g.repo.SaveUserProfile(ctx, profile); err != nil {
		return nil, err
	}

	glog.Infof("created bootstrap administrator %q\n", username)
	return profile, nil
}

// CreateStudentAccount creates an ACTIVE student with a credential, on behalf of an administrator.
func (g *Gateway) CreateStudentAccount(ctx context.Context, req *models.CreateStudentRequest) (*models.UserProfile, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	username := validation.NormalizeUsername(req.Username)
	if !g.repo.IsUsernameAvailable(ctx, username) {
		return nil, qerrors.UsernameTakenError
	}

	uid, err := g.backend.CreateCredential(ctx, g.address(username), req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrEmailInUse) {
			return nil, qerrors.EmailInUseError
		}
		return nil, err
	}

	avatar := req.Avatar
	if avatar == "" {
		avatar = g.cfg.AvatarBaseURL + username
	}

	now := time.Now()
	profile := &models.UserProfile{
		ID:          uid,
		Username:    username,
		Name:        req.Name,
		Role:        models.RoleStudent,
		Status:      models.StatusActive,
		ClassID:     req.ClassID,
		Avatar:      avatar,
		CreatedAt:   now,
		ActivatedAt: &now,
	}
	if err := g.repo.SaveUserProfile(ctx, profile); err != nil {
		if delErr := g.backend.DeleteCredential(ctx, uid); delErr != nil {
			glog.Warningf("error removing credential %s after failed student creation: %v\n", uid, delErr)
		}
		return nil, err
	}
	return profile, nil
}

// Address returns the login address of username.
func (g *Gateway) Address(username string) string {
	return g.address(username)
}

func (g *Gateway) address(username string) string {
	return identity.LoginAddress(username, g.cfg.SchoolDomain)
}

func (g *Gateway) signOut(ctx context.Context, client identity.Client) {
	if err := client.SignOut(ctx); err != nil {
		glog.Warningf("error signing out: %v\n", err)
	}
}
