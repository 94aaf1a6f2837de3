// Package portaltest wires the portal's services over a temporary bolt store and a local identity
// backend for tests.
package portaltest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"elearning/internal/auth"
	"elearning/internal/config"
	"elearning/internal/identity"
	"elearning/internal/models"
	"elearning/internal/notify"
	"elearning/internal/repository"
	"elearning/internal/store/storetest"
	"elearning/internal/syncstatus"
)

type Env struct {
	Config   *config.ServerConfig
	Store    *storetest.Faulty
	Hub      *syncstatus.Hub
	Repo     *repository.Repository
	Notifier *notify.Notifier
	Backend  *identity.LocalBackend
	Gateway  *auth.Gateway
}

func New(t testing.TB) *Env {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.SignupGraceDelay = time.Millisecond

	backend, err := identity.OpenLocalBackend(filepath.Join(t.TempDir(), "auth.db"), "test-secret")
	if err != nil {
		t.Fatalf("opening identity backend: %v", err)
	}
	backend.SetHashCost(bcrypt.MinCost)
	t.Cleanup(func() { _ = backend.Close() })

	faulty := storetest.NewFaulty(storetest.OpenBolt(t))
	hub := syncstatus.New(time.Hour, time.Hour)
	t.Cleanup(hub.Close)

	repo := repository.New(faulty, hub)
	notifier := notify.New(repo)

	return &Env{
		Config:   cfg,
		Store:    faulty,
		Hub:      hub,
		Repo:     repo,
		Notifier: notifier,
		Backend:  backend,
		Gateway:  auth.NewGateway(repo, notifier, backend, cfg),
	}
}

// Admin bootstraps the administrator and returns its profile.
func (e *Env) Admin(t testing.TB) *models.UserProfile {
	t.Helper()

	admin, err := e.Gateway.BootstrapAdmin(context.Background())
	if err != nil {
		t.Fatalf("bootstrapping admin: %v", err)
	}
	if admin != nil {
		return admin
	}

	admins := e.Repo.ListUserProfilesWhere(context.Background(), "role", string(models.RoleAdmin))
	if len(admins) == 0 {
		t.Fatalf("no administrator found")
	}
	return admins[0]
}

// Student creates an ACTIVE student with password "secret1".
func (e *Env) Student(t testing.TB, username, classID string) *models.UserProfile {
	t.Helper()

	student, err := e.Gateway.CreateStudentAccount(context.Background(), &models.CreateStudentRequest{
		Name:     "Siswa " + username,
		Username: username,
		ClassID:  classID,
		Password: "secret1",
	})
	if err != nil {
		t.Fatalf("creating student %s: %v", username, err)
	}
	return student
}
