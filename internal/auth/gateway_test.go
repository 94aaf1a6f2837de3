package auth_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elearning/internal/models"
	"elearning/internal/portaltest"
	"elearning/internal/qerrors"
	"elearning/internal/store/storetest"
)

type signupRecorder struct {
	started, finished int
}

func (r *signupRecorder) SignupStarted()  { r.started++ }
func (r *signupRecorder) SignupFinished() { r.finished++ }

func signupRequest(username string) *models.SignupRequest {
	return &models.SignupRequest{
		Name:     "Budi Santoso",
		Username: username,
		ClassID:  "8A",
		Password: "secret1",
	}
}

func TestSignup_PendingUntilApproved(t *testing.T) {
	env := portaltest.New(t)
	ctx := context.Background()
	admin := env.Admin(t)

	client := env.Backend.NewClient()
	observer := &signupRecorder{}
	profile, err := env.Gateway.Signup(ctx, client, signupRequest("  Budi "), observer)
	require.NoError(t, err)
	assert.Equal(t, "budi", profile.Username)
	assert.Equal(t, models.RoleStudent, profile.Role)
	assert.Equal(t, models.StatusPending, profile.Status)
	assert.Equal(t, env.Config.AvatarBaseURL+"budi", profile.Avatar)
	assert.Nil(t, client.CurrentUser(), "signup must sign the new identity out")
	assert.Equal(t, 1, observer.started)
	assert.Equal(t, 1, observer.finished)

	// Administrators hear about the registration.
	notes := env.Repo.ListNotifications(ctx, admin.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationRegistration, notes[0].Type)
	assert.Contains(t, notes[0].Message, "Budi Santoso (Kelas 8A)")

	_, _, err = env.Gateway.Login(ctx, client, &models.LoginRequest{Username: "budi", Password: "secret1", Role: models.RoleStudent})
	assert.Equal(t, qerrors.PendingApprovalError, err)
	assert.Nil(t, client.CurrentUser())

	require.NoError(t, env.Repo.UpdateUserProfile(ctx, profile.ID, map[string]interface{}{"status": string(models.StatusActive)}))

	got, id, err := env.Gateway.Login(ctx, client, &models.LoginRequest{Username: "BUDI", Password: "secret1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, profile.ID, id.UID)
	assert.Equal(t, models.RoleStudent, got.Role)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.NotNil(t, client.CurrentUser())
}

func TestSignup_UsernameTaken(t *testing.T) {
	env := portaltest.New(t)
	ctx := context.Background()
	env.Student(t, "budi", "8A")

	_, err := env.Gateway.Signup(ctx, env.Backend.NewClient(), signupRequest("budi"), nil)
	assert.Equal(t, qerrors.UsernameTakenError, err)
}

func TestSignup_FailedUniquenessCheckCreatesNoCredential(t *testing.T) {
	env := portaltest.New(t)
	ctx := context.Background()

	env.Store.FailOn(storetest.OpWhere, models.FirestoreUserProfilesCollection, errors.New("unavailable"))
	_, err := env.Gateway.Signup(ctx, env.Backend.NewClient(), signupRequest("citra"), nil)
	assert.Equal(t, qerrors.UsernameTakenError, err)

	// The address is still free, so no credential was created.
	_, err = env.Backend.CreateCredential(ctx, env.Gateway.Address("citra"), "secret1")
	assert.NoError(t, err)
}

func TestSignup_EmailInUse(t *testing.T) {
	env := portaltest.New(t)
	ctx := context.Background()

	// A credential without a profile passes the username check.
	_, err := env.Backend.CreateCredential(ctx, env.Gateway.Address("dewi"), "secret1")
	require.NoError(t, err)

	_, err = env.Gateway.Signup(ctx, env.Backend.NewClient(), signupRequest("dewi"), nil)
	assert.Equal(t, qerrors.EmailInUseError, err)
}

func TestSignup_Validation(t *testing.T) {
	env := portaltest.New(t)
	req := signupRequest("budi")
	req.Password = "123"

	_, err := env.Gateway.Signup(context.Background(), env.Backend.NewClient(), req, nil)
	var vErr *qerrors.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "password", vErr.Fields[0].Field)
	assert.Empty(t, env.Store.Calls())
}

func TestLogin_Failures(t *testing.T) {
	env := portaltest.New(t)
	ctx := context.Background()
	env.Admin(t)
	env.Student(t, "budi", "8A")

	tests := []struct {
		name     string
		req      *models.LoginRequest
		expected error
	}{
		{"wrong password", &models.LoginRequest{Username: "budi", Password: "nope123"}, qerrors.InvalidCredentialError},
		{"unknown user", &models.LoginRequest{Username: "nobody", Password: "secret1"}, qerrors.InvalidCredentialError},
		{"student on admin login", &models.LoginRequest{Username: "budi", Password: "secret1", Role: models.RoleAdmin}, qerrors.RoleMismatchError},
		{"admin on student login", &models.LoginRequest{Username: "admin", Password: "admin123", Role: models.RoleStudent}, qerrors.RoleMismatchError},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client := env.Backend.NewClient()
			_, _, err := env.Gateway.Login(ctx, client, test.req)
			assert.Equal(t, test.expected, err)
			assert.Nil(t, client.CurrentUser())
		})
	}
}

func TestLogin_MissingProfileSignsOut(t *testing.T) {
	env := portaltest.New(t)
	ctx := context.Background()

	_, err := env.Backend.CreateCredential(ctx, env.Gateway.Address("ghost"), "secret1")
	require.NoError(t, err)

	client := env.Backend.NewClient()
	_, _, err = env.Gateway.Login(ctx, client, &models.LoginRequest{Username: "ghost", Password: "secret1"})
	assert.Equal(t, qerrors.ProfileNotFoundError, err)
	assert.Nil(t, client.CurrentUser())
}

func TestBootstrapAdmin(t *testing.T) {
	env := portaltest.New(t)
	ctx := context.Background()

	assert.True(t, env.Gateway.NeedsBootstrap(ctx))
	admin, err := env.Gateway.BootstrapAdmin(ctx)
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, "admin", admin.Username)
	assert.Equal(t, "Admin Utama Informatika", admin.Name)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.False(t, env.Gateway.NeedsBootstrap(ctx))

	again, err := env.Gateway.BootstrapAdmin(ctx)
	assert.NoError(t, err)
	assert.Nil(t, again)

	profile, _, err := env.Gateway.Login(ctx, env.Backend.NewClient(), &models.LoginRequest{Username: "admin", Password: "admin123", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, profile.ID)
}

func TestBootstrapAdmin_ReusesSurvivingCredential(t *testing.T) {
	env := portaltest.New(t)
	ctx := context.Background()

	uid, err := env.Backend.CreateCredential(ctx, env.Gateway.Address("admin"), "admin123")
	require.NoError(t, err)

	admin, err := env.Gateway.BootstrapAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, uid, admin.ID)
}

func TestCreateStudentAccount(t *testing.T) {
	env := portaltest.New(t)
	ctx := context.Background()

	student := env.Student(t, "Eka", "9B")
	assert.Equal(t, "eka", student.Username)
	assert.Equal(t, models.StatusActive, student.Status)
	require.NotNil(t, student.ActivatedAt)

	_, err := env.Gateway.CreateStudentAccount(ctx, &models.CreateStudentRequest{Name: "Eka 2", Username: "eka", ClassID: "9B", Password: "secret1"})
	assert.Equal(t, qerrors.UsernameTakenError, err)

	profile, _, err := env.Gateway.Login(ctx, env.Backend.NewClient(), &models.LoginRequest{Username: "eka", Password: "secret1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, "9B", profile.ClassID)
}

func TestRequestPasswordReset(t *testing.T) {
	env := portaltest.New(t)
	ctx := context.Background()
	env.Student(t, "budi", "8A")
	client := env.Backend.NewClient()

	assert.NoError(t, env.Gateway.RequestPasswordReset(ctx, client, &models.PasswordResetRequest{Username: " Budi"}))
	assert.NoError(t, env.Gateway.RequestPasswordReset(ctx, client, &models.PasswordResetRequest{Username: "nobody"}))
	assert.Equal(t, []string{"budi@alirsyad.sch.id"}, env.Backend.PasswordResets())
}
