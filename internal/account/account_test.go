package account_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elearning/internal/account"
	"elearning/internal/identity"
	"elearning/internal/models"
	"elearning/internal/portaltest"
	"elearning/internal/qerrors"
	"elearning/internal/store/storetest"
)

func setup(t *testing.T) (*account.Service, *portaltest.Env) {
	t.Helper()
	env := portaltest.New(t)
	return account.NewService(env.Gateway, env.Repo, env.Config), env
}

func signIn(t *testing.T, env *portaltest.Env, username, password string) identity.Client {
	t.Helper()
	client := env.Backend.NewClient()
	_, err := client.SignIn(context.Background(), env.Gateway.Address(username), password)
	require.NoError(t, err)
	return client
}

func TestUpdateAccount_ChangesEverything(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	env.Admin(t)
	budi := env.Student(t, "budi", "8A")
	client := signIn(t, env, "budi", "secret1")

	result, err := svc.UpdateAccount(ctx, client, &models.UpdateAccountRequest{
		UserID:   budi.ID,
		Name:     " Budi Santoso ",
		Username: "BudiS",
		Password: "rahasia2",
	})
	require.NoError(t, err)
	assert.True(t, result.Complete())
	assert.True(t, result.CredentialPasswordUpdated)
	assert.True(t, result.CredentialEmailUpdated)
	assert.Equal(t, "budis", result.Profile.Username)
	assert.Equal(t, "Budi Santoso", result.Profile.Name)

	stored, err := env.Repo.GetUserProfile(ctx, budi.ID)
	require.NoError(t, err)
	assert.Equal(t, "budis", stored.Username)
	assert.Equal(t, models.StatusActive, stored.Status)
	assert.Equal(t, "8A", stored.ClassID)
	assert.Equal(t, budi.Avatar, stored.Avatar)

	_, err = env.Backend.NewClient().SignIn(ctx, env.Gateway.Address("budis"), "rahasia2")
	assert.NoError(t, err)
	_, err = env.Backend.NewClient().SignIn(ctx, env.Gateway.Address("budi"), "secret1")
	assert.Error(t, err)
}

func TestUpdateAccount_EmailFailureKeepsUsername(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	env.Admin(t)
	budi := env.Student(t, "budi", "8A")
	client := signIn(t, env, "budi", "secret1")

	// A credential without a profile still holds the address.
	_, err := env.Backend.CreateCredential(ctx, env.Gateway.Address("citra"), "secret1")
	require.NoError(t, err)

	result, err := svc.UpdateAccount(ctx, client, &models.UpdateAccountRequest{
		UserID:   budi.ID,
		Name:     "Budi Baru",
		Username: "citra",
		Password: "rahasia2",
	})
	require.NoError(t, err)
	assert.False(t, result.Complete())
	assert.NotEmpty(t, result.EmailError)
	assert.Empty(t, result.PasswordError)
	assert.True(t, result.CredentialPasswordUpdated)
	assert.False(t, result.CredentialEmailUpdated)
	assert.True(t, result.ProfileUpdated)

	stored, err := env.Repo.GetUserProfile(ctx, budi.ID)
	require.NoError(t, err)
	assert.Equal(t, "budi", stored.Username)
	assert.Equal(t, "Budi Baru", stored.Name)

	_, err = env.Backend.NewClient().SignIn(ctx, env.Gateway.Address("budi"), "rahasia2")
	assert.NoError(t, err)
}

func TestUpdateAccount_PasswordFailureStillSavesProfile(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	env.Admin(t)
	budi := env.Student(t, "budi", "8A")

	// A signed-out client cannot change credentials.
	result, err := svc.UpdateAccount(ctx, env.Backend.NewClient(), &models.UpdateAccountRequest{
		UserID:   budi.ID,
		Name:     "Budi Baru",
		Username: "budi",
		Password: "rahasia2",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.PasswordError)
	assert.False(t, result.CredentialEmailUpdated)
	assert.True(t, result.ProfileUpdated)
	assert.Equal(t, "Budi Baru", result.Profile.Name)
}

func TestUpdateAccount_UsernameTaken(t *testing.T) {
	svc, env := setup(t)
	env.Admin(t)
	budi := env.Student(t, "budi", "8A")
	env.Student(t, "citra", "8A")
	client := signIn(t, env, "budi", "secret1")
	before := len(env.Store.Calls())

	_, err := svc.UpdateAccount(context.Background(), client, &models.UpdateAccountRequest{
		UserID:   budi.ID,
		Name:     "Budi",
		Username: "Citra",
		Password: "rahasia2",
	})
	require.Equal(t, qerrors.UsernameTakenError, err)
	assert.Len(t, env.Store.Calls(), before)

	_, err = env.Backend.NewClient().SignIn(context.Background(), env.Gateway.Address("budi"), "secret1")
	assert.NoError(t, err)
}

func TestUpdateAccount_ProfileWriteFails(t *testing.T) {
	svc, env := setup(t)
	env.Admin(t)
	budi := env.Student(t, "budi", "8A")
	client := signIn(t, env, "budi", "secret1")
	env.Store.FailOn(storetest.OpSet, models.FirestoreUserProfilesCollection, errors.New("offline"))

	result, err := svc.UpdateAccount(context.Background(), client, &models.UpdateAccountRequest{
		UserID:   budi.ID,
		Name:     "Budi",
		Username: "budi",
	})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.ProfileUpdated)
}

func TestListStudents(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	env.Admin(t)
	env.Student(t, "budi", "8A")
	env.Student(t, "citra", "7A")
	env.Student(t, "dewi", "8A")

	_, err := env.Gateway.Signup(ctx, env.Backend.NewClient(), &models.SignupRequest{
		Name: "Eko", Username: "eko", ClassID: "8A", Password: "secret1",
	}, nil)
	require.NoError(t, err)

	usernames := func(students []*models.UserProfile) []string {
		var out []string
		for _, s := range students {
			out = append(out, s.Username)
		}
		return out
	}

	tests := []struct {
		name   string
		search string
		class  string
		want   []string
	}{
		{"all active", "", "", []string{"budi", "citra", "dewi"}},
		{"class filter", "", "8A", []string{"budi", "dewi"}},
		{"search by username", "CIT", "", []string{"citra"}},
		{"search by name", "siswa d", "", []string{"dewi"}},
		{"search and class", "citra", "8A", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, usernames(svc.ListStudents(ctx, tc.search, tc.class)))
		})
	}
}

func TestUpdateStudent(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	admin := env.Admin(t)
	budi := env.Student(t, "budi", "8A")

	updated, err := svc.UpdateStudent(ctx, &models.UpdateStudentRequest{
		UserID:  budi.ID,
		Name:    "Budi Santoso",
		ClassID: "9A",
	})
	require.NoError(t, err)
	assert.Equal(t, "9A", updated.ClassID)
	assert.Equal(t, budi.Avatar, updated.Avatar)

	_, err = svc.UpdateStudent(ctx, &models.UpdateStudentRequest{UserID: admin.ID, Name: "X", ClassID: "9A"})
	assert.Equal(t, qerrors.UserNotFoundError, err)

	_, err = svc.UpdateStudent(ctx, &models.UpdateStudentRequest{UserID: budi.ID, Name: "X", ClassID: "9A/B"})
	assert.Error(t, err)
}

func TestDeleteStudent(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	env.Admin(t)
	budi := env.Student(t, "budi", "8A")
	citra := env.Student(t, "citra", "8A")

	require.NoError(t, svc.DeleteStudent(ctx, budi.ID, false))
	require.NoError(t, svc.DeleteStudent(ctx, citra.ID, true))

	_, err := env.Repo.GetUserProfile(ctx, budi.ID)
	assert.True(t, errors.Is(err, qerrors.ProfileNotFoundError))

	_, err = env.Backend.NewClient().SignIn(ctx, env.Gateway.Address("budi"), "secret1")
	assert.NoError(t, err)
	_, err = env.Backend.NewClient().SignIn(ctx, env.Gateway.Address("citra"), "secret1")
	assert.Equal(t, identity.ErrUserNotFound, err)

	assert.Equal(t, qerrors.UserNotFoundError, svc.DeleteStudent(ctx, budi.ID, true))
}

func TestResetStudentPassword(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	admin := env.Admin(t)
	budi := env.Student(t, "budi", "8A")
	tools := svc.SupportTools()

	_, err := tools.ResetStudentPassword(ctx, budi, budi.ID)
	require.Equal(t, qerrors.ForbiddenError, err)

	temporary, err := tools.ResetStudentPassword(ctx, admin, budi.ID)
	require.NoError(t, err)
	assert.Equal(t, "123456", temporary)
	assert.Equal(t, []string{"budi@alirsyad.sch.id"}, env.Backend.PasswordResets())

	_, err = env.Backend.NewClient().SignIn(ctx, env.Gateway.Address("budi"), "123456")
	assert.NoError(t, err)

	stored, err := env.Repo.GetUserProfile(ctx, budi.ID)
	require.NoError(t, err)
	assert.Equal(t, budi.Username, stored.Username)
	assert.Equal(t, models.StatusActive, stored.Status)

	audit, err := tools.Audit(ctx, admin)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, account.AuditPasswordReset, audit[0].Action)
	assert.Equal(t, admin.ID, audit[0].ActorID)
	assert.Equal(t, budi.ID, audit[0].SubjectID)

	_, err = tools.Audit(ctx, budi)
	assert.Equal(t, qerrors.ForbiddenError, err)
}

func TestUpdateSiteSettings(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	assert.Equal(t, models.DefaultSiteSettings(), svc.SiteSettings(ctx))

	saved, err := svc.UpdateSiteSettings(ctx, &models.SiteSettings{SiteName: "Informatika", LogoURL: "https://example.com/logo.png"})
	require.NoError(t, err)
	assert.Equal(t, "Informatika", saved.SiteName)
	assert.Equal(t, "https://example.com/logo.png", saved.LogoURL)

	_, err = svc.UpdateSiteSettings(ctx, &models.SiteSettings{SiteName: ""})
	assert.Error(t, err)
	_, err = svc.UpdateSiteSettings(ctx, &models.SiteSettings{SiteName: "X", HeroImageURL: "ftp://example.com/a.png"})
	assert.Error(t, err)
}
