package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elearning/internal/models"
	"elearning/internal/qerrors"
	"elearning/internal/store"
	"elearning/internal/store/storetest"
	"elearning/internal/syncstatus"
)

func newTestRepository(t *testing.T) (*Repository, *storetest.Faulty, *syncstatus.Hub) {
	t.Helper()
	faulty := storetest.NewFaulty(storetest.OpenBolt(t))
	hub := syncstatus.New(time.Hour, time.Hour)
	t.Cleanup(hub.Close)
	return New(faulty, hub), faulty, hub
}

func TestSanitize(t *testing.T) {
	var nilGrade *int
	var nilTime *time.Time
	grade := 88
	now := time.Now()

	clean := Sanitize(map[string]interface{}{
		"a":       1,
		"b":       nil,
		"c":       nilGrade,
		"d":       nilTime,
		"grade":   &grade,
		"at":      &now,
		"classes": []string(nil),
		"nested":  map[string]interface{}{"x": nil, "y": "z"},
	})

	assert.Equal(t, map[string]interface{}{
		"a":      1,
		"grade":  88,
		"at":     now,
		"nested": map[string]interface{}{"y": "z"},
	}, clean)
}

func TestUpsert_NilFieldsDoNotOverwrite(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRepository(t)

	require.NoError(t, r.Upsert(ctx, "things", "x", map[string]interface{}{"a": 0, "b": "keep", "c": "keep"}))
	require.NoError(t, r.Upsert(ctx, "things", "x", map[string]interface{}{"a": 1, "b": nil, "c": nil}))

	doc := r.FetchOne(ctx, "things", "x")
	require.NotNil(t, doc)
	assert.Equal(t, json.Number("1"), doc.Data["a"])
	assert.Equal(t, "keep", doc.Data["b"])
	assert.Equal(t, "keep", doc.Data["c"])
}

func TestReads_FailSoft(t *testing.T) {
	ctx := context.Background()
	r, faulty, hub := newTestRepository(t)

	require.NoError(t, r.Upsert(ctx, "users", "u1", map[string]interface{}{"username": "budi"}))

	faulty.FailOn(storetest.OpList, "users", errors.New("network down"))
	assert.Empty(t, r.FetchAll(ctx, "users"))
	assert.False(t, hub.State().PermissionDenied, "plain failures do not raise the banner")

	faulty.FailOn(storetest.OpWhere, "users", errors.Wrap(store.ErrPermissionDenied, "rules"))
	assert.Empty(t, r.FetchWhere(ctx, "users", "username", "budi"))
	assert.True(t, hub.State().PermissionDenied)

	faulty.FailOn(storetest.OpGet, "users", errors.New("timeout"))
	assert.Nil(t, r.FetchOne(ctx, "users", "u1"))
}

func TestWrites_PropagateErrors(t *testing.T) {
	ctx := context.Background()
	r, faulty, hub := newTestRepository(t)

	faulty.FailOn(storetest.OpSet, "things", errors.New("quota exceeded"))
	err := r.Upsert(ctx, "things", "x", map[string]interface{}{"a": 1})
	assert.EqualError(t, err, "quota exceeded")
	assert.Equal(t, syncstatus.Error, hub.State().Status)

	faulty.Reset()
	require.NoError(t, r.Upsert(ctx, "things", "x", map[string]interface{}{"a": 1}))
	assert.Equal(t, syncstatus.Success, hub.State().Status)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	r, faulty, _ := newTestRepository(t)

	id, err := r.Create(ctx, "things", map[string]interface{}{"name": "generated"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Len(t, faulty.CallsTo(storetest.OpAdd, "things"), 1)

	id, err = r.Create(ctx, "things", map[string]interface{}{"id": "fixed", "name": "given"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", id)
	assert.Len(t, faulty.CallsTo(storetest.OpSet, "things"), 1)
	assert.NotNil(t, r.FetchOne(ctx, "things", "fixed"))
}

func TestSaveMany(t *testing.T) {
	ctx := context.Background()
	r, _, hub := newTestRepository(t)

	var statuses []syncstatus.Status
	hub.Subscribe(func(s syncstatus.State) { statuses = append(statuses, s.Status) })

	err := r.SaveMany(ctx, "things", []map[string]interface{}{
		{"id": "a", "read": true},
		{"id": "b", "read": true},
		{"read": false},
	})
	require.NoError(t, err)
	assert.Len(t, r.FetchAll(ctx, "things"), 3)
	assert.Equal(t, []syncstatus.Status{syncstatus.Idle, syncstatus.Syncing, syncstatus.Success}, statuses)
}

func TestUserProfileRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRepository(t)

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, r.SaveUserProfile(ctx, &models.UserProfile{
		ID:        "u1",
		Username:  "budi",
		Name:      "Budi",
		Role:      models.RoleStudent,
		Status:    models.StatusPending,
		ClassID:   "8A",
		CreatedAt: created,
	}))

	profile, err := r.GetUserProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.ID)
	assert.Equal(t, models.StatusPending, profile.Status)
	assert.True(t, created.Equal(profile.CreatedAt))
	assert.Nil(t, profile.ActivatedAt)

	assert.False(t, r.IsUsernameAvailable(ctx, "budi"))
	assert.True(t, r.IsUsernameAvailable(ctx, "siti"))

	_, err = r.GetUserProfile(ctx, "missing")
	assert.Equal(t, qerrors.ProfileNotFoundError, err)
}

func TestIsUsernameAvailable_FailsClosed(t *testing.T) {
	r, faulty, _ := newTestRepository(t)
	faulty.FailOn(storetest.OpWhere, models.FirestoreUserProfilesCollection, errors.New("offline"))

	assert.False(t, r.IsUsernameAvailable(context.Background(), "anyone"))
}

func TestSubmissionGradeRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRepository(t)

	s := &models.Submission{
		ID:          models.SubmissionID("t1", "s1"),
		TaskID:      "t1",
		StudentID:   "s1",
		Content:     "https://docs.google.com/x",
		SubmittedAt: time.Now(),
	}
	require.NoError(t, r.InsertSubmission(ctx, s))
	assert.Equal(t, qerrors.AlreadySubmittedError, r.InsertSubmission(ctx, s))

	require.NoError(t, r.SaveGrade(ctx, s.ID, 88, "baik"))

	got, err := r.GetSubmission(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Grade)
	assert.Equal(t, 88, *got.Grade)
	assert.Equal(t, "baik", got.Feedback)
	assert.Equal(t, "https://docs.google.com/x", got.Content)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRepository(t)

	for _, n := range []*models.Notification{
		{UserID: "s1", Title: "a", CreatedAt: time.Now()},
		{UserID: "s1", Title: "b", Read: true, CreatedAt: time.Now()},
		{UserID: "s2", Title: "c", CreatedAt: time.Now()},
	} {
		_, err := r.AddNotification(ctx, n)
		require.NoError(t, err)
	}

	changed, err := r.MarkAllNotificationsRead(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	for _, n := range r.ListNotifications(ctx, "s1") {
		assert.True(t, n.Read)
	}
	assert.False(t, r.ListNotifications(ctx, "s2")[0].Read)
}

func TestMarkNotificationRead_OwnerOnly(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRepository(t)

	id, err := r.AddNotification(ctx, &models.Notification{UserID: "s1", Title: "a", CreatedAt: time.Now()})
	require.NoError(t, err)

	err = r.MarkNotificationRead(ctx, &models.ClearNotificationRequest{UserID: "s2", NotificationID: id})
	assert.Equal(t, qerrors.ForbiddenError, err)

	require.NoError(t, r.MarkNotificationRead(ctx, &models.ClearNotificationRequest{UserID: "s1", NotificationID: id}))
	assert.True(t, r.ListNotifications(ctx, "s1")[0].Read)
}

func TestSiteSettingsDefaults(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRepository(t)

	assert.Equal(t, models.DefaultSiteSettings(), r.GetSiteSettings(ctx))

	require.NoError(t, r.Upsert(ctx, models.FirestoreSettingsCollection, models.SiteSettingsDocID, map[string]interface{}{"siteName": "Portal"}))
	settings := r.GetSiteSettings(ctx)
	assert.Equal(t, "Portal", settings.SiteName)
	assert.Equal(t, models.DefaultSiteSettings().LogoURL, settings.LogoURL)
}
