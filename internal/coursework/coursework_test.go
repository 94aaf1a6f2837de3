package coursework_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elearning/internal/coursework"
	"elearning/internal/models"
	"elearning/internal/portaltest"
	"elearning/internal/qerrors"
	"elearning/internal/store/storetest"
)

func setup(t *testing.T) (*coursework.Service, *portaltest.Env) {
	t.Helper()
	env := portaltest.New(t)
	svc := coursework.NewService(env.Repo, env.Notifier)
	svc.SetClock(func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local) })
	return svc, env
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func materialRequest(targets ...string) *models.SaveMaterialRequest {
	return &models.SaveMaterialRequest{
		Title:          "Algoritma",
		Type:           models.ContentLink,
		Content:        "https://example.com/algoritma",
		TargetClassIDs: targets,
	}
}

func taskRequest(enabled bool, targets ...string) *models.SaveTaskRequest {
	return &models.SaveTaskRequest{
		Title:               "Flowchart",
		Content:             "https://example.com/flowchart",
		TargetClassIDs:      targets,
		DueDate:             "2026-03-20",
		IsSubmissionEnabled: boolPtr(enabled),
	}
}

func TestCreateMaterial_NotifiesTargetClasses(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	in8A := env.Student(t, "budi", "8A")
	in9B := env.Student(t, "citra", "9B")

	material, err := svc.CreateMaterial(ctx, materialRequest("8A"))
	require.NoError(t, err)
	assert.NotEmpty(t, material.ID)

	notes := env.Repo.ListNotifications(ctx, in8A.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, "Materi Baru!", notes[0].Title)
	assert.Equal(t, "Guru telah mempublikasikan materi: Algoritma", notes[0].Message)
	assert.Empty(t, env.Repo.ListNotifications(ctx, in9B.ID))

	// Editing does not notify again.
	req := materialRequest("8A", "9B")
	req.MaterialID = material.ID
	_, err = svc.UpdateMaterial(ctx, req)
	require.NoError(t, err)
	assert.Len(t, env.Repo.ListNotifications(ctx, in8A.ID), 1)
	assert.Empty(t, env.Repo.ListNotifications(ctx, in9B.ID))
}

func TestCreateMaterial_SucceedsWhenNotificationsFail(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	env.Student(t, "budi", "8A")

	env.Store.FailOn(storetest.OpAdd, models.FirestoreNotificationsCollection, errors.New("unavailable"))
	material, err := svc.CreateMaterial(ctx, materialRequest("8A"))
	require.NoError(t, err)

	saved, err := env.Repo.GetMaterial(ctx, material.ID)
	require.NoError(t, err)
	assert.Equal(t, "Algoritma", saved.Title)
}

func TestCreateMaterial_Validation(t *testing.T) {
	svc, env := setup(t)

	tests := []struct {
		name  string
		req   *models.SaveMaterialRequest
		field string
	}{
		{"missing title", &models.SaveMaterialRequest{Content: "https://x.id", TargetClassIDs: []string{"8A"}}, "title"},
		{"bad url", &models.SaveMaterialRequest{Title: "A", Content: "ftp://x.id", TargetClassIDs: []string{"8A"}}, "content"},
		{"no classes", &models.SaveMaterialRequest{Title: "A", Content: "https://x.id"}, "targetClassIds"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := svc.CreateMaterial(context.Background(), test.req)
			var vErr *qerrors.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, test.field, vErr.Fields[0].Field)
		})
	}
	assert.Empty(t, env.Store.Calls())
}

func TestVisibility(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	admin := env.Admin(t)
	student := env.Student(t, "budi", "8A")

	material, err := svc.CreateMaterial(ctx, materialRequest("8A", "9B"))
	require.NoError(t, err)
	_, err = svc.CreateMaterial(ctx, materialRequest("7C"))
	require.NoError(t, err)

	assert.Len(t, svc.MaterialsFor(ctx, student), 1)
	assert.Len(t, svc.MaterialsFor(ctx, admin), 2)

	req := materialRequest("9B")
	req.MaterialID = material.ID
	_, err = svc.UpdateMaterial(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, svc.MaterialsFor(ctx, student))
}

func TestVisibleTo(t *testing.T) {
	tests := []struct {
		user     *models.UserProfile
		targets  []string
		expected bool
	}{
		{&models.UserProfile{Role: models.RoleStudent, ClassID: "8A"}, []string{"7A", "8A"}, true},
		{&models.UserProfile{Role: models.RoleStudent, ClassID: "8A"}, []string{"8B"}, false},
		{&models.UserProfile{Role: models.RoleStudent}, []string{""}, false},
		{&models.UserProfile{Role: models.RoleAdmin}, nil, true},
		{nil, []string{"8A"}, false},
	}

	for _, test := range tests {
		if got := coursework.VisibleTo(test.user, test.targets); got != test.expected {
			t.Errorf("Expected %v for %v, got %v", test.expected, test.targets, got)
		}
	}
}

func TestSubmitAndGrade_RoundTrip(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	student := env.Student(t, "budi", "8A")

	task, err := svc.CreateTask(ctx, taskRequest(true, "8A"))
	require.NoError(t, err)
	assert.True(t, task.IsSubmissionEnabled)

	submission, err := svc.Submit(ctx, student, &models.SubmitTaskRequest{TaskID: task.ID, Content: "https://canva.com/budi"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionID(task.ID, student.ID), submission.ID)

	_, err = svc.Grade(ctx, &models.GradeSubmissionRequest{SubmissionID: submission.ID, Grade: intPtr(88), Feedback: "baik"})
	require.NoError(t, err)

	saved, err := env.Repo.GetSubmission(ctx, submission.ID)
	require.NoError(t, err)
	require.NotNil(t, saved.Grade)
	assert.Equal(t, 88, *saved.Grade)
	assert.Equal(t, "baik", saved.Feedback)
	assert.Equal(t, "https://canva.com/budi", saved.Content)

	var grades []*models.Notification
	for _, n := range env.Repo.ListNotifications(ctx, student.ID) {
		if n.Type == models.NotificationGrade {
			grades = append(grades, n)
		}
	}
	require.Len(t, grades, 1)
	assert.Equal(t, "Tugas Anda telah dinilai dengan skor 88.", grades[0].Message)
}

func TestGrade_Validation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	for _, grade := range []*int{nil, intPtr(-1), intPtr(101)} {
		_, err := svc.Grade(ctx, &models.GradeSubmissionRequest{SubmissionID: "x", Grade: grade})
		var vErr *qerrors.ValidationError
		assert.True(t, errors.As(err, &vErr))
	}

	_, err := svc.Grade(ctx, &models.GradeSubmissionRequest{SubmissionID: "missing", Grade: intPtr(0)})
	assert.Equal(t, qerrors.SubmissionNotFoundError, err)
}

func TestSubmit_Rules(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	student := env.Student(t, "budi", "8A")

	withLink, err := svc.CreateTask(ctx, taskRequest(true, "8A"))
	require.NoError(t, err)
	withoutLink, err := svc.CreateTask(ctx, taskRequest(false, "8A"))
	require.NoError(t, err)
	otherClass, err := svc.CreateTask(ctx, taskRequest(true, "9B"))
	require.NoError(t, err)

	var vErr *qerrors.ValidationError
	_, err = svc.Submit(ctx, student, &models.SubmitTaskRequest{TaskID: withLink.ID})
	assert.True(t, errors.As(err, &vErr))
	_, err = svc.Submit(ctx, student, &models.SubmitTaskRequest{TaskID: withLink.ID, Content: "drive.google.com/x"})
	assert.True(t, errors.As(err, &vErr))

	done, err := svc.Submit(ctx, student, &models.SubmitTaskRequest{TaskID: withoutLink.ID})
	require.NoError(t, err)
	assert.Equal(t, coursework.DefaultSubmissionContent, done.Content)

	_, err = svc.Submit(ctx, student, &models.SubmitTaskRequest{TaskID: withoutLink.ID})
	assert.Equal(t, qerrors.AlreadySubmittedError, err)

	_, err = svc.Submit(ctx, student, &models.SubmitTaskRequest{TaskID: otherClass.ID, Content: "https://x.id"})
	assert.Equal(t, qerrors.SubmissionNotVisibleError, err)

	_, err = svc.Submit(ctx, student, &models.SubmitTaskRequest{TaskID: "missing"})
	assert.Equal(t, qerrors.TaskNotFoundError, err)
}

func TestSubmit_LegacySubmissionCounts(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	student := env.Student(t, "budi", "8A")
	task, err := svc.CreateTask(ctx, taskRequest(false, "8A"))
	require.NoError(t, err)

	require.NoError(t, env.Repo.Upsert(ctx, models.FirestoreSubmissionsCollection, "sub_1700000000000", map[string]interface{}{
		"taskId":      task.ID,
		"studentId":   student.ID,
		"content":     "lama",
		"submittedAt": time.Now().Add(-time.Hour),
	}))

	_, err = svc.Submit(ctx, student, &models.SubmitTaskRequest{TaskID: task.ID})
	assert.Equal(t, qerrors.AlreadySubmittedError, err)
}

func TestCurrentSubmission(t *testing.T) {
	early := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	subs := []*models.Submission{
		{ID: "b", TaskID: "t1", StudentID: "s1", SubmittedAt: early},
		{ID: "c", TaskID: "t1", StudentID: "s1", SubmittedAt: early.Add(time.Minute)},
		{ID: "a", TaskID: "t1", StudentID: "s1", SubmittedAt: early},
		{ID: "d", TaskID: "t1", StudentID: "s2", SubmittedAt: early.Add(-time.Hour)},
	}

	got := coursework.CurrentSubmission(subs, "t1", "s1")
	require.NotNil(t, got)
	assert.Equal(t, "a", got.ID)
	assert.Nil(t, coursework.CurrentSubmission(subs, "t2", "s1"))
}

func TestStudentTasks(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	student := env.Student(t, "budi", "8A")

	dueSoon := taskRequest(false, "8A")
	dueSoon.DueDate = "2026-03-11"
	expired := taskRequest(false, "8A")
	expired.DueDate = "2026-03-01"
	active := taskRequest(false, "8A")
	active.DueDate = "2026-04-01"

	var ids []string
	for _, req := range []*models.SaveTaskRequest{dueSoon, expired, active} {
		task, err := svc.CreateTask(ctx, req)
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}
	_, err := svc.Submit(ctx, student, &models.SubmitTaskRequest{TaskID: ids[0]})
	require.NoError(t, err)

	all, stats := svc.StudentTasks(ctx, student, coursework.TasksAll)
	assert.Equal(t, coursework.TaskStats{Total: 3, Completed: 1, Pending: 2}, stats)
	deadlines := map[string]models.DeadlineStatus{}
	for _, task := range all {
		deadlines[task.ID] = task.Deadline
	}
	assert.Equal(t, models.DeadlineDueSoon, deadlines[ids[0]])
	assert.Equal(t, models.DeadlineExpired, deadlines[ids[1]])
	assert.Equal(t, models.DeadlineActive, deadlines[ids[2]])

	completed, _ := svc.StudentTasks(ctx, student, coursework.TasksCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, ids[0], completed[0].ID)
	assert.NotNil(t, completed[0].Submission)

	pending, _ := svc.StudentTasks(ctx, student, coursework.TasksPending)
	assert.Len(t, pending, 2)
}

func TestGradeReportAndQueue(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	budi := env.Student(t, "budi", "8A")
	citra := env.Student(t, "citra", "8A")
	env.Student(t, "dewi", "9B")

	task, err := svc.CreateTask(ctx, taskRequest(false, "8A"))
	require.NoError(t, err)
	first, err := svc.Submit(ctx, budi, &models.SubmitTaskRequest{TaskID: task.ID})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, citra, &models.SubmitTaskRequest{TaskID: task.ID})
	require.NoError(t, err)
	_, err = svc.Grade(ctx, &models.GradeSubmissionRequest{SubmissionID: first.ID, Grade: intPtr(95)})
	require.NoError(t, err)

	rows := svc.GradeReport(ctx, "8A")
	require.Len(t, rows, 2)
	assert.Equal(t, "budi", rows[0].Student.Username)
	assert.Equal(t, models.LevelLegend, rows[0].Progress.Level)
	assert.Equal(t, 0, rows[1].Progress.GradedCount)

	queue, stats := svc.GradingQueue(ctx, "8A", "")
	assert.Equal(t, coursework.SubmissionStats{Total: 2, Graded: 1, Pending: 1}, stats)
	require.Len(t, queue, 2)
	assert.False(t, queue[0].IsGraded())

	overview := svc.Overview(ctx)
	assert.Equal(t, 3, overview.ActiveStudents)
	assert.Equal(t, 1, overview.Tasks)
	assert.Equal(t, 1, overview.UngradedSubmission)
}

func TestClassRenameCascades(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	student := env.Student(t, "budi", "8A")

	class, err := svc.CreateClass(ctx, &models.SaveClassRequest{Name: "8A", HomeroomTeacher: "Ustadzah Fatimah"})
	require.NoError(t, err)
	_, err = svc.CreateClass(ctx, &models.SaveClassRequest{Name: "8a", HomeroomTeacher: "X"})
	assert.Equal(t, qerrors.ClassNameTakenError, err)

	material, err := svc.CreateMaterial(ctx, materialRequest("8A", "9B"))
	require.NoError(t, err)
	task, err := svc.CreateTask(ctx, taskRequest(true, "8A"))
	require.NoError(t, err)

	_, cascade, err := svc.UpdateClass(ctx, &models.SaveClassRequest{ClassID: class.ID, Name: "8 Ibnu Sina", HomeroomTeacher: "Ustadzah Fatimah"})
	require.NoError(t, err)
	assert.Equal(t, &coursework.RenameCascade{Students: 1, Materials: 1, Tasks: 1}, cascade)

	profile, err := env.Repo.GetUserProfile(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, "8 Ibnu Sina", profile.ClassID)

	savedMaterial, err := env.Repo.GetMaterial(ctx, material.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"8 Ibnu Sina", "9B"}, savedMaterial.TargetClassIDs)

	savedTask, err := env.Repo.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"8 Ibnu Sina"}, savedTask.TargetClassIDs)

	assert.Len(t, svc.MaterialsFor(ctx, profile), 1)
}

func TestUpdateClass_LooksUpByIDFromStore(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	class, err := svc.CreateClass(ctx, &models.SaveClassRequest{Name: "7A", HomeroomTeacher: "Ustadz Ahmad"})
	require.NoError(t, err)
	_, err = svc.CreateMaterial(ctx, materialRequest("7A"))
	require.NoError(t, err)

	_, _, err = svc.UpdateClass(ctx, &models.SaveClassRequest{ClassID: class.ID, Name: "7B", HomeroomTeacher: "Ustadz Ahmad"})
	require.NoError(t, err)
	assert.Empty(t, svc.OrphanedReferences(ctx), "renamed targets are not orphans")

	resolved, ok := svc.Resolver(ctx).Resolve(models.ClassID(class.ID))
	require.True(t, ok)
	assert.Equal(t, "7B", resolved.Name)

	_, _, err = svc.UpdateClass(ctx, &models.SaveClassRequest{ClassID: "missing", Name: "7C", HomeroomTeacher: "X"})
	assert.Equal(t, qerrors.ClassNotFoundError, err)
	assert.Equal(t, qerrors.ClassNotFoundError, svc.DeleteClass(ctx, "missing"))
}

func TestDeletedClassLeavesOrphans(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	env.Student(t, "budi", "8A")

	eightA, err := svc.CreateClass(ctx, &models.SaveClassRequest{Name: "8A", HomeroomTeacher: "A"})
	require.NoError(t, err)
	_, err = svc.CreateClass(ctx, &models.SaveClassRequest{Name: "9B", HomeroomTeacher: "B"})
	require.NoError(t, err)
	_, err = svc.CreateMaterial(ctx, materialRequest("8A", "9B"))
	require.NoError(t, err)

	assert.Empty(t, svc.OrphanedReferences(ctx))

	summaries := svc.ListClasses(ctx, "")
	require.Len(t, summaries, 2)
	assert.Equal(t, 1, summaries[0].StudentCount)

	require.NoError(t, svc.DeleteClass(ctx, eightA.ID))
	orphans := svc.OrphanedReferences(ctx)
	require.Len(t, orphans, 2)
	for _, orphan := range orphans {
		assert.Equal(t, []string{"8A"}, orphan.ClassNames)
	}

	resolver := svc.Resolver(ctx)
	_, ok := resolver.Resolve(models.ClassName("9B"))
	assert.True(t, ok)
	_, ok = resolver.Resolve(models.ClassID(eightA.ID))
	assert.False(t, ok)
}

func TestEmbedURL(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.youtube.com/watch?v=HG8_tT02BvY", "https://www.youtube.com/embed/HG8_tT02BvY"},
		{"https://youtu.be/HG8_tT02BvY", "https://www.youtube.com/embed/HG8_tT02BvY"},
		{"https://docs.google.com/presentation/d/1/pub", "https://docs.google.com/presentation/d/1/pub?embedded=true"},
		{"https://docs.google.com/document/d/1/pub?usp=sharing", "https://docs.google.com/document/d/1/pub?usp=sharing&embedded=true"},
		{"https://canva.com/design/x", "https://canva.com/design/x"},
		{"", ""},
	}

	for _, test := range tests {
		if got := coursework.EmbedURL(test.url); got != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, got)
		}
	}
}

func TestSeedSampleData(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.SeedSampleData(ctx))
	require.NoError(t, svc.SeedSampleData(ctx))

	assert.Len(t, env.Repo.ListClasses(ctx), 3)
	assert.Len(t, env.Repo.ListMaterials(ctx), 2)
	tasks := env.Repo.ListTasks(ctx)
	require.Len(t, tasks, 1)
	assert.Equal(t, "2026-03-24", tasks[0].DueDate)
	assert.True(t, tasks[0].IsSubmissionEnabled)
}
