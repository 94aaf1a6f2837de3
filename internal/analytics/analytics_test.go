package analytics

import (
	"math"
	"testing"
	"time"

	"elearning/internal/models"
)

func grade(g int) *int {
	return &g
}

func createSubmissions() []*models.Submission {
	return []*models.Submission{
		{ID: "t1_s1", TaskID: "t1", StudentID: "s1", Grade: grade(95)},
		{ID: "t2_s1", TaskID: "t2", StudentID: "s1", Grade: grade(85)},
		{ID: "t3_s1", TaskID: "t3", StudentID: "s1"},
		{ID: "t1_s2", TaskID: "t1", StudentID: "s2", Grade: grade(60)},
		{ID: "t2_s2", TaskID: "t2", StudentID: "s2"},
	}
}

func TestGenerateOverview(t *testing.T) {
	users := []*models.UserProfile{
		{ID: "a", Role: models.RoleAdmin, Status: models.StatusActive},
		{ID: "s1", Role: models.RoleStudent, Status: models.StatusActive, ClassID: "8A"},
		{ID: "s2", Role: models.RoleStudent, Status: models.StatusActive, ClassID: "8B"},
		{ID: "s3", Role: models.RoleStudent, Status: models.StatusPending, ClassID: "8A"},
	}
	classes := []*models.ClassRoom{{ID: "c1", Name: "8A"}, {ID: "c2", Name: "8B"}}
	overview := GenerateOverview(users, classes, []*models.Material{{ID: "m1"}}, []*models.Task{{ID: "t1"}, {ID: "t2"}}, createSubmissions())

	if overview.ActiveStudents != 2 {
		t.Errorf("Expected 2 active students, got %d", overview.ActiveStudents)
	}
	if overview.PendingStudents != 1 {
		t.Errorf("Expected 1 pending student, got %d", overview.PendingStudents)
	}
	if overview.Classes != 2 || overview.Materials != 1 || overview.Tasks != 2 {
		t.Errorf("Expected 2 classes, 1 material, 2 tasks, got %d, %d, %d", overview.Classes, overview.Materials, overview.Tasks)
	}
	if overview.UngradedSubmission != 2 {
		t.Errorf("Expected 2 ungraded submissions, got %d", overview.UngradedSubmission)
	}
	if !approximatelyEqual(overview.Grades.P50, 85) {
		t.Errorf("Expected median grade 85, got %f", overview.Grades.P50)
	}
}

func TestSummarizeClasses(t *testing.T) {
	users := []*models.UserProfile{
		{ID: "s1", Role: models.RoleStudent, Status: models.StatusActive, ClassID: "8A"},
		{ID: "s2", Role: models.RoleStudent, Status: models.StatusActive, ClassID: "8A"},
		{ID: "s3", Role: models.RoleStudent, Status: models.StatusPending, ClassID: "8A"},
	}
	summaries := SummarizeClasses([]*models.ClassRoom{{ID: "c1", Name: "8A"}, {ID: "c2", Name: "8B"}}, users)

	if summaries[0].StudentCount != 2 {
		t.Errorf("Expected 2 students in 8A, got %d", summaries[0].StudentCount)
	}
	if summaries[1].StudentCount != 0 {
		t.Errorf("Expected 0 students in 8B, got %d", summaries[1].StudentCount)
	}
}

func TestDeadlineOf(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		due      string
		expected models.DeadlineStatus
	}{
		{"2024-03-09", models.DeadlineExpired},
		{"2024-03-10", models.DeadlineDueSoon},
		{"2024-03-12", models.DeadlineDueSoon},
		{"2024-03-13", models.DeadlineActive},
		{"not a date", models.DeadlineActive},
	}

	for _, test := range tests {
		if got := DeadlineOf(test.due, now); got != test.expected {
			t.Errorf("Expected %s for %s, got %s", test.expected, test.due, got)
		}
	}
}

func TestGenerateStudentProgress(t *testing.T) {
	progress := GenerateStudentProgress("s1", createSubmissions())

	if progress.SubmittedCount != 3 {
		t.Errorf("Expected 3 submissions, got %d", progress.SubmittedCount)
	}
	if progress.GradedCount != 2 {
		t.Errorf("Expected 2 graded submissions, got %d", progress.GradedCount)
	}
	if !approximatelyEqual(progress.Average, 90) {
		t.Errorf("Expected average 90, got %f", progress.Average)
	}
	if progress.Level != models.LevelLegend {
		t.Errorf("Expected level %s, got %s", models.LevelLegend, progress.Level)
	}

	empty := GenerateStudentProgress("nobody", createSubmissions())
	if empty.Average != 0 || empty.Level != models.LevelRising {
		t.Errorf("Expected empty progress at level Rising, got %+v", empty)
	}
}

func TestLevelFor(t *testing.T) {
	if LevelFor(80) != models.LevelExpert {
		t.Errorf("Expected 80 to be Expert")
	}
	if LevelFor(79.9) != models.LevelExplorer {
		t.Errorf("Expected 79.9 to be Explorer")
	}
	if LevelFor(10) != models.LevelRising {
		t.Errorf("Expected 10 to be Rising")
	}
}

func approximatelyEqual(a float64, b float64) bool {
	return math.Abs(a-b) < 0.00001
}

func TestCalculatePercentiles(t *testing.T) {
	basicDistribution := []int{10, 2, 5}
	basicPercentiles := CalculatePercentiles(basicDistribution)
	expectedBasicPercentiles := &models.Percentiles{
		P50: 5,
		P90: 9,
		P99: 9.9,
	}

	if !approximatelyEqual(basicPercentiles.P50, expectedBasicPercentiles.P50) {
		t.Errorf("Expected P50 to be %f, got %f", expectedBasicPercentiles.P50, basicPercentiles.P50)
	}
	if !approximatelyEqual(basicPercentiles.P90, expectedBasicPercentiles.P90) {
		t.Errorf("Expected P90 to be %f, got %f", expectedBasicPercentiles.P90, basicPercentiles.P90)
	}
	if !approximatelyEqual(basicPercentiles.P99, expectedBasicPercentiles.P99) {
		t.Errorf("Expected P99 to be %f, got %f", expectedBasicPercentiles.P99, basicPercentiles.P99)
	}
	if basicDistribution[0] != 10 {
		t.Errorf("Expected input to be left unsorted")
	}
}
