package coursework

import (
	"context"

	"github.com/golang/glog"

	"elearning/internal/models"
)

// SeedSampleData writes a few classes, materials and a task for trying the portal out. Documents
// have fixed IDs, so seeding twice overwrites rather than duplicates. Nobody is notified.
func (s *Service) SeedSampleData(ctx context.Context) error {
	now := s.now()

	classes := []map[string]interface{}{
		{"id": "cls_7a", "name": "7A", "homeroomTeacher": "Ustadz Ahmad"},
		{"id": "cls_8a", "name": "8A", "homeroomTeacher": "Ustadzah Fatimah"},
		{"id": "cls_9a", "name": "9A", "homeroomTeacher": "Ustadz Umar"},
	}
	if err := s.repo.SaveMany(ctx, models.FirestoreClassesCollection, classes); err != nil {
		return err
	}

	materials := []map[string]interface{}{
		{
			"id":             "mat_1",
			"title":          "Pengenalan Perangkat Keras (Hardware)",
			"description":    "Mengenal komponen fisik komputer seperti CPU, RAM, dan Storage.",
			"type":           string(models.ContentLink),
			"content":        "https://www.youtube.com/watch?v=HG8_tT02BvY",
			"targetClassIds": []string{"7A", "8A", "9A"},
			"createdAt":      now,
		},
		{
			"id":             "mat_2",
			"title":          "Berpikir Komputasional",
			"description":    "Belajar dekomposisi, pengenalan pola, dan algoritma dasar.",
			"type":           string(models.ContentEmbed),
			"content":        "https://docs.google.com/presentation/d/1Xy_J8_Dummy/embed",
			"targetClassIds": []string{"8A"},
			"createdAt":      now,
		},
	}
	if err := s.repo.SaveMany(ctx, models.FirestoreMaterialsCollection, materials); err != nil {
		return err
	}

	tasks := []map[string]interface{}{
		{
			"id":                  "tsk_1",
			"title":               "Tugas Flowchart Algoritma",
			"description":         "Buatlah flowchart untuk proses membuat teh manis di buku tulis atau aplikasi diagram.",
			"type":                string(models.ContentLink),
			"content":             "https://canva.com/design/example",
			"targetClassIds":      []string{"8A"},
			"dueDate":             now.AddDate(0, 0, 14).Format(models.DueDateLayout),
			"isSubmissionEnabled": true,
			"createdAt":           now,
		},
	}
	if err := s.repo.SaveMany(ctx, models.FirestoreTasksCollection, tasks); err != nil {
		return err
	}

	glog.Infof("seeded %d classes, %d materials and %d tasks\n", len(classes), len(materials), len(tasks))
	return nil
}
