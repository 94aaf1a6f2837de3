package coursework

import (
	"context"
	"strings"

	"elearning/internal/models"
	"elearning/internal/validation"
)

// Materials

// CreateMaterial publishes a material and notifies the students of its target classes. Notification
// failures do not fail the call.
func (s *Service) CreateMaterial(ctx context.Context, req *models.SaveMaterialRequest) (*models.Material, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	material := &models.Material{
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Type:           contentTypeOrDefault(req.Type),
		Content:        strings.TrimSpace(req.Content),
		TargetClassIDs: req.TargetClassIDs,
		CreatedAt:      s.now(),
	}
	id, err := s.repo.SaveMaterial(ctx, material)
	if err != nil {
		return nil, err
	}
	material.ID = id

	s.notifier.NewMaterial(ctx, material)
	return material, nil
}

// UpdateMaterial edits a material without notifying anyone.
func (s *Service) UpdateMaterial(ctx context.Context, req *models.SaveMaterialRequest) (*models.Material, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	material, err := s.repo.GetMaterial(ctx, req.MaterialID)
	if err != nil {
		return nil, err
	}

	material.Title = strings.TrimSpace(req.Title)
	material.Description = req.Description
	material.Type = contentTypeOrDefault(req.Type)
	material.Content = strings.TrimSpace(req.Content)
	material.TargetClassIDs = req.TargetClassIDs

	err = s.repo.UpdateMaterialFields(ctx, material.ID, map[string]interface{}{
		"title":          material.Title,
		"description":    material.Description,
		"type":           string(material.Type),
		"content":        material.Content,
		"targetClassIds": material.TargetClassIDs,
	})
	if err != nil {
		return nil, err
	}
	return material, nil
}

func (s *Service) DeleteMaterial(ctx context.Context, id string) error {
	if _, err := s.repo.GetMaterial(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteMaterial(ctx, id)
}

// MaterialsFor returns every material for administrators and the visible ones for students.
func (s *Service) MaterialsFor(ctx context.Context, user *models.UserProfile) []*models.Material {
	materials := s.repo.ListMaterials(ctx)
	if user.IsAdmin() {
		return materials
	}
	return VisibleMaterials(materials, user)
}

// Tasks

// CreateTask publishes a task and notifies the students of its target classes. Notification
// failures do not fail the call.
func (s *Service) CreateTask(ctx context.Context, req *models.SaveTaskRequest) (*models.Task, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:               strings.TrimSpace(req.Title),
		Description:         req.Description,
		Type:                contentTypeOrDefault(req.Type),
		Content:             strings.TrimSpace(req.Content),
		TargetClassIDs:      req.TargetClassIDs,
		DueDate:             req.DueDate,
		IsSubmissionEnabled: req.IsSubmissionEnabled == nil || *req.IsSubmissionEnabled,
		CreatedAt:           s.now(),
	}
	id, err := s.repo.SaveTask(ctx, task)
	if err != nil {
		return nil, err
	}
	task.ID = id

	s.notifier.NewTask(ctx, task)
	return task, nil
}

// UpdateTask edits a task without notifying anyone. A nil IsSubmissionEnabled keeps the current
// setting.
func (s *Service) UpdateTask(ctx context.Context, req *models.SaveTaskRequest) (*models.Task, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	task, err := s.repo.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}

	task.Title = strings.TrimSpace(req.Title)
	task.Description = req.Description
	task.Type = contentTypeOrDefault(req.Type)
	task.Content = strings.TrimSpace(req.Content)
	task.TargetClassIDs = req.TargetClassIDs
	task.DueDate = req.DueDate
	if req.IsSubmissionEnabled != nil {
		task.IsSubmissionEnabled = *req.IsSubmissionEnabled
	}

	err = s.repo.UpdateTaskFields(ctx, task.ID, map[string]interface{}{
		"title":               task.Title,
		"description":         task.Description,
		"type":                string(task.Type),
		"content":             task.Content,
		"targetClassIds":      task.TargetClassIDs,
		"dueDate":             task.DueDate,
		"isSubmissionEnabled": task.IsSubmissionEnabled,
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.repo.GetTask(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteTask(ctx, id)
}

// TasksFor returns every task for administrators and the visible ones for students.
func (s *Service) TasksFor(ctx context.Context, user *models.UserProfile) []*models.Task {
	tasks := s.repo.ListTasks(ctx)
	if user.IsAdmin() {
		return tasks
	}
	return VisibleTasks(tasks, user)
}

// Visibility

// VisibleTo reports whether content targeted at targets is visible to the user. Administrators see
// everything; students see content that targets their class.
func VisibleTo(user *models.UserProfile, targets []string) bool {
	if user == nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	if user.ClassID == "" {
		return false
	}
	for _, target := range targets {
		if target == user.ClassID {
			return true
		}
	}
	return false
}

func VisibleMaterials(materials []*models.Material, user *models.UserProfile) []*models.Material {
	visible := make([]*models.Material, 0, len(materials))
	for _, m := range materials {
		if VisibleTo(user, m.TargetClassIDs) {
			visible = append(visible, m)
		}
	}
	return visible
}

func VisibleTasks(tasks []*models.Task, user *models.UserProfile) []*models.Task {
	visible := make([]*models.Task, 0, len(tasks))
	for _, t := range tasks {
		if VisibleTo(user, t.TargetClassIDs) {
			visible = append(visible, t)
		}
	}
	return visible
}

// EmbedURL converts YouTube and Google Docs links into their embeddable form. Other links are
// returned unchanged.
func EmbedURL(url string) string {
	switch {
	case url == "":
		return ""
	case strings.Contains(url, "youtube.com/watch?v="):
		return strings.Replace(url, "watch?v=", "embed/", 1)
	case strings.Contains(url, "youtu.be/"):
		return "https://www.youtube.com/embed/" + strings.SplitN(url, "youtu.be/", 2)[1]
	case strings.Contains(url, "docs.google.com"):
		if strings.Contains(url, "?") {
			return url + "&embedded=true"
		}
		return url + "?embedded=true"
	}
	return url
}

func contentTypeOrDefault(t models.ContentType) models.ContentType {
	if t == "" {
		return models.ContentLink
	}
	return t
}
