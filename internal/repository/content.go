package repository

import (
	"context"
	"sort"

	"github.com/golang/glog"

	"elearning/internal/models"
	"elearning/internal/qerrors"
	"elearning/internal/store"
)

// Materials

func (r *Repository) GetMaterial(ctx context.Context, id string) (*models.Material, error) {
	doc := r.FetchOne(ctx, models.FirestoreMaterialsCollection, id)
	if doc == nil {
		return nil, qerrors.EntityNotFoundError
	}
	var material models.Material
	if err := decode(doc, &material); err != nil {
		return nil, err
	}
	return &material, nil
}

// ListMaterials returns every material, newest first.
func (r *Repository) ListMaterials(ctx context.Context) []*models.Material {
	return decodeMaterials(r.FetchAll(ctx, models.FirestoreMaterialsCollection))
}

// SaveMaterial creates the material, or updates it when ID is set, and returns its ID.
func (r *Repository) SaveMaterial(ctx context.Context, m *models.Material) (string, error) {
	return r.Create(ctx, models.FirestoreMaterialsCollection, map[string]interface{}{
		"id":             m.ID,
		"title":          m.Title,
		"description":    m.Description,
		"type":           string(m.Type),
		"content":        m.Content,
		"targetClassIds": m.TargetClassIDs,
		"createdAt":      m.CreatedAt,
	})
}

// UpdateMaterialFields merges the given fields into a material.
func (r *Repository) UpdateMaterialFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.Upsert(ctx, models.FirestoreMaterialsCollection, id, fields)
}

func (r *Repository) DeleteMaterial(ctx context.Context, id string) error {
	return r.Remove(ctx, models.FirestoreMaterialsCollection, id)
}

// WatchMaterials calls handler with every material, newest first, on every change.
func (r *Repository) WatchMaterials(ctx context.Context, handler func([]*models.Material, error)) store.Subscription {
	return r.WatchWhere(ctx, models.FirestoreMaterialsCollection, "", nil, func(docs []*store.Document, err error) {
		if err != nil {
			handler(nil, err)
			return
		}
		handler(decodeMaterials(docs), nil)
	})
}

// Tasks

func (r *Repository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	doc := r.FetchOne(ctx, models.FirestoreTasksCollection, id)
	if doc == nil {
		return nil, qerrors.TaskNotFoundError
	}
	var task models.Task
	if err := decode(doc, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks returns every task, newest first.
func (r *Repository) ListTasks(ctx context.Context) []*models.Task {
	return decodeTasks(r.FetchAll(ctx, models.FirestoreTasksCollection))
}

// SaveTask creates the task, or updates it when ID is set, and returns its ID.
func (r *Repository) SaveTask(ctx context.Context, t *models.Task) (string, error) {
	return r.Create(ctx, models.FirestoreTasksCollection, map[string]interface{}{
		"id":                  t.ID,
		"title":               t.Title,
		"description":         t.Description,
		"type":                string(t.Type),
		"content":             t.Content,
		"targetClassIds":      t.TargetClassIDs,
		"dueDate":             t.DueDate,
		"isSubmissionEnabled": t.IsSubmissionEnabled,
		"createdAt":           t.CreatedAt,
	})
}

// UpdateTaskFields merges the given fields into a task.
func (r *Repository) UpdateTaskFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.Upsert(ctx, models.FirestoreTasksCollection, id, fields)
}

func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	return r.Remove(ctx, models.FirestoreTasksCollection, id)
}

// WatchTasks calls handler with every task, newest first, on every change.
func (r *Repository) WatchTasks(ctx context.Context, handler func([]*models.Task, error)) store.Subscription {
	return r.WatchWhere(ctx, models.FirestoreTasksCollection, "", nil, func(docs []*store.Document, err error) {
		if err != nil {
			handler(nil, err)
			return
		}
		handler(decodeTasks(docs), nil)
	})
}

// Helpers

func decodeMaterials(docs []*store.Document) []*models.Material {
	materials := make([]*models.Material, 0, len(docs))
	for _, doc := range docs {
		var material models.Material
		if err := decode(doc, &material); err != nil {
			glog.Warningf("skipping malformed material %s: %v", doc.ID, err)
			continue
		}
		materials = append(materials, &material)
	}
	sort.SliceStable(materials, func(i, j int) bool {
		return materials[i].CreatedAt.After(materials[j].CreatedAt)
	})
	return materials
}

func decodeTasks(docs []*store.Document) []*models.Task {
	tasks := make([]*models.Task, 0, len(docs))
	for _, doc := range docs {
		var task models.Task
		if err := decode(doc, &task); err != nil {
			glog.Warningf("skipping malformed task %s: %v", doc.ID, err)
			continue
		}
		tasks = append(tasks, &task)
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks
}
