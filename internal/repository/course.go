package repository

import (
	"context"
	"sort"

	"github.com/golang/glog"

	"elearning/internal/models"
	"elearning/internal/store"
)

// ListClasses returns every class sorted by name.
func (r *Repository) ListClasses(ctx context.Context) []*models.ClassRoom {
	classes := decodeClasses(r.FetchAll(ctx, models.FirestoreClassesCollection))
	sortClasses(classes)
	return classes
}

// SaveClass creates the class, or updates it when ID is set, and returns its ID.
func (r *Repository) SaveClass(ctx context.Context, c *models.ClassRoom) (string, error) {
	return r.Create(ctx, models.FirestoreClassesCollection, map[string]interface{}{
		"id":              c.ID,
		"name":            c.Name,
		"homeroomTeacher": c.HomeroomTeacher,
	})
}

func (r *Repository) DeleteClass(ctx context.Context, id string) error {
	return r.Remove(ctx, models.FirestoreClassesCollection, id)
}

// Helpers

func decodeClasses(docs []*store.Document) []*models.ClassRoom {
	classes := make([]*models.ClassRoom, 0, len(docs))
	for _, doc := range docs {
		var class models.ClassRoom
		if err := decode(doc, &class); err != nil {
			glog.Warningf("skipping malformed class %s: %v", doc.ID, err)
			continue
		}
		classes = append(classes, &class)
	}
	return classes
}

func sortClasses(classes []*models.ClassRoom) {
	sort.SliceStable(classes, func(i, j int) bool {
		return classes[i].Name < classes[j].Name
	})
}
