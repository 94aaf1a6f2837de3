package coursework

import (
	"elearning/internal/models"
)

// ClassResolver looks classes up by ID or by name.
type ClassResolver struct {
	byID   map[string]*models.ClassRoom
	byName map[string]*models.ClassRoom
}

func NewClassResolver(classes []*models.ClassRoom) *ClassResolver {
	r := &ClassResolver{
		byID:   make(map[string]*models.ClassRoom, len(classes)),
		byName: make(map[string]*models.ClassRoom, len(classes)),
	}
	for _, class := range classes {
		r.byID[class.ID] = class
		r.byName[class.Name] = class
	}
	return r
}

func (r *ClassResolver) Resolve(ref models.ClassRef) (*models.ClassRoom, bool) {
	var class *models.ClassRoom
	switch ref.Kind {
	case models.ClassRefByID:
		class = r.byID[ref.Value]
	default:
		class = r.byName[ref.Value]
	}
	return class, class != nil
}

// Orphans returns the class names in names that resolve to no class.
func (r *ClassResolver) Orphans(names []string) []string {
	var orphans []string
	for _, name := range names {
		if _, ok := r.Resolve(models.ClassName(name)); !ok {
			orphans = append(orphans, name)
		}
	}
	return orphans
}

// OrphanedReference is a document that targets or belongs to a class that no longer exists, usually
// because the class was deleted.
type OrphanedReference struct {
	Collection string   `json:"collection"`
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	ClassNames []string `json:"classNames"`
}
