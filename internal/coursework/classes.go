package coursework

import (
	"context"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"elearning/internal/analytics"
	"elearning/internal/models"
	"elearning/internal/qerrors"
	"elearning/internal/validation"
)

// RenameCascade counts the documents whose class references followed a class rename.
type RenameCascade struct {
	Students  int `json:"students"`
	Materials int `json:"materials"`
	Tasks     int `json:"tasks"`
}

func (s *Service) CreateClass(ctx context.Context, req *models.SaveClassRequest) (*models.ClassRoom, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if s.classNameTaken(ctx, name, "") {
		return nil, qerrors.ClassNameTakenError
	}

	class := &models.ClassRoom{Name: name, HomeroomTeacher: req.HomeroomTeacher}
	id, err := s.repo.SaveClass(ctx, class)
	if err != nil {
		return nil, err
	}
	class.ID = id
	return class, nil
}

// UpdateClass saves a class. Renaming a class rewrites every student, material and task that
// referenced the old name; if that fails part way, the class keeps its new name and the leftover
// references show up in OrphanedReferences.
func (s *Service) UpdateClass(ctx context.Context, req *models.SaveClassRequest) (*models.ClassRoom, *RenameCascade, error) {
	if err := validation.Struct(req); err != nil {
		return nil, nil, err
	}

	existing, ok := s.Resolver(ctx).Resolve(models.ClassID(req.ClassID))
	if !ok {
		return nil, nil, qerrors.ClassNotFoundError
	}

	name := strings.TrimSpace(req.Name)
	if name != existing.Name && s.classNameTaken(ctx, name, existing.ID) {
		return nil, nil, qerrors.ClassNameTakenError
	}

	class := &models.ClassRoom{ID: existing.ID, Name: name, HomeroomTeacher: req.HomeroomTeacher}
	if _, err := s.repo.SaveClass(ctx, class); err != nil {
		return nil, nil, err
	}

	cascade := &RenameCascade{}
	if name == existing.Name {
		return class, cascade, nil
	}

	if err := s.cascadeRename(ctx, existing.Name, name, cascade); err != nil {
		glog.Errorf("class %s renamed from %q to %q but references were not all updated: %v\n", class.ID, existing.Name, name, err)
		return class, cascade, errors.Wrap(err, "updating class references")
	}
	return class, cascade, nil
}

func (s *Service) DeleteClass(ctx context.Context, id string) error {
	if _, ok := s.Resolver(ctx).Resolve(models.ClassID(id)); !ok {
		return qerrors.ClassNotFoundError
	}
	return s.repo.DeleteClass(ctx, id)
}

// ListClasses returns the classes whose name or homeroom teacher contains search, with their
// active student counts.
func (s *Service) ListClasses(ctx context.Context, search string) []*models.ClassSummary {
	search = strings.ToLower(strings.TrimSpace(search))

	var classes []*models.ClassRoom
	for _, class := range s.repo.ListClasses(ctx) {
		if search == "" ||
			strings.Contains(strings.ToLower(class.Name), search) ||
			strings.Contains(strings.ToLower(class.HomeroomTeacher), search) {
			classes = append(classes, class)
		}
	}
	return analytics.SummarizeClasses(classes, s.repo.ListStudents(ctx))
}

// Resolver returns a resolver over the classes currently in the store.
func (s *Service) Resolver(ctx context.Context) *ClassResolver {
	return NewClassResolver(s.repo.ListClasses(ctx))
}

// OrphanedReferences lists the students, materials and tasks that reference a class name no class
// has.
func (s *Service) OrphanedReferences(ctx context.Context) []*OrphanedReference {
	resolver := s.Resolver(ctx)

	var orphans []*OrphanedReference
	for _, student := range s.repo.ListStudents(ctx) {
		if student.ClassID == "" {
			continue
		}
		if names := resolver.Orphans([]string{student.ClassID}); len(names) > 0 {
			orphans = append(orphans, &OrphanedReference{Collection: models.FirestoreUserProfilesCollection, ID: student.ID, Title: student.Name, ClassNames: names})
		}
	}
	for _, m := range s.repo.ListMaterials(ctx) {
		if names := resolver.Orphans(m.TargetClassIDs); len(names) > 0 {
			orphans = append(orphans, &OrphanedReference{Collection: models.FirestoreMaterialsCollection, ID: m.ID, Title: m.Title, ClassNames: names})
		}
	}
	for _, t := range s.repo.ListTasks(ctx) {
		if names := resolver.Orphans(t.TargetClassIDs); len(names) > 0 {
			orphans = append(orphans, &OrphanedReference{Collection: models.FirestoreTasksCollection, ID: t.ID, Title: t.Title, ClassNames: names})
		}
	}
	return orphans
}

func (s *Service) cascadeRename(ctx context.Context, oldName, newName string, cascade *RenameCascade) error {
	var students []map[string]interface{}
	for _, student := range s.repo.ListUserProfilesWhere(ctx, "classId", oldName) {
		students = append(students, map[string]interface{}{"id": student.ID, "classId": newName})
	}
	if len(students) > 0 {
		if err := s.repo.SaveMany(ctx, models.FirestoreUserProfilesCollection, students); err != nil {
			return err
		}
		cascade.Students = len(students)
	}

	var materials []map[string]interface{}
	for _, m := range s.repo.ListMaterials(ctx) {
		if targets, ok := renameTarget(m.TargetClassIDs, oldName, newName); ok {
			materials = append(materials, map[string]interface{}{"id": m.ID, "targetClassIds": targets})
		}
	}
	if len(materials) > 0 {
		if err := s.repo.SaveMany(ctx, models.FirestoreMaterialsCollection, materials); err != nil {
			return err
		}
		cascade.Materials = len(materials)
	}

	var tasks []map[string]interface{}
	for _, t := range s.repo.ListTasks(ctx) {
		if targets, ok := renameTarget(t.TargetClassIDs, oldName, newName); ok {
			tasks = append(tasks, map[string]interface{}{"id": t.ID, "targetClassIds": targets})
		}
	}
	if len(tasks) > 0 {
		if err := s.repo.SaveMany(ctx, models.FirestoreTasksCollection, tasks); err != nil {
			return err
		}
		cascade.Tasks = len(tasks)
	}

	return nil
}

func (s *Service) classNameTaken(ctx context.Context, name, exceptID string) bool {
	for _, class := range s.repo.ListClasses(ctx) {
		if class.ID != exceptID && strings.EqualFold(class.Name, name) {
			return true
		}
	}
	return false
}

// renameTarget replaces oldName in targets, dropping duplicates. ok is false when targets does not
// contain oldName.
func renameTarget(targets []string, oldName, newName string) (renamed []string, ok bool) {
	seen := make(map[string]bool, len(targets))
	for _, target := range targets {
		if target == oldName {
			ok = true
			target = newName
		}
		if seen[target] {
			continue
		}
		seen[target] = true
		renamed = append(renamed, target)
	}
	return renamed, ok
}
