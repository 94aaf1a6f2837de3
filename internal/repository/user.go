package repository

import (
	"context"
	"sort"

	"github.com/golang/glog"

	"elearning/internal/models"
	"elearning/internal/qerrors"
	"elearning/internal/store"
)

// GetUserProfile returns the profile stored under the identity's ID.
func (r *Repository) GetUserProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	doc := r.FetchOne(ctx, models.FirestoreUserProfilesCollection, id)
	if doc == nil {
		return nil, qerrors.ProfileNotFoundError
	}
	return decodeUserProfile(doc)
}

// ListUserProfiles returns every profile, or none if the read failed.
func (r *Repository) ListUserProfiles(ctx context.Context) []*models.UserProfile {
	return decodeUserProfiles(r.FetchAll(ctx, models.FirestoreUserProfilesCollection))
}

// ListUserProfilesWhere returns the profiles whose field equals value.
func (r *Repository) ListUserProfilesWhere(ctx context.Context, field string, value interface{}) []*models.UserProfile {
	return decodeUserProfiles(r.FetchWhere(ctx, models.FirestoreUserProfilesCollection, field, value))
}

// ListStudents returns the STUDENT profiles sorted by name.
func (r *Repository) ListStudents(ctx context.Context) []*models.UserProfile {
	students := r.ListUserProfilesWhere(ctx, "role", string(models.RoleStudent))
	sort.SliceStable(students, func(i, j int) bool {
		return students[i].Name < students[j].Name
	})
	return students
}

// IsUsernameAvailable reports whether no profile uses username. A failed check counts as
// unavailable.
func (r *Repository) IsUsernameAvailable(ctx context.Context, username string) bool {
	docs, err := r.store.Where(ctx, models.FirestoreUserProfilesCollection, "username", username)
	if err != nil {
		r.readFailed(models.FirestoreUserProfilesCollection, err)
		return false
	}
	return len(docs) == 0
}

// CountUserProfiles returns the number of profiles, or an error if they could not be read.
func (r *Repository) CountUserProfiles(ctx context.Context) (int, error) {
	docs, err := r.store.List(ctx, models.FirestoreUserProfilesCollection)
	if err != nil {
		r.readFailed(models.FirestoreUserProfilesCollection, err)
		return 0, err
	}
	return len(docs), nil
}

// SaveUserProfile writes the whole profile.
func (r *Repository) SaveUserProfile(ctx context.Context, p *models.UserProfile) error {
	data := map[string]interface{}{
		"id":          p.ID,
		"username":    p.Username,
		"name":        p.Name,
		"role":        string(p.Role),
		"status":      string(p.Status),
		"avatar":      p.Avatar,
		"createdAt":   p.CreatedAt,
		"activatedAt": p.ActivatedAt,
	}
	if p.Role == models.RoleStudent {
		data["classId"] = p.ClassID
	}
	return r.Upsert(ctx, models.FirestoreUserProfilesCollection, p.ID, data)
}

// UpdateUserProfile merges the given fields into a profile.
func (r *Repository) UpdateUserProfile(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.Upsert(ctx, models.FirestoreUserProfilesCollection, id, fields)
}

func (r *Repository) DeleteUserProfile(ctx context.Context, id string) error {
	return r.Remove(ctx, models.FirestoreUserProfilesCollection, id)
}

// WatchUserProfile calls handler with the profile on every change; profile is nil when the document
// is missing.
func (r *Repository) WatchUserProfile(ctx context.Context, id string, handler func(profile *models.UserProfile, err error)) store.Subscription {
	return r.WatchOne(ctx, models.FirestoreUserProfilesCollection, id, func(doc *store.Document, err error) {
		if err != nil || doc == nil {
			handler(nil, err)
			return
		}
		profile, err := decodeUserProfile(doc)
		handler(profile, err)
	})
}

// WatchUserProfilesWhere calls handler with the matching profiles on every change.
func (r *Repository) WatchUserProfilesWhere(ctx context.Context, field string, value interface{}, handler func(profiles []*models.UserProfile, err error)) store.Subscription {
	return r.WatchWhere(ctx, models.FirestoreUserProfilesCollection, field, value, func(docs []*store.Document, err error) {
		if err != nil {
			handler(nil, err)
			return
		}
		handler(decodeUserProfiles(docs), nil)
	})
}

// Helpers

func decodeUserProfile(doc *store.Document) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := decode(doc, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func decodeUserProfiles(docs []*store.Document) []*models.UserProfile {
	profiles := make([]*models.UserProfile, 0, len(docs))
	for _, doc := range docs {
		profile, err := decodeUserProfile(doc)
		if err != nil {
			glog.Warningf("skipping malformed user profile %s: %v", doc.ID, err)
			continue
		}
		profiles = append(profiles, profile)
	}
	return profiles
}
