package repository

import (
	"context"
	"time"

	"elearning/internal/models"
	"elearning/internal/store"
)

// GetSiteSettings returns the stored settings, or the defaults when none have been saved.
func (r *Repository) GetSiteSettings(ctx context.Context) *models.SiteSettings {
	doc := r.FetchOne(ctx, models.FirestoreSettingsCollection, models.SiteSettingsDocID)
	return siteSettingsFromDoc(doc)
}

func (r *Repository) SaveSiteSettings(ctx context.Context, s *models.SiteSettings) error {
	return r.Upsert(ctx, models.FirestoreSettingsCollection, models.SiteSettingsDocID, map[string]interface{}{
		"logoUrl":      s.LogoURL,
		"heroImageUrl": s.HeroImageURL,
		"siteName":     s.SiteName,
	})
}

// WatchSiteSettings calls handler with the settings on every change.
func (r *Repository) WatchSiteSettings(ctx context.Context, handler func(*models.SiteSettings)) store.Subscription {
	return r.WatchOne(ctx, models.FirestoreSettingsCollection, models.SiteSettingsDocID, func(doc *store.Document, err error) {
		if err != nil {
			return
		}
		handler(siteSettingsFromDoc(doc))
	})
}

// AddSupportAudit records a use of the support tools.
func (r *Repository) AddSupportAudit(ctx context.Context, action, actorID, subjectID string) (string, error) {
	return r.Create(ctx, models.FirestoreSupportAuditCollection, map[string]interface{}{
		"action":    action,
		"actorId":   actorID,
		"subjectId": subjectID,
		"createdAt": time.Now(),
	})
}

// ListSupportAudit returns every support audit entry.
func (r *Repository) ListSupportAudit(ctx context.Context) []*models.SupportAuditEntry {
	docs := r.FetchAll(ctx, models.FirestoreSupportAuditCollection)
	entries := make([]*models.SupportAuditEntry, 0, len(docs))
	for _, doc := range docs {
		var entry models.SupportAuditEntry
		if err := decode(doc, &entry); err == nil {
			entries = append(entries, &entry)
		}
	}
	return entries
}

func siteSettingsFromDoc(doc *store.Document) *models.SiteSettings {
	settings := models.DefaultSiteSettings()
	if doc == nil {
		return settings
	}
	// Decode over the defaults so fields missing from the document keep their default value.
	if err := decode(doc, settings); err != nil {
		return models.DefaultSiteSettings()
	}
	return settings
}
