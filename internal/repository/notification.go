package repository

import (
	"context"
	"sort"

	"github.com/golang/glog"

	"elearning/internal/models"
	"elearning/internal/qerrors"
	"elearning/internal/store"
)

// AddNotification stores a notification and returns its ID.
func (r *Repository) AddNotification(ctx context.Context, n *models.Notification) (string, error) {
	return r.Create(ctx, models.FirestoreNotificationsCollection, map[string]interface{}{
		"userId":    n.UserID,
		"title":     n.Title,
		"message":   n.Message,
		"type":      string(n.Type),
		"read":      n.Read,
		"createdAt": n.CreatedAt,
	})
}

// ListNotifications returns a user's notifications, newest first.
func (r *Repository) ListNotifications(ctx context.Context, userID string) []*models.Notification {
	return decodeNotifications(r.FetchWhere(ctx, models.FirestoreNotificationsCollection, "userId", userID))
}

// MarkNotificationRead marks one of the user's notifications read.
func (r *Repository) MarkNotificationRead(ctx context.Context, c *models.ClearNotificationRequest) error {
	doc := r.FetchOne(ctx, models.FirestoreNotificationsCollection, c.NotificationID)
	if doc == nil {
		return qerrors.EntityNotFoundError
	}
	if owner, _ := doc.Data["userId"].(string); owner != c.UserID {
		return qerrors.ForbiddenError
	}

	return r.Upsert(ctx, models.FirestoreNotificationsCollection, c.NotificationID, map[string]interface{}{
		"read": true,
	})
}

// MarkAllNotificationsRead marks every unread notification of the user read and returns how many
// were changed.
func (r *Repository) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	var updates []map[string]interface{}
	for _, n := range r.ListNotifications(ctx, userID) {
		if n.Read {
			continue
		}
		updates = append(updates, map[string]interface{}{"id": n.ID, "read": true})
	}
	if len(updates) == 0 {
		return 0, nil
	}
	return len(updates), r.SaveMany(ctx, models.FirestoreNotificationsCollection, updates)
}

// WatchNotifications calls handler with the user's notifications, newest first, on every change.
func (r *Repository) WatchNotifications(ctx context.Context, userID string, handler func([]*models.Notification, error)) store.Subscription {
	return r.WatchWhere(ctx, models.FirestoreNotificationsCollection, "userId", userID, func(docs []*store.Document, err error) {
		if err != nil {
			handler(nil, err)
			return
		}
		handler(decodeNotifications(docs), nil)
	})
}

// Helpers

func decodeNotifications(docs []*store.Document) []*models.Notification {
	notifications := make([]*models.Notification, 0, len(docs))
	for _, doc := range docs {
		var n models.Notification
		if err := decode(doc, &n); err != nil {
			glog.Warningf("skipping malformed notification %s: %v", doc.ID, err)
			continue
		}
		notifications = append(notifications, &n)
	}
	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return notifications
}
