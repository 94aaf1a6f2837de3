package models

import (
	"time"
)

type NotificationType string

const (
	NotificationMaterial     NotificationType = "material"
	NotificationTask         NotificationType = "task"
	NotificationGrade        NotificationType = "grade"
	NotificationRegistration NotificationType = "registration"
)

// Notification is an in-app message addressed to a single user.
type Notification struct {
	ID        string           `json:"id" mapstructure:"id"`
	UserID    string           `json:"userId" mapstructure:"userId"`
	Title     string           `json:"title" mapstructure:"title"`
	Message   string           `json:"message" mapstructure:"message"`
	Type      NotificationType `json:"type" mapstructure:"type"`
	Read      bool             `json:"read" mapstructure:"read"`
	CreatedAt time.Time        `json:"createdAt" mapstructure:"createdAt"`
}

// ClearNotificationRequest is the parameter struct for the MarkNotificationRead function.
type ClearNotificationRequest struct {
	// Will be set from context
	UserID         string `json:",omitempty"`
	NotificationID string `json:"notificationId" mapstructure:"notificationId" validate:"required"`
}
