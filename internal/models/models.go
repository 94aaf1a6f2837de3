package models

// Firestore collection names. They match the collections the web client has always written to, so
// existing data keeps working.
const (
	FirestoreUserProfilesCollection  = "users"
	FirestoreClassesCollection       = "elearning_classes"
	FirestoreMaterialsCollection     = "elearning_materials"
	FirestoreTasksCollection         = "elearning_tasks"
	FirestoreSubmissionsCollection   = "elearning_submissions"
	FirestoreNotificationsCollection = "elearning_notifications"
	FirestoreSettingsCollection      = "settings"
	FirestoreSupportAuditCollection  = "support_audit"

	// SiteSettingsDocID is the ID of the singleton SiteSettings document.
	SiteSettingsDocID = "site_configs"
)

// AllCollections lists every collection used by the portal.
var AllCollections = []string{
	FirestoreUserProfilesCollection,
	FirestoreClassesCollection,
	FirestoreMaterialsCollection,
	FirestoreTasksCollection,
	FirestoreSubmissionsCollection,
	FirestoreNotificationsCollection,
	FirestoreSettingsCollection,
	FirestoreSupportAuditCollection,
}
