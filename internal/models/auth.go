package models

import (
	"time"
)

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleStudent Role = "STUDENT"
)

type UserStatus string

const (
	StatusActive  UserStatus = "ACTIVE"
	StatusPending UserStatus = "PENDING"
)

// UserProfile is the Directory Store document describing a portal user. The document ID is the
// opaque ID issued by the Identity Service.
type UserProfile struct {
	ID       string     `json:"id" mapstructure:"id"`
	Username string     `json:"username" mapstructure:"username"`
	Name     string     `json:"name" mapstructure:"name"`
	Role     Role       `json:"role" mapstructure:"role"`
	Status   UserStatus `json:"status" mapstructure:"status"`
	// ClassID holds the ClassRoom *name* the student belongs to. STUDENT only.
	ClassID     string     `json:"classId,omitempty" mapstructure:"classId"`
	Avatar      string     `json:"avatar,omitempty" mapstructure:"avatar"`
	CreatedAt   time.Time  `json:"createdAt" mapstructure:"createdAt"`
	ActivatedAt *time.Time `json:"activatedAt,omitempty" mapstructure:"activatedAt"`
}

// IsAdmin reports whether the profile belongs to an administrator.
func (p *UserProfile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// IsActive reports whether the account may use the portal. Administrators are always active.
func (p *UserProfile) IsActive() bool {
	return p.Role == RoleAdmin || p.Status == StatusActive
}

// LoginRequest is the parameter struct for the Login function.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	// Role is the role the user chose on the landing page. Empty means "any role".
	Role Role `json:"role,omitempty" validate:"omitempty,oneof=ADMIN STUDENT"`
}

// SignupRequest is the parameter struct for the Signup function.
type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required,username"`
	ClassID  string `json:"classId" validate:"required,classname"`
	Password string `json:"password" validate:"required,min=6"`
}

// CreateStudentRequest is the parameter struct for administrator-created student accounts.
type CreateStudentRequest struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required,username"`
	ClassID  string `json:"classId" validate:"required,classname"`
	Password string `json:"password" validate:"required,min=6"`
	Avatar   string `json:"avatar,omitempty" validate:"omitempty,httpurl"`
}

// UpdateStudentRequest is the parameter struct for administrator edits of a student profile.
type UpdateStudentRequest struct {
	// Will be set from the URL
	UserID  string `json:",omitempty"`
	Name    string `json:"name" validate:"required"`
	ClassID string `json:"classId" validate:"required,classname"`
	Avatar  string `json:"avatar,omitempty" validate:"omitempty,httpurl"`
}

// PasswordResetRequest is the parameter struct for the RequestPasswordReset function.
type PasswordResetRequest struct {
	Username string `json:"username" validate:"required"`
}

// UpdateAccountRequest is the parameter struct for the UpdateAccount function. Empty Password means
// "keep the current password".
type UpdateAccountRequest struct {
	// Will be set from context
	UserID   string `json:",omitempty"`
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password,omitempty" validate:"omitempty,min=6"`
	Avatar   string `json:"avatar,omitempty"`
}

// SupportAuditEntry records a use of the support tools.
type SupportAuditEntry struct {
	ID        string    `json:"id" mapstructure:"id"`
	Action    string    `json:"action" mapstructure:"action"`
	ActorID   string    `json:"actorId" mapstructure:"actorId"`
	SubjectID string    `json:"subjectId" mapstructure:"subjectId"`
	CreatedAt time.Time `json:"createdAt" mapstructure:"createdAt"`
}
