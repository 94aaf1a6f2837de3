package qerrors

import "errors"

var (
	// Authentication errors. Each maps to one user-facing message.
	InvalidCredentialError = errors.New("invalid username or password")
	RoleMismatchError      = errors.New("this account does not have access to the selected role")
	PendingApprovalError   = errors.New("account is waiting for administrator approval")
	ProfileNotFoundError   = errors.New("user profile not found")
	UsernameTakenError     = errors.New("username is not available")
	EmailInUseError        = errors.New("an account already exists for this username")
	UnauthenticatedError   = errors.New("user not authenticated")
	ForbiddenError         = errors.New("permission denied")

	// Store errors
	PermissionDeniedError = errors.New("the directory store denied access")
	EntityNotFoundError   = errors.New("entity not found")

	// User errors
	DeleteUserError   = errors.New("an error occurred while deleting user")
	UserNotFoundError = errors.New("user not found")
	NotPendingError   = errors.New("registration is not pending")

	// Class errors
	ClassNotFoundError  = errors.New("class not found")
	ClassNameTakenError = errors.New("a class with this name already exists")

	// Coursework errors
	TaskNotFoundError         = errors.New("task not found")
	SubmissionNotFoundError   = errors.New("submission not found")
	AlreadySubmittedError     = errors.New("task has already been submitted")
	SubmissionNotVisibleError = errors.New("task is not assigned to this student's class")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError is returned when a request fails validation before anything is written.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err *ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "validation failed"
	}
	return err.Err.Error()
}

func (err *ValidationError) Unwrap() error {
	return err.Err
}
