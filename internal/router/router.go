package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"elearning/internal/account"
	"elearning/internal/auth"
	"elearning/internal/config"
	"elearning/internal/coursework"
	"elearning/internal/identity"
	"elearning/internal/models"
	"elearning/internal/qerrors"
	"elearning/internal/registration"
	"elearning/internal/repository"
	"elearning/internal/store"
)

// API holds the services the HTTP handlers call.
type API struct {
	Config       *config.ServerConfig
	Repo         *repository.Repository
	Gateway      *auth.Gateway
	Registration *registration.Service
	Coursework   *coursework.Service
	Account      *account.Service
}

func (api *API) HealthRoutes() *chi.Mux {
	router := chi.NewRouter()
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	return router
}

// Helpers

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return qerrors.NewValidationError(errors.Wrap(err, "invalid request body"))
	}
	return nil
}

// currentUser returns the profile RequireAuth stored, writing a 401 when there is none.
func currentUser(w http.ResponseWriter, r *http.Request) (*models.UserProfile, bool) {
	user, err := auth.GetUserFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return user, true
}

type errorResponse struct {
	Message string               `json:"message"`
	Fields  []qerrors.FieldError `json:"fields,omitempty"`
}

// writeError maps err to a status code and writes it as {"message": ...}.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		glog.Errorf("%s %s: %v\n", r.Method, r.URL.Path, err)
	}

	resp := errorResponse{Message: err.Error()}
	var vErr *qerrors.ValidationError
	if errors.As(err, &vErr) {
		resp.Fields = vErr.Fields
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}

func statusOf(err error) int {
	var vErr *qerrors.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.Is(err, qerrors.InvalidCredentialError),
		errors.Is(err, qerrors.UnauthenticatedError),
		errors.Is(err, identity.ErrInvalidSession),
		errors.Is(err, identity.ErrNotSignedIn):
		return http.StatusUnauthorized
	case errors.Is(err, qerrors.RoleMismatchError),
		errors.Is(err, qerrors.PendingApprovalError),
		errors.Is(err, qerrors.ForbiddenError),
		errors.Is(err, qerrors.SubmissionNotVisibleError),
		errors.Is(err, qerrors.PermissionDeniedError),
		store.IsPermissionDenied(err):
		return http.StatusForbidden
	case errors.Is(err, qerrors.ProfileNotFoundError),
		errors.Is(err, qerrors.UserNotFoundError),
		errors.Is(err, qerrors.EntityNotFoundError),
		errors.Is(err, qerrors.ClassNotFoundError),
		errors.Is(err, qerrors.TaskNotFoundError),
		errors.Is(err, qerrors.SubmissionNotFoundError),
		store.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, qerrors.UsernameTakenError),
		errors.Is(err, qerrors.EmailInUseError),
		errors.Is(err, qerrors.ClassNameTakenError),
		errors.Is(err, qerrors.AlreadySubmittedError),
		errors.Is(err, qerrors.NotPendingError):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
