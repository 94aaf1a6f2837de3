package router

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"elearning/internal/middleware"
	"elearning/internal/models"
)

func (api *API) RegistrationRoutes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(api.Gateway.RequireAdmin())

	// Pending registrations, newest first
	router.Get("/", api.listPendingHandler)

	router.Route("/{userID}", func(r chi.Router) {
		r.Use(middleware.UserCtx())
		r.Post("/approve", api.approveHandler)
		r.Post("/reject", api.rejectHandler)
	})

	return router
}

func (api *API) StudentRoutes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(api.Gateway.RequireAdmin())

	router.Get("/", api.listStudentsHandler)
	router.Post("/", api.createStudentHandler)
	router.Get("/audit", api.supportAuditHandler)

	router.Route("/{userID}", func(r chi.Router) {
		r.Use(middleware.UserCtx())
		r.Patch("/", api.updateStudentHandler)
		r.Delete("/", api.deleteStudentHandler)
		r.Post("/reset-password", api.resetPasswordHandler)
	})

	return router
}

// Registrations

// GET: /?search=
func (api *API) listPendingHandler(w http.ResponseWriter, r *http.Request) {
	pending := api.Registration.ListPending(r.Context(), r.URL.Query().Get("search"))
	if pending == nil {
		pending = []*models.UserProfile{}
	}
	render.JSON(w, r, pending)
}

// POST: /{userID}/approve
func (api *API) approveHandler(w http.ResponseWriter, r *http.Request) {
	profile, err := api.Registration.Approve(r.Context(), middleware.Param(r, "userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, profile)
}

// POST: /{userID}/reject?revoke=true
//
// Without revoke the credential survives and the user can still sign in, only to be told their
// profile is missing.
func (api *API) rejectHandler(w http.ResponseWriter, r *http.Request) {
	userID := middleware.Param(r, "userID")

	var err error
	if revoke(r) {
		err = api.Registration.RejectAndRevokeCredential(r.Context(), userID)
	} else {
		err = api.Registration.RejectAndLeaveCredential(r.Context(), userID)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Students

// GET: /?search=&class=
func (api *API) listStudentsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	students := api.Account.ListStudents(r.Context(), query.Get("search"), query.Get("class"))
	if students == nil {
		students = []*models.UserProfile{}
	}
	render.JSON(w, r, students)
}

// POST: /
func (api *API) createStudentHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateStudentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	student, err := api.Gateway.CreateStudentAccount(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, student)
}

// PATCH: /{userID}
func (api *API) updateStudentHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateStudentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.UserID = middleware.Param(r, "userID")

	student, err := api.Account.UpdateStudent(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, student)
}

// DELETE: /{userID}?revoke=true
func (api *API) deleteStudentHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.Account.DeleteStudent(r.Context(), middleware.Param(r, "userID"), revoke(r)); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// POST: /{userID}/reset-password
func (api *API) resetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}

	temporary, err := api.Account.SupportTools().ResetStudentPassword(r.Context(), admin, middleware.Param(r, "userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]string{"temporaryPassword": temporary})
}

// GET: /audit
func (api *API) supportAuditHandler(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}

	entries, err := api.Account.SupportTools().Audit(r.Context(), admin)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, entries)
}

func revoke(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("revoke"))
	return v
}
