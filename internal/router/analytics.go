package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"elearning/internal/middleware"
	"elearning/internal/models"
	"elearning/internal/qerrors"
)

func (api *API) OverviewRoutes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(api.Gateway.RequireAuth(false))

	// Dashboard counters
	router.With(api.Gateway.RequireAdmin()).Get("/", api.overviewHandler)

	// Grades of every active student, optionally of one class
	router.With(api.Gateway.RequireAdmin()).Get("/report", api.gradeReportHandler)

	// A student's own grade summary
	router.Get("/progress", api.myProgressHandler)
	router.With(api.Gateway.RequireAdmin(), middleware.UserCtx()).Get("/progress/{userID}", api.studentProgressHandler)

	return router
}

// GET: /
func (api *API) overviewHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.Coursework.Overview(r.Context()))
}

// GET: /report?class=
func (api *API) gradeReportHandler(w http.ResponseWriter, r *http.Request) {
	rows := api.Coursework.GradeReport(r.Context(), r.URL.Query().Get("class"))
	if rows == nil {
		rows = []*models.ReportRow{}
	}
	render.JSON(w, r, rows)
}

// GET: /progress
func (api *API) myProgressHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if user.IsAdmin() {
		writeError(w, r, qerrors.ForbiddenError)
		return
	}

	render.JSON(w, r, api.Coursework.StudentProgress(r.Context(), user))
}

// GET: /progress/{userID}
func (api *API) studentProgressHandler(w http.ResponseWriter, r *http.Request) {
	student, err := api.Repo.GetUserProfile(r.Context(), middleware.Param(r, "userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, api.Coursework.StudentProgress(r.Context(), student))
}
