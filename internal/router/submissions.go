package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"elearning/internal/coursework"
	"elearning/internal/middleware"
	"elearning/internal/models"
	"elearning/internal/qerrors"
)

func (api *API) SubmissionRoutes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(api.Gateway.RequireAuth(false))

	// A student's own submissions, or every submission for an administrator
	router.Get("/", api.listSubmissionsHandler)
	router.Post("/", api.submitTaskHandler)

	router.With(api.Gateway.RequireAdmin()).Get("/queue", api.gradingQueueHandler)
	router.Route("/{submissionID}", func(r chi.Router) {
		r.Use(api.Gateway.RequireAdmin(), middleware.SubmissionCtx())
		r.Post("/grade", api.gradeSubmissionHandler)
		r.Delete("/", api.deleteSubmissionHandler)
	})

	return router
}

// GET: /
func (api *API) listSubmissionsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	render.JSON(w, r, api.Coursework.SubmissionsFor(r.Context(), user))
}

// POST: /
func (api *API) submitTaskHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if user.IsAdmin() {
		writeError(w, r, qerrors.ForbiddenError)
		return
	}

	var req models.SubmitTaskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.StudentID = user.ID

	submission, err := api.Coursework.Submit(r.Context(), user, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, submission)
}

// GET: /queue?class=&task=
func (api *API) gradingQueueHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	queue, stats := api.Coursework.GradingQueue(r.Context(), query.Get("class"), query.Get("task"))
	if queue == nil {
		queue = []*models.Submission{}
	}

	render.JSON(w, r, struct {
		Submissions []*models.Submission       `json:"submissions"`
		Stats       coursework.SubmissionStats `json:"stats"`
	}{queue, stats})
}

// POST: /{submissionID}/grade
func (api *API) gradeSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	var req models.GradeSubmissionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.SubmissionID = middleware.Param(r, "submissionID")

	submission, err := api.Coursework.Grade(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, submission)
}

// DELETE: /{submissionID}
func (api *API) deleteSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.Coursework.DeleteSubmission(r.Context(), middleware.Param(r, "submissionID")); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
