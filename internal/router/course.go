package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"elearning/internal/coursework"
	"elearning/internal/middleware"
	"elearning/internal/models"
)

func (api *API) ClassRoutes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(api.Gateway.RequireAuth(false))

	router.Get("/", api.listClassesHandler)

	// Modifying classes themselves
	router.With(api.Gateway.RequireAdmin()).Post("/", api.createClassHandler)
	router.With(api.Gateway.RequireAdmin()).Get("/orphans", api.orphanedReferencesHandler)
	router.Route("/{classID}", func(r chi.Router) {
		r.Use(api.Gateway.RequireAdmin(), middleware.ClassCtx())
		r.Patch("/", api.updateClassHandler)
		r.Delete("/", api.deleteClassHandler)
	})

	return router
}

func (api *API) MaterialRoutes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(api.Gateway.RequireAuth(false))

	// Students only see materials targeting their class
	router.Get("/", api.listMaterialsHandler)

	router.With(api.Gateway.RequireAdmin()).Post("/", api.createMaterialHandler)
	router.Route("/{materialID}", func(r chi.Router) {
		r.Use(api.Gateway.RequireAdmin(), middleware.MaterialCtx())
		r.Patch("/", api.updateMaterialHandler)
		r.Delete("/", api.deleteMaterialHandler)
	})

	return router
}

func (api *API) TaskRoutes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(api.Gateway.RequireAuth(false))

	router.Get("/", api.listTasksHandler)

	router.With(api.Gateway.RequireAdmin()).Post("/", api.createTaskHandler)
	router.Route("/{taskID}", func(r chi.Router) {
		r.Use(api.Gateway.RequireAdmin(), middleware.TaskCtx())
		r.Patch("/", api.updateTaskHandler)
		r.Delete("/", api.deleteTaskHandler)
	})

	return router
}

// Classes

// GET: /?search=
func (api *API) listClassesHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.Coursework.ListClasses(r.Context(), r.URL.Query().Get("search")))
}

// POST: /
func (api *API) createClassHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SaveClassRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	class, err := api.Coursework.CreateClass(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, class)
}

// PATCH: /{classID}
func (api *API) updateClassHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SaveClassRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.ClassID = middleware.Param(r, "classID")

	class, cascade, err := api.Coursework.UpdateClass(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, struct {
		Class   *models.ClassRoom         `json:"class"`
		Cascade *coursework.RenameCascade `json:"cascade,omitempty"`
	}{class, cascade})
}

// DELETE: /{classID}
func (api *API) deleteClassHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.Coursework.DeleteClass(r.Context(), middleware.Param(r, "classID")); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET: /orphans
func (api *API) orphanedReferencesHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.Coursework.OrphanedReferences(r.Context()))
}

// Materials

// GET: /
func (api *API) listMaterialsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	render.JSON(w, r, api.Coursework.MaterialsFor(r.Context(), user))
}

// POST: /
func (api *API) createMaterialHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SaveMaterialRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	material, err := api.Coursework.CreateMaterial(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, material)
}

// PATCH: /{materialID}
func (api *API) updateMaterialHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SaveMaterialRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.MaterialID = middleware.Param(r, "materialID")

	material, err := api.Coursework.UpdateMaterial(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, material)
}

// DELETE: /{materialID}
func (api *API) deleteMaterialHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.Coursework.DeleteMaterial(r.Context(), middleware.Param(r, "materialID")); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Tasks

// GET: /?filter=all|pending|completed
//
// Students get their deadline status and submission with each task. Administrators get the plain
// task list.
func (api *API) listTasksHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if user.IsAdmin() {
		render.JSON(w, r, api.Coursework.TasksFor(r.Context(), user))
		return
	}

	filter := coursework.TaskFilter(r.URL.Query().Get("filter"))
	if filter == "" {
		filter = coursework.TasksAll
	}
	tasks, stats := api.Coursework.StudentTasks(r.Context(), user, filter)
	render.JSON(w, r, struct {
		Tasks []*models.TaskWithStatus `json:"tasks"`
		Stats coursework.TaskStats     `json:"stats"`
	}{tasks, stats})
}

// POST: /
func (api *API) createTaskHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SaveTaskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	task, err := api.Coursework.CreateTask(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, task)
}

// PATCH: /{taskID}
func (api *API) updateTaskHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SaveTaskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.TaskID = middleware.Param(r, "taskID")

	task, err := api.Coursework.UpdateTask(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, task)
}

// DELETE: /{taskID}
func (api *API) deleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.Coursework.DeleteTask(r.Context(), middleware.Param(r, "taskID")); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
