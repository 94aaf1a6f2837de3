package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"elearning/internal/models"
)

func (api *API) NotificationRoutes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(api.Gateway.RequireAuth(false))

	router.Get("/", api.listNotificationsHandler)

	// Notification clearing
	router.Post("/read", api.markNotificationReadHandler)
	router.Post("/read-all", api.markAllNotificationsReadHandler)

	return router
}

func (api *API) SettingsRoutes() *chi.Mux {
	router := chi.NewRouter()

	// Branding is shown on the landing page, before anyone signs in.
	router.Get("/", api.getSettingsHandler)
	router.With(api.Gateway.RequireAdmin()).Put("/", api.updateSettingsHandler)

	// Write indicator and permission banner
	router.With(api.Gateway.RequireAuth(false)).Get("/sync", api.syncStatusHandler)
	router.With(api.Gateway.RequireAuth(false)).Post("/sync/dismiss", api.dismissBannerHandler)

	return router
}

// GET: /
func (api *API) listNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	render.JSON(w, r, api.Repo.ListNotifications(r.Context(), user.ID))
}

// POST: /read
func (api *API) markNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.ClearNotificationRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.UserID = user.ID

	if err := api.Repo.MarkNotificationRead(r.Context(), &req); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// POST: /read-all
func (api *API) markAllNotificationsReadHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	n, err := api.Repo.MarkAllNotificationsRead(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]int{"updated": n})
}

// GET: /
func (api *API) getSettingsHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.Account.SiteSettings(r.Context()))
}

// PUT: /
func (api *API) updateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SiteSettings
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	settings, err := api.Account.UpdateSiteSettings(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, settings)
}

// GET: /sync
func (api *API) syncStatusHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.Repo.Sync().State())
}

// POST: /sync/dismiss
func (api *API) dismissBannerHandler(w http.ResponseWriter, r *http.Request) {
	api.Repo.Sync().DismissBanner()
	w.WriteHeader(http.StatusNoContent)
}
