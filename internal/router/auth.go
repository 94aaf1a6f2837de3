package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/golang/glog"

	"elearning/internal/auth"
	"elearning/internal/models"
)

func (api *API) AuthRoutes() *chi.Mux {
	router := chi.NewRouter()

	// Auth routes that require an approved account
	router.Route("/", func(r chi.Router) {
		r.Use(api.Gateway.RequireAuth(false))

		// Information about the current user
		r.Get("/me", api.getMeHandler)

		// Update the current user's profile and credential
		r.Post("/account", api.updateAccountHandler)
	})

	// Alter the current session. No auth middlewares required.
	router.Post("/login", api.loginHandler)
	router.Post("/signup", api.signupHandler)
	router.Post("/logout", api.logoutHandler)
	router.Post("/password-reset", api.passwordResetHandler)

	return router
}

// GET: /me
func (api *API) getMeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	render.JSON(w, r, user)
}

// POST: /account
func (api *API) updateAccountHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.UpdateAccountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.UserID = user.ID

	token, err := auth.GetSessionTokenFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	client, err := api.Gateway.Backend().Resume(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := api.Account.UpdateAccount(r.Context(), client, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, result)
}

// POST: /login
func (api *API) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	profile, id, err := api.Gateway.Login(r.Context(), api.Gateway.Backend().NewClient(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	expiresIn := api.Config.SessionCookieExpiration

	// The session token carries the identity of the ID token it was issued for.
	token, err := api.Gateway.Backend().IssueSessionToken(r.Context(), id.IDToken, expiresIn)
	if err != nil {
		writeError(w, r, err)
		return
	}

	api.setSessionCookie(w, token, int(expiresIn.Seconds()))
	render.JSON(w, r, profile)
}

// POST: /signup
func (api *API) signupHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := api.Registration.Submit(r.Context(), api.Gateway.Backend().NewClient(), &req, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, profile)
}

// POST: /logout
func (api *API) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(api.Config.SessionCookieName); err == nil {
		if client, err := api.Gateway.Backend().Resume(r.Context(), cookie.Value); err == nil {
			if err := api.Gateway.Logout(r.Context(), client); err != nil {
				glog.Warningf("error signing out: %v\n", err)
			}
		}
	}

	api.setSessionCookie(w, "", -1)
	w.WriteHeader(http.StatusOK)
}

// POST: /password-reset
func (api *API) passwordResetHandler(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := api.Gateway.RequestPasswordReset(r.Context(), api.Gateway.Backend().NewClient(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (api *API) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	var sameSite http.SameSite
	if api.Config.IsHTTPS {
		sameSite = http.SameSiteNoneMode
	} else {
		sameSite = http.SameSiteLaxMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     api.Config.SessionCookieName,
		Value:    value,
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: sameSite,
		Secure:   api.Config.IsHTTPS,
		Path:     "/",
	})
}
