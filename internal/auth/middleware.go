package auth

import (
	"context"
	"net/http"

	"github.com/go-chi/render"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"elearning/internal/models"
	"elearning/internal/qerrors"
	"elearning/internal/session"
)

type contextKey string

const (
	currentUserKey   contextKey = "currentUser"
	sessionTokenKey  contextKey = "sessionToken"
	unauthorizedText            = "You must be authenticated to access this resource"
)

// RequireAuth is a middleware that rejects requests without a valid session cookie, and requests
// whose profile is missing or not yet approved. The profile is added to the request context and
// can be read with GetUserFromRequest.
func (g *Gateway) RequireAuth(adminOnly bool) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenCookie, err := r.Cookie(g.cfg.SessionCookieName)
			if err != nil {
				reject(w, r, http.StatusUnauthorized, unauthorizedText)
				return
			}

			uid, err := g.backend.VerifySessionToken(r.Context(), tokenCookie.Value)
			if err != nil {
				reject(w, r, http.StatusUnauthorized, unauthorizedText)
				return
			}

			profile, err := g.repo.GetUserProfile(r.Context(), uid)
			if err != nil && !errors.Is(err, qerrors.ProfileNotFoundError) {
				glog.Warningf("error loading profile %s: %v\n", uid, err)
				reject(w, r, http.StatusServiceUnavailable, "profile could not be loaded")
				return
			}
			if err := session.Authorize(profile); err != nil {
				reject(w, r, http.StatusForbidden, err.Error())
				return
			}

			if adminOnly && !profile.IsAdmin() {
				reject(w, r, http.StatusForbidden, qerrors.ForbiddenError.Error())
				return
			}

			ctx := context.WithValue(r.Context(), currentUserKey, profile)
			ctx = context.WithValue(ctx, sessionTokenKey, tokenCookie.Value)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin is RequireAuth(true).
func (g *Gateway) RequireAdmin() func(handler http.Handler) http.Handler {
	return g.RequireAuth(true)
}

// GetUserFromRequest returns the profile stored by RequireAuth.
func GetUserFromRequest(r *http.Request) (*models.UserProfile, error) {
	user, ok := r.Context().Value(currentUserKey).(*models.UserProfile)
	if ok && user != nil {
		return user, nil
	}

	return nil, qerrors.UnauthenticatedError
}

// GetSessionTokenFromRequest returns the session token RequireAuth verified.
func GetSessionTokenFromRequest(r *http.Request) (string, error) {
	token, ok := r.Context().Value(sessionTokenKey).(string)
	if ok && token != "" {
		return token, nil
	}

	return "", qerrors.UnauthenticatedError
}

// Helpers

func reject(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"message": message})
}
