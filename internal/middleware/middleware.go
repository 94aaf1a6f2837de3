package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type paramKey string

// URLParamCtx copies the named URL params into the request context, where Param reads them.
func URLParamCtx(params ...string) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			for _, param := range params {
				ctx = context.WithValue(ctx, paramKey(param), chi.URLParam(r, param))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Param returns a URL param stored by URLParamCtx, or "" if there is none.
func Param(r *http.Request, name string) string {
	value, _ := r.Context().Value(paramKey(name)).(string)
	return value
}

func ClassCtx() func(handler http.Handler) http.Handler {
	return URLParamCtx("classID")
}

func MaterialCtx() func(handler http.Handler) http.Handler {
	return URLParamCtx("materialID")
}

func TaskCtx() func(handler http.Handler) http.Handler {
	return URLParamCtx("taskID")
}

func SubmissionCtx() func(handler http.Handler) http.Handler {
	return URLParamCtx("submissionID")
}

func UserCtx() func(handler http.Handler) http.Handler {
	return URLParamCtx("userID")
}
