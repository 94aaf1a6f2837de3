package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/rs/cors"

	rtr "elearning/internal/router"
)

func Routes(api *rtr.API) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.Logger, // Log API Request Calls
		middleware.Recoverer,
	)

	router.Route("/", func(r chi.Router) {
		r.Mount("/health", api.HealthRoutes())
	})

	router.Route("/v1", func(r chi.Router) {
		r.Mount("/auth", api.AuthRoutes())
		r.Mount("/registrations", api.RegistrationRoutes())
		r.Mount("/students", api.StudentRoutes())
		r.Mount("/classes", api.ClassRoutes())
		r.Mount("/materials", api.MaterialRoutes())
		r.Mount("/tasks", api.TaskRoutes())
		r.Mount("/submissions", api.SubmissionRoutes())
		r.Mount("/notifications", api.NotificationRoutes())
		r.Mount("/settings", api.SettingsRoutes())
		r.Mount("/overview", api.OverviewRoutes())
		r.Get("/live", api.ServeLive)
	})

	return router
}

// Handler wraps the routes in the CORS policy of api's configuration.
func Handler(api *rtr.API) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   api.Config.AllowedOrigins,
		AllowedHeaders:   []string{"Cookie", "Content-Type"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH"},
		ExposedHeaders:   []string{"Set-Cookie"},
		AllowCredentials: true,
	})

	return c.Handler(Routes(api))
}

// Start serves the API until ctx is done.
func Start(ctx context.Context, api *rtr.API) error {
	if api.Config == nil {
		return errors.New("missing or invalid configuration")
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%v", api.Config.Port),
		Handler: Handler(api),
	}

	errs := make(chan error, 1)
	go func() {
		glog.Infof("Server is listening on port %v\n", api.Config.Port)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		glog.Infof("shutting down server\n")
		return srv.Shutdown(context.Background())
	}
}
