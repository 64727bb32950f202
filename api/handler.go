// Package api serves the meal planner pages and form endpoints.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/raushankrgupta/meal-planner/auth"
	"github.com/raushankrgupta/meal-planner/export"
	"github.com/raushankrgupta/meal-planner/logger"
	"github.com/raushankrgupta/meal-planner/models"
	"github.com/raushankrgupta/meal-planner/planner"
	"github.com/raushankrgupta/meal-planner/session"
	"github.com/raushankrgupta/meal-planner/utils"
)

// PlanExporter builds the PDF for a plan.
type PlanExporter interface {
	Export(ctx context.Context, plan *models.MealPlan, now time.Time) (*export.Document, error)
}

type Server struct {
	sessions *session.Manager
	auth     *auth.Service
	boards   *planner.Registry
	exporter PlanExporter
	sinks    []export.Sink

	// AllowedOrigins lists the origins allowed to make credentialed
	// cross-origin requests. Empty means same-origin only.
	AllowedOrigins []string

	now func() time.Time
}

// NewServer also drops a session's dashboard whenever the session manager
// tears that session down.
func NewServer(sessions *session.Manager, authSvc *auth.Service, boards *planner.Registry, exporter PlanExporter, sinks ...export.Sink) *Server {
	sessions.OnTeardown = boards.Remove
	return &Server{
		sessions: sessions,
		auth:     authSvc,
		boards:   boards,
		exporter: exporter,
		sinks:    sinks,
		now:      time.Now,
	}
}

// explicitOrigins drops wildcards, which browsers refuse on credentialed
// requests.
func explicitOrigins(origins []string) []string {
	var out []string
	for _, o := range origins {
		if strings.Contains(o, "*") {
			logger.Warn("Ignoring wildcard CORS origin", zap.String("origin", o))
			continue
		}
		out = append(out, o)
	}
	return out
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(utils.LatencyMiddleware)
	if origins := explicitOrigins(s.AllowedOrigins); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", s.HealthHandler)

	r.Group(func(r chi.Router) {
		r.Use(s.WithSession)

		r.Group(func(r chi.Router) {
			r.Use(s.guestOnly)
			r.Get("/login", s.LoginPageHandler)
			r.Post("/login", s.LoginHandler)
			r.Get("/signup", s.SignupPageHandler)
			r.Post("/signup", s.SignupHandler)
		})
		r.Get("/forgot-password", s.ForgotPasswordPageHandler)
		r.Post("/forgot-password/otp", s.RequestOTPHandler)
		r.Post("/forgot-password/reset", s.ResetPasswordHandler)
		r.Post("/logout", s.LogoutHandler)

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(s.Guard)
			r.Get("/", s.DashboardHandler)
			r.Post("/generate", s.GenerateHandler)
			r.Get("/export", s.ExportHandler)
			r.Post("/regenerate", s.RegenerateHandler)
			r.Post("/feedback", s.FeedbackHandler)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	return r
}

// HealthHandler reports liveness and whether sessions are available yet.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	state := "ready"
	select {
	case <-s.sessions.Ready():
	default:
		state = "loading"
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok", "sessions": state})
}
