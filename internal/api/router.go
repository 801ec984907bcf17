package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/taskhall/engine/internal/api/handlers"
	mw "github.com/taskhall/engine/internal/api/middleware"
)

type Dependencies struct {
	Sessions       mw.SessionResolver
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	TrustProxy     bool

	HealthHandler  *handlers.HealthHandler
	AuthHandler    *handlers.AuthHandler
	UsersHandler   *handlers.UsersHandler
	SurveysHandler *handlers.SurveysHandler
	FillsHandler   *handlers.FillsHandler
	PointsHandler  *handlers.PointsHandler
	ReportsHandler *handlers.ReportsHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	// Built-in middleware
	if dep.TrustProxy {
		r.Use(chimid.RealIP)
	}
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS)
	r.Use(mw.RateLimit(dep.RateLimitRPS, dep.RateLimitBurst))
	r.Use(chimid.Compress(5))
	if dep.RequestTimeout > 0 {
		r.Use(chimid.Timeout(dep.RequestTimeout))
	}

	// Health endpoints
	r.Get("/healthz", dep.HealthHandler.Liveness)
	r.Get("/readyz", dep.HealthHandler.Readiness)

	// The API is served under /api/v1 and at the bare paths.
	r.Route("/api/v1", func(api chi.Router) { mountAPI(api, dep) })
	r.Group(func(api chi.Router) { mountAPI(api, dep) })

	return r
}

func mountAPI(api chi.Router, dep Dependencies) {
	auth := mw.Auth(dep.Sessions)

	// Auth routes
	api.Route("/auth", func(ar chi.Router) {
		ar.Post("/register", dep.AuthHandler.Register)
		ar.Post("/login", dep.AuthHandler.Login)
		ar.With(auth).Post("/logout", dep.AuthHandler.Logout)
	})

	// Public survey reads
	api.Group(func(pub chi.Router) {
		pub.Use(mw.OptionalAuth(dep.Sessions))
		pub.Get("/surveys", dep.SurveysHandler.List)
		pub.Get("/surveys/{id}", dep.SurveysHandler.Get)
	})

	// Protected routes
	api.Group(func(protected chi.Router) {
		protected.Use(auth)

		protected.Route("/users/me", func(ur chi.Router) {
			ur.Get("/", dep.UsersHandler.Me)
			ur.Patch("/", dep.UsersHandler.UpdateMe)
			ur.Get("/profile", dep.UsersHandler.Profile)
			ur.Patch("/profile", dep.UsersHandler.PatchProfile)
			ur.Put("/profile", dep.UsersHandler.PutProfile)
			ur.Get("/profile/matches", dep.UsersHandler.Matches)
		})

		protected.Post("/surveys", dep.SurveysHandler.Create)
		protected.Post("/surveys/{id}/close", dep.SurveysHandler.Close)
		protected.Post("/surveys/{id}/fills", dep.SurveysHandler.SubmitFill)
		protected.Get("/surveys/{id}/fills", dep.SurveysHandler.ListFills)

		protected.Get("/fills/me", dep.FillsHandler.Mine)
		protected.Post("/fills/{id}/review", dep.FillsHandler.Review)

		protected.Get("/points/logs", dep.PointsHandler.Logs)
		protected.Get("/points/balance", dep.PointsHandler.Balance)

		protected.Post("/reports", dep.ReportsHandler.Create)
	})
}
