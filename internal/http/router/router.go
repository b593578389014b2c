package router

import (
	"net/http"

	"github.com/diagnosis/service-sphere/internal/domain"
	"github.com/diagnosis/service-sphere/internal/http/handlers"
	"github.com/diagnosis/service-sphere/internal/http/middleware"
	"github.com/diagnosis/service-sphere/internal/ratelimit"
	"github.com/diagnosis/service-sphere/internal/service"
	mw "github.com/diagnosis/service-sphere/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Auth           service.AuthService
	Bookings       service.BookingService
	AuthLimiter    ratelimit.Limiter
	DB             mw.Pinger
	AllowedOrigins []string
	// TrustProxy mounts RealIP so rate limiting keys on the forwarded
	// client address.
	TrustProxy     bool
}

func New(d Deps) http.Handler {
	authH := handlers.NewAuthHandler(d.Auth)
	bookingsH := handlers.NewBookingsHandler(d.Bookings)

	r := chi.NewRouter()
	if d.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("service-sphere"))
	r.Use(mw.Logging)
	r.Use(mw.Recoverer)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if d.DB != nil {
		r.Use(mw.Health(d.DB))
	}

	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if d.AuthLimiter != nil {
			r.Use(middleware.RateLimit(d.AuthLimiter))
		}
		r.Post("/register", authH.Register)
		r.Post("/login", authH.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireJWT(d.Auth))
		r.Post("/logout", authH.Logout)
		r.Get("/providers", authH.Providers)

		r.Get("/bookings", bookingsH.List)
		r.With(middleware.RequireRole(domain.RoleCustomer)).Post("/booking", bookingsH.Create)
		r.With(middleware.RequireRole(domain.RoleProvider)).Get("/provider-bookings", bookingsH.ListForProvider)
		r.Put("/booking/{id}", bookingsH.UpdateStatus)
		r.Delete("/booking/{id}", bookingsH.Cancel)
	})

	r.NotFound(handlers.NotFound)
	return r
}
