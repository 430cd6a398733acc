package restapi

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/yusufsyaifudin/katalog/internal/svc/appsvc"
	"github.com/yusufsyaifudin/katalog/internal/svc/authsvc"
	"github.com/yusufsyaifudin/katalog/internal/svc/reportsvc"
	"github.com/yusufsyaifudin/katalog/pkg/errtrack"
	"github.com/yusufsyaifudin/katalog/pkg/metric"
	"github.com/yusufsyaifudin/katalog/pkg/respbuilder"
	"github.com/yusufsyaifudin/katalog/pkg/tracer"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"github.com/yusufsyaifudin/katalog/transport/restapi/handlerapp"
	"github.com/yusufsyaifudin/katalog/transport/restapi/handlerauth"
	"github.com/yusufsyaifudin/katalog/transport/restapi/handlerreport"
	"github.com/yusufsyaifudin/katalog/transport/restapi/httptyped"
	"go.opentelemetry.io/otel"
)

type Config struct {
	AppServiceName string            `validate:"required"`
	AppVersion     string            `validate:"required"`
	AppService     appsvc.Service    `validate:"required"`
	ReportService  reportsvc.Service `validate:"required"`
	AuthService    authsvc.Service   `validate:"required"`
	Metrics        *metric.Metrics   `validate:"required"`
	ErrTracker     *errtrack.Tracker `validate:"-"`

	// AllowedOrigins empty means any origin.
	AllowedOrigins []string        `validate:"-"`
	RateLimit      RateLimitConfig `validate:"-"`

	// TrustProxy takes the client ip from X-Forwarded-For / X-Real-IP, only enable it behind a proxy.
	TrustProxy     bool          `validate:"-"`
	RequestTimeout time.Duration `validate:"min=0"`

	Now func() time.Time `validate:"-"`
}

type DefaultHTTP struct {
	router *chi.Mux
}

func NewHTTPTransport(cfg Config) (*DefaultHTTP, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("http transport cfg error: %w", err)
	}

	if err := validator.Validate(cfg.RateLimit); err != nil {
		return nil, fmt.Errorf("http transport rate limit cfg error: %w", err)
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	// ** Application handler
	handlerApp, err := handlerapp.NewHandler(handlerapp.HandlerConfig{
		AppService: cfg.AppService,
		Metrics:    cfg.Metrics,
		ErrTracker: cfg.ErrTracker,
	})
	if err != nil {
		return nil, err
	}

	// ** Report handler
	handlerReport, err := handlerreport.NewHandler(handlerreport.HandlerConfig{
		ReportService: cfg.ReportService,
		Metrics:       cfg.Metrics,
		ErrTracker:    cfg.ErrTracker,
	})
	if err != nil {
		return nil, err
	}

	// ** Admin session handler
	handlerAuth, err := handlerauth.NewHandler(handlerauth.HandlerConfig{
		AuthService: cfg.AuthService,
		ErrTracker:  cfg.ErrTracker,
	})
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()

	skip := func(r *http.Request) bool {
		switch strings.TrimSpace(path.Clean(r.URL.Path)) {
		case "/health",
			"/metrics":
			return true
		}

		return false
	}

	redactBody := func(r *http.Request) bool {
		return strings.TrimSpace(path.Clean(r.URL.Path)) == "/api/admin/session"
	}

	if cfg.TrustProxy {
		router.Use(middleware.RealIP)
	}

	router.Use(middleware.StripSlashes)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Tracer-ID"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	router.Use(func(next http.Handler) http.Handler {
		return tracer.Middleware(tracer.MiddlewareConfig{
			TracerName:     "github.com/yusufsyaifudin/katalog",
			ServiceName:    cfg.AppServiceName,
			SkipFunc:       skip,
			TracerProvider: otel.GetTracerProvider(),    // global tracer provider
			TextPropagator: otel.GetTextMapPropagator(), // use global text map propagator
		}, next)
	})

	// add trace id and also log request response
	router.Use(func(next http.Handler) http.Handler {
		return requestLogger(skip, redactBody, cfg.RequestTimeout, next)
	})

	router.Use(cfg.Metrics.Middleware)

	// public writes share one bucket per client ip
	publicWrite := func(next http.Handler) http.Handler {
		return next
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		publicWrite = newIPRateLimiter(cfg.RateLimit).Handler
	}

	router.Get("/health", health(cfg.Now))
	router.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	// Resource: apps
	router.Route("/api/apps", func(r chi.Router) {
		r.Get("/", handlerApp.ListApproved())
		r.With(publicWrite).Post("/", handlerApp.Create())
		r.With(publicWrite).Patch("/{id}/clicks", handlerApp.IncrementClicks())

		r.Group(func(r chi.Router) {
			r.Use(handlerAuth.RequireAdmin)
			r.Get("/all", handlerApp.ListAll())
			r.Put("/{id}", handlerApp.Update())
			r.Delete("/{id}", handlerApp.Delete())
			r.Patch("/{id}/approve", handlerApp.SetApproval())
		})
	})

	// Resource: reports
	router.Route("/api/reports", func(r chi.Router) {
		r.With(publicWrite).Post("/", handlerReport.Create())

		r.Group(func(r chi.Router) {
			r.Use(handlerAuth.RequireAdmin)
			r.Get("/", handlerReport.List())
			r.Delete("/{id}", handlerReport.Delete())
			r.Delete("/app/{appId}", handlerReport.DeleteByApp())
		})
	})

	// Resource: admin
	router.Route("/api/admin", func(r chi.Router) {
		r.With(publicWrite).Post("/session", handlerAuth.Session())
		r.With(handlerAuth.RequireAdmin).Post("/apps", handlerApp.AdminCreate())
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respbuilder.WriteError(w, r, respbuilder.Error(respbuilder.ErrResourceNotFound, fmt.Errorf("route %s %s not found", r.Method, r.URL.Path)))
	})

	instance := &DefaultHTTP{
		router: router,
	}

	return instance, nil
}

// Server .
func (a *DefaultHTTP) Server() http.Handler {
	return a.router
}

func health(now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respbuilder.WriteJSON(http.StatusOK, w, r, httptyped.Health{
			Status:    "ok",
			Timestamp: now().UTC(),
		})
	}
}
