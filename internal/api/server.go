package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/X-404JPG/furtagph/internal/api/handler"
	"github.com/X-404JPG/furtagph/internal/config"
	"github.com/X-404JPG/furtagph/internal/db"
	"github.com/X-404JPG/furtagph/internal/scan"
	"github.com/X-404JPG/furtagph/internal/upload"
)

// NewRouter creates and configures the chi router with all middleware and
// routes. uploadHandler may be nil when Cloudinary is not configured; the
// upload route is then not mounted.
func NewRouter(pool *db.Pool, scanHandler *scan.Handler, uploadHandler *upload.Handler, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5)) // gzip

	// CORS: scans and uploads come straight from the QR landing page.
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-Process-Time"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(pool)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
	})

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Scan → maybe notify
		r.Post("/scans", scanHandler.PostScan)
		r.Get("/pets/{petID}/scans", scanHandler.GetRecentScans)

		// Image upload pass-through
		if uploadHandler != nil {
			r.Post("/uploads", uploadHandler.PostUpload)
		}
	})

	return r
}
