package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MoonJiyun2/IdeaShelf/internal/service"
	"github.com/MoonJiyun2/IdeaShelf/internal/session"
	"github.com/MoonJiyun2/IdeaShelf/pkg/health"
	"github.com/MoonJiyun2/IdeaShelf/pkg/middleware"
)

// uploadsMaxAge is how long browsers may cache a cover. Stored names are
// timestamped, so a file never changes under the same URL.
const uploadsMaxAge = 30 * 24 * 60 * 60

// RouterConfig collects what NewRouter wires together.
type RouterConfig struct {
	Books    *service.BookService
	Reviews  *service.ReviewService
	Sessions *session.Manager
	Health   *health.Handler
	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
	CORS     middleware.CORSConfig
	// UploadDir is served under /uploads/ when covers are stored locally.
	// Empty disables the route.
	UploadDir string
}

// NewRouter creates a chi router with every page, API, health and metrics
// route registered.
func NewRouter(cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogging(logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	if cfg.UploadDir != "" {
		r.With(middleware.CacheControl(uploadsMaxAge, true)).
			Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	}

	// JSON API
	api := NewAPIHandler(cfg.Books, cfg.Reviews, logger)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORS))
		r.Use(middleware.RequestLogger(logger))
		r.Use(ContentTypeJSON)

		r.Get("/genres", api.ListGenres)
		r.Get("/books", api.ListBooks)
		r.Post("/books", api.CreateBook)
		r.Get("/books/{id}", api.GetBook)
		r.Get("/books/{id}/reviews", api.ListReviews)
		r.Post("/books/{id}/reviews", api.CreateReview)
		r.Get("/books/{id}/thread", api.GetThread)
		r.Post("/reviews/{id}/like", api.LikeReview)
	})

	// Pages
	pages := NewPageHandler(cfg.Books, cfg.Reviews, cfg.Sessions, logger)
	r.Group(func(r chi.Router) {
		r.Use(cfg.Sessions.Middleware)
		r.Use(middleware.RequestLogger(logger))
		r.Use(middleware.NoStore)

		r.Get("/", pages.Index)
		r.Get("/home", pages.Home)
		r.Get("/search", pages.Search)
		r.Get("/genre", pages.SelectGenre)
		r.Get("/books/{id}", pages.SelectBook)
		r.Post("/back", pages.Back)
		r.Post("/books", pages.AddBook)
		r.Post("/books/{id}/reviews", pages.AddReview)
		r.Post("/reviews/{id}/replies", pages.AddReply)
		r.Post("/reviews/{id}/like", pages.LikeReview)
	})

	return r
}
