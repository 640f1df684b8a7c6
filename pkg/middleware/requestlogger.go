package middleware

import (
	"log/slog"
	"net/http"

	"github.com/MoonJiyun2/IdeaShelf/pkg/logger"
)

// RequestLogger stores a logger enriched with the request's correlation,
// session and trace IDs in the context; handlers fetch it with
// logger.FromContext. Mount it after RequestLogging, Tracing and the session
// middleware so those IDs are already present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
