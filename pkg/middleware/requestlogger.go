package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/coursesearch/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context, enriched with
// correlation_id, trace_id and span_id. Mount it after RequestLogging and
// Tracing so both are available.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Operation tags a route with the catalog operation it serves. The tag is
// added to the context and to the request-scoped logger.
func Operation(op string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.WithOperation(r.Context(), op)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("operation", op)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
