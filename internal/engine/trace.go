package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/coursesearch/internal/engine"

var requestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "search_engine_request_duration_seconds",
		Help:    "Duration of search engine requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"backend", "operation", "status"},
)

func init() {
	prometheus.MustRegister(requestDuration)
}

var slowRequestCfg struct {
	mu        sync.RWMutex
	threshold time.Duration
	logger    *slog.Logger
}

// SetSlowRequestLogging configures slow request detection. Engine calls
// exceeding the threshold are logged as warnings. A zero threshold disables it.
func SetSlowRequestLogging(threshold time.Duration, logger *slog.Logger) {
	slowRequestCfg.mu.Lock()
	defer slowRequestCfg.mu.Unlock()
	slowRequestCfg.threshold = threshold
	slowRequestCfg.logger = logger
}

func getSlowRequestConfig() (time.Duration, *slog.Logger) {
	slowRequestCfg.mu.RLock()
	defer slowRequestCfg.mu.RUnlock()
	return slowRequestCfg.threshold, slowRequestCfg.logger
}

// Trace starts a span and a latency measurement for one engine call. The
// returned function must be called when the call completes:
//
//	ctx, end := engine.Trace(ctx, "elasticsearch", "search")
//	defer func() { end(err) }()
func Trace(ctx context.Context, backend, operation string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "search."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("search.backend", backend),
			attribute.String("search.operation", operation),
		),
	)

	return ctx, func(err error) {
		elapsed := time.Since(start)
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		requestDuration.WithLabelValues(backend, operation, status).Observe(elapsed.Seconds())

		if threshold, logger := getSlowRequestConfig(); threshold > 0 && logger != nil && elapsed >= threshold {
			logger.WarnContext(ctx, "slow search engine request",
				slog.String("backend", backend),
				slog.String("operation", operation),
				slog.Duration("duration", elapsed),
			)
		}
	}
}
