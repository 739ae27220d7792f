package database

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/coursesearch/pkg/database"

// TracingHook is a go-redis hook that wraps every command in a client span
// and logs slow commands.
type TracingHook struct {
	threshold time.Duration
	logger    *slog.Logger
}

var _ redis.Hook = (*TracingHook)(nil)

// NewTracingHook creates a hook. A zero threshold or nil logger disables slow
// command logging.
func NewTracingHook(threshold time.Duration, logger *slog.Logger) *TracingHook {
	return &TracingHook{threshold: threshold, logger: logger}
}

// DialHook passes dials through untouched.
func (h *TracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

// ProcessHook traces a single command.
func (h *TracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, end := h.trace(ctx, cmd.Name())
		err := next(ctx, cmd)
		end(err)
		return err
	}
}

// ProcessPipelineHook traces a pipeline as one span named after its commands.
func (h *TracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		names := make([]string, 0, len(cmds))
		for _, c := range cmds {
			names = append(names, c.Name())
		}
		ctx, end := h.trace(ctx, "pipeline "+strings.Join(names, " "))
		err := next(ctx, cmds)
		end(err)
		return err
	}
}

// trace starts a span for operation. The returned function ends it. A
// redis.Nil reply is a miss, not a failure.
func (h *TracingHook) trace(ctx context.Context, operation string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "redis."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", operation),
		),
	)

	return ctx, func(err error) {
		if err != nil && !errors.Is(err, redis.Nil) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if h.threshold <= 0 || h.logger == nil {
			return
		}
		if elapsed := time.Since(start); elapsed >= h.threshold {
			attrs := []any{
				slog.String("operation", operation),
				slog.Duration("duration", elapsed),
			}
			if err != nil && !errors.Is(err, redis.Nil) {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			h.logger.WarnContext(ctx, "slow redis command", attrs...)
		}
	}
}
