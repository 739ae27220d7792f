package event

import (
	"context"
	"errors"
	"log/slog"

	"github.com/utafrali/coursesearch/internal/service"
	apperrors "github.com/utafrali/coursesearch/pkg/errors"
	pkgkafka "github.com/utafrali/coursesearch/pkg/kafka"
	"github.com/utafrali/coursesearch/pkg/logger"
)

// TopicCatalogPublished carries catalog events consumed by the search service.
var TopicCatalogPublished = pkgkafka.Topic("courses", "published")

// EventTypeCatalogPublished announces a new version of the course dataset.
const EventTypeCatalogPublished = "catalog.published"

// Reindexer rebuilds the course index. *service.IndexingService implements it.
type Reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

var _ Reindexer = (*service.IndexingService)(nil)

// CatalogPublishedData is the payload of a catalog.published event.
type CatalogPublishedData struct {
	Version string `json:"version,omitempty"`
	Courses int    `json:"courses,omitempty"`
}

// Consumer reacts to catalog events by reindexing.
type Consumer struct {
	reindexer Reindexer
	logger    *slog.Logger
}

// NewConsumer creates a new event consumer for the search service.
func NewConsumer(reindexer Reindexer, logger *slog.Logger) *Consumer {
	return &Consumer{
		reindexer: reindexer,
		logger:    logger,
	}
}

// Handle processes one event based on its type. Unknown types are ignored.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	if event.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, event.CorrelationID)
	}
	ctx = logger.WithOperation(ctx, "reindex")

	switch event.EventType {
	case EventTypeCatalogPublished:
		return c.handleCatalogPublished(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

// handleCatalogPublished reindexes from the dataset source. When another
// reindex is already running the event is acknowledged.
func (c *Consumer) handleCatalogPublished(ctx context.Context, event *pkgkafka.Event) error {
	var data CatalogPublishedData
	if err := event.UnmarshalData(&data); err != nil {
		c.logger.WarnContext(ctx, "ignoring malformed catalog.published payload",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
	}

	n, err := c.reindexer.Reindex(ctx)
	if errors.Is(err, apperrors.ErrReindexInFlight) {
		c.logger.InfoContext(ctx, "reindex already running, skipping catalog event",
			slog.String("event_id", event.EventID),
		)
		return nil
	}
	if err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "reindexed from catalog event",
		slog.String("event_id", event.EventID),
		slog.String("version", data.Version),
		slog.Int("courses", n),
	)
	return nil
}
