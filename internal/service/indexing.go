package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/coursesearch/internal/catalog"
	"github.com/utafrali/coursesearch/internal/engine"
	"github.com/utafrali/coursesearch/internal/lock"
	apperrors "github.com/utafrali/coursesearch/pkg/errors"
	"github.com/utafrali/coursesearch/pkg/kafka"
	"github.com/utafrali/coursesearch/pkg/logger"
)

// Event published after every successful reindex.
var (
	TopicReindexed     = kafka.Topic("courses", "reindexed")
	EventTypeReindexed = "catalog.reindexed"
)

// eventSource names this service in published events.
const eventSource = "course-search"

// Publisher sends events to a topic. *kafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// ReindexedPayload is the data of a reindexed event.
type ReindexedPayload struct {
	Indexed     int       `json:"indexed"`
	Source      string    `json:"source"`
	CompletedAt time.Time `json:"completedAt"`
}

// IndexingService loads the course dataset into the index.
type IndexingService struct {
	indexer   engine.Indexer
	source    catalog.Source
	locker    lock.Locker
	publisher Publisher
	logger    *slog.Logger
}

// IndexingOption configures an IndexingService.
type IndexingOption func(*IndexingService)

// WithLocker sets the lock serializing reindex runs. The default is an
// in-process lock.
func WithLocker(l lock.Locker) IndexingOption {
	return func(s *IndexingService) { s.locker = l }
}

// WithPublisher announces completed reindexes through p.
func WithPublisher(p Publisher) IndexingOption {
	return func(s *IndexingService) { s.publisher = p }
}

// NewIndexingService creates an indexing service reading from source.
func NewIndexingService(indexer engine.Indexer, source catalog.Source, logger *slog.Logger, opts ...IndexingOption) *IndexingService {
	s := &IndexingService{
		indexer: indexer,
		source:  source,
		locker:  lock.NewLocal(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadIfEmpty creates the index when it is missing and loads the dataset
// only if the index holds no documents. It returns the number of courses
// indexed, zero when the index was already populated.
func (s *IndexingService) LoadIfEmpty(ctx context.Context) (int, error) {
	exists, err := s.indexer.IndexExists(ctx)
	if err != nil {
		return 0, fmt.Errorf("load if empty: check index: %w", err)
	}
	if !exists {
		if err := s.indexer.CreateIndex(ctx); err != nil {
			return 0, fmt.Errorf("load if empty: create index: %w", err)
		}
	}

	count, err := s.indexer.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("load if empty: count: %w", err)
	}
	if count > 0 {
		s.logger.InfoContext(ctx, "index already populated, skipping initial load",
			slog.Int64("documents", count),
		)
		return 0, nil
	}

	n, err := s.load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load if empty: %w", err)
	}
	s.logger.InfoContext(ctx, "initial dataset loaded",
		slog.String("source", s.source.Name()),
		slog.Int("courses", n),
	)
	return n, nil
}

// Reindex drops the index, recreates it and loads the full dataset. Only one
// reindex runs at a time; a concurrent call fails with a REINDEX_IN_PROGRESS
// error. A failure part way leaves the index as it stands.
func (s *IndexingService) Reindex(ctx context.Context) (int, error) {
	unlock, err := s.locker.TryLock(ctx)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return 0, apperrors.ReindexInProgress()
		}
		return 0, apperrors.ReindexFailed(err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release reindex lock", slog.String("error", err.Error()))
		}
	}()

	start := time.Now()

	exists, err := s.indexer.IndexExists(ctx)
	if err != nil {
		return 0, apperrors.ReindexFailed(fmt.Errorf("check index: %w", err))
	}
	if exists {
		if err := s.indexer.DeleteIndex(ctx); err != nil {
			return 0, apperrors.ReindexFailed(fmt.Errorf("delete index: %w", err))
		}
	}
	if err := s.indexer.CreateIndex(ctx); err != nil {
		return 0, apperrors.ReindexFailed(fmt.Errorf("create index: %w", err))
	}

	n, err := s.load(ctx)
	if err != nil {
		return 0, apperrors.ReindexFailed(err)
	}

	s.logger.InfoContext(ctx, "reindex completed",
		slog.String("source", s.source.Name()),
		slog.Int("courses", n),
		slog.Duration("duration", time.Since(start)),
	)
	s.announce(ctx, n)
	return n, nil
}

func (s *IndexingService) load(ctx context.Context) (int, error) {
	courses, err := s.source.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load dataset: %w", err)
	}
	catalog.PrepareForIndex(courses)

	if err := s.indexer.BulkIndex(ctx, courses); err != nil {
		return 0, fmt.Errorf("bulk index: %w", err)
	}
	return len(courses), nil
}

// announce publishes the reindexed event. Publishing is best effort: the
// index is already rebuilt.
func (s *IndexingService) announce(ctx context.Context, n int) {
	if s.publisher == nil {
		return
	}

	event, err := kafka.NewEvent(EventTypeReindexed, "courses", eventSource, ReindexedPayload{
		Indexed:     n,
		Source:      s.source.Name(),
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to build reindexed event", slog.String("error", err.Error()))
		return
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := s.publisher.Publish(ctx, TopicReindexed, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish reindexed event", slog.String("error", err.Error()))
	}
}
