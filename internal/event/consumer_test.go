package event

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/coursesearch/pkg/errors"
	pkgkafka "github.com/utafrali/coursesearch/pkg/kafka"
	"github.com/utafrali/coursesearch/pkg/logger"
)

type fakeReindexer struct {
	calls int
	ctx   context.Context
	n     int
	err   error
}

func (f *fakeReindexer) Reindex(ctx context.Context) (int, error) {
	f.calls++
	f.ctx = ctx
	return f.n, f.err
}

func newTestConsumer(r Reindexer) (*Consumer, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewConsumer(r, slog.New(slog.NewJSONHandler(&buf, nil))), &buf
}

func publishedEvent(t *testing.T) *pkgkafka.Event {
	t.Helper()
	e, err := pkgkafka.NewEvent(EventTypeCatalogPublished, "courses", "catalog-admin", CatalogPublishedData{Version: "2026-10", Courses: 20})
	require.NoError(t, err)
	return e.WithCorrelationID("corr-1")
}

func TestTopicCatalogPublished(t *testing.T) {
	assert.Equal(t, "catalog.courses.published", TopicCatalogPublished)
}

func TestHandle_CatalogPublishedReindexes(t *testing.T) {
	r := &fakeReindexer{n: 20}
	c, buf := newTestConsumer(r)

	require.NoError(t, c.Handle(context.Background(), publishedEvent(t)))

	assert.Equal(t, 1, r.calls)
	assert.Equal(t, "corr-1", logger.CorrelationIDFromContext(r.ctx))
	assert.Equal(t, "reindex", logger.OperationFromContext(r.ctx))
	assert.Contains(t, buf.String(), "reindexed from catalog event")
	assert.Contains(t, buf.String(), `"version":"2026-10"`)
}

func TestHandle_ReindexFailureIsReturned(t *testing.T) {
	r := &fakeReindexer{err: apperrors.ReindexFailed(errors.New("engine down"))}
	c, _ := newTestConsumer(r)

	err := c.Handle(context.Background(), publishedEvent(t))
	assert.ErrorIs(t, err, apperrors.ErrReindexFailed)
}

func TestHandle_ReindexInProgressIsAcknowledged(t *testing.T) {
	r := &fakeReindexer{err: apperrors.ReindexInProgress()}
	c, buf := newTestConsumer(r)

	require.NoError(t, c.Handle(context.Background(), publishedEvent(t)))
	assert.Contains(t, buf.String(), "reindex already running")
}

func TestHandle_MalformedPayloadStillReindexes(t *testing.T) {
	r := &fakeReindexer{}
	c, buf := newTestConsumer(r)

	event := &pkgkafka.Event{EventID: "e1", EventType: EventTypeCatalogPublished, Data: []byte(`"not an object"`)}
	require.NoError(t, c.Handle(context.Background(), event))

	assert.Equal(t, 1, r.calls)
	assert.Contains(t, buf.String(), "malformed catalog.published payload")
}

func TestHandle_UnknownEventIgnored(t *testing.T) {
	r := &fakeReindexer{}
	c, buf := newTestConsumer(r)

	require.NoError(t, c.Handle(context.Background(), &pkgkafka.Event{EventID: "e2", EventType: "catalog.archived"}))
	assert.Zero(t, r.calls)
	assert.Contains(t, buf.String(), "unknown event type")
}
