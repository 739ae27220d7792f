package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/coursesearch/internal/domain"
	"github.com/utafrali/coursesearch/internal/engine/memory"
	"github.com/utafrali/coursesearch/internal/lock"
	apperrors "github.com/utafrali/coursesearch/pkg/errors"
	"github.com/utafrali/coursesearch/pkg/kafka"
	"github.com/utafrali/coursesearch/pkg/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []*kafka.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event *kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func count(t *testing.T, eng *memory.Engine) int64 {
	t.Helper()
	n, err := eng.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestLoadIfEmpty_LoadsOnce(t *testing.T) {
	ctx := context.Background()
	eng := memory.New()
	src := &staticSource{courses: seedCourses()}
	svc := NewIndexingService(eng, src, newTestLogger())

	n, err := svc.LoadIfEmpty(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, int64(4), count(t, eng))

	src.courses = append(src.courses, course("s-5", "Extra", "Misc", domain.CourseTypeCourse, 1, 99, 1, 1))
	n, err = svc.LoadIfEmpty(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "populated index is left alone")
	assert.Equal(t, int64(4), count(t, eng))
}

func TestLoadIfEmpty_ExistingEmptyIndex(t *testing.T) {
	ctx := context.Background()
	eng := memory.New()
	require.NoError(t, eng.CreateIndex(ctx))

	n, err := NewIndexingService(eng, &staticSource{courses: seedCourses()}, newTestLogger()).LoadIfEmpty(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestLoadIfEmpty_SourceError(t *testing.T) {
	eng := memory.New()
	svc := NewIndexingService(eng, &staticSource{err: errors.New("no such file")}, newTestLogger())

	_, err := svc.LoadIfEmpty(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such file")
}

func TestReindex_ReplacesContentsAndDerivesSuggestions(t *testing.T) {
	ctx := context.Background()
	eng := memory.New()
	src := &staticSource{courses: seedCourses()}
	svc := NewIndexingService(eng, src, newTestLogger())

	_, err := svc.LoadIfEmpty(ctx)
	require.NoError(t, err)

	src.courses = []domain.Course{course("n-1", "Chess Strategy", "Games", domain.CourseTypeCourse, 9, 16, 35, 3)}
	n, err := svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1), count(t, eng))

	search := NewSearchService(eng, newTestLogger(), WithClock(fixedClock))
	titles, err := search.Suggest(ctx, "ches")
	require.NoError(t, err)
	assert.Equal(t, []string{"Chess Strategy"}, titles)

	titles, err = search.Suggest(ctx, "algebra")
	require.NoError(t, err)
	assert.Empty(t, titles, "old documents are gone")
}

func TestReindex_FailureIsReported(t *testing.T) {
	ctx := context.Background()
	eng := memory.New()
	src := &staticSource{courses: seedCourses()}
	svc := NewIndexingService(eng, src, newTestLogger())
	_, err := svc.Reindex(ctx)
	require.NoError(t, err)

	src.err = errors.New("dataset unreadable")
	_, err = svc.Reindex(ctx)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "REINDEX_FAILED", appErr.Code)
	assert.Contains(t, appErr.Message, "dataset unreadable")
	assert.ErrorIs(t, err, apperrors.ErrReindexFailed)

	// No rollback: the index was recreated and stays empty.
	assert.Equal(t, int64(0), count(t, eng))

	// The lock was released.
	src.err = nil
	_, err = svc.Reindex(ctx)
	require.NoError(t, err)
}

func TestReindex_InProgress(t *testing.T) {
	ctx := context.Background()
	l := lock.NewLocal()
	svc := NewIndexingService(memory.New(), &staticSource{courses: seedCourses()}, newTestLogger(), WithLocker(l))

	unlock, err := l.TryLock(ctx)
	require.NoError(t, err)

	_, err = svc.Reindex(ctx)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "REINDEX_IN_PROGRESS", appErr.Code)
	assert.Equal(t, 409, apperrors.HTTPStatus(err))

	require.NoError(t, unlock(ctx))
	_, err = svc.Reindex(ctx)
	require.NoError(t, err)
}

func TestReindex_SharedRedisLock(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewIndexingService(memory.New(), &staticSource{courses: seedCourses()}, newTestLogger(),
		WithLocker(lock.NewRedis(client, "coursesearch:reindex", time.Minute)))

	// Another replica holds the lock.
	require.NoError(t, mr.Set("coursesearch:reindex", "other-replica"))
	_, err := svc.Reindex(ctx)
	assert.ErrorIs(t, err, apperrors.ErrReindexInFlight)

	mr.Del("coursesearch:reindex")
	n, err := svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.False(t, mr.Exists("coursesearch:reindex"), "lock released after the run")
}

func TestReindex_PublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewIndexingService(memory.New(), &staticSource{courses: seedCourses()}, newTestLogger(), WithPublisher(pub))

	ctx := logger.WithCorrelationID(context.Background(), "corr-7")
	_, err := svc.Reindex(ctx)
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "catalog.courses.reindexed", pub.topics[0])

	event := pub.events[0]
	assert.Equal(t, EventTypeReindexed, event.EventType)
	assert.Equal(t, "course-search", event.Source)
	assert.Equal(t, "corr-7", event.CorrelationID)

	var payload ReindexedPayload
	require.NoError(t, event.UnmarshalData(&payload))
	assert.Equal(t, 4, payload.Indexed)
	assert.Equal(t, "static", payload.Source)
}

func TestReindex_PublishFailureDoesNotFailReindex(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewIndexingService(memory.New(), &staticSource{courses: seedCourses()}, newTestLogger(), WithPublisher(pub))

	n, err := svc.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestReindex_NoEventOnFailure(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewIndexingService(memory.New(), &staticSource{err: errors.New("boom")}, newTestLogger(), WithPublisher(pub))

	_, err := svc.Reindex(context.Background())
	require.Error(t, err)
	assert.Empty(t, pub.events)
}
