package elasticsearch_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/utafrali/coursesearch/internal/domain"
	esengine "github.com/utafrali/coursesearch/internal/engine/elasticsearch"
	"github.com/utafrali/coursesearch/internal/query"
)

// testLogger returns a discard logger suitable for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	containerOnce sync.Once
	containerURL  string
	containerErr  error
)

// clusterURL resolves the cluster under test: ELASTICSEARCH_URL when set,
// otherwise a throwaway container when ES_TESTCONTAINERS is set.
func clusterURL(t *testing.T) string {
	t.Helper()

	if esURL := os.Getenv("ELASTICSEARCH_URL"); esURL != "" {
		return esURL
	}
	if os.Getenv("ES_TESTCONTAINERS") == "" {
		t.Skip("neither ELASTICSEARCH_URL nor ES_TESTCONTAINERS set, skipping Elasticsearch integration tests")
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	containerOnce.Do(func() {
		ctx := context.Background()
		c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "docker.elastic.co/elasticsearch/elasticsearch:8.11.0",
				ExposedPorts: []string{"9200/tcp"},
				Env: map[string]string{
					"discovery.type":         "single-node",
					"xpack.security.enabled": "false",
					"ES_JAVA_OPTS":           "-Xms512m -Xmx512m",
				},
				WaitingFor: wait.ForHTTP("/").
					WithPort("9200/tcp").
					WithStartupTimeout(3 * time.Minute),
			},
			Started: true,
		})
		if err != nil {
			containerErr = fmt.Errorf("start elasticsearch container: %w", err)
			return
		}
		containerURL, containerErr = c.PortEndpoint(ctx, "9200/tcp", "http")
	})
	require.NoError(t, containerErr)
	return containerURL
}

// newTestEngine creates an engine bound to a fresh, uniquely named index.
func newTestEngine(t *testing.T) *esengine.Engine {
	t.Helper()

	indexName := "test_courses_" + uuid.New().String()
	eng, err := esengine.New(esengine.Config{
		Addresses: []string{clusterURL(t)},
		Index:     indexName,
	}, testLogger())
	require.NoError(t, err, "failed to create Elasticsearch engine")

	ctx := context.Background()
	require.NoError(t, eng.CreateIndex(ctx))

	// Cleanup: delete the test index when the test completes.
	t.Cleanup(func() {
		_ = eng.DeleteIndex(context.Background())
	})

	return eng
}

func future(days int) time.Time {
	return time.Now().UTC().AddDate(0, 0, days).Truncate(time.Second)
}

func newTestCourse(title, category string, price float64, session time.Time) domain.Course {
	return domain.Course{
		ID:              uuid.New().String(),
		Title:           title,
		Description:     "A course about " + title,
		Category:        category,
		Type:            domain.CourseTypeCourse,
		MinAge:          8,
		MaxAge:          14,
		Price:           price,
		NextSessionDate: session,
		TitleSuggest:    title,
	}
}

func searchIDs(t *testing.T, eng *esengine.Engine, req *domain.SearchRequest) (int64, []string) {
	t.Helper()
	res, err := eng.Search(context.Background(), query.NewSearch(req, time.Now()))
	require.NoError(t, err)
	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ID)
	}
	return res.Total, ids
}

func TestES_Ping(t *testing.T) {
	eng := newTestEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, eng.Ping(ctx))
}

func TestES_IndexLifecycle(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	exists, err := eng.IndexExists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, eng.BulkIndex(ctx, []domain.Course{
		newTestCourse("Algebra Foundations", "Math", 40, future(30)),
	}))
	n, err := eng.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, eng.DeleteIndex(ctx))
	exists, err = eng.IndexExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestES_FuzzyFreeText(t *testing.T) {
	eng := newTestEngine(t)
	algebra := newTestCourse("Algebra Foundations", "Math", 40, future(30))
	require.NoError(t, eng.BulkIndex(context.Background(), []domain.Course{
		algebra,
		newTestCourse("Watercolor Painting", "Art", 35, future(30)),
	}))

	req := domain.NewSearchRequest()
	req.Q = "algebre"
	total, ids := searchIDs(t, eng, req)

	assert.Equal(t, int64(1), total)
	assert.Equal(t, []string{algebra.ID}, ids)
}

func TestES_CategoryIsExact(t *testing.T) {
	eng := newTestEngine(t)
	math := newTestCourse("Number Games", "Math", 20, future(10))
	require.NoError(t, eng.BulkIndex(context.Background(), []domain.Course{
		math,
		newTestCourse("Math Art", "Math Art", 20, future(10)),
	}))

	req := domain.NewSearchRequest()
	req.Category = "Math"
	_, ids := searchIDs(t, eng, req)
	assert.Equal(t, []string{math.ID}, ids)

	req.Category = "math"
	total, _ := searchIDs(t, eng, req)
	assert.Equal(t, int64(0), total)
}

func TestES_PriceRangeAndSort(t *testing.T) {
	eng := newTestEngine(t)
	cheap := newTestCourse("Chess Club", "Games", 25, future(5))
	mid := newTestCourse("Robotics Lab", "Science", 45, future(6))
	pricey := newTestCourse("Film Making", "Art", 70, future(7))
	require.NoError(t, eng.BulkIndex(context.Background(), []domain.Course{pricey, cheap, mid}))

	lo, hi := 30.0, 60.0
	req := domain.NewSearchRequest()
	req.MinPrice = &lo
	req.MaxPrice = &hi
	_, ids := searchIDs(t, eng, req)
	assert.Equal(t, []string{mid.ID}, ids)

	req = domain.NewSearchRequest()
	req.Sort = domain.SortPriceDesc
	_, ids = searchIDs(t, eng, req)
	assert.Equal(t, []string{pricey.ID, mid.ID, cheap.ID}, ids)
}

func TestES_PastSessionsExcludedByDefault(t *testing.T) {
	eng := newTestEngine(t)
	upcoming := newTestCourse("Upcoming Course", "Misc", 10, future(3))
	past := newTestCourse("Past Course", "Misc", 10, future(-3))
	require.NoError(t, eng.BulkIndex(context.Background(), []domain.Course{upcoming, past}))

	_, ids := searchIDs(t, eng, domain.NewSearchRequest())
	assert.Equal(t, []string{upcoming.ID}, ids)

	start := future(-30)
	req := domain.NewSearchRequest()
	req.StartDate = &start
	_, ids = searchIDs(t, eng, req)
	assert.Equal(t, []string{past.ID, upcoming.ID}, ids)
}

func TestES_Pagination(t *testing.T) {
	eng := newTestEngine(t)
	var courses []domain.Course
	for i := 0; i < 5; i++ {
		courses = append(courses, newTestCourse(fmt.Sprintf("Paginated %d", i), "Misc", 10, future(i+1)))
	}
	require.NoError(t, eng.BulkIndex(context.Background(), courses))

	req := domain.NewSearchRequest()
	req.Page = 1
	req.Size = 2
	total, ids := searchIDs(t, eng, req)

	assert.Equal(t, int64(5), total)
	assert.Equal(t, []string{courses[2].ID, courses[3].ID}, ids)
}

func TestES_Suggest(t *testing.T) {
	eng := newTestEngine(t)
	require.NoError(t, eng.BulkIndex(context.Background(), []domain.Course{
		newTestCourse("Calligraphy Basics", "Art", 30, future(4)),
		newTestCourse("Robotics Lab", "Science", 45, future(6)),
	}))

	res, err := eng.Search(context.Background(), query.NewSuggest("call"))
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)

	var src map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Hits[0].Source, &src))
	assert.Equal(t, map[string]interface{}{"title": "Calligraphy Basics"}, src)
}
