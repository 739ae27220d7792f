package memory

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/coursesearch/internal/domain"
	"github.com/utafrali/coursesearch/internal/query"
)

var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newTestCourse(id, title, category string, ct domain.CourseType, minAge, maxAge int, price float64, session time.Time) domain.Course {
	return domain.Course{
		ID:              id,
		Title:           title,
		Description:     "Learn " + strings.ToLower(title) + " with friendly instructors",
		Category:        category,
		Type:            ct,
		MinAge:          minAge,
		MaxAge:          maxAge,
		Price:           price,
		NextSessionDate: session,
		TitleSuggest:    title,
	}
}

func days(n int) time.Time {
	return testNow.AddDate(0, 0, n)
}

func fixtureCourses() []domain.Course {
	return []domain.Course{
		newTestCourse("c-1", "Algebra Foundations", "Math", domain.CourseTypeCourse, 11, 14, 45, days(10)),
		newTestCourse("c-2", "Calligraphy Basics", "Art", domain.CourseTypeOneTime, 8, 12, 25, days(3)),
		newTestCourse("c-3", "Robotics Lab", "Science", domain.CourseTypeCourse, 12, 17, 70, days(20)),
		newTestCourse("c-4", "Geometry Puzzles", "Math", domain.CourseTypeOneTime, 6, 9, 30, days(5)),
		newTestCourse("c-5", "Watercolor Painting", "Art", domain.CourseTypeCourse, 5, 8, 60, days(-7)),
		newTestCourse("c-6", "Chess Strategy", "Games", domain.CourseTypeCourse, 9, 16, 35, days(1)),
	}
}

func newLoadedEngine(t *testing.T) *Engine {
	t.Helper()
	e := New()
	require.NoError(t, e.CreateIndex(context.Background()))
	require.NoError(t, e.BulkIndex(context.Background(), fixtureCourses()))
	return e
}

func runSearch(t *testing.T, e *Engine, req *domain.SearchRequest) (int64, []domain.Course) {
	t.Helper()
	res, err := e.Search(context.Background(), query.NewSearch(req, testNow))
	require.NoError(t, err)

	courses := make([]domain.Course, 0, len(res.Hits))
	for _, h := range res.Hits {
		var c domain.Course
		require.NoError(t, json.Unmarshal(h.Source, &c))
		assert.Equal(t, h.ID, c.ID)
		courses = append(courses, c)
	}
	return res.Total, courses
}

func ids(courses []domain.Course) []string {
	out := make([]string, 0, len(courses))
	for _, c := range courses {
		out = append(out, c.ID)
	}
	return out
}

func TestEngine_IndexLifecycle(t *testing.T) {
	ctx := context.Background()
	e := New()

	exists, err := e.IndexExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = e.Count(ctx)
	assert.ErrorIs(t, err, ErrIndexNotFound)

	require.NoError(t, e.CreateIndex(ctx))
	assert.ErrorIs(t, e.CreateIndex(ctx), ErrIndexExists)

	n, err := e.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, e.BulkIndex(ctx, fixtureCourses()))
	n, err = e.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	require.NoError(t, e.DeleteIndex(ctx))
	require.NoError(t, e.DeleteIndex(ctx), "deleting a missing index succeeds")

	exists, err = e.IndexExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = e.Search(ctx, query.NewSuggest("x"))
	assert.ErrorIs(t, err, ErrIndexNotFound)
}

func TestEngine_BulkIndex_UpsertsByID(t *testing.T) {
	ctx := context.Background()
	e := newLoadedEngine(t)

	updated := fixtureCourses()[0]
	updated.Price = 99
	require.NoError(t, e.BulkIndex(ctx, []domain.Course{updated}))

	n, err := e.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	req := domain.NewSearchRequest()
	req.Q = "algebra"
	_, courses := runSearch(t, e, req)
	require.Len(t, courses, 1)
	assert.Equal(t, 99.0, courses[0].Price)
}

func TestEngine_BulkIndex_CreatesMissingIndex(t *testing.T) {
	ctx := context.Background()
	e := New()

	require.NoError(t, e.BulkIndex(ctx, fixtureCourses()[:2]))

	exists, err := e.IndexExists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEngine_Ping(t *testing.T) {
	assert.NoError(t, New().Ping(context.Background()))
}

func TestEngine_FreeText_MatchesTitleAndTolerantOfTypos(t *testing.T) {
	e := newLoadedEngine(t)

	for _, q := range []string{"algebra", "Algebra", "algebre", "ALGEBRA foundations"} {
		t.Run(q, func(t *testing.T) {
			req := domain.NewSearchRequest()
			req.Q = q
			total, courses := runSearch(t, e, req)

			require.Greater(t, total, int64(0))
			assert.Contains(t, strings.ToLower(courses[0].Title), "algebra")
		})
	}
}

func TestEngine_FreeText_NoMatch(t *testing.T) {
	e := newLoadedEngine(t)

	req := domain.NewSearchRequest()
	req.Q = "xylophone"
	total, courses := runSearch(t, e, req)

	assert.Equal(t, int64(0), total)
	assert.Empty(t, courses)
}

func TestEngine_FreeText_MatchesDescription(t *testing.T) {
	e := newLoadedEngine(t)

	req := domain.NewSearchRequest()
	req.Q = "instructors"
	total, _ := runSearch(t, e, req)

	// Every upcoming fixture course mentions instructors.
	assert.Equal(t, int64(5), total)
}

func TestEngine_AgeFilters_Overlap(t *testing.T) {
	e := newLoadedEngine(t)
	minAge, maxAge := 10, 12

	req := domain.NewSearchRequest()
	req.MinAge = &minAge
	req.MaxAge = &maxAge
	_, courses := runSearch(t, e, req)

	require.NotEmpty(t, courses)
	for _, c := range courses {
		assert.GreaterOrEqual(t, c.MaxAge, minAge, c.ID)
		assert.LessOrEqual(t, c.MinAge, maxAge, c.ID)
	}
	assert.ElementsMatch(t, []string{"c-1", "c-2", "c-3", "c-6"}, ids(courses))
}

func TestEngine_PriceRange_Inclusive(t *testing.T) {
	e := newLoadedEngine(t)
	lo, hi := 30.0, 45.0

	req := domain.NewSearchRequest()
	req.MinPrice = &lo
	req.MaxPrice = &hi
	_, courses := runSearch(t, e, req)

	for _, c := range courses {
		assert.GreaterOrEqual(t, c.Price, lo)
		assert.LessOrEqual(t, c.Price, hi)
	}
	assert.ElementsMatch(t, []string{"c-1", "c-4", "c-6"}, ids(courses))
}

func TestEngine_CategoryIsExactAndCaseSensitive(t *testing.T) {
	e := newLoadedEngine(t)

	req := domain.NewSearchRequest()
	req.Category = "Math"
	_, courses := runSearch(t, e, req)
	assert.ElementsMatch(t, []string{"c-1", "c-4"}, ids(courses))

	req.Category = "math"
	total, _ := runSearch(t, e, req)
	assert.Equal(t, int64(0), total)
}

func TestEngine_TypeFilter(t *testing.T) {
	e := newLoadedEngine(t)
	ct := domain.CourseTypeOneTime

	req := domain.NewSearchRequest()
	req.Type = &ct
	_, courses := runSearch(t, e, req)

	require.NotEmpty(t, courses)
	for _, c := range courses {
		assert.Equal(t, domain.CourseTypeOneTime, c.Type)
	}
}

func TestEngine_SortByPrice(t *testing.T) {
	e := newLoadedEngine(t)

	req := domain.NewSearchRequest()
	req.Sort = domain.SortPriceAsc
	_, courses := runSearch(t, e, req)
	assert.Equal(t, []string{"c-2", "c-4", "c-6", "c-1", "c-3"}, ids(courses))

	req.Sort = domain.SortPriceDesc
	_, courses = runSearch(t, e, req)
	assert.Equal(t, []string{"c-3", "c-1", "c-6", "c-4", "c-2"}, ids(courses))
}

func TestEngine_SortUpcoming_DefaultExcludesPast(t *testing.T) {
	e := newLoadedEngine(t)

	_, courses := runSearch(t, e, domain.NewSearchRequest())

	assert.Equal(t, []string{"c-6", "c-2", "c-4", "c-1", "c-3"}, ids(courses))
	for _, c := range courses {
		assert.False(t, c.NextSessionDate.Before(testNow), c.ID)
	}
}

func TestEngine_StartDate_IncludesPastSessions(t *testing.T) {
	e := newLoadedEngine(t)
	start := days(-30)

	req := domain.NewSearchRequest()
	req.StartDate = &start
	total, courses := runSearch(t, e, req)

	assert.Equal(t, int64(6), total)
	assert.Equal(t, "c-5", courses[0].ID)
}

func TestEngine_Pagination(t *testing.T) {
	e := newLoadedEngine(t)

	req := domain.NewSearchRequest()
	req.Sort = domain.SortPriceAsc
	req.Page = 1
	req.Size = 2
	total, courses := runSearch(t, e, req)

	assert.Equal(t, int64(5), total)
	assert.Equal(t, []string{"c-6", "c-1"}, ids(courses))

	req.Page = 3
	total, courses = runSearch(t, e, req)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, courses)
}

func TestEngine_Suggest_PrefixAndFuzzy(t *testing.T) {
	e := newLoadedEngine(t)

	tests := []struct {
		fragment string
		want     string
	}{
		{"call", "Calligraphy Basics"},
		{"Call", "Calligraphy Basics"},
		{"robotics l", "Robotics Lab"},
		{"chesss", "Chess Strategy"},
	}

	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			res, err := e.Search(context.Background(), query.NewSuggest(tt.fragment))
			require.NoError(t, err)
			require.NotEmpty(t, res.Hits)

			var src map[string]interface{}
			require.NoError(t, json.Unmarshal(res.Hits[0].Source, &src))
			assert.Equal(t, map[string]interface{}{"title": tt.want}, src)
		})
	}
}

func TestEngine_Suggest_IgnoresSessionDate(t *testing.T) {
	e := newLoadedEngine(t)

	res, err := e.Search(context.Background(), query.NewSuggest("water"))
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "c-5", res.Hits[0].ID)
}

func TestEngine_Search_RejectsInvalidWindow(t *testing.T) {
	e := newLoadedEngine(t)

	req := query.NewSearch(domain.NewSearchRequest(), testNow)
	req.From = -100
	_, err := e.Search(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid window")
}

func TestEngine_Search_CanceledContext(t *testing.T) {
	e := newLoadedEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Search(ctx, query.NewSearch(domain.NewSearchRequest(), testNow))
	assert.Error(t, err)
}
