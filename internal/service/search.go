package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/utafrali/coursesearch/internal/domain"
	"github.com/utafrali/coursesearch/internal/engine"
	"github.com/utafrali/coursesearch/internal/query"
	apperrors "github.com/utafrali/coursesearch/pkg/errors"
	"github.com/utafrali/coursesearch/pkg/pagination"
)

// SearchService runs course searches and title suggestions. It never writes
// to the index.
type SearchService struct {
	searcher engine.Searcher
	logger   *slog.Logger
	now      func() time.Time
}

// SearchOption configures a SearchService.
type SearchOption func(*SearchService)

// WithClock replaces the clock used to resolve "upcoming" sessions.
func WithClock(now func() time.Time) SearchOption {
	return func(s *SearchService) { s.now = now }
}

// NewSearchService creates a new search service.
func NewSearchService(searcher engine.Searcher, logger *slog.Logger, opts ...SearchOption) *SearchService {
	s := &SearchService{
		searcher: searcher,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns one page of courses matching req, in engine order. Without a
// start date only courses whose next session is at or after the current time
// are returned.
func (s *SearchService) Search(ctx context.Context, req *domain.SearchRequest) (*domain.SearchResponse, error) {
	if req.Sort == "" {
		req.Sort = domain.SortUpcoming
	}
	if req.Size <= 0 {
		req.Size = pagination.DefaultSize
	}
	if req.Page < 0 {
		req.Page = pagination.DefaultPage
	}
	if !(pagination.Params{Page: req.Page, Size: req.Size}).WithinWindow() {
		return nil, apperrors.InvalidParameter("page", pagination.WindowReason)
	}

	result, err := s.searcher.Search(ctx, query.NewSearch(req, s.now()))
	if err != nil {
		return nil, apperrors.SearchFailed(fmt.Errorf("search: %w", err))
	}

	courses := make([]domain.Course, 0, len(result.Hits))
	for _, hit := range result.Hits {
		var c domain.Course
		if err := json.Unmarshal(hit.Source, &c); err != nil {
			return nil, apperrors.SearchFailed(fmt.Errorf("decode hit %s: %w", hit.ID, err))
		}
		courses = append(courses, c)
	}

	s.logger.DebugContext(ctx, "search executed",
		slog.String("query", req.Q),
		slog.String("sort", string(req.Sort)),
		slog.Int64("total", result.Total),
		slog.Int("returned", len(courses)),
	)

	return &domain.SearchResponse{
		Total:      result.Total,
		Courses:    courses,
		Page:       req.Page,
		Size:       req.Size,
		TotalPages: pagination.TotalPages(result.Total, req.Size),
	}, nil
}

// Suggest returns up to ten course titles completing fragment. A blank
// fragment yields an empty list without querying the engine.
func (s *SearchService) Suggest(ctx context.Context, fragment string) ([]string, error) {
	titles := []string{}
	if strings.TrimSpace(fragment) == "" {
		return titles, nil
	}

	result, err := s.searcher.Search(ctx, query.NewSuggest(fragment))
	if err != nil {
		return nil, apperrors.SuggestFailed(fmt.Errorf("suggest: %w", err))
	}

	for _, hit := range result.Hits {
		var src map[string]any
		if err := json.Unmarshal(hit.Source, &src); err != nil {
			continue
		}
		if title, ok := src[domain.FieldTitle].(string); ok {
			titles = append(titles, title)
		}
	}

	s.logger.DebugContext(ctx, "suggestions served",
		slog.String("fragment", fragment),
		slog.Int("count", len(titles)),
	)
	return titles, nil
}
