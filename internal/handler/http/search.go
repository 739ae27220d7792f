package http

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/utafrali/coursesearch/internal/domain"
	"github.com/utafrali/coursesearch/internal/service"
	apperrors "github.com/utafrali/coursesearch/pkg/errors"
	"github.com/utafrali/coursesearch/pkg/httputil"
	"github.com/utafrali/coursesearch/pkg/pagination"
	"github.com/utafrali/coursesearch/pkg/validator"
)

// SearchHandler handles the course search and suggestion endpoints.
type SearchHandler struct {
	service *service.SearchService
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc *service.SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		service: svc,
		logger:  logger,
	}
}

// searchParams is the raw query string of a search. Every value is checked
// for shape before conversion so a malformed parameter is reported by name.
type searchParams struct {
	Q         string `query:"q"`
	MinAge    string `query:"minAge" validate:"omitempty,integer"`
	MaxAge    string `query:"maxAge" validate:"omitempty,integer"`
	Category  string `query:"category"`
	Type      string `query:"type" validate:"omitempty,oneof=COURSE ONE_TIME"`
	MinPrice  string `query:"minPrice" validate:"omitempty,numeric"`
	MaxPrice  string `query:"maxPrice" validate:"omitempty,numeric"`
	StartDate string `query:"startDate" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Sort      string `query:"sort" validate:"omitempty,oneof=UPCOMING PRICE_ASC PRICE_DESC"`
}

func searchParamsFromQuery(q url.Values) searchParams {
	return searchParams{
		Q:         q.Get("q"),
		MinAge:    q.Get("minAge"),
		MaxAge:    q.Get("maxAge"),
		Category:  q.Get("category"),
		Type:      q.Get("type"),
		MinPrice:  q.Get("minPrice"),
		MaxPrice:  q.Get("maxPrice"),
		StartDate: q.Get("startDate"),
		Sort:      q.Get("sort"),
	}
}

// parseSearchRequest binds and validates the search query string. Absent
// parameters leave the request defaults in place.
func parseSearchRequest(q url.Values) (*domain.SearchRequest, error) {
	raw := searchParamsFromQuery(q)
	if err := validator.Validate(raw); err != nil {
		return nil, err
	}

	req := domain.NewSearchRequest()
	req.Q = raw.Q
	req.Category = raw.Category

	var err error
	if req.MinAge, err = optionalInt("minAge", raw.MinAge); err != nil {
		return nil, err
	}
	if req.MaxAge, err = optionalInt("maxAge", raw.MaxAge); err != nil {
		return nil, err
	}
	if req.MinPrice, err = optionalFloat("minPrice", raw.MinPrice); err != nil {
		return nil, err
	}
	if req.MaxPrice, err = optionalFloat("maxPrice", raw.MaxPrice); err != nil {
		return nil, err
	}

	if raw.Type != "" {
		ct, err := domain.ParseCourseType(raw.Type)
		if err != nil {
			return nil, apperrors.InvalidParameter("type", err.Error())
		}
		req.Type = &ct
	}
	if raw.StartDate != "" {
		t, err := time.Parse(time.RFC3339, raw.StartDate)
		if err != nil {
			return nil, apperrors.InvalidParameter("startDate", "must be an RFC 3339 timestamp")
		}
		req.StartDate = &t
	}
	if raw.Sort != "" {
		req.Sort = domain.SortOption(raw.Sort)
	}

	page, err := pagination.FromQuery(q)
	if err != nil {
		var pe *pagination.ParamError
		if errors.As(err, &pe) {
			return nil, apperrors.InvalidParameter(pe.Name, "must be an integer")
		}
		return nil, err
	}
	if err := validator.Validate(page); err != nil {
		return nil, err
	}
	if !page.WithinWindow() {
		return nil, apperrors.InvalidParameter("page", pagination.WindowReason)
	}
	req.Page, req.Size = page.Page, page.Size

	return req, nil
}

func optionalInt(name, raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperrors.InvalidParameter(name, "must be an integer")
	}
	return &v, nil
}

func optionalFloat(name, raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, apperrors.InvalidParameter(name, "must be a decimal number")
	}
	return &v, nil
}

// Search handles GET /api/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchRequest(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.service.Search(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// suggestParams requires q to be present. An empty value is allowed and
// yields no suggestions.
type suggestParams struct {
	Q *string `query:"q" validate:"required"`
}

// Suggest handles GET /api/search/suggest.
func (h *SearchHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var params suggestParams
	if values, ok := r.URL.Query()["q"]; ok && len(values) > 0 {
		params.Q = &values[0]
	}
	if err := validator.Validate(params); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	suggestions, err := h.service.Suggest(r.Context(), *params.Q)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, suggestions)
}
