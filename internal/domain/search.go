package domain

import (
	"fmt"
	"time"

	"github.com/utafrali/coursesearch/pkg/pagination"
)

// SortOption selects the ordering of search results.
type SortOption string

// Sort options for search results.
const (
	SortUpcoming  SortOption = "UPCOMING"
	SortPriceAsc  SortOption = "PRICE_ASC"
	SortPriceDesc SortOption = "PRICE_DESC"
)

// ValidSortOptions returns the list of valid sort options.
func ValidSortOptions() []SortOption {
	return []SortOption{SortUpcoming, SortPriceAsc, SortPriceDesc}
}

// Valid reports whether s is a known sort option.
func (s SortOption) Valid() bool {
	for _, opt := range ValidSortOptions() {
		if s == opt {
			return true
		}
	}
	return false
}

// ParseSortOption converts a query parameter value into a SortOption.
func ParseSortOption(s string) (SortOption, error) {
	if opt := SortOption(s); opt.Valid() {
		return opt, nil
	}
	return "", fmt.Errorf("unknown sort option %q", s)
}

// SearchRequest holds all parameters for a course search.
// Nil pointers and blank strings mean "no constraint" on that axis.
type SearchRequest struct {
	Q         string      `json:"q,omitempty"`
	MinAge    *int        `json:"minAge,omitempty"`
	MaxAge    *int        `json:"maxAge,omitempty"`
	Category  string      `json:"category,omitempty"`
	Type      *CourseType `json:"type,omitempty"`
	MinPrice  *float64    `json:"minPrice,omitempty"`
	MaxPrice  *float64    `json:"maxPrice,omitempty"`
	StartDate *time.Time  `json:"startDate,omitempty"`
	Sort      SortOption  `json:"sort"`
	Page      int         `json:"page"`
	Size      int         `json:"size"`
}

// NewSearchRequest returns a request carrying the default sort and pagination.
func NewSearchRequest() *SearchRequest {
	return &SearchRequest{
		Sort: SortUpcoming,
		Page: pagination.DefaultPage,
		Size: pagination.DefaultSize,
	}
}

// SearchResponse is one page of search results.
type SearchResponse struct {
	Total      int64    `json:"total"`
	Courses    []Course `json:"courses"`
	Page       int      `json:"page"`
	Size       int      `json:"size"`
	TotalPages int      `json:"totalPages"`
}
