package query

import (
	"strings"
	"time"

	"github.com/utafrali/coursesearch/internal/domain"
)

// titleBoost weights title matches over description matches.
const titleBoost = 2

// Build translates a search request into a composite boolean query.
//
// The free-text term becomes the only scored clause; every other constraint
// is a filter. When the request carries no start date, sessions are limited to
// those at or after now.
func Build(req *domain.SearchRequest, now time.Time) *Bool {
	b := &Bool{}

	if strings.TrimSpace(req.Q) != "" {
		b.Must = append(b.Must, &MultiMatch{
			Query: req.Q,
			Fields: []Field{
				{Name: domain.FieldTitle, Boost: titleBoost},
				{Name: domain.FieldDescription},
			},
			Fuzziness: FuzzinessAuto,
		})
	}

	// Age bounds are crossed on purpose: a course matches when its age
	// window overlaps the requested one.
	if req.MinAge != nil {
		b.Filter = append(b.Filter, AtLeast(domain.FieldMaxAge, *req.MinAge))
	}
	if req.MaxAge != nil {
		b.Filter = append(b.Filter, AtMost(domain.FieldMinAge, *req.MaxAge))
	}

	if strings.TrimSpace(req.Category) != "" {
		b.Filter = append(b.Filter, &Term{Field: domain.FieldCategory, Value: req.Category})
	}

	if req.Type != nil {
		b.Filter = append(b.Filter, &Term{Field: domain.FieldType, Value: req.Type.String()})
	}

	if req.MinPrice != nil || req.MaxPrice != nil {
		price := &Range{Field: domain.FieldPrice}
		if req.MinPrice != nil {
			price.GTE = *req.MinPrice
		}
		if req.MaxPrice != nil {
			price.LTE = *req.MaxPrice
		}
		b.Filter = append(b.Filter, price)
	}

	start := now
	if req.StartDate != nil {
		start = *req.StartDate
	}
	b.Filter = append(b.Filter, AtLeast(domain.FieldNextSessionDate, start.UTC()))

	return b
}

// NewSearch assembles the engine request for one page of a course search.
func NewSearch(req *domain.SearchRequest, now time.Time) *Request {
	return &Request{
		Query:          Build(req, now),
		Sort:           []Sort{SortFor(req.Sort)},
		From:           req.Page * req.Size,
		Size:           req.Size,
		TrackTotalHits: true,
	}
}
