package pagination

import (
	"net/url"
	"strconv"
)

// Zero-based pagination defaults and bounds.
const (
	DefaultPage = 0
	DefaultSize = 10
	MaxSize     = 100

	// MaxResultWindow bounds the end of a page (offset + size). It matches
	// the default index.max_result_window of Elasticsearch.
	MaxResultWindow = 10000
)

// Params holds zero-based pagination parameters.
type Params struct {
	Page int `json:"page" query:"page" validate:"gte=0"`
	Size int `json:"size" query:"size" validate:"gte=1,lte=100"`
}

// DefaultParams returns the first page with the default size.
func DefaultParams() Params {
	return Params{Page: DefaultPage, Size: DefaultSize}
}

// FromQuery extracts page and size from query values. Missing values keep
// their defaults; values that are present must be integers. Range checks are
// left to the caller's validator.
func FromQuery(q url.Values) (Params, error) {
	p := DefaultParams()

	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, &ParamError{Name: "page", Value: raw}
		}
		p.Page = v
	}

	if raw := q.Get("size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, &ParamError{Name: "size", Value: raw}
		}
		p.Size = v
	}

	return p, nil
}

// ParamError reports a pagination parameter that is not an integer.
type ParamError struct {
	Name  string
	Value string
}

func (e *ParamError) Error() string {
	return "pagination: " + e.Name + " must be an integer, got " + strconv.Quote(e.Value)
}

// WindowReason explains a page rejected by WithinWindow.
var WindowReason = "page * size + size must not exceed " + strconv.Itoa(MaxResultWindow)

// WithinWindow reports whether the page ends inside MaxResultWindow. The
// check is done by division so it cannot overflow for any page number.
func (p Params) WithinWindow() bool {
	if p.Page < 0 || p.Size < 1 || p.Size > MaxResultWindow {
		return false
	}
	return p.Page <= (MaxResultWindow-p.Size)/p.Size
}

// Offset returns the index of the first item on the page.
func (p Params) Offset() int {
	return p.Page * p.Size
}

// TotalPages returns ceil(total/size). A non-positive size yields zero pages.
func TotalPages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	pages := total / int64(size)
	if total%int64(size) > 0 {
		pages++
	}
	return int(pages)
}
