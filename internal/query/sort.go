package query

import "github.com/utafrali/coursesearch/internal/domain"

var sortTable = map[domain.SortOption]Sort{
	domain.SortUpcoming:  {Field: domain.FieldNextSessionDate, Order: Asc},
	domain.SortPriceAsc:  {Field: domain.FieldPrice, Order: Asc},
	domain.SortPriceDesc: {Field: domain.FieldPrice, Order: Desc},
}

// SortFor maps a sort option to the field and direction the engine orders by.
// An empty option falls back to the request default, UPCOMING.
func SortFor(opt domain.SortOption) Sort {
	if s, ok := sortTable[opt]; ok {
		return s
	}
	return sortTable[domain.SortUpcoming]
}
