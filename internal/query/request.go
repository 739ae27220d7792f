package query

import "encoding/json"

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Sort orders hits by a single field.
type Sort struct {
	Field string
	Order Order
}

// Request is a complete engine search call: query, ordering, page window
// and source projection.
type Request struct {
	Query Expr
	Sort  []Sort
	From  int
	Size  int

	// Source lists the document fields to return. Nil returns the whole document.
	Source []string

	TrackTotalHits bool
}

// Hit is one engine match, in engine order.
type Hit struct {
	ID     string
	Source json.RawMessage
}

// Result is the raw outcome of an engine search call.
type Result struct {
	Total int64
	Hits  []Hit
}
