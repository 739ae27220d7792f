package engine

import (
	"context"

	"github.com/utafrali/coursesearch/internal/domain"
	"github.com/utafrali/coursesearch/internal/query"
)

// Searcher executes query trees against the course index.
type Searcher interface {
	// Search runs one request and returns the raw hits in engine order.
	Search(ctx context.Context, req *query.Request) (*query.Result, error)
}

// Indexer manages the lifecycle and contents of the course index.
type Indexer interface {
	// IndexExists reports whether the course index is present.
	IndexExists(ctx context.Context) (bool, error)

	// CreateIndex creates the course index with its field mapping.
	CreateIndex(ctx context.Context) error

	// DeleteIndex removes the course index. A missing index is not an error.
	DeleteIndex(ctx context.Context) error

	// Count returns the number of indexed courses.
	Count(ctx context.Context) (int64, error)

	// BulkIndex upserts courses by ID. Documents are searchable on return.
	BulkIndex(ctx context.Context, courses []domain.Course) error
}

// SearchEngine is a complete backend: searchable, indexable and pingable.
// Implementations may use Elasticsearch, an embedded index, or other backends.
type SearchEngine interface {
	Searcher
	Indexer

	// Ping checks whether the backend is reachable.
	Ping(ctx context.Context) error
}
