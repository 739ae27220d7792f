package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/utafrali/coursesearch/internal/domain"
	"github.com/utafrali/coursesearch/internal/engine"
	"github.com/utafrali/coursesearch/internal/query"
)

const backendName = "memory"

var (
	// ErrIndexNotFound is returned by operations that need an index when none exists.
	ErrIndexNotFound = errors.New("memory: index not found")

	// ErrIndexExists is returned by CreateIndex when the index is already present.
	ErrIndexExists = errors.New("memory: index already exists")
)

// Engine is an embedded implementation of engine.SearchEngine backed by an
// in-memory bleve index. Courses are kept alongside the index so hits can be
// returned as full documents.
// Thread-safe via sync.RWMutex.
type Engine struct {
	mu      sync.RWMutex
	index   bleve.Index
	courses map[string]domain.Course
}

var _ engine.SearchEngine = (*Engine)(nil)

// New creates an embedded engine with no index. Call CreateIndex or
// BulkIndex to populate it.
func New() *Engine {
	return &Engine{}
}

// buildIndexMapping mirrors the Elasticsearch course mapping: analyzed text
// for free-text fields, keywords for exact facets, numbers and dates for
// range filters and sorting.
func buildIndexMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name

	exact := bleve.NewKeywordFieldMapping()
	exact.Analyzer = keyword.Name

	number := bleve.NewNumericFieldMapping()
	date := bleve.NewDateTimeFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false
	doc.AddFieldMappingsAt(domain.FieldID, exact)
	doc.AddFieldMappingsAt(domain.FieldTitle, text)
	doc.AddFieldMappingsAt(domain.FieldDescription, text)
	doc.AddFieldMappingsAt(domain.FieldTitleSuggest, text)
	doc.AddFieldMappingsAt(domain.FieldCategory, exact)
	doc.AddFieldMappingsAt(domain.FieldType, exact)
	doc.AddFieldMappingsAt(domain.FieldMinAge, number)
	doc.AddFieldMappingsAt(domain.FieldMaxAge, number)
	doc.AddFieldMappingsAt(domain.FieldPrice, number)
	doc.AddFieldMappingsAt(domain.FieldNextSessionDate, date)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

// Ping always succeeds; the engine lives in-process.
func (e *Engine) Ping(_ context.Context) error {
	return nil
}

// IndexExists reports whether the course index is present.
func (e *Engine) IndexExists(_ context.Context) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.index != nil, nil
}

// CreateIndex creates an empty course index.
func (e *Engine) CreateIndex(ctx context.Context) (err error) {
	_, end := engine.Trace(ctx, backendName, "create_index")
	defer func() { end(err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.index != nil {
		return ErrIndexExists
	}
	return e.createLocked()
}

func (e *Engine) createLocked() error {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("memory: create index: %w", err)
	}
	e.index = idx
	e.courses = make(map[string]domain.Course)
	return nil
}

// DeleteIndex drops the course index and its documents. A missing index is
// not an error.
func (e *Engine) DeleteIndex(ctx context.Context) (err error) {
	_, end := engine.Trace(ctx, backendName, "delete_index")
	defer func() { end(err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.index == nil {
		return nil
	}
	if err := e.index.Close(); err != nil {
		return fmt.Errorf("memory: close index: %w", err)
	}
	e.index = nil
	e.courses = nil
	return nil
}

// Count returns the number of indexed courses.
func (e *Engine) Count(ctx context.Context) (n int64, err error) {
	_, end := engine.Trace(ctx, backendName, "count")
	defer func() { end(err) }()

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.index == nil {
		return 0, ErrIndexNotFound
	}
	count, err := e.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("memory: count: %w", err)
	}
	return int64(count), nil
}

// BulkIndex upserts courses by ID, creating the index on first use.
func (e *Engine) BulkIndex(ctx context.Context, courses []domain.Course) (err error) {
	if len(courses) == 0 {
		return nil
	}

	_, end := engine.Trace(ctx, backendName, "bulk_index")
	defer func() { end(err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.index == nil {
		if err := e.createLocked(); err != nil {
			return err
		}
	}

	batch := e.index.NewBatch()
	for i := range courses {
		if err := batch.Index(courses[i].ID, courses[i]); err != nil {
			return fmt.Errorf("memory: bulk index %s: %w", courses[i].ID, err)
		}
	}
	if err := e.index.Batch(batch); err != nil {
		return fmt.Errorf("memory: bulk index: %w", err)
	}

	for i := range courses {
		e.courses[courses[i].ID] = courses[i]
	}
	return nil
}

// Search runs the request against the index and returns hits in engine order.
func (e *Engine) Search(ctx context.Context, req *query.Request) (result *query.Result, err error) {
	ctx, end := engine.Trace(ctx, backendName, "search")
	defer func() { end(err) }()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("memory: search: %w", err)
	}
	if req.From < 0 || req.Size < 0 || req.From > math.MaxInt-req.Size {
		return nil, fmt.Errorf("memory: search: invalid window from=%d size=%d", req.From, req.Size)
	}

	q, err := translate(req.Query)
	if err != nil {
		return nil, fmt.Errorf("memory: search: %w", err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.index == nil {
		return nil, ErrIndexNotFound
	}

	sr := bleve.NewSearchRequestOptions(q, req.Size, req.From, false)
	if len(req.Sort) > 0 {
		sr.SortByCustom(translateSort(req.Sort))
	}

	res, err := e.index.SearchInContext(ctx, sr)
	if err != nil {
		return nil, fmt.Errorf("memory: search: %w", err)
	}

	hits := make([]query.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		course, ok := e.courses[h.ID]
		if !ok {
			continue
		}
		src, err := project(course, req.Source)
		if err != nil {
			return nil, fmt.Errorf("memory: search: %w", err)
		}
		hits = append(hits, query.Hit{ID: h.ID, Source: src})
	}

	return &query.Result{
		Total: int64(res.Total),
		Hits:  hits,
	}, nil
}

// project renders a course as JSON, keeping only the listed fields when
// fields is non-nil.
func project(c domain.Course, fields []string) (json.RawMessage, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal course %s: %w", c.ID, err)
	}
	if fields == nil {
		return data, nil
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("project course %s: %w", c.ID, err)
	}
	kept := make(map[string]json.RawMessage, len(fields))
	for _, f := range fields {
		if v, ok := all[f]; ok {
			kept[f] = v
		}
	}
	return json.Marshal(kept)
}
