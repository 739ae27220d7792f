package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/utafrali/coursesearch/internal/domain"
	"github.com/utafrali/coursesearch/internal/engine"
	"github.com/utafrali/coursesearch/internal/query"
)

const backendName = "elasticsearch"

// Config holds the connection settings for the Elasticsearch engine.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string

	// Transport overrides the HTTP transport, e.g. with a circuit breaker.
	Transport http.RoundTripper
}

// Engine is an Elasticsearch-backed implementation of engine.SearchEngine.
type Engine struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

var _ engine.SearchEngine = (*Engine)(nil)

// esSearchResponse is the structure used to decode Elasticsearch search responses.
type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// esCountResponse is the structure used to decode Elasticsearch count responses.
type esCountResponse struct {
	Count int64 `json:"count"`
}

// esBulkResponse is the structure used to decode Elasticsearch bulk responses.
type esBulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

// esErrorResponse is used to decode Elasticsearch error responses.
type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New creates an Elasticsearch engine. It does not contact the cluster;
// index lifecycle is driven by the caller through the Indexer methods.
// If cfg.Index is empty, DefaultIndexName ("courses") is used.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if cfg.Index == "" {
		cfg.Index = DefaultIndexName
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
		// A failed call is reported to the caller as is.
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to create client: %w", err)
	}

	return &Engine{
		client:    client,
		indexName: cfg.Index,
		logger:    logger,
	}, nil
}

// IndexName returns the name of the course index.
func (e *Engine) IndexName() string {
	return e.indexName
}

// Ping checks whether the Elasticsearch cluster is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// IndexExists reports whether the course index is present.
func (e *Engine) IndexExists(ctx context.Context) (exists bool, err error) {
	ctx, end := engine.Trace(ctx, backendName, "index_exists")
	defer func() { end(err) }()

	res, err := e.client.Indices.Exists(
		[]string{e.indexName},
		e.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("elasticsearch index exists: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("elasticsearch index exists: unexpected status %s", res.Status())
	}
}

// CreateIndex creates the course index with its mapping.
func (e *Engine) CreateIndex(ctx context.Context) (err error) {
	ctx, end := engine.Trace(ctx, backendName, "create_index")
	defer func() { end(err) }()

	res, err := e.client.Indices.Create(
		e.indexName,
		e.client.Indices.Create.WithBody(strings.NewReader(buildIndexMapping())),
		e.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("elasticsearch create index", res)
	}

	e.logger.InfoContext(ctx, "elasticsearch index created", slog.String("index", e.indexName))
	return nil
}

// DeleteIndex removes the course index.
// A 404 response is treated as success (index already absent).
func (e *Engine) DeleteIndex(ctx context.Context) (err error) {
	ctx, end := engine.Trace(ctx, backendName, "delete_index")
	defer func() { end(err) }()

	res, err := e.client.Indices.Delete(
		[]string{e.indexName},
		e.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("elasticsearch delete index", res)
	}

	e.logger.InfoContext(ctx, "elasticsearch index deleted", slog.String("index", e.indexName))
	return nil
}

// Count returns the number of documents in the course index.
func (e *Engine) Count(ctx context.Context) (n int64, err error) {
	ctx, end := engine.Trace(ctx, backendName, "count")
	defer func() { end(err) }()

	res, err := e.client.Count(
		e.client.Count.WithIndex(e.indexName),
		e.client.Count.WithContext(ctx),
	)
	if err != nil {
		return 0, fmt.Errorf("elasticsearch count: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return 0, responseError("elasticsearch count", res)
	}

	var countResp esCountResponse
	if err := json.NewDecoder(res.Body).Decode(&countResp); err != nil {
		return 0, fmt.Errorf("elasticsearch count: decode response: %w", err)
	}
	return countResp.Count, nil
}

// Search executes one request against the course index and returns the raw
// hits in engine order.
func (e *Engine) Search(ctx context.Context, req *query.Request) (result *query.Result, err error) {
	ctx, end := engine.Trace(ctx, backendName, "search")
	defer func() { end(err) }()

	body, err := buildRequestBody(req)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: %w", err)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: marshal query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, responseError("elasticsearch search", res)
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("elasticsearch search: decode response: %w", err)
	}

	hits := make([]query.Hit, 0, len(esResp.Hits.Hits))
	for _, h := range esResp.Hits.Hits {
		hits = append(hits, query.Hit{ID: h.ID, Source: h.Source})
	}

	return &query.Result{
		Total: esResp.Hits.Total.Value,
		Hits:  hits,
	}, nil
}

// BulkIndex upserts courses into the index using the bulk NDJSON API.
// The index is refreshed before the call returns.
func (e *Engine) BulkIndex(ctx context.Context, courses []domain.Course) (err error) {
	if len(courses) == 0 {
		return nil
	}

	ctx, end := engine.Trace(ctx, backendName, "bulk_index")
	defer func() { end(err) }()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for i := range courses {
		action := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": e.indexName,
				"_id":    courses[i].ID,
			},
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode action: %w", err)
		}
		if err := enc.Encode(courses[i]); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode document: %w", err)
		}
	}

	res, err := e.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		e.client.Bulk.WithIndex(e.indexName),
		e.client.Bulk.WithRefresh("true"),
		e.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("elasticsearch bulk index", res)
	}

	// Parse the bulk response to check for per-item errors.
	var bulkResp esBulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("elasticsearch bulk index: decode response: %w", err)
	}

	if bulkResp.Errors {
		var errMsgs []string
		for _, item := range bulkResp.Items {
			if item.Index.Error.Type != "" {
				errMsgs = append(errMsgs, fmt.Sprintf("id=%s: %s: %s", item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason))
			}
		}
		return fmt.Errorf("elasticsearch bulk index: partial errors: %s", strings.Join(errMsgs, "; "))
	}

	e.logger.InfoContext(ctx, "bulk indexed courses", slog.Int("count", len(courses)))
	return nil
}

// responseError turns an error response into a Go error, preferring the
// structured error body when present.
func responseError(op string, res *esapi.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))

	var errResp esErrorResponse
	if json.Unmarshal(raw, &errResp) == nil && errResp.Error.Type != "" {
		return fmt.Errorf("%s: %s: %s", op, errResp.Error.Type, errResp.Error.Reason)
	}
	return fmt.Errorf("%s: unexpected status %s", op, res.Status())
}
