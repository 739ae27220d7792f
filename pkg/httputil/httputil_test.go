package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/coursesearch/pkg/errors"
	"github.com/utafrali/coursesearch/pkg/logger"
	"github.com/utafrali/coursesearch/pkg/validator"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelError}))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *ErrorResponse {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

// --- WriteJSON / WriteText ---

func TestWriteJSON_SetsContentTypeAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, []string{"Algebra Foundations"})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["Algebra Foundations"]`, rec.Body.String())
}

func TestWriteJSON_StatusCodes(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusBadRequest, http.StatusTeapot} {
		rec := httptest.NewRecorder()
		WriteJSON(rec, code, Response{})
		assert.Equal(t, code, rec.Code)
	}
}

func TestWriteText(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteText(rec, http.StatusOK, "Course Search API is running")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Course Search API is running", rec.Body.String())
}

// --- WriteError ---

func TestWriteError_AppError(t *testing.T) {
	var logs bytes.Buffer
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)

	WriteError(rec, req, apperrors.InvalidParameter("minAge", "must be an integer"), testLogger(&logs))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "INVALID_PARAMETER", e.Code)
	assert.Contains(t, e.Message, "minAge")
	assert.Empty(t, logs.String(), "client errors are not logged")
}

func TestWriteError_SearchFailedIsLogged(t *testing.T) {
	var logs bytes.Buffer
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)

	WriteError(rec, req, apperrors.SearchFailed(fmt.Errorf("connection refused")), testLogger(&logs))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "SEARCH_FAILED", e.Code)
	assert.NotContains(t, e.Message, "connection refused")
	assert.Contains(t, logs.String(), "connection refused")
	assert.Contains(t, logs.String(), "/api/search")
}

func TestWriteError_ValidationError(t *testing.T) {
	type params struct {
		Size int `query:"size" validate:"lte=100"`
	}
	verr := validator.Validate(params{Size: 500})
	require.Error(t, verr)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search?size=500", nil)
	WriteError(rec, req, verr, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "INVALID_PARAMETER", e.Code)
	assert.Contains(t, e.Message, "size")
	assert.Contains(t, e.Fields, "size")
}

func TestWriteError_Sentinels(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{apperrors.ErrConflict, http.StatusConflict, "CONFLICT"},
		{apperrors.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
		{apperrors.ErrServiceUnavail, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			var logs bytes.Buffer
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)

			WriteError(rec, req, tt.err, testLogger(&logs))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestWriteError_UnknownError_Returns500(t *testing.T) {
	var logs bytes.Buffer
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	WriteError(rec, req, fmt.Errorf("something unexpected"), testLogger(&logs))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", e.Code)
	assert.Equal(t, "an internal error occurred", e.Message)
	assert.Contains(t, logs.String(), "something unexpected")
}

func TestWriteError_PrefersRequestScopedLogger(t *testing.T) {
	var scoped, fallback bytes.Buffer
	ctx := logger.NewContext(context.Background(), testLogger(&scoped))
	req := httptest.NewRequest(http.MethodGet, "/test", nil).WithContext(ctx)

	WriteError(httptest.NewRecorder(), req, fmt.Errorf("boom"), testLogger(&fallback))

	assert.Contains(t, scoped.String(), "boom")
	assert.Empty(t, fallback.String())
}

// --- RequestID ---

func TestWriteError_IncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx := logger.WithCorrelationID(context.Background(), "corr-123")
	req := httptest.NewRequest(http.MethodGet, "/test", nil).WithContext(ctx)

	WriteError(rec, req, apperrors.ReindexInProgress(), nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "corr-123", decodeError(t, rec).RequestID)
}

func TestWriteError_NoCorrelationID_OmitsRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	WriteError(rec, req, apperrors.ErrNotFound, nil)

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))

	var errObj map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["error"], &errObj))
	_, hasRequestID := errObj["request_id"]
	assert.False(t, hasRequestID, "request_id should be omitted when correlation_id is not in context")
}
