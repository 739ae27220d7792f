package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/utafrali/coursesearch/internal/service"
	apperrors "github.com/utafrali/coursesearch/pkg/errors"
	"github.com/utafrali/coursesearch/pkg/httputil"
)

// Plain-text bodies of the administrative endpoints.
const (
	reindexOKBody     = "Data reindexed successfully"
	reindexFailPrefix = "Reindex failed: "
	healthBody        = "Course Search API is running"
)

// AdminHandler serves the reindex trigger and the plain health probe.
type AdminHandler struct {
	indexing *service.IndexingService
	logger   *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(indexing *service.IndexingService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{indexing: indexing, logger: logger}
}

// Reindex handles POST /api/reindex. The reload runs to completion even if
// the client goes away, since an abandoned run would leave a partial index.
func (h *AdminHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	n, err := h.indexing.Reindex(context.WithoutCancel(r.Context()))
	if err != nil {
		status := apperrors.HTTPStatus(err)
		message := err.Error()
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			message = appErr.Message
		}

		h.logger.ErrorContext(r.Context(), "reindex request failed",
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		httputil.WriteText(w, status, reindexFailPrefix+message)
		return
	}

	h.logger.InfoContext(r.Context(), "reindex request completed", slog.Int("courses", n))
	httputil.WriteText(w, http.StatusOK, reindexOKBody)
}

// Health handles GET /api/health. It only reports that the process is
// serving; dependency checks live under /health/ready.
func (h *AdminHandler) Health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteText(w, http.StatusOK, healthBody)
}
