package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/coursesearch/pkg/errors"
	"github.com/utafrali/coursesearch/pkg/httputil"
)

// AdminToken guards administrative routes (reindex) with a static bearer
// token. An empty token disables the check.
func AdminToken(token string, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}

		want := []byte(token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := bearerToken(r)
			if !ok {
				httputil.WriteError(w, r, apperrors.Unauthorized("missing bearer token"), l)
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				httputil.WriteError(w, r, apperrors.Unauthorized("invalid admin token"), l)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
