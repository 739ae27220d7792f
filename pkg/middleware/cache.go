package middleware

import (
	"net/http"
	"strconv"
)

// CacheControl marks successful GET responses as cacheable for maxAge
// seconds. Search results only change on reindex. Error responses, other
// methods and a non-positive maxAge get no-store.
func CacheControl(maxAge int) func(http.Handler) http.Handler {
	cacheable := "public, max-age=" + strconv.Itoa(maxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge <= 0 || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
				w.Header().Set("Cache-Control", "no-store")
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(&cacheWriter{ResponseWriter: w, value: cacheable}, r)
		})
	}
}

// cacheWriter decides the Cache-Control header once the status is known.
type cacheWriter struct {
	http.ResponseWriter
	value   string
	decided bool
}

func (cw *cacheWriter) WriteHeader(code int) {
	if !cw.decided {
		cw.decided = true
		if code >= http.StatusOK && code < http.StatusMultipleChoices {
			cw.Header().Set("Cache-Control", cw.value)
		} else {
			cw.Header().Set("Cache-Control", "no-store")
		}
	}
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *cacheWriter) Write(b []byte) (int, error) {
	if !cw.decided {
		cw.WriteHeader(http.StatusOK)
	}
	return cw.ResponseWriter.Write(b)
}

func (cw *cacheWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}
