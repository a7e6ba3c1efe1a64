package middleware

import (
	"net/http"

	apperrors "cuworking/pkg/errors"
	httputil "cuworking/pkg/http"
)

// MaxRequestSize rejects requests whose declared length exceeds limit and
// caps the body reader for the rest.
func MaxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				_ = httputil.WriteError(w, apperrors.PayloadTooLarge(limit))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
