package middlewares

import (
	"net/http"

	httperrors "github.com/Tiisu/SourceWiki-sub001/internal/http/errors"
	"github.com/Tiisu/SourceWiki-sub001/internal/observability/logger"
)

// WithRecover turns a panic into a 500 instead of crashing the process.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log := logger.From(r.Context())
					log.Error("panic recovered",
						logger.Op("recover"),
						logger.Any("panic", rec),
					)

					httperrors.WriteError(w, httperrors.ErrInternalServerError.WithDetail("panic recovered"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
