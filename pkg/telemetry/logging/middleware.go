package logging

import (
	"log/slog"
	"net/http"
)

// RequestIDHeader is the HTTP header carrying the request ID.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware stamps every request with a request ID and logs
// the request through a logger annotated with it. A client-provided
// X-Request-ID is honored; otherwise one is generated. The ID is
// echoed in the response header and stored in the request context for
// handlers to pick up via FromContext.
func RequestIDMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithRequestID(r.Context(), r.Header.Get(RequestIDHeader))

		id := RequestID(ctx)
		w.Header().Set(RequestIDHeader, id)

		FromContext(ctx, logger).Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
