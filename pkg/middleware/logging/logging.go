// Package logging provides an HTTP access-log middleware.
package logging

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dhaneshkk/prolog-service/pkg/logger"
	"github.com/dhaneshkk/prolog-service/pkg/middleware/requestid"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// NewHandler logs one line per completed request.
func NewHandler(next http.Handler, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
			zap.String("user_agent", r.UserAgent()),
		}
		if requestID, ok := requestid.FromContext(r.Context()); ok {
			fields = append(fields, zap.String("request_id", requestID))
		}

		if rec.status >= http.StatusInternalServerError {
			l.ErrorWithContext(r.Context(), "http_request", fields...)
			return
		}
		l.InfoWithContext(r.Context(), "http_request", fields...)
	})
}
