package transport

import (
	"log/slog"
	"net/http"
	"time"
)

// Logging logs every exchange with the API at debug level and failures at warn level.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)
			attrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"requestID", GetRequestID(req),
				"duration", time.Since(start),
				"retried", IsRetried(req),
			}
			if err != nil {
				logger.Warn("HTTP", append([]any{"message", "request failed", "error", err}, attrs...)...)
				return nil, err
			}
			attrs = append(attrs, "status", resp.StatusCode)
			if resp.StatusCode >= 500 {
				logger.Warn("HTTP", append([]any{"message", "server error"}, attrs...)...)
			} else {
				logger.Debug("HTTP", append([]any{"message", "request completed"}, attrs...)...)
			}
			return resp, nil
		})
	}
}
