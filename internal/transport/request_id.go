package transport

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestID sets a random X-Request-ID header on requests that do not carry one yet.
func RequestID() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(echo.HeaderXRequestID) != "" {
				return next.RoundTrip(req)
			}
			req = req.Clone(req.Context())
			req.Header.Set(echo.HeaderXRequestID, uuid.NewString())
			return next.RoundTrip(req)
		})
	}
}

func GetRequestID(req *http.Request) string {
	return req.Header.Get(echo.HeaderXRequestID)
}
