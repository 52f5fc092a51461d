package transport

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimit delays outgoing requests so that the API never sees more than r requests per second
// on average, with bursts of up to burst requests.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			err := limiter.Wait(req.Context())
			if err != nil {
				return nil, err
			}
			return next.RoundTrip(req)
		})
	}
}
