package transport

import (
	"context"
	"io"
	"net/http"
)

// Middleware wraps a round tripper with additional behaviour.
type Middleware func(http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain wraps base with the middlewares. The first middleware is the outermost one,
// so it sees every request first and every response last.
func Chain(base http.RoundTripper, middlewares ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] == nil {
			continue
		}
		rt = middlewares[i](rt)
	}
	return rt
}

type retriedKey struct{}

// markRetried returns a copy of the request flagged as a replay. The flag lives on the
// request's context so it is never shared with other requests.
func markRetried(req *http.Request) *http.Request {
	return req.Clone(context.WithValue(req.Context(), retriedKey{}, true))
}

// IsRetried reports whether the request is a replay after a session refresh.
func IsRetried(req *http.Request) bool {
	retried, _ := req.Context().Value(retriedKey{}).(bool)
	return retried
}

// replayable reports whether the request body can be produced a second time.
func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	// draining lets the connection be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()
}
