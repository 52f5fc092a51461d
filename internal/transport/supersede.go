package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/socialpost/postctl/internal/apierrors"
	"github.com/socialpost/postctl/internal/refresh"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// SupersededError is returned for a request that was cancelled because a session refresh started
// while it was pending. Future settles with the outcome of that refresh.
type SupersededError struct {
	Method string
	Path   string
	Future *refresh.Future
}

func (e *SupersededError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, apierrors.ErrSuperseded.Error())
}

func (e *SupersededError) Is(target error) bool {
	return target == apierrors.ErrSuperseded
}

// Supersede tracks pending requests so that they can be cancelled as soon as a session refresh
// begins, instead of waiting for their own 401. Only idempotent requests are tracked: a cancelled
// POST may already have been applied by the server and replaying it could apply it twice.
type Supersede struct {
	refreshPath string

	mu      sync.Mutex
	nextID  uint64
	pending *orderedmap.OrderedMap[uint64, context.CancelCauseFunc]
}

func NewSupersede(refreshPath string) *Supersede {
	return &Supersede{
		refreshPath: refreshPath,
		pending:     orderedmap.New[uint64, context.CancelCauseFunc](),
	}
}

// Attach cancels the pending requests every time the coordinator starts a refresh.
func (s *Supersede) Attach(coordinator *refresh.Coordinator) {
	coordinator.OnBegin(s.CancelPending)
}

// CancelPending cancels every tracked request, oldest first. Cancelling happens under the lock so
// that a request is either untracked before its cancellation or sees the cancellation when untracked.
func (s *Supersede) CancelPending(future *refresh.Future) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending.Len() > 0 {
		slog.Debug("SUPERSEDE", "message", "cancelling requests sent with the previous session", "count", s.pending.Len())
	}
	for pair := s.pending.Oldest(); pair != nil; pair = pair.Next() {
		pair.Value(&SupersededError{Future: future})
	}
	s.pending = orderedmap.New[uint64, context.CancelCauseFunc]()
}

// Pending returns the number of tracked requests.
func (s *Supersede) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}

func (s *Supersede) track(cancel context.CancelCauseFunc) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.pending.Set(s.nextID, cancel)
	return s.nextID
}

// untrack stops tracking the request and returns the supersession cause when it was cancelled first.
func (s *Supersede) untrack(ctx context.Context, id uint64) *SupersededError {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.Delete(id)
	var superseded *SupersededError
	if errors.As(context.Cause(ctx), &superseded) {
		return superseded
	}
	return nil
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func (s *Supersede) Middleware() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			// replays already carry the new session, the refresh call is what everybody waits for
			// and a cancelled POST may have been applied already
			if IsRetried(req) || hasPathSuffix(req, s.refreshPath) || !idempotent(req.Method) {
				return next.RoundTrip(req)
			}
			ctx, cancel := context.WithCancelCause(req.Context())
			id := s.track(cancel)
			resp, err := next.RoundTrip(req.WithContext(ctx))
			superseded := s.untrack(ctx, id)
			if superseded != nil && req.Context().Err() == nil {
				// a response that arrived just before the cancellation has a dead body
				if err == nil {
					drainAndClose(resp)
				}
				cancel(nil)
				return nil, &SupersededError{Method: req.Method, Path: req.URL.Path, Future: superseded.Future}
			}
			if err != nil {
				cancel(err)
				return nil, err
			}
			resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		})
	}
}

// cancelOnClose releases the request context once the caller is done with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelCauseFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel(nil)
	return err
}
