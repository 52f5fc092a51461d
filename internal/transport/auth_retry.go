package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/socialpost/postctl/internal/apierrors"
	"github.com/socialpost/postctl/internal/navigation"
)

// SessionRefresher joins the refresh in flight or starts one and waits for it to settle.
type SessionRefresher interface {
	Refresh(ctx context.Context) error
}

type authRetry struct {
	refresher   SessionRefresher
	navigator   navigation.Navigator
	refreshPath string
	exempt      []string
	onActivity  func()
	jar         http.CookieJar
	next        http.RoundTripper
}

type AuthRetryOption func(*authRetry) error

func WithRefresher(refresher SessionRefresher) AuthRetryOption {
	return func(a *authRetry) error {
		a.refresher = refresher
		return nil
	}
}

func WithNavigator(navigator navigation.Navigator) AuthRetryOption {
	return func(a *authRetry) error {
		a.navigator = navigator
		return nil
	}
}

// WithRefreshPath sets the path of the refresh endpoint. Requests whose path ends with it are never retried.
func WithRefreshPath(path string) AuthRetryOption {
	return func(a *authRetry) error {
		if path == "" {
			return fmt.Errorf("the refresh path cannot be empty")
		}
		a.refreshPath = path
		return nil
	}
}

// WithExemptPaths lists endpoints whose 401 answers are final, like a login with wrong credentials.
func WithExemptPaths(paths ...string) AuthRetryOption {
	return func(a *authRetry) error {
		a.exempt = append(a.exempt, paths...)
		return nil
	}
}

// WithCookieJar makes replays carry the cookies set by the refresh instead of the rejected ones.
func WithCookieJar(jar http.CookieJar) AuthRetryOption {
	return func(a *authRetry) error {
		a.jar = jar
		return nil
	}
}

// WithActivityListener registers a function called after every successful response.
func WithActivityListener(listener func()) AuthRetryOption {
	return func(a *authRetry) error {
		a.onActivity = listener
		return nil
	}
}

// AuthRetry returns a middleware that recovers from an expired session: a request rejected with
// 401 waits for a session refresh and is replayed exactly once. When the refresh fails the request
// fails with apierrors.ErrReauthenticationRequired and the navigator is sent to the login view.
func AuthRetry(options ...AuthRetryOption) (Middleware, error) {
	template := authRetry{refreshPath: "/auth/refresh"}
	for _, opt := range options {
		err := opt(&template)
		if err != nil {
			return nil, err
		}
	}
	if template.refresher == nil {
		return nil, fmt.Errorf("a session refresher is required for the auth retry middleware")
	}
	return func(next http.RoundTripper) http.RoundTripper {
		a := template
		a.next = next
		return &a
	}, nil
}

func (a *authRetry) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := a.next.RoundTrip(req)
	if err != nil {
		var superseded *SupersededError
		if errors.As(err, &superseded) && !IsRetried(req) && req.Context().Err() == nil && replayable(req) {
			slog.Debug("AUTH RETRY", "message", "request superseded by a session refresh", "path", req.URL.Path)
			return a.waitAndReplay(req, func(ctx context.Context) error { return superseded.Future.Wait(ctx) })
		}
		return nil, err
	}
	if a.isRefreshRequest(req) {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			slog.Info("AUTH RETRY", "message", "the session refresh was rejected", "status", resp.StatusCode)
			a.navigateToLogin()
		}
		return resp, nil
	}
	if resp.StatusCode != http.StatusUnauthorized || a.isExempt(req) {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 && a.onActivity != nil {
			a.onActivity()
		}
		return resp, nil
	}
	if IsRetried(req) {
		slog.Debug("AUTH RETRY", "message", "replayed request rejected again", "path", req.URL.Path)
		return resp, nil
	}
	if !replayable(req) {
		slog.Warn("AUTH RETRY", "message", "request body cannot be replayed, surfacing 401", "path", req.URL.Path)
		return resp, nil
	}
	drainAndClose(resp)
	slog.Debug("AUTH RETRY", "message", "request rejected with 401, waiting for session refresh", "path", req.URL.Path)
	return a.waitAndReplay(req, a.refresher.Refresh)
}

func (a *authRetry) waitAndReplay(req *http.Request, wait func(context.Context) error) (*http.Response, error) {
	err := wait(req.Context())
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		a.navigateToLogin()
		return nil, fmt.Errorf("%w: %w", apierrors.ErrReauthenticationRequired, err)
	}
	replay := markRetried(req)
	if a.jar != nil {
		replay.Header.Del("Cookie")
		for _, cookie := range a.jar.Cookies(req.URL) {
			replay.AddCookie(cookie)
		}
	}
	if req.GetBody != nil {
		replay.Body, err = req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apierrors.ErrRequestNotReplayable, err)
		}
	}
	slog.Debug("AUTH RETRY", "message", "replaying request after session refresh", "path", req.URL.Path)
	resp, err := a.next.RoundTrip(replay)
	if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 && a.onActivity != nil {
		a.onActivity()
	}
	return resp, err
}

func (a *authRetry) isRefreshRequest(req *http.Request) bool {
	return hasPathSuffix(req, a.refreshPath)
}

func (a *authRetry) isExempt(req *http.Request) bool {
	for _, path := range a.exempt {
		if hasPathSuffix(req, path) {
			return true
		}
	}
	return false
}

func hasPathSuffix(req *http.Request, suffix string) bool {
	return strings.HasSuffix(strings.TrimSuffix(req.URL.Path, "/"), suffix)
}

func (a *authRetry) navigateToLogin() {
	if a.navigator == nil {
		return
	}
	// the navigator owns the login path, it may not be the default one
	if a.navigator.CurrentPath() == a.navigator.LoginPath() {
		return
	}
	a.navigator.NavigateToLogin()
}
