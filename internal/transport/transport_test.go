package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/socialpost/postctl/internal/apierrors"
	"github.com/socialpost/postctl/internal/navigation"
	"github.com/socialpost/postctl/internal/refresh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL string = "http://api.test/api"

// fakeAPI answers like the remote API: 401 until the session has been refreshed.
type fakeAPI struct {
	mu           sync.Mutex
	sessionValid bool
	refreshFails bool
	alwaysDeny   bool
	refreshGate  chan struct{}
	calls        map[string]int
	bodies       []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: map[string]int{}}
}

func response(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
		Request:    req,
	}
}

func (f *fakeAPI) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeAPI) RoundTrip(req *http.Request) (*http.Response, error) {
	path := strings.TrimPrefix(req.URL.Path, "/api")
	f.mu.Lock()
	f.calls[path]++
	call := f.calls[path]
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		if len(raw) > 0 {
			f.bodies = append(f.bodies, string(raw))
		}
	}
	gate := f.refreshGate
	f.mu.Unlock()

	switch {
	case path == "/auth/refresh":
		if gate != nil {
			<-gate
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.refreshFails {
			return response(req, http.StatusUnauthorized, `{"message":"refresh token expired"}`), nil
		}
		f.sessionValid = true
		return response(req, http.StatusOK, `{}`), nil
	case path == "/slow" && call == 1:
		<-req.Context().Done()
		return nil, req.Context().Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sessionValid || f.alwaysDeny {
		return response(req, http.StatusUnauthorized, `{"message":"unauthorized"}`), nil
	}
	return response(req, http.StatusOK, `{"data":"ok"}`), nil
}

type harness struct {
	api         *fakeAPI
	client      *http.Client
	coordinator *refresh.Coordinator
	navigator   *navigation.Tracker
	supersede   *Supersede
	activity    int
	logins      int
	mu          sync.Mutex
}

func newHarness(t *testing.T, api *fakeAPI, withSupersede bool) *harness {
	h := &harness{api: api, navigator: navigation.NewTracker(navigation.WithInitialPath("/posts"))}
	h.navigator.OnLogin(func(string) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.logins++
	})
	coordinator, err := refresh.NewCoordinator(refresh.WithRefreshFunc(func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/auth/refresh", nil)
		if err != nil {
			return err
		}
		resp, err := h.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return apierrors.NewHTTPError(resp.StatusCode, req.Method, req.URL.Path, nil)
		}
		return nil
	}))
	require.NoError(t, err)
	h.coordinator = coordinator
	authRetry, err := AuthRetry(
		WithRefresher(coordinator),
		WithNavigator(h.navigator),
		WithActivityListener(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.activity++
		}),
	)
	require.NoError(t, err)
	middlewares := []Middleware{RequestID(), Logging(nil), authRetry}
	if withSupersede {
		h.supersede = NewSupersede("/auth/refresh")
		h.supersede.Attach(coordinator)
		middlewares = append(middlewares, h.supersede.Middleware())
	}
	h.client = &http.Client{Transport: Chain(api, middlewares...)}
	return h
}

func (h *harness) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return h.client.Do(req)
}

func TestAuthRetryRequiresRefresher(t *testing.T) {
	_, err := AuthRetry()
	assert.Error(t, err)
	_, err = AuthRetry(WithRefresher(&refresh.Coordinator{}), WithRefreshPath(""))
	assert.Error(t, err)
}

func TestSuccessPassesThroughAndSignalsActivity(t *testing.T) {
	api := newFakeAPI()
	api.sessionValid = true
	h := newHarness(t, api, false)

	resp, err := h.get(context.Background(), "/pages/my-pages")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, api.count("/auth/refresh"))
	assert.Equal(t, 1, h.activity)
}

func TestUnauthorizedIsRefreshedAndReplayedOnce(t *testing.T) {
	api := newFakeAPI()
	h := newHarness(t, api, false)

	body := `{"description":"hello"}`
	req, err := http.NewRequest(http.MethodPost, baseURL+"/post/publish", strings.NewReader(body))
	require.NoError(t, err)
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, api.count("/post/publish"))
	assert.Equal(t, 1, api.count("/auth/refresh"))
	assert.Equal(t, []string{body, body}, api.bodies)
	assert.Equal(t, 0, h.logins)
}

func TestReplayIsAttemptedAtMostOnce(t *testing.T) {
	api := newFakeAPI()
	api.alwaysDeny = true
	h := newHarness(t, api, false)

	resp, err := h.get(context.Background(), "/user/me")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 2, api.count("/user/me"))
	assert.Equal(t, 1, api.count("/auth/refresh"))
}

func TestRefreshEndpointIsNeverRetried(t *testing.T) {
	api := newFakeAPI()
	api.refreshFails = true
	h := newHarness(t, api, false)

	req, err := http.NewRequest(http.MethodPost, baseURL+"/auth/refresh", nil)
	require.NoError(t, err)
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 1, api.count("/auth/refresh"))
	assert.Equal(t, navigation.DefaultLoginPath, h.navigator.CurrentPath())
	assert.Equal(t, 1, h.logins)
}

func TestRefreshFailureIsTerminal(t *testing.T) {
	api := newFakeAPI()
	api.refreshFails = true
	h := newHarness(t, api, false)

	_, err := h.get(context.Background(), "/user/me")
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrReauthenticationRequired)
	assert.Equal(t, http.StatusUnauthorized, apierrors.StatusCode(err))
	assert.Equal(t, 1, api.count("/user/me"))
	assert.Equal(t, 1, h.logins)

	// the login view is current now, a second failure does not navigate again
	_, err = h.get(context.Background(), "/user/me")
	assert.ErrorIs(t, err, apierrors.ErrReauthenticationRequired)
	assert.Equal(t, 1, h.logins)
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	api := newFakeAPI()
	api.refreshGate = make(chan struct{})
	h := newHarness(t, api, false)

	const requests = 10
	var wg sync.WaitGroup
	statuses := make(chan int, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := h.get(context.Background(), "/pages/my-pages")
			if !assert.NoError(t, err) {
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	require.Eventually(t, func() bool { return api.count("/pages/my-pages") == requests }, time.Second, time.Millisecond)
	close(api.refreshGate)
	wg.Wait()
	close(statuses)

	assert.Equal(t, 1, api.count("/auth/refresh"))
	assert.Equal(t, 2*requests, api.count("/pages/my-pages"))
	for status := range statuses {
		assert.Equal(t, http.StatusOK, status)
	}
}

func TestWaiterContextCancelled(t *testing.T) {
	api := newFakeAPI()
	api.refreshGate = make(chan struct{})
	h := newHarness(t, api, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.get(ctx, "/user/me")
		done <- err
	}()
	require.Eventually(t, h.coordinator.InFlight, time.Second, time.Millisecond)
	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, apierrors.ErrReauthenticationRequired)
	close(api.refreshGate)
	require.Eventually(t, func() bool { return !h.coordinator.InFlight() }, time.Second, time.Millisecond)
	assert.Equal(t, 0, h.logins)
}

func TestSupersededRequestIsReplayed(t *testing.T) {
	api := newFakeAPI()
	api.refreshGate = make(chan struct{})
	h := newHarness(t, api, true)

	done := make(chan *http.Response, 1)
	go func() {
		resp, err := h.get(context.Background(), "/slow")
		assert.NoError(t, err)
		done <- resp
	}()
	require.Eventually(t, func() bool { return h.supersede.Pending() == 1 }, time.Second, time.Millisecond)

	future := h.coordinator.BeginRefresh()
	close(api.refreshGate)
	require.NoError(t, future.Wait(context.Background()))

	resp := <-done
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, api.count("/slow"))
	assert.Equal(t, 1, api.count("/auth/refresh"))
	assert.Equal(t, 0, h.supersede.Pending())
}

func TestSupersedeCancelsInStartOrder(t *testing.T) {
	s := NewSupersede("/auth/refresh")
	var order []int
	var mu sync.Mutex
	for i := 1; i <= 3; i++ {
		i := i
		s.track(func(error) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, i)
		})
	}
	s.CancelPending(nil)
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, s.Pending())
}

func TestSupersededErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &SupersededError{Method: http.MethodGet, Path: "/x"})
	assert.True(t, errors.Is(err, apierrors.ErrSuperseded))
}

func TestChainOrder(t *testing.T) {
	var trace []string
	mark := func(name string) Middleware {
		return func(next http.RoundTripper) http.RoundTripper {
			return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
				trace = append(trace, name)
				return next.RoundTrip(req)
			})
		}
	}
	base := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		trace = append(trace, "base")
		return response(req, http.StatusOK, ""), nil
	})
	rt := Chain(base, mark("outer"), nil, mark("inner"))
	req, err := http.NewRequest(http.MethodGet, baseURL+"/health", nil)
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []string{"outer", "inner", "base"}, trace)
}

func TestRequestID(t *testing.T) {
	var seen []string
	base := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		seen = append(seen, req.Header.Get(echo.HeaderXRequestID))
		return response(req, http.StatusOK, ""), nil
	})
	rt := Chain(base, RequestID())

	req, err := http.NewRequest(http.MethodGet, baseURL+"/health", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Empty(t, req.Header.Get(echo.HeaderXRequestID))

	req.Header.Set(echo.HeaderXRequestID, "fixed")
	_, err = rt.RoundTrip(req)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Len(t, seen[0], 36)
	assert.Equal(t, "fixed", seen[1])
}

func TestRateLimitHonoursContext(t *testing.T) {
	base := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return response(req, http.StatusOK, ""), nil
	})
	rt := Chain(base, RateLimit(0.001, 1))
	req, err := http.NewRequest(http.MethodGet, baseURL+"/health", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = rt.RoundTrip(req.WithContext(ctx))
	assert.Error(t, err)
}

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(registry)
	require.NoError(t, err)
	base := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return response(req, http.StatusNoContent, ""), nil
	})
	rt := Chain(base, metrics.Middleware())
	req, err := http.NewRequest(http.MethodGet, baseURL+"/health", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("204", "get")))
	_, err = NewMetrics(registry)
	assert.Error(t, err)
}

func TestExemptPathSurfacesUnauthorized(t *testing.T) {
	api := newFakeAPI()
	refresher := &countingRefresher{}
	authRetry, err := AuthRetry(WithRefresher(refresher), WithExemptPaths("/auth/login"))
	require.NoError(t, err)
	client := &http.Client{Transport: Chain(api, authRetry)}

	resp, err := client.Post(baseURL+"/auth/login", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, refresher.calls)
}

func TestReplayCarriesRefreshedCookies(t *testing.T) {
	jar := &staticJar{}
	var cookies []string
	base := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		cookies = append(cookies, req.Header.Get("Cookie"))
		if len(cookies) == 1 {
			return response(req, http.StatusUnauthorized, ""), nil
		}
		return response(req, http.StatusOK, ""), nil
	})
	refresher := &countingRefresher{onRefresh: func() {
		jar.cookies = []*http.Cookie{{Name: "access_token", Value: "fresh"}}
	}}
	authRetry, err := AuthRetry(WithRefresher(refresher), WithCookieJar(jar))
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, baseURL+"/user/me", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "stale"})
	resp, err := Chain(base, authRetry).RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"access_token=stale", "access_token=fresh"}, cookies)
	assert.Equal(t, 1, refresher.calls)
}

func TestLoginViewIsNotEnteredTwice(t *testing.T) {
	refresher := &countingRefresher{err: errors.New("refresh token revoked")}
	navigator := &recordingNavigator{current: "/signin", login: "/signin"}
	authRetry, err := AuthRetry(WithRefresher(refresher), WithNavigator(navigator))
	require.NoError(t, err)
	client := &http.Client{Transport: Chain(newFakeAPI(), authRetry)}

	_, err = client.Get(baseURL + "/user/me")
	assert.ErrorIs(t, err, apierrors.ErrReauthenticationRequired)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, 0, navigator.entered)
}

func TestConfiguredLoginPathIsEntered(t *testing.T) {
	refresher := &countingRefresher{err: errors.New("refresh token revoked")}
	// sitting on the default login path, which is not the login view here
	navigator := &recordingNavigator{current: navigation.DefaultLoginPath, login: "/signin"}
	authRetry, err := AuthRetry(WithRefresher(refresher), WithNavigator(navigator))
	require.NoError(t, err)
	client := &http.Client{Transport: Chain(newFakeAPI(), authRetry)}

	_, err = client.Get(baseURL + "/user/me")
	assert.ErrorIs(t, err, apierrors.ErrReauthenticationRequired)
	assert.Equal(t, 1, navigator.entered)
	assert.Equal(t, "/signin", navigator.CurrentPath())
}

func TestSupersedeDiscardsResponseCancelledAfterArrival(t *testing.T) {
	s := NewSupersede("/auth/refresh")
	body := &closeRecorder{Reader: strings.NewReader(`{"data":"ok"}`)}
	base := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		// the refresh begins once the response is already on its way back
		s.CancelPending(nil)
		return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: body, Request: req}, nil
	})
	req, err := http.NewRequest(http.MethodGet, baseURL+"/user/me", nil)
	require.NoError(t, err)

	resp, err := Chain(base, s.Middleware()).RoundTrip(req)
	assert.Nil(t, resp)
	var superseded *SupersededError
	require.ErrorAs(t, err, &superseded)
	assert.Equal(t, "/api/user/me", superseded.Path)
	assert.True(t, body.closed)
	assert.Equal(t, 0, s.Pending())
}

func TestSupersedeLeavesPostAlone(t *testing.T) {
	s := NewSupersede("/auth/refresh")
	tracked := map[string]int{}
	base := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		tracked[req.Method] = s.Pending()
		return response(req, http.StatusOK, ""), nil
	})
	rt := Chain(base, s.Middleware())
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		req, err := http.NewRequest(method, baseURL+"/post/publish", nil)
		require.NoError(t, err)
		resp, err := rt.RoundTrip(req)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, map[string]int{http.MethodGet: 1, http.MethodPost: 0}, tracked)
}

type countingRefresher struct {
	calls     int
	err       error
	onRefresh func()
}

func (c *countingRefresher) Refresh(ctx context.Context) error {
	c.calls++
	if c.onRefresh != nil {
		c.onRefresh()
	}
	return c.err
}

// recordingNavigator has no guard of its own, it counts every call.
type recordingNavigator struct {
	mu      sync.Mutex
	current string
	login   string
	entered int
}

func (n *recordingNavigator) NavigateToLogin() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entered++
	n.current = n.login
}

func (n *recordingNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *recordingNavigator) LoginPath() string {
	return n.login
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

type staticJar struct {
	cookies []*http.Cookie
}

func (j *staticJar) SetCookies(u *url.URL, cookies []*http.Cookie) {}

func (j *staticJar) Cookies(u *url.URL) []*http.Cookie {
	return j.cookies
}
