package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/socialpost/postctl/internal/apierrors"
	"github.com/socialpost/postctl/internal/config"
	"github.com/socialpost/postctl/internal/navigation"
	"github.com/socialpost/postctl/internal/refresh"
	"github.com/socialpost/postctl/internal/transport"
	"github.com/tidwall/gjson"
	"golang.org/x/net/publicsuffix"
)

// Client talks to the scheduler API. Every request carries the session cookies from a shared jar
// and goes through a pipeline that refreshes an expired session and replays the request once.
type Client struct {
	baseURL          *url.URL
	refreshPath      string
	timeout          time.Duration
	jar              http.CookieJar
	base             http.RoundTripper
	navigator        navigation.Navigator
	cancelSuperseded bool
	rateLimits       config.RateLimits
	metrics          *transport.Metrics
	logger           *slog.Logger

	http        *http.Client
	coordinator *refresh.Coordinator
	supersede   *transport.Supersede

	activityLock sync.Mutex
	activity     []func()
}

type ClientOption func(*Client) error

// WithConfig applies the api section of the configuration.
func WithConfig(apiConfig config.APIConfig) ClientOption {
	return func(c *Client) error {
		if apiConfig.BaseURL == nil {
			return fmt.Errorf("the api base url is not set")
		}
		c.baseURL = apiConfig.Endpoint()
		c.timeout = apiConfig.Timeout
		if apiConfig.RefreshPath != "" {
			c.refreshPath = apiConfig.RefreshPath
		}
		c.cancelSuperseded = apiConfig.CancelSuperseded
		c.rateLimits = apiConfig.RateLimits
		return nil
	}
}

// WithBaseURL sets the API root, for example https://scheduler.example.com/api.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) error {
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return err
		}
		c.baseURL = parsed
		return nil
	}
}

// WithTransport replaces the transport at the bottom of the pipeline.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) error {
		c.base = rt
		return nil
	}
}

func WithCookieJar(jar http.CookieJar) ClientOption {
	return func(c *Client) error {
		c.jar = jar
		return nil
	}
}

func WithNavigator(navigator navigation.Navigator) ClientOption {
	return func(c *Client) error {
		c.navigator = navigator
		return nil
	}
}

// WithCancelSuperseded cancels pending idempotent requests (GET, HEAD, OPTIONS, PUT, DELETE) as soon as
// a session refresh starts and replays them afterwards. POST requests are left alone since the server
// may already have applied them.
func WithCancelSuperseded(enabled bool) ClientOption {
	return func(c *Client) error {
		c.cancelSuperseded = enabled
		return nil
	}
}

func WithMetrics(metrics *transport.Metrics) ClientOption {
	return func(c *Client) error {
		c.metrics = metrics
		return nil
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

func NewClient(options ...ClientOption) (*Client, error) {
	c := &Client{refreshPath: "/auth/refresh", timeout: 30 * time.Second}
	for _, opt := range options {
		err := opt(c)
		if err != nil {
			return nil, err
		}
	}
	if c.baseURL == nil {
		return nil, fmt.Errorf("a base url is required to create the api client")
	}
	if c.jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, err
		}
		c.jar = jar
	}
	if c.navigator == nil {
		c.navigator = navigation.NewTracker()
	}
	coordinator, err := refresh.NewCoordinator(refresh.WithRefreshFunc(c.RefreshSession), refresh.WithTimeout(c.timeout))
	if err != nil {
		return nil, err
	}
	c.coordinator = coordinator
	authRetry, err := transport.AuthRetry(
		transport.WithRefresher(coordinator),
		transport.WithNavigator(c.navigator),
		transport.WithRefreshPath(c.refreshPath),
		transport.WithExemptPaths("/auth/login"),
		transport.WithCookieJar(c.jar),
		transport.WithActivityListener(c.signalActivity),
	)
	if err != nil {
		return nil, err
	}
	middlewares := []transport.Middleware{transport.RequestID(), transport.Logging(c.logger), authRetry}
	if c.cancelSuperseded {
		c.supersede = transport.NewSupersede(c.refreshPath)
		c.supersede.Attach(coordinator)
		middlewares = append(middlewares, c.supersede.Middleware())
	}
	if c.rateLimits.Enabled {
		middlewares = append(middlewares, transport.RateLimit(c.rateLimits.Rate, c.rateLimits.Burst))
	}
	if c.metrics != nil {
		middlewares = append(middlewares, c.metrics.Middleware())
	}
	c.http = &http.Client{
		Transport: transport.Chain(c.base, middlewares...),
		Jar:       c.jar,
		Timeout:   c.timeout,
	}
	return c, nil
}

// Coordinator returns the refresh coordinator shared by every request of this client.
func (c *Client) Coordinator() *refresh.Coordinator {
	return c.coordinator
}

func (c *Client) Navigator() navigation.Navigator {
	return c.navigator
}

func (c *Client) BaseURL() *url.URL {
	output := *c.baseURL
	return &output
}

// Cookies returns the cookies the jar would send to the API.
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.baseURL)
}

// OnActivity registers a listener called after every successful API response.
func (c *Client) OnActivity(listener func()) {
	c.activityLock.Lock()
	defer c.activityLock.Unlock()
	c.activity = append(c.activity, listener)
}

func (c *Client) signalActivity() {
	c.activityLock.Lock()
	listeners := make([]func(), len(c.activity))
	copy(listeners, c.activity)
	c.activityLock.Unlock()
	for _, listener := range listeners {
		listener()
	}
}

func (c *Client) endpoint(elems ...string) string {
	return c.baseURL.JoinPath(elems...).String()
}

// newJSONRequest encodes body as JSON. The request body can be replayed.
func (c *Client) newJSONRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return req, nil
}

// do sends the request and decodes a successful response into out, which may be nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apierrors.NewHTTPError(resp.StatusCode, req.Method, req.URL.Path, raw)
	}
	return decodeBody(raw, out)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	req, err := c.newJSONRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// decodeBody accepts both bare payloads and payloads wrapped in {"data": ...}.
func decodeBody(raw []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if rawOut, ok := out.(*json.RawMessage); ok {
		*rawOut = append((*rawOut)[:0], raw...)
		return nil
	}
	payload := raw
	parsed := gjson.ParseBytes(raw)
	if parsed.IsObject() {
		if data := parsed.Get("data"); data.Exists() && data.Type != gjson.Null {
			payload = []byte(data.Raw)
		}
	}
	err := json.Unmarshal(payload, out)
	if err != nil {
		return fmt.Errorf("cannot decode the api response: %w", err)
	}
	return nil
}
