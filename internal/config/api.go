package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type RateLimits struct {
	Enabled bool
	Rate    float64
	Burst   int
}

type APIConfig struct {
	// BaseURL is the root of the scheduler deployment, the API lives under BasePath
	BaseURL  *url.URL
	BasePath string
	Timeout  time.Duration
	// RefreshPath is the endpoint that renews the session cookie, relative to BasePath
	RefreshPath       string
	CancelSuperseded  bool
	RateLimits        RateLimits
	SessionCookieName string
}

func (c *APIConfig) Validate() error {
	if c.BaseURL == nil {
		return fmt.Errorf("the api config is missing the base url")
	}
	if c.BaseURL.Scheme != "http" && c.BaseURL.Scheme != "https" {
		return fmt.Errorf("the api base url must use http or https, got %q", c.BaseURL.Scheme)
	}
	if !strings.HasPrefix(c.RefreshPath, "/") {
		return fmt.Errorf("the refresh path %q must start with a slash", c.RefreshPath)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("the api timeout (%s) cannot be negative", c.Timeout)
	}
	if c.RateLimits.Enabled && (c.RateLimits.Rate <= 0 || c.RateLimits.Burst <= 0) {
		return fmt.Errorf("rate limits need a positive rate and burst, got rate %v and burst %d", c.RateLimits.Rate, c.RateLimits.Burst)
	}
	return nil
}

// Endpoint returns the absolute URL of the API root.
func (c APIConfig) Endpoint() *url.URL {
	output := *c.BaseURL
	output.Path = strings.TrimSuffix(output.Path, "/") + "/" + strings.Trim(c.BasePath, "/")
	return &output
}

type apiConfigView struct {
	BaseURL           string        `yaml:"baseURL"`
	BasePath          string        `yaml:"basePath"`
	Timeout           time.Duration `yaml:"timeout"`
	RefreshPath       string        `yaml:"refreshPath"`
	CancelSuperseded  bool          `yaml:"cancelSuperseded"`
	RateLimits        RateLimits    `yaml:"rateLimits"`
	SessionCookieName string        `yaml:"sessionCookieName"`
}

// MarshalYAML prints the base URL as a string instead of its parsed fields.
func (c APIConfig) MarshalYAML() (any, error) {
	view := apiConfigView{
		BasePath:          c.BasePath,
		Timeout:           c.Timeout,
		RefreshPath:       c.RefreshPath,
		CancelSuperseded:  c.CancelSuperseded,
		RateLimits:        c.RateLimits,
		SessionCookieName: c.SessionCookieName,
	}
	if c.BaseURL != nil {
		view.BaseURL = c.BaseURL.String()
	}
	return view, nil
}
