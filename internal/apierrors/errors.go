// Package apierrors contains all common errors returned by the scheduler API client.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

var ErrUnauthorized = fmt.Errorf("the access credential was rejected")
var ErrReauthenticationRequired = fmt.Errorf("the session expired, re-authentication is required")
var ErrSuperseded = fmt.Errorf("the request was superseded by a session refresh")
var ErrNotAuthenticated = fmt.Errorf("the user is not authenticated")
var ErrForbiddenRole = fmt.Errorf("the user does not have the required role")
var ErrTemporaryPassword = fmt.Errorf("the user must choose a new password first")
var ErrDraftNotFound = fmt.Errorf("the draft cannot be found")
var ErrMissingDBResource = fmt.Errorf("the requested resource cannot be found in the DB")
var ErrRequestNotReplayable = fmt.Errorf("the request body cannot be replayed")

// HTTPError is returned for every response with a non 2xx status code.
type HTTPError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// NewHTTPError builds an HTTPError, pulling a human readable message out of a JSON body when present.
func NewHTTPError(statusCode int, method, path string, body []byte) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Method:     method,
		Path:       path,
		Message:    MessageFromBody(body),
	}
}

// MessageFromBody looks for the usual error message fields in a JSON error body.
func MessageFromBody(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range []string{"error.message", "message", "detail", "error"} {
		res := gjson.GetBytes(body, path)
		if res.Exists() && res.Type == gjson.String && res.String() != "" {
			return res.String()
		}
	}
	return ""
}

// StatusCode returns the HTTP status carried by err, or 0 when there is none.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
