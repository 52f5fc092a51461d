package navigation

import (
	"log/slog"
	"sync"
)

const DefaultLoginPath string = "/login"

// Navigator is the collaborator the HTTP pipeline uses to send the user back to the login view.
type Navigator interface {
	NavigateToLogin()
	CurrentPath() string
	LoginPath() string
}

// Tracker is a Navigator for headless clients: it remembers the current view and notifies
// listeners when the login view is entered.
type Tracker struct {
	loginPath string

	mu          sync.Mutex
	currentPath string
	listeners   []func(from string)
}

type TrackerOption func(*Tracker)

func WithLoginPath(path string) TrackerOption {
	return func(t *Tracker) {
		if path != "" {
			t.loginPath = path
		}
	}
}

func WithInitialPath(path string) TrackerOption {
	return func(t *Tracker) {
		t.currentPath = path
	}
}

func NewTracker(options ...TrackerOption) *Tracker {
	t := &Tracker{loginPath: DefaultLoginPath, currentPath: "/"}
	for _, opt := range options {
		opt(t)
	}
	return t
}

func (t *Tracker) LoginPath() string {
	return t.loginPath
}

func (t *Tracker) CurrentPath() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentPath
}

// NavigateTo moves to another view without notifying listeners.
func (t *Tracker) NavigateTo(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentPath = path
}

// NavigateToLogin is a no-op when the login view is already current.
func (t *Tracker) NavigateToLogin() {
	t.mu.Lock()
	if t.currentPath == t.loginPath {
		t.mu.Unlock()
		return
	}
	from := t.currentPath
	t.currentPath = t.loginPath
	listeners := make([]func(string), len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	slog.Info("NAVIGATION", "message", "session ended, navigating to login", "from", from)
	for _, listener := range listeners {
		listener(from)
	}
}

// OnLogin registers a listener called with the previous path every time the login view is entered.
func (t *Tracker) OnLogin(listener func(from string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, listener)
}
