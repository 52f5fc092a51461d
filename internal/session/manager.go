package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/socialpost/postctl/internal/apierrors"
	"github.com/socialpost/postctl/internal/models"
	"github.com/socialpost/postctl/internal/navigation"
)

// API is the part of the scheduler API the session manager needs.
type API interface {
	Login(ctx context.Context, credentials models.Credentials) (models.AuthState, error)
	Logout(ctx context.Context) error
	AuthState(ctx context.Context) (models.AuthState, error)
	Me(ctx context.Context) (models.User, error)
	ChoosePassword(ctx context.Context, userID int, password string) error
	Cookies() []*http.Cookie
}

// Manager keeps track of who is logged in. The server stays authoritative: the cached user is
// dropped whenever the session ends, locally or because the pipeline navigated to login.
type Manager struct {
	api               API
	navigator         navigation.Navigator
	sessionCookieName string

	mu   sync.Mutex
	user *models.User
}

type ManagerOption func(*Manager) error

func WithAPI(api API) ManagerOption {
	return func(m *Manager) error {
		m.api = api
		return nil
	}
}

func WithNavigator(navigator navigation.Navigator) ManagerOption {
	return func(m *Manager) error {
		m.navigator = navigator
		return nil
	}
}

func WithSessionCookieName(name string) ManagerOption {
	return func(m *Manager) error {
		if name == "" {
			return fmt.Errorf("the session cookie name cannot be empty")
		}
		m.sessionCookieName = name
		return nil
	}
}

func NewManager(options ...ManagerOption) (*Manager, error) {
	m := &Manager{sessionCookieName: "access_token"}
	for _, opt := range options {
		err := opt(m)
		if err != nil {
			return nil, err
		}
	}
	if m.api == nil {
		return nil, fmt.Errorf("an api client is required to create a session manager")
	}
	if m.navigator == nil {
		m.navigator = navigation.NewTracker()
	}
	if notifier, ok := m.navigator.(interface{ OnLogin(func(string)) }); ok {
		notifier.OnLogin(func(string) { m.forget() })
	}
	return m, nil
}

func (m *Manager) Navigator() navigation.Navigator {
	return m.navigator
}

func (m *Manager) remember(user models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = &user
}

func (m *Manager) forget() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = nil
}

func (m *Manager) cached() (models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return models.User{}, false
	}
	return *m.user, true
}

// Login opens a session and loads the user behind it.
func (m *Manager) Login(ctx context.Context, credentials models.Credentials) (models.User, error) {
	state, err := m.api.Login(ctx, credentials)
	if err != nil {
		return models.User{}, err
	}
	if !state.IsAuthenticated {
		return models.User{}, apierrors.ErrNotAuthenticated
	}
	user, err := m.api.Me(ctx)
	if err != nil {
		return models.User{}, err
	}
	m.remember(user)
	slog.Info("SESSION", "message", "logged in", "userID", user.ID, "role", user.Role)
	return user, nil
}

// Logout ends the session on the server and locally. The local session is dropped even when the
// server call fails, and the user is sent to the login view.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.api.Logout(ctx)
	if err != nil {
		slog.Warn("SESSION", "message", "server logout failed", "error", err)
	}
	m.forget()
	m.navigator.NavigateToLogin()
	return err
}

// IsAuthenticated asks the server. An ended session is reported as false, not as an error.
func (m *Manager) IsAuthenticated(ctx context.Context) (bool, error) {
	state, err := m.api.AuthState(ctx)
	if sessionEnded(err) {
		m.forget()
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !state.IsAuthenticated {
		m.forget()
	}
	return state.IsAuthenticated, nil
}

// CurrentUser returns the logged in user, loading it from the server on first use.
func (m *Manager) CurrentUser(ctx context.Context) (models.User, error) {
	if user, ok := m.cached(); ok {
		return user, nil
	}
	user, err := m.api.Me(ctx)
	if sessionEnded(err) {
		return models.User{}, fmt.Errorf("%w: %w", apierrors.ErrNotAuthenticated, err)
	}
	if err != nil {
		return models.User{}, err
	}
	m.remember(user)
	return user, nil
}

// ChoosePassword replaces the temporary password of the current user.
func (m *Manager) ChoosePassword(ctx context.Context, password string) error {
	user, err := m.RequireAuthenticated(ctx)
	if err != nil {
		return err
	}
	err = m.api.ChoosePassword(ctx, user.ID, password)
	if err != nil {
		return err
	}
	user.PasswordIsTemporary = false
	m.remember(user)
	return nil
}

// RequireAuthenticated returns the current user or navigates to login.
func (m *Manager) RequireAuthenticated(ctx context.Context) (models.User, error) {
	user, err := m.CurrentUser(ctx)
	if errors.Is(err, apierrors.ErrNotAuthenticated) {
		m.navigator.NavigateToLogin()
		return models.User{}, err
	}
	return user, err
}

// RequireSuperAdmin only lets super admins through.
func (m *Manager) RequireSuperAdmin(ctx context.Context) (models.User, error) {
	user, err := m.RequireAuthenticated(ctx)
	if err != nil {
		return models.User{}, err
	}
	if !user.IsSuperAdmin() {
		return models.User{}, fmt.Errorf("%w: %s is %s", apierrors.ErrForbiddenRole, user.Email, user.Role)
	}
	return user, nil
}

// RequirePasswordChosen blocks users that still have the temporary password they were created with.
func (m *Manager) RequirePasswordChosen(ctx context.Context) (models.User, error) {
	user, err := m.RequireAuthenticated(ctx)
	if err != nil {
		return models.User{}, err
	}
	if user.PasswordIsTemporary {
		return models.User{}, apierrors.ErrTemporaryPassword
	}
	return user, nil
}

// HasSession reports whether a session cookie is present, without asking the server.
func (m *Manager) HasSession() bool {
	for _, cookie := range m.api.Cookies() {
		if cookie.Name == m.sessionCookieName && cookie.Value != "" {
			return true
		}
	}
	return false
}

func sessionEnded(err error) bool {
	return errors.Is(err, apierrors.ErrReauthenticationRequired) || errors.Is(err, apierrors.ErrUnauthorized)
}
