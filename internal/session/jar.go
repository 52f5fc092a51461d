package session

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// CookieStore persists cookies between processes.
type CookieStore interface {
	LoadCookies(ctx context.Context) ([]*http.Cookie, error)
	SaveCookies(ctx context.Context, cookies []*http.Cookie) error
}

// PersistentJar is a cookie jar that writes every cookie change through to a CookieStore.
// Saved cookies are replayed against the API root when the jar is created.
type PersistentJar struct {
	jar     http.CookieJar
	store   CookieStore
	now     func() time.Time
	mu      sync.Mutex
	cookies map[string]*http.Cookie
}

func NewPersistentJar(ctx context.Context, apiRoot *url.URL, store CookieStore) (*PersistentJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	p := &PersistentJar{jar: jar, store: store, now: time.Now, cookies: map[string]*http.Cookie{}}
	saved, err := store.LoadCookies(ctx)
	if err != nil {
		return nil, err
	}
	live := make([]*http.Cookie, 0, len(saved))
	for _, cookie := range saved {
		if p.expired(cookie) {
			continue
		}
		p.cookies[cookieID(cookie)] = cookie
		live = append(live, cookie)
	}
	jar.SetCookies(apiRoot, live)
	return p, nil
}

func cookieID(cookie *http.Cookie) string {
	return cookie.Name + "|" + cookie.Domain + "|" + cookie.Path
}

func (p *PersistentJar) expired(cookie *http.Cookie) bool {
	if cookie.MaxAge < 0 {
		return true
	}
	return !cookie.Expires.IsZero() && cookie.Expires.Before(p.now())
}

func (p *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	p.jar.SetCookies(u, cookies)
	p.mu.Lock()
	for _, cookie := range cookies {
		if p.expired(cookie) || cookie.Value == "" {
			delete(p.cookies, cookieID(cookie))
			continue
		}
		stored := *cookie
		if stored.MaxAge > 0 {
			// MaxAge is relative to the response, the saved copy needs an absolute expiry
			stored.Expires = p.now().Add(time.Duration(stored.MaxAge) * time.Second)
			stored.MaxAge = 0
		}
		if stored.Path == "" {
			stored.Path = defaultPath(u)
		}
		p.cookies[cookieID(&stored)] = &stored
	}
	snapshot := p.snapshot()
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := p.store.SaveCookies(ctx, snapshot)
	if err != nil {
		slog.Error("SESSION", "message", "saving the session cookies failed", "error", err)
	}
}

func (p *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	return p.jar.Cookies(u)
}

// snapshot must be called with the lock held.
func (p *PersistentJar) snapshot() []*http.Cookie {
	output := make([]*http.Cookie, 0, len(p.cookies))
	for _, cookie := range p.cookies {
		output = append(output, cookie)
	}
	sort.Slice(output, func(i, j int) bool { return cookieID(output[i]) < cookieID(output[j]) })
	return output
}

// defaultPath follows RFC 6265 section 5.1.4.
func defaultPath(u *url.URL) string {
	path := u.Path
	if path == "" || path[0] != '/' {
		return "/"
	}
	i := len(path) - 1
	for i > 0 && path[i] != '/' {
		i--
	}
	if i == 0 {
		return "/"
	}
	return path[:i]
}
