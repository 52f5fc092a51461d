package drafts

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/socialpost/postctl/internal/apierrors"
)

const (
	sessionNamespace string = "session"
	cookiesKey       string = "cookies"
)

// CookieStore persists the session cookies next to the drafts, so that a session survives between
// CLI invocations. The cookies are encrypted like draft values when encryption is enabled.
type CookieStore struct {
	store *Store
}

func NewCookieStore(store *Store) CookieStore {
	return CookieStore{store: store}
}

func (c CookieStore) LoadCookies(ctx context.Context) ([]*http.Cookie, error) {
	record, err := c.store.backend.Get(ctx, sessionNamespace, cookiesKey)
	if err == apierrors.ErrDraftNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	raw, err := c.store.decode(record)
	if err != nil {
		return nil, err
	}
	var cookies []*http.Cookie
	err = json.Unmarshal(raw, &cookies)
	return cookies, err
}

func (c CookieStore) SaveCookies(ctx context.Context, cookies []*http.Cookie) error {
	if len(cookies) == 0 {
		return c.store.backend.Delete(ctx, sessionNamespace, cookiesKey)
	}
	encoded, err := c.store.encode(cookies)
	if err != nil {
		return err
	}
	return c.store.backend.Set(ctx, Record{
		Namespace: sessionNamespace,
		Key:       cookiesKey,
		Value:     encoded,
		UpdatedAt: c.store.now(),
	})
}
