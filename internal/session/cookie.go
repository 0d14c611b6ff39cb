package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	CookieName   = "thereiwas-session"
	browserIDKey = "browser_id"
)

// NewCookieStore configures the signed cookie shared by all session backends.
func NewCookieStore(secret string, maxAgeSeconds int, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAgeSeconds,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// CookieStorage keeps the serialized session inside the signed cookie of one request.
type CookieStorage struct {
	store sessions.Store
	r     *http.Request
	w     http.ResponseWriter
}

func NewCookieStorage(store sessions.Store, r *http.Request, w http.ResponseWriter) *CookieStorage {
	return &CookieStorage{store: store, r: r, w: w}
}

func (c *CookieStorage) Load(_ context.Context, key string) ([]byte, bool, error) {
	sess, err := c.store.Get(c.r, CookieName)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read session cookie: %w", err)
	}
	v, ok := sess.Values[key].(string)
	if !ok || v == "" {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (c *CookieStorage) Save(_ context.Context, key string, value []byte) error {
	sess, _ := c.store.Get(c.r, CookieName)
	sess.Values[key] = string(value)
	if err := sess.Save(c.r, c.w); err != nil {
		return fmt.Errorf("failed to write session cookie: %w", err)
	}
	return nil
}

func (c *CookieStorage) Delete(_ context.Context, key string) error {
	sess, _ := c.store.Get(c.r, CookieName)
	if _, ok := sess.Values[key]; !ok {
		return nil
	}
	delete(sess.Values, key)
	if err := sess.Save(c.r, c.w); err != nil {
		return fmt.Errorf("failed to write session cookie: %w", err)
	}
	return nil
}

// BrowserID returns the random id stored in the session cookie, issuing a new
// one when the cookie carries none.
func BrowserID(store sessions.Store, r *http.Request, w http.ResponseWriter) (string, error) {
	sess, _ := store.Get(r, CookieName)
	if id, ok := sess.Values[browserIDKey].(string); ok {
		if _, err := uuid.Parse(id); err == nil {
			return id, nil
		}
	}

	id := uuid.NewString()
	sess.Values[browserIDKey] = id
	if err := sess.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to issue browser id: %w", err)
	}
	return id, nil
}
