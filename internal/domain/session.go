package domain

import "context"

// SessionStorageKey is the fixed, namespaced key the session is persisted under.
const SessionStorageKey = "thereiwas:token"

// Session holds the client's credential. An empty AccessToken means unauthenticated.
type Session struct {
	AccessToken string `json:"accessToken"`
}

func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

// SessionReader is the read-only view of a session handed to guards and views.
type SessionReader interface {
	Session() Session
}

// SessionStorage persists serialized sessions for one browser.
type SessionStorage interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Authenticator exchanges credentials for a session at the external token endpoint.
type Authenticator interface {
	RequestToken(ctx context.Context, username, password string) (Session, error)
}
