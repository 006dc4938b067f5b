package auth

import (
	"errors"
	"net/http"

	"github.com/gorilla/securecookie"
)

// ErrInvalidCookie reports a session cookie that failed integrity checks.
// Tampering is surfaced, never silently ignored.
var ErrInvalidCookie = errors.New("invalid session cookie")

// Session is the per-connection state carried in a signed cookie. It holds
// at most one pending challenge and, once authenticated, the user id.
type Session struct {
	Challenge string
	UserID    string
}

// Authenticated reports whether the session carries an identity.
func (s *Session) Authenticated() bool {
	return s.UserID != ""
}

/*
SessionStore encodes Sessions into a signed (and encrypted) cookie via
securecookie. The server keeps no session state of its own; the cookie is
the session.
*/
type SessionStore struct {
	codec  *securecookie.SecureCookie
	name   string
	secure bool
}

func NewSessionStore(name string, hashKey [32]byte, blockKey [32]byte, secure bool) *SessionStore {
	return &SessionStore{
		codec:  securecookie.New(hashKey[:], blockKey[:]),
		name:   name,
		secure: secure,
	}
}

// Load returns the session carried by the request. A request without a
// session cookie yields a fresh empty session; a cookie that fails to decode
// yields ErrInvalidCookie.
func (s *SessionStore) Load(request *http.Request) (*Session, error) {
	cookie, err := request.Cookie(s.name)
	if err != nil {
		return &Session{}, nil
	}
	session := &Session{}
	if err := s.codec.Decode(s.name, cookie.Value, session); err != nil {
		return nil, ErrInvalidCookie
	}
	return session, nil
}

// Save writes the session back to the client.
func (s *SessionStore) Save(writer http.ResponseWriter, session *Session) error {
	encoded, err := s.codec.Encode(s.name, session)
	if err != nil {
		return ErrInvalidCookie
	}
	http.SetCookie(writer, &http.Cookie{
		Name:     s.name,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
	})
	return nil
}

// Clear drops the session cookie.
func (s *SessionStore) Clear(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		MaxAge:   -1,
	})
}
