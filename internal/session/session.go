package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnconfigured       = errors.New("admin credentials not configured")
)

// DefaultTimeout is how long a session stays valid after login.
const DefaultTimeout = 24 * time.Hour

// tokenBytes is the entropy of a session token before hex encoding.
const tokenBytes = 32

// Session is one authenticated back-office login.
type Session struct {
	Token     string
	Principal string
	CreatedAt time.Time
}

// Authenticator issues and checks opaque session tokens against a single
// configured administrator credential. Sessions live in process memory, so
// a restart logs everyone out. Expiry is lazy: a failed Validate evicts the
// entry and nothing sweeps in the background.
type Authenticator struct {
	username string
	password string
	timeout  time.Duration
	now      func() time.Time
	random   func([]byte) (int, error)

	sessions sync.Map // token -> Session
}

type Option func(*Authenticator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// WithTimeout sets the session lifetime. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func New(username, password string, opts ...Option) *Authenticator {
	a := &Authenticator{
		username: username,
		password: password,
		timeout:  DefaultTimeout,
		now:      time.Now,
		random:   rand.Read,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Login checks the credentials and mints a new token.
func (a *Authenticator) Login(username, password string) (string, error) {
	if a.username == "" || a.password == "" {
		return "", ErrUnconfigured
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !userOK || !passOK {
		return "", ErrInvalidCredentials
	}

	buf := make([]byte, tokenBytes)
	if _, err := a.random(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	token := hex.EncodeToString(buf)
	a.sessions.Store(token, Session{Token: token, Principal: username, CreatedAt: a.now()})
	return token, nil
}

// Validate reports whether token names a live session.
func (a *Authenticator) Validate(token string) bool {
	_, ok := a.lookup(token)
	return ok
}

// Principal returns the user behind a live session.
func (a *Authenticator) Principal(token string) (string, bool) {
	s, ok := a.lookup(token)
	if !ok {
		return "", false
	}
	return s.Principal, true
}

// Logout removes the session. Unknown tokens are ignored.
func (a *Authenticator) Logout(token string) {
	a.sessions.Delete(token)
}

func (a *Authenticator) lookup(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	v, ok := a.sessions.Load(token)
	if !ok {
		return Session{}, false
	}
	s := v.(Session)
	if a.now().Sub(s.CreatedAt) > a.timeout {
		a.sessions.CompareAndDelete(token, s)
		return Session{}, false
	}
	return s, true
}
