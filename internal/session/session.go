// Package session stores the session cookie between CLI runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// FileName is the session file inside the store directory.
const FileName = "session.json"

// ErrNoSession means there is no usable session; the user has to log in.
var ErrNoSession = errors.New("no valid session (login required)")

// Session is a stored cookie. A zero ExpiresAt never expires.
type Session struct {
	Cookie    string    `json:"cookie"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether s is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store keeps one session file in a directory.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

func (s *Store) path() string { return filepath.Join(s.dir, FileName) }

// Save stores cookie. When the cookie is a JWT its exp claim becomes the expiry;
// the signature is not checked here, the server does that.
func (s *Store) Save(cookie string) (Session, error) {
	if cookie == "" {
		return Session{}, errors.New("empty session cookie")
	}
	sess := Session{Cookie: cookie, ExpiresAt: expiry(cookie)}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return Session{}, fmt.Errorf("create session dir: %w", err)
	}
	b, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return Session{}, err
	}
	if err := os.WriteFile(s.path(), b, 0o600); err != nil {
		return Session{}, fmt.Errorf("write session: %w", err)
	}
	return sess, nil
}

func expiry(cookie string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(cookie, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// Load returns the stored session, or ErrNoSession when it is missing or expired.
func (s *Store) Load() (Session, error) {
	b, err := os.ReadFile(s.path())
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	if sess.Cookie == "" || sess.Expired(s.now()) {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

// Clear removes the stored session. Clearing a missing session is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
