package social

import (
	"errors"
	"time"
)

// ErrNoSession is returned when an operation requires a signed-in user.
var ErrNoSession = errors.New("social: no active session")

// Session is the signed-in identity, established at sign-in and torn down
// at sign-out. It is passed explicitly into every scope constructor and
// consulted, never mutated, by the sync stages. There is no package-level
// current user.
type Session struct {
	UserID      string
	Username    string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
}

// NewSession creates a session for the given identity.
func NewSession(userID, username, accessToken string) *Session {
	return &Session{
		UserID:      userID,
		Username:    username,
		AccessToken: accessToken,
	}
}

// Valid reports whether the session identifies a user and has not expired.
func (s *Session) Valid() bool {
	if s == nil || s.UserID == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || time.Now().Before(s.ExpiresAt)
}
