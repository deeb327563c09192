package channel

import (
	"time"

	"github.com/kode4food/runstream/internal/auth"
)

// Session is a client's logical identity. It outlives individual
// connections and tracks connection attempts across reconnects. A Session
// belongs to exactly one Manager, which is the only writer of its counters
type Session struct {
	userID      string
	tokens      auth.TokenSource
	attempts    int
	lastAttempt time.Time
}

// NewSession creates a session for userID. An empty userID yields an
// anonymous session that never sends an auth message
func NewSession(userID string, tokens auth.TokenSource) *Session {
	return &Session{
		userID: userID,
		tokens: tokens,
	}
}

// UserID returns the session's stable identity
func (s *Session) UserID() string {
	return s.userID
}

// IsAuthenticated reports whether the session can present credentials
func (s *Session) IsAuthenticated() bool {
	return s.userID != "" && s.tokens != nil
}
