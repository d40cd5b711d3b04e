package shared

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Session identifies the company whose books are being operated on and the acting user.
type Session struct {
	CompanyID uuid.UUID
	UserID    uuid.UUID
}

// Validate ensures the session names a company.
func (s Session) Validate() error {
	if s.CompanyID == uuid.Nil {
		return NewValidationError("company is required")
	}
	return nil
}

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// ErrNoSession is returned when no session was attached upstream.
var ErrNoSession = errors.New("session missing from context")

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) (Session, error) {
	sess, ok := ctx.Value(sessionContextKey{}).(Session)
	if !ok {
		return Session{}, ErrNoSession
	}
	return sess, nil
}
