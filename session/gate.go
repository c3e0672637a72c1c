// Package session resolves the current session of a request and gates views on it.
package session

import (
	"context"
	"github.com/Viktor-Kode/bloghub/models"
)

// State - reactive "current session" value: the session, if any, and whether it is still being resolved
type State struct {
	Session *models.Session
	Loading bool
}

// Decision - what a view that requires a session should do for a given State
type Decision int

const (
	// Wait - session is still loading, render a placeholder
	Wait Decision = iota
	// RedirectToLogin - no session
	RedirectToLogin
	// Proceed - session is present
	Proceed
)

func (d Decision) String() string {
	switch d {
	case Wait:
		return "wait"
	case RedirectToLogin:
		return "redirect to login"
	case Proceed:
		return "proceed"
	}
	return "unknown"
}

// Gate - three state check every session bound view applies
func Gate(state State) Decision {
	switch {
	case state.Loading:
		return Wait
	case state.Session == nil:
		return RedirectToLogin
	default:
		return Proceed
	}
}

type ctxSessionKey struct{}

// WithSession - returns a copy of ctx carrying the session
func WithSession(ctx context.Context, s models.Session) context.Context {
	return context.WithValue(ctx, ctxSessionKey{}, s)
}

// FromContext - session stored by a Guard, if any
func FromContext(ctx context.Context) (models.Session, bool) {
	s, ok := ctx.Value(ctxSessionKey{}).(models.Session)
	return s, ok
}
