package session

import "arcshell/cmd/identity"

// Session is a snapshot of the authentication state.
//
// IsAuthenticated == false implies User == nil. Loading is true only before bootstrap
// finishes and never becomes true again.
type Session struct {
	User            *identity.User
	IsAuthenticated bool
	Loading         bool
}

// State is the coarse state machine position derived from a Session.
type State int

const (
	StateUnknown State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// State reports the state machine position. A Loading session is Unknown even when a
// bootstrap step already marked it authenticated.
func (s Session) State() State {
	switch {
	case s.Loading:
		return StateUnknown
	case s.IsAuthenticated:
		return StateAuthenticated
	default:
		return StateUnauthenticated
	}
}

// clone returns a copy that does not alias the controller's user value.
func (s Session) clone() Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

func (s Session) same(o Session) bool {
	return s.IsAuthenticated == o.IsAuthenticated &&
		s.Loading == o.Loading &&
		s.User == nil && o.User == nil
}

// Outcome is the result of a bootstrap run.
type Outcome string

const (
	// OutcomeNoFlag means the flag was absent; no network call was made.
	OutcomeNoFlag Outcome = "no_flag"

	// OutcomeAuthenticated means refresh and current-user both succeeded.
	OutcomeAuthenticated Outcome = "authenticated"

	// OutcomePartial means refresh succeeded but the current-user fetch failed.
	OutcomePartial Outcome = "partial"

	// OutcomeUnauthenticated means the refresh failed and the flag was removed.
	OutcomeUnauthenticated Outcome = "unauthenticated"
)
