package shell

import (
	"arcshell/cmd/identity"
	"arcshell/cmd/internal/auth/session"
	v1 "arcshell/shared/contracts/session/v1"
)

// SessionSource is what the shell consumes from the session core.
// *session.Controller implements it.
type SessionSource interface {
	Session() session.Session
	Subscribe(buffer int) *session.Subscription
	Login(user identity.User)
	Logout()
}

var _ SessionSource = (*session.Controller)(nil)

// Payload converts a snapshot to its wire form.
func Payload(s session.Session) v1.SessionPayload {
	out := v1.SessionPayload{
		State:           s.State().String(),
		IsAuthenticated: s.IsAuthenticated,
		Loading:         s.Loading,
	}
	if u := s.User; u != nil {
		out.User = &v1.UserPayload{
			ID:          u.ID,
			Username:    u.Username,
			Email:       u.Email,
			DisplayName: u.DisplayName,
			Bio:         u.Bio,
			CreatedAt:   u.CreatedAt,
		}
	}
	return out
}
