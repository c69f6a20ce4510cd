package identity

import "time"

// API paths of the Identity Service, relative to the configured base URL.
const (
	RefreshPath     = "/api/users/refresh"
	CurrentUserPath = "/api/users/me"
)

// User is the profile record returned by the current-user endpoint.
type User struct {
	ID          string    `json:"id"`
	Username    *string   `json:"username,omitempty"`
	Email       *string   `json:"email,omitempty"`
	DisplayName *string   `json:"display_name,omitempty"`
	Bio         *string   `json:"bio,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

type refreshResponse struct {
	Success bool `json:"success"`
}

type currentUserResponse struct {
	Success bool  `json:"success"`
	Data    *User `json:"data"`
}
