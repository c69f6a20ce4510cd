package shell

import (
	"log/slog"
	"net/http"
	"strings"

	"arcshell/cmd/identity"
)

const maxLoginBodyBytes = 16 << 10

// SessionHandler serves the /session surface.
type SessionHandler struct {
	log *slog.Logger
	src SessionSource
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(log *slog.Logger, src SessionSource) *SessionHandler {
	return &SessionHandler{log: log, src: src}
}

// Register mounts the handlers on mux.
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /session", h.Get)
	mux.HandleFunc("POST /session/login", h.Login)
	mux.HandleFunc("POST /session/logout", h.Logout)
}

// Get returns the current snapshot.
func (h *SessionHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Payload(h.src.Session()))
}

// Login records a user whose credentials were already exchanged with the Identity Service.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var u identity.User
	if err := decodeJSON(w, r, maxLoginBodyBytes, &u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}
	if strings.TrimSpace(u.ID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_user", "user id is required")
		return
	}

	h.src.Login(u)
	h.log.Info("shell.session.login", "user_id", u.ID)

	writeJSON(w, http.StatusOK, Payload(h.src.Session()))
}

// Logout forgets the user locally.
func (h *SessionHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.src.Logout()
	h.log.Info("shell.session.logout")

	writeJSON(w, http.StatusOK, Payload(h.src.Session()))
}
