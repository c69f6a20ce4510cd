package shell

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"arcshell/cmd/identity"
	"arcshell/cmd/internal/auth/session"
	"arcshell/cmd/internal/flagstore"
)

type stubIdentity struct{}

func (stubIdentity) Refresh(context.Context) error { return nil }
func (stubIdentity) CurrentUser(context.Context) (identity.User, error) {
	return identity.User{ID: "u1"}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newController returns a controller that has not bootstrapped yet (Loading).
func newController(t *testing.T) *session.Controller {
	t.Helper()

	ctrl, err := session.New(session.DefaultConfig(), stubIdentity{}, flagstore.NewMemoryStore())
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	t.Cleanup(ctrl.Close)
	return ctrl
}

// newReadyController returns a bootstrapped, unauthenticated controller.
func newReadyController(t *testing.T) *session.Controller {
	t.Helper()

	ctrl := newController(t)
	ctrl.Bootstrap(context.Background())
	return ctrl
}

func strPtr(s string) *string { return &s }
