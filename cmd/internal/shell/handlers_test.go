package shell

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	v1 "arcshell/shared/contracts/session/v1"
)

func newSessionMux(t *testing.T, src SessionSource) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewSessionHandler(discardLogger(), src).Register(mux)
	return mux
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (int, v1.SessionPayload) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out v1.SessionPayload
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rec.Code, out
}

func TestSessionHandler_GetWhileLoading(t *testing.T) {
	t.Parallel()

	mux := newSessionMux(t, newController(t))

	code, got := doJSON(t, mux, http.MethodGet, "/session", "")
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	want := v1.SessionPayload{State: "unknown", Loading: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionHandler_LoginLogout(t *testing.T) {
	t.Parallel()

	mux := newSessionMux(t, newReadyController(t))

	code, got := doJSON(t, mux, http.MethodPost, "/session/login", `{"id":"u1","username":"navid"}`)
	if code != http.StatusOK {
		t.Fatalf("login status=%d", code)
	}
	want := v1.SessionPayload{
		State:           "authenticated",
		IsAuthenticated: true,
		User:            &v1.UserPayload{ID: "u1", Username: strPtr("navid")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("login payload mismatch (-want +got):\n%s", diff)
	}

	code, got = doJSON(t, mux, http.MethodPost, "/session/logout", "")
	if code != http.StatusOK {
		t.Fatalf("logout status=%d", code)
	}
	if diff := cmp.Diff(v1.SessionPayload{State: "unauthenticated"}, got); diff != "" {
		t.Fatalf("logout payload mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionHandler_LoginRejectsBadBodies(t *testing.T) {
	t.Parallel()

	ctrl := newReadyController(t)
	mux := newSessionMux(t, ctrl)

	cases := []struct {
		name string
		body string
	}{
		{name: "not json", body: `nope`},
		{name: "missing id", body: `{"username":"navid"}`},
		{name: "unknown field", body: `{"id":"u1","password":"x"}`},
		{name: "trailing data", body: `{"id":"u1"}{"id":"u2"}`},
	}

	for _, tc := range cases {
		code, _ := doJSON(t, mux, http.MethodPost, "/session/login", tc.body)
		if code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d want=400", tc.name, code)
		}
	}

	if ctrl.Session().IsAuthenticated {
		t.Fatalf("rejected logins must not change state")
	}
}
