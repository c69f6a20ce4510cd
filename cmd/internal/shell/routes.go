package shell

import (
	"fmt"
	"net/http"
)

// LoginPath is where the guard sends unauthenticated visitors.
const LoginPath = "/login"

// Route binds a view to a path. Protected views require an authenticated session.
type Route struct {
	Path      string
	Protected bool
	View      http.Handler
}

// Placeholder is a plain-text stand-in view.
func Placeholder(title string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = fmt.Fprintln(w, title)
	})
}

// DefaultRoutes is the shell's route table.
func DefaultRoutes() []Route {
	return []Route{
		{Path: "/", Protected: true, View: Placeholder("Home")},
		{Path: LoginPath, View: Placeholder("Login")},
		{Path: "/profile", Protected: true, View: Placeholder("Profile")},
	}
}

// Mount registers every route on mux as GET.
//
// Until the session leaves Loading, every view answers 503 "Loading...". After that a
// protected view redirects to LoginPath unless the session is authenticated.
func Mount(mux *http.ServeMux, src SessionSource, routes []Route) {
	for _, rt := range routes {
		pattern := "GET " + rt.Path
		if rt.Path == "/" {
			pattern = "GET /{$}"
		}
		mux.Handle(pattern, guard(src, rt))
	}
}

func guard(src SessionSource, rt Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := src.Session()

		if s.Loading {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintln(w, "Loading...")
			return
		}

		if rt.Protected && !s.IsAuthenticated {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}

		rt.View.ServeHTTP(w, r)
	})
}
