package app

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"arcshell/cmd/internal/shell"
)

func (a *App) registerHTTP(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if a.ctrl.Session().Loading {
			http.Error(w, "session bootstrapping", http.StatusServiceUnavailable)
			return
		}

		if a.flags.ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := a.flags.ping(ctx); err != nil {
				http.Error(w, "flag store not ready", http.StatusServiceUnavailable)
				a.log.Info("readyz.flagstore.not_ready", "backend", a.flags.kind, "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("GET /metrics", a.metrics.Handler())

	shell.NewSessionHandler(a.log, a.ctrl).Register(mux)
	mux.Handle("GET "+shell.EventsPath, a.events)
	shell.Mount(mux, a.ctrl, shell.DefaultRoutes())
}

// handler wraps the mux with the middleware chain, outermost first.
func (a *App) handler() http.Handler {
	mux := http.NewServeMux()
	a.registerHTTP(mux)

	var h http.Handler = mux
	h = WithCORS(h, a.cfg, a.log)
	h = WithSecurityHeaders(h)
	h = WithRequestLogging(h, a.log)
	return h
}

// runtimeBaseURL turns a listen address into a URL a local client can dial.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
