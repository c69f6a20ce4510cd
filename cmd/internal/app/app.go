// Package app wires the arcshell runtime: config, logging, the flag store, the session
// controller and the HTTP surface.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"arcshell/cmd/identity"
	"arcshell/cmd/internal/auth/session"
	"arcshell/cmd/internal/metrics"
	"arcshell/cmd/internal/shell"
)

const (
	openTimeout     = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

// App owns the session controller and everything serving it.
type App struct {
	cfg Config
	log Logger

	flags   flagBackend
	ident   *identity.Client
	metrics *metrics.Recorder
	ctrl    *session.Controller
	events  *shell.EventGateway
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Session == (session.Config{}) {
		cfg.Session = session.Config{
			RenewalInterval: cfg.SessionRenewalInterval,
			RequestTimeout:  cfg.SessionRequestTimeout,
			FlagKey:         cfg.SessionFlagKey,
		}
	}

	ident, err := identity.New(cfg.APIURL,
		identity.WithLogger(log.With("component", "identity")),
		identity.WithCSRF(cfg.CSRFCookieName, cfg.CSRFHeaderName),
		identity.WithHTTPClient(&http.Client{Timeout: nonZeroDuration(cfg.APITimeout, 10*time.Second)}),
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	flags, err := openFlagBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	rec := metrics.NewRecorder()
	ctrl, err := session.New(cfg.Session, ident, flags.store,
		session.WithLogger(log.With("component", "session")),
		session.WithObserver(rec),
	)
	if err != nil {
		flags.Close()
		return nil, err
	}

	events := shell.NewEventGateway(log.With("component", "events"), ctrl, shell.GatewayConfig{
		HeartbeatEvery: cfg.WSHeartbeatInterval,
		RateEvents:     cfg.WSRateEvents,
		RateWindow:     cfg.WSRateWindow,
		OriginPatterns: cfg.WSOriginPatterns,
	})

	return &App{
		cfg:     cfg,
		log:     log,
		flags:   flags,
		ident:   ident,
		metrics: rec,
		ctrl:    ctrl,
		events:  events,
	}, nil
}

// Run serves HTTP and bootstraps the session, then blocks until ctx is canceled or the
// server fails. The controller and the flag store are closed before it returns.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		a.close()
		return err
	}
	return a.serve(ctx, ln)
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	defer a.close()

	srv := &http.Server{
		Handler:           a.handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(ln.Addr().String())
	a.log.Info("server.start",
		"addr", ln.Addr().String(),
		"url", base,
		"events_url", wsBaseURL(base)+shell.EventsPath,
		"api_url", a.ident.BaseURL(),
		"flag_store", a.flags.kind,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		a.ctrl.Bootstrap(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.log.Info("server.stopped")
	return nil
}

func (a *App) close() {
	a.ctrl.Close()
	a.flags.Close()
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
