package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"arcshell/cmd/identity"
	"arcshell/cmd/internal/flagstore"
)

// IdentityService is the remote collaborator the controller calls.
// *identity.Client implements it.
type IdentityService interface {
	Refresh(ctx context.Context) error
	CurrentUser(ctx context.Context) (identity.User, error)
}

// Controller owns the authentication state of one client process.
//
// Every transition is serialized under mu (last writer wins). Network I/O never runs
// under mu. persistMu orders a transition together with its flag write, so the stored
// flag always matches the latest transition.
type Controller struct {
	cfg       Config
	ident     IdentityService
	flag      flagstore.Flag
	log       *slog.Logger
	obs       Observer
	newTicker func(time.Duration) Ticker

	boot  latch
	ready chan struct{}

	persistMu sync.Mutex

	mu      sync.Mutex
	sess    Session
	subs    map[*Subscription]struct{}
	renewal *renewal
	closed  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger (default discards).
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// WithObserver registers lifecycle callbacks.
func WithObserver(obs Observer) Option {
	return func(c *Controller) {
		if obs != nil {
			c.obs = obs
		}
	}
}

// WithTicker replaces the renewal ticker factory.
func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(c *Controller) {
		if newTicker != nil {
			c.newTicker = newTicker
		}
	}
}

// New constructs a Controller in the Unknown state: {User: nil, IsAuthenticated: false, Loading: true}.
func New(cfg Config, ident IdentityService, store flagstore.Store, opts ...Option) (*Controller, error) {
	if ident == nil || store == nil {
		return nil, fmt.Errorf("session: %w: identity service and flag store are required", ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:       cfg,
		ident:     ident,
		flag:      flagstore.NewFlag(store, cfg.FlagKey),
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		obs:       nopObserver{},
		newTicker: newStdTicker,
		ready:     make(chan struct{}),
		sess:      Session{Loading: true},
		subs:      make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Session returns the current snapshot.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.clone()
}

// Ready is closed once Loading becomes false.
func (c *Controller) Ready() <-chan struct{} {
	return c.ready
}

// Subscribe registers for snapshots. The current snapshot is delivered immediately.
// A buffer <= 0 selects the default queue size.
func (c *Controller) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	sub := &Subscription{ctrl: c, ch: make(chan Session, buffer)}

	c.mu.Lock()
	defer c.mu.Unlock()

	sub.offer(c.sess.clone())
	if c.closed {
		close(sub.ch)
		return sub
	}
	c.subs[sub] = struct{}{}
	return sub
}

func (c *Controller) unsubscribe(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subs[sub]; !ok {
		return
	}
	delete(c.subs, sub)
	close(sub.ch)
}

// Login records a user whose credentials the caller already exchanged with the server.
// It makes no network call.
func (c *Controller) Login(user identity.User) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	u := user
	c.apply(func(s *Session) {
		s.User = &u
		s.IsAuthenticated = true
	})
	c.log.Info("session.login", "user_id", user.ID)

	c.markFlag()
}

// Logout forgets the user locally. It does not call the server, so the server-side
// session stays valid until it expires.
func (c *Controller) Logout() {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.apply(func(s *Session) {
		s.User = nil
		s.IsAuthenticated = false
	})
	c.log.Info("session.logout")

	c.clearFlag()
}

// Bootstrap runs the startup check at most once per controller. It reports whether this
// call performed it; later and concurrent calls return false without I/O.
func (c *Controller) Bootstrap(ctx context.Context) bool {
	if !c.boot.Trip() {
		return false
	}

	started := time.Now()
	outcome := c.bootstrap(ctx)
	c.obs.BootstrapFinished(outcome)
	c.log.Info("session.bootstrap.done", "outcome", string(outcome), "took", time.Since(started))
	return true
}

func (c *Controller) bootstrap(ctx context.Context) Outcome {
	set, err := c.readFlag(ctx)
	if err != nil {
		c.log.Warn("session.bootstrap.flag.read.fail", "err", err)
	}
	if !set {
		c.apply(func(s *Session) {
			s.User = nil
			s.IsAuthenticated = false
			s.Loading = false
		})
		return OutcomeNoFlag
	}

	rctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	err = c.ident.Refresh(rctx)
	cancel()

	if err != nil {
		c.log.Info("session.bootstrap.refresh.fail", "err", err, "kind", identity.Classify(err))

		c.persistMu.Lock()
		c.apply(func(s *Session) {
			s.User = nil
			s.IsAuthenticated = false
			s.Loading = false
		})
		// A shutdown during bootstrap says nothing about the server session.
		if ctx.Err() == nil {
			c.clearFlag()
		}
		c.persistMu.Unlock()
		return OutcomeUnauthenticated
	}

	c.persistMu.Lock()
	c.apply(func(s *Session) {
		s.IsAuthenticated = true
	})
	c.markFlag()
	c.persistMu.Unlock()

	uctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	user, err := c.ident.CurrentUser(uctx)
	cancel()

	if err != nil {
		c.log.Warn("session.bootstrap.user.fail", "err", err, "kind", identity.Classify(err))
		c.apply(func(s *Session) {
			s.Loading = false
		})
		return OutcomePartial
	}

	c.apply(func(s *Session) {
		s.User = &user
		s.Loading = false
	})
	return OutcomeAuthenticated
}

// Close cancels renewal and closes every subscription. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true

	stop := c.renewal
	c.renewal = nil

	for sub := range c.subs {
		delete(c.subs, sub)
		close(sub.ch)
	}
	c.mu.Unlock()

	if stop != nil {
		stop.stop()
	}
	c.log.Debug("session.controller.closed")
}

// apply runs one transition: mutate, enforce invariants, reconcile the renewal loop,
// then notify. The renewal goroutine is joined outside mu.
func (c *Controller) apply(mutate func(*Session)) {
	c.mu.Lock()

	prev := c.sess
	mutate(&c.sess)
	if !c.sess.IsAuthenticated {
		c.sess.User = nil
	}
	if !prev.Loading {
		c.sess.Loading = false
	}
	next := c.sess

	var stop *renewal
	switch {
	case next.IsAuthenticated && c.renewal == nil && !c.closed:
		c.renewal = c.startRenewal()
	case !next.IsAuthenticated && c.renewal != nil:
		stop = c.renewal
		c.renewal = nil
	}

	if prev.Loading && !next.Loading {
		close(c.ready)
	}

	if !prev.same(next) {
		for sub := range c.subs {
			sub.offer(next.clone())
		}
		c.obs.StateChanged(next.clone())
		c.log.Debug("session.state.change", "state", next.State().String(), "authenticated", next.IsAuthenticated)
	}

	c.mu.Unlock()

	if stop != nil {
		stop.stop()
	}
}

func (c *Controller) readFlag(parent context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(parent, c.cfg.RequestTimeout)
	defer cancel()
	return c.flag.IsSet(ctx)
}

// markFlag and clearFlag must be called with persistMu held. Write failures are logged;
// the in-memory state stays authoritative for this process.
func (c *Controller) markFlag() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
	defer cancel()

	if err := c.flag.Mark(ctx); err != nil {
		c.log.Warn("session.flag.write.fail", "err", err, "key", c.flag.Key())
	}
}

func (c *Controller) clearFlag() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
	defer cancel()

	if err := c.flag.Clear(ctx); err != nil {
		c.log.Warn("session.flag.remove.fail", "err", err, "key", c.flag.Key())
	}
}
