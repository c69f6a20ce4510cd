package session

import (
	"context"
	"time"

	"arcshell/cmd/identity"
)

// Ticker is the subset of time.Ticker used by the renewal loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct {
	t *time.Ticker
}

func newStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// renewal is one running refresh loop. stop cancels it and waits for the goroutine to exit,
// so no refresh can start after stop returns.
type renewal struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *renewal) stop() {
	r.cancel()
	<-r.done
}

func (c *Controller) startRenewal() *renewal {
	ctx, cancel := context.WithCancel(context.Background())
	r := &renewal{cancel: cancel, done: make(chan struct{})}
	t := c.newTicker(c.cfg.RenewalInterval)

	c.log.Debug("session.renewal.start", "interval", c.cfg.RenewalInterval)

	go func() {
		defer close(r.done)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				c.log.Debug("session.renewal.stop")
				return
			case <-t.C():
				c.renew(ctx)
			}
		}
	}()

	return r
}

// renew is fire-and-forget: the outcome is logged and observed but never changes state.
func (c *Controller) renew(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, c.cfg.RequestTimeout)
	defer cancel()

	err := c.ident.Refresh(ctx)
	if parent.Err() != nil {
		// Stopped mid-flight; the loop owner no longer cares.
		return
	}

	c.obs.RenewalFinished(err)
	if err != nil {
		c.log.Warn("session.renewal.fail", "err", err, "kind", identity.Classify(err))
		return
	}
	c.log.Debug("session.renewal.ok")
}
