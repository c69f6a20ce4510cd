package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"arcshell/cmd/identity/ids"
	v1 "arcshell/shared/contracts/session/v1"
)

const (
	maxFrameBytes = 4 << 10

	defaultSendQueue        = 32
	defaultWriteTimeout     = 5 * time.Second
	defaultHeartbeatEvery   = 25 * time.Second
	defaultHeartbeatTimeout = 5 * time.Second
	defaultRateEvents       = 30
	defaultRateWindow       = 10 * time.Second

	closeGrace      = 1 * time.Second
	maxPingFailures = 3
)

// EventsPath is where the event stream is usually mounted.
const EventsPath = "/session/events"

// GatewayConfig tunes the event stream.
type GatewayConfig struct {
	SendQueue        int
	WriteTimeout     time.Duration
	HeartbeatEvery   time.Duration
	HeartbeatTimeout time.Duration
	RateEvents       int
	RateWindow       time.Duration

	// OriginPatterns authorizes cross-origin hosts (websocket.AcceptOptions).
	OriginPatterns []string
}

// DefaultGatewayConfig returns production defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		SendQueue:        defaultSendQueue,
		WriteTimeout:     defaultWriteTimeout,
		HeartbeatEvery:   defaultHeartbeatEvery,
		HeartbeatTimeout: defaultHeartbeatTimeout,
		RateEvents:       defaultRateEvents,
		RateWindow:       defaultRateWindow,
	}
}

// EventGateway streams session snapshots over websocket.
//
// The first envelope is always session.snapshot; every later transition arrives as
// session.changed. Clients may send hello frames; anything else gets an error envelope.
type EventGateway struct {
	log *slog.Logger
	src SessionSource
	cfg GatewayConfig
}

// NewEventGateway constructs a gateway; zero config fields take defaults.
func NewEventGateway(log *slog.Logger, src SessionSource, cfg GatewayConfig) *EventGateway {
	def := DefaultGatewayConfig()
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = def.SendQueue
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = def.HeartbeatEvery
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if cfg.RateEvents <= 0 {
		cfg.RateEvents = def.RateEvents
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = def.RateWindow
	}
	return &EventGateway{log: log, src: src, cfg: cfg}
}

// ServeHTTP upgrades the request and runs the stream until either side leaves.
func (g *EventGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{v1.Subprotocol},
		OriginPatterns: g.cfg.OriginPatterns,
	})
	if err != nil {
		g.log.Error("events.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != v1.Subprotocol {
		g.log.Info("events.reject.subprotocol", "got", sp, "want", v1.Subprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	connID, _ := ids.NewULID(time.Now().UTC())
	sub := g.src.Subscribe(g.cfg.SendQueue)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			sub.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	g.log.Info("events.connect", "conn_id", connID, "remote", r.RemoteAddr)

	// Error replies from the read loop; dropped under backpressure.
	replies := make(chan v1.Envelope, 4)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		typ := v1.TypeSnapshot
		for {
			var env v1.Envelope
			select {
			case <-ctx.Done():
				return
			case s, ok := <-sub.C():
				if !ok {
					shutdown(websocket.StatusGoingAway, "session closed")
					return
				}
				p, _ := json.Marshal(Payload(s))
				env = newEnvelope(typ, p)
				typ = v1.TypeChanged
			case env = <-replies:
			}

			if err := writeEnvelope(ctx, conn, env, g.cfg.WriteTimeout); err != nil {
				g.log.Info("events.write.fail", "conn_id", connID, "close_status", websocket.CloseStatus(err), "err", err)
				shutdown(websocket.StatusAbnormalClosure, "write failed")
				return
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.cfg.HeartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("events.ping.fail", "conn_id", connID, "failures", failures, "err", err)
					if failures >= maxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	reply := func(code, msg string) {
		p, _ := json.Marshal(v1.ErrorPayload{Code: code, Message: msg})
		select {
		case replies <- newEnvelope(v1.TypeError, p):
		default:
		}
	}

	rl := NewRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)

readLoop:
	for {
		// No idle deadline: passive watchers never send; the heartbeat detects dead peers.
		env, err := readEnvelope(ctx, conn)
		if err != nil {
			var (
				syntaxErr *json.SyntaxError
				typeErr   *json.UnmarshalTypeError
			)
			switch {
			case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
				reply("bad_json", "invalid JSON")
				continue readLoop
			case websocket.CloseStatus(err) != -1:
				shutdown(websocket.StatusNormalClosure, "peer closed")
			case errors.Is(err, context.Canceled), errors.Is(err, net.ErrClosed), errors.Is(err, io.EOF):
				shutdown(websocket.StatusNormalClosure, "context done")
			default:
				g.log.Info("events.read.fail", "conn_id", connID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
			}
			break readLoop
		}

		if !rl.Allow(time.Now().UTC()) {
			p, _ := json.Marshal(v1.ErrorPayload{Code: "rate_limited", Message: "too many events"})
			_ = writeEnvelope(ctx, conn, newEnvelope(v1.TypeError, p), g.cfg.WriteTimeout)
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if err := env.Validate(); err != nil {
			reply("bad_envelope", err.Error())
			continue readLoop
		}

		switch env.Type {
		case v1.TypeHello:
			g.log.Debug("events.hello", "conn_id", connID)
		default:
			reply("unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(closeGrace):
	}

	g.log.Info("events.disconnect", "conn_id", connID)
}

func newEnvelope(typ string, payload json.RawMessage) v1.Envelope {
	id, _ := ids.NewULID(time.Now().UTC())
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      id,
		TS:      time.Now().UTC(),
		Payload: payload,
	}
}

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}
