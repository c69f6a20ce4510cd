// Package main is a CI-friendly watcher for the arcshell session event stream.
//
// It validates:
//   - handshake + subprotocol selection
//   - the first envelope is a session.snapshot
//   - every later envelope is a well-formed session.changed
//
// With -expect it exits 0 once a snapshot in that state arrives, otherwise it prints
// -count envelopes (0 = until interrupted).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"

	v1 "arcshell/shared/contracts/session/v1"
)

const maxReadBytes = 64 << 10

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:3000/session/events", "WebSocket URL")
		origin  = flag.String("origin", "", "Origin header to send (browser-like WS handshake)")
		timeout = flag.Duration("timeout", 7*time.Second, "Dial and snapshot timeout")
		count   = flag.Int("count", 1, "Envelopes to print before exiting (0 = until interrupted)")
		expect  = flag.String("expect", "", "Exit once a snapshot reports this state (unknown|unauthenticated|authenticated)")
		verbose = flag.Bool("v", false, "Print raw envelopes")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}
	switch *expect {
	case "", "unknown", "unauthenticated", "authenticated":
	default:
		fatalf("invalid -expect: %q", *expect)
	}

	root, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn := mustConnect(root, *wsURL, *origin, *timeout)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	mustWrite(root, conn, v1.Envelope{
		V:    v1.Version,
		Type: v1.TypeHello,
		ID:   "session-watch-hello",
		TS:   time.Now().UTC(),
	}, *timeout)

	for n := 0; ; n++ {
		wait := *timeout
		if n > 0 {
			wait = 0
		}
		env, err := readNext(root, conn, wait)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fatalf("read: %v", err)
		}

		if n == 0 && env.Type != v1.TypeSnapshot {
			fatalf("first envelope type=%q want=%q", env.Type, v1.TypeSnapshot)
		}
		if n > 0 && env.Type != v1.TypeChanged {
			if env.Type == v1.TypeError {
				var ep v1.ErrorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error: code=%q msg=%q", ep.Code, ep.Message)
			}
			fatalf("unexpected envelope type=%q", env.Type)
		}

		var p v1.SessionPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			fatalf("unmarshal %s payload: %v", env.Type, err)
		}
		if !p.IsAuthenticated && p.User != nil {
			fatalf("%s: unauthenticated snapshot carries a user", env.Type)
		}

		if *verbose {
			raw, _ := json.Marshal(env)
			fmt.Println(string(raw))
		} else {
			fmt.Printf("%s state=%s authenticated=%t loading=%t user=%s\n", env.Type, p.State, p.IsAuthenticated, p.Loading, userID(p.User))
		}

		if *expect != "" {
			if p.State == *expect {
				fmt.Printf("OK: state=%s\n", p.State)
				return
			}
			continue
		}
		if *count > 0 && n+1 >= *count {
			fmt.Printf("OK: envelopes=%d\n", n+1)
			return
		}
	}
}

func userID(u *v1.UserPayload) string {
	if u == nil {
		return "-"
	}
	return u.ID
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustConnect(parent context.Context, wsURL, origin string, stepTimeout time.Duration) *websocket.Conn {
	ctx, cancel := withOptionalTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect: %v", err)
	}
	if got := conn.Subprotocol(); got != v1.Subprotocol {
		fatalf("subprotocol mismatch: got=%q want=%q", got, v1.Subprotocol)
	}

	conn.SetReadLimit(maxReadBytes)
	return conn
}

// readNext waits for one envelope; stepTimeout <= 0 waits until parent is done.
func readNext(parent context.Context, conn *websocket.Conn, stepTimeout time.Duration) (v1.Envelope, error) {
	ctx, cancel := withOptionalTimeout(parent, stepTimeout)
	defer cancel()

	mt, data, err := conn.Read(ctx)
	if err != nil {
		if parent.Err() != nil {
			return v1.Envelope{}, parent.Err()
		}
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}

	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, fmt.Errorf("bad json: %w", err)
	}
	if err := env.Validate(); err != nil {
		return v1.Envelope{}, fmt.Errorf("bad envelope: %w", err)
	}
	return env, nil
}

func mustWrite(parent context.Context, conn *websocket.Conn, env v1.Envelope, stepTimeout time.Duration) {
	ctx, cancel := withOptionalTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func withOptionalTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
