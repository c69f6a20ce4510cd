package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"arcshell/cmd/internal/flagstore"
)

func discardLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "explicit localhost", in: "127.0.0.1:3000", want: "http://127.0.0.1:3000"},
		{name: "bind all v4", in: "0.0.0.0:3000", want: "http://127.0.0.1:3000"},
		{name: "bind all v6", in: "[::]:9090", want: "http://127.0.0.1:9090"},
		{name: "ipv6 host", in: "[2001:db8::1]:9090", want: "http://[2001:db8::1]:9090"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := runtimeBaseURL(tc.in)
			if got != tc.want {
				t.Fatalf("runtimeBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func TestWSBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "http://127.0.0.1:3000", want: "ws://127.0.0.1:3000"},
		{in: "https://arc.example.com", want: "wss://arc.example.com"},
		{in: "127.0.0.1:3000", want: "ws://127.0.0.1:3000"},
	}

	for _, tc := range cases {
		got := wsBaseURL(tc.in)
		if got != tc.want {
			t.Fatalf("wsBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arcshell.toml")
	body := `
http_addr = "127.0.0.1:4000"
api_url = "https://id.example.com"
flag_store = "memory"
ws_rate_events = 5
session_renewal_interval = "30s"
cors_allowed_origins = ["https://app.example.com"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ARC_CONFIG_FILE", path)
	t.Setenv("ARC_HTTP_ADDR", "127.0.0.1:5000")
	t.Setenv("ARC_SESSION_REQUEST_TIMEOUT", "3s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.HTTPAddr != "127.0.0.1:5000" {
		t.Fatalf("HTTPAddr=%q want=127.0.0.1:5000", cfg.HTTPAddr)
	}
	if cfg.APIURL != "https://id.example.com" {
		t.Fatalf("APIURL=%q", cfg.APIURL)
	}
	if cfg.FlagStore != FlagStoreMemory {
		t.Fatalf("FlagStore=%q want=memory", cfg.FlagStore)
	}
	if cfg.WSRateEvents != 5 {
		t.Fatalf("WSRateEvents=%d want=5", cfg.WSRateEvents)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "https://app.example.com" {
		t.Fatalf("CORSAllowedOrigins=%v", cfg.CORSAllowedOrigins)
	}
	if cfg.Session.RenewalInterval != 30*time.Second {
		t.Fatalf("RenewalInterval=%v want=30s", cfg.Session.RenewalInterval)
	}
	if cfg.Session.RequestTimeout != 3*time.Second {
		t.Fatalf("RequestTimeout=%v want=3s", cfg.Session.RequestTimeout)
	}
	if cfg.FlagNamespace != "https://id.example.com" {
		t.Fatalf("FlagNamespace=%q want API origin", cfg.FlagNamespace)
	}
}

func TestLoadConfig_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("http_addr = \n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ARC_CONFIG_FILE", path)

	if _, err := LoadConfig(); !errors.Is(err, ErrConfig) {
		t.Fatalf("err=%v want ErrConfig", err)
	}
}

func TestLoadConfig_BadSessionEnv(t *testing.T) {
	t.Setenv("ARC_CONFIG_FILE", "")
	t.Setenv("ARC_SESSION_RENEWAL_INTERVAL", "1s")
	t.Setenv("ARC_SESSION_REQUEST_TIMEOUT", "5s")

	if _, err := LoadConfig(); !errors.Is(err, ErrConfig) {
		t.Fatalf("err=%v want ErrConfig", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "relative api url", mutate: func(c *Config) { c.APIURL = "/api" }},
		{name: "ftp api url", mutate: func(c *Config) { c.APIURL = "ftp://id.example.com" }},
		{name: "unknown store", mutate: func(c *Config) { c.FlagStore = "etcd" }},
		{name: "postgres without url", mutate: func(c *Config) { c.FlagStore = FlagStorePostgres }},
		{name: "redis without url", mutate: func(c *Config) { c.FlagStore = FlagStoreRedis }},
		{name: "unknown log format", mutate: func(c *Config) { c.LogFormat = "xml" }},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrConfig) {
				t.Fatalf("err=%v want ErrConfig", err)
			}
		})
	}

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if cfg.FlagNamespace != "http://127.0.0.1:8080" {
		t.Fatalf("FlagNamespace=%q", cfg.FlagNamespace)
	}
}

func newTestApp(t *testing.T, apiURL string) *App {
	t.Helper()

	cfg := DefaultConfig()
	cfg.APIURL = apiURL
	cfg.FlagStore = FlagStoreMemory

	a, err := New(cfg, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.close)
	return a
}

func TestApp_HTTPSurface(t *testing.T) {
	t.Parallel()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("identity service must not be called without a flag: %s %s", r.Method, r.URL.Path)
	}))
	defer api.Close()

	a := newTestApp(t, api.URL)
	srv := httptest.NewServer(a.handler())
	defer srv.Close()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	get := func(path string) (*http.Response, string) {
		t.Helper()
		resp, err := client.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp, string(body)
	}

	if resp, _ := get("/healthz"); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status=%d want=200", resp.StatusCode)
	}
	if resp, _ := get("/readyz"); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz before bootstrap status=%d want=503", resp.StatusCode)
	}
	if resp, _ := get("/"); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("home before bootstrap status=%d want=503", resp.StatusCode)
	}

	if !a.ctrl.Bootstrap(context.Background()) {
		t.Fatalf("Bootstrap returned false on first call")
	}

	if resp, _ := get("/readyz"); resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz after bootstrap status=%d want=200", resp.StatusCode)
	}

	resp, _ := get("/")
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
		t.Fatalf("home status=%d location=%q want 302 /login", resp.StatusCode, resp.Header.Get("Location"))
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("security headers missing: %q", got)
	}

	resp, body := get("/session")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"is_authenticated":false`) {
		t.Fatalf("session status=%d body=%s", resp.StatusCode, body)
	}

	_, body = get("/metrics")
	if !strings.Contains(body, `arcshell_session_bootstrap_total{outcome="no_flag"} 1`) {
		t.Fatalf("metrics missing bootstrap outcome:\n%s", body)
	}
}

func TestApp_ServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, "http://127.0.0.1:1")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, ln) }()

	select {
	case <-a.ctrl.Ready():
	case <-time.After(5 * time.Second):
		t.Fatalf("bootstrap did not finish")
	}

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	_ = resp.Body.Close()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve err=%v want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not return after cancel")
	}
}

func TestOpenFlagBackend_File(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.FlagDir = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	b, err := openFlagBackend(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("openFlagBackend: %v", err)
	}
	defer b.Close()

	if b.kind != FlagStoreFile || b.ping != nil {
		t.Fatalf("kind=%q ping=%v", b.kind, b.ping != nil)
	}
	fs, ok := b.store.(*flagstore.FileStore)
	if !ok {
		t.Fatalf("store=%T want *flagstore.FileStore", b.store)
	}
	if filepath.Dir(fs.Path()) != cfg.FlagDir {
		t.Fatalf("path=%q not under %q", fs.Path(), cfg.FlagDir)
	}
}

func TestOpenFlagBackend_Redis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.FlagStore = FlagStoreRedis
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"
	cfg.FlagNamespace = "kiosk-1"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	b, err := openFlagBackend(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("openFlagBackend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	if err := flagstore.NewFlag(b.store, "").Mark(ctx); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	got, err := mr.Get("arcshell:flags:kiosk-1:isAuthenticated")
	if err != nil || got != "true" {
		t.Fatalf("redis value=%q err=%v want true", got, err)
	}
	if err := b.ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	mr.Close()
	if err := b.ping(ctx); err == nil {
		t.Fatalf("ping succeeded with server down")
	}
}

func TestOpenFlagBackend_RedisUnreachable(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.FlagStore = FlagStoreRedis
	cfg.RedisURL = "redis://127.0.0.1:1/0"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := openFlagBackend(ctx, cfg, discardLogger()); err == nil {
		t.Fatalf("expected error for unreachable redis")
	}
}
