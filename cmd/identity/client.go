package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"arcshell/cmd/identity/ids"

	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultCSRFCookie   = "arc_csrf_token"
	defaultCSRFHeader   = "X-CSRF-Token"
	requestIDHeader     = "X-Request-ID"
	maxResponseBodySize = 1 << 20 // 1 MiB
)

// Client talks to the Identity Service. It is safe for concurrent use.
//
// Credentials are cookies set by the service; the client never inspects them
// beyond echoing the CSRF cookie into its header on refresh.
type Client struct {
	base *url.URL
	hc   *http.Client
	log  *slog.Logger

	csrfCookie string
	csrfHeader string

	refreshGroup singleflight.Group
	now          func() time.Time
}

// Option configures optional Client dependencies.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. A client without a jar gets one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if c == nil || hc == nil {
			return
		}
		c.hc = hc
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if c == nil || log == nil {
			return
		}
		c.log = log
	}
}

// WithCSRF sets the CSRF double-submit cookie and header names.
func WithCSRF(cookieName, headerName string) Option {
	return func(c *Client) {
		if c == nil {
			return
		}
		if v := strings.TrimSpace(cookieName); v != "" {
			c.csrfCookie = v
		}
		if v := strings.TrimSpace(headerName); v != "" {
			c.csrfHeader = v
		}
	}
}

// New constructs a Client for the service rooted at baseURL (scheme + host, optional path prefix).
func New(baseURL string, opts ...Option) (*Client, error) {
	const op = "identity.New"

	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Err: fmt.Errorf("unsupported scheme: %q", u.Scheme)}
	}
	if strings.TrimSpace(u.Host) == "" {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Err: fmt.Errorf("missing host")}
	}

	c := &Client{
		base:       u,
		log:        slog.Default(),
		csrfCookie: defaultCSRFCookie,
		csrfHeader: defaultCSRFHeader,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}

	if c.hc == nil {
		c.hc = &http.Client{Timeout: defaultTimeout}
	}
	if c.hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, OpError{Op: op, Kind: ErrInvalidInput, Err: err}
		}
		c.hc.Jar = jar
	}

	return c, nil
}

// BaseURL returns the configured service origin.
func (c *Client) BaseURL() string { return c.base.String() }

// Refresh asks the service to renew the session credential (POST /api/users/refresh).
//
// Any transport error, non-2xx status or success=false response is returned as an error.
func (c *Client) Refresh(ctx context.Context) error {
	const op = "identity.Refresh"

	req, err := c.newRequest(ctx, op, http.MethodPost, RefreshPath)
	if err != nil {
		return err
	}
	if tok := c.csrfToken(); tok != "" {
		req.Header.Set(c.csrfHeader, tok)
	}

	var out refreshResponse
	if err := c.doJSON(req, op, &out); err != nil {
		return err
	}
	if !out.Success {
		return OpError{Op: op, Kind: ErrNotSuccessful}
	}
	return nil
}

// CurrentUser loads the signed-in user's profile (GET /api/users/me) through the
// authenticated fetch helper.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	const op = "identity.CurrentUser"

	var out currentUserResponse
	if err := c.Fetch(ctx, http.MethodGet, CurrentUserPath, &out); err != nil {
		return User{}, err
	}
	if !out.Success || out.Data == nil {
		return User{}, OpError{Op: op, Kind: ErrNotSuccessful}
	}
	return *out.Data, nil
}

func (c *Client) newRequest(ctx context.Context, op, method, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), nil)
	if err != nil {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	if id, err := ids.NewULID(c.now().UTC()); err == nil {
		req.Header.Set(requestIDHeader, id)
	}
	return req, nil
}

func (c *Client) doJSON(req *http.Request, op string, dst any) error {
	start := c.now()
	reqID := req.Header.Get(requestIDHeader)

	res, err := c.hc.Do(req)
	if err != nil {
		c.log.Debug("identity.request.fail",
			"op", op,
			"request_id", reqID,
			"err", err,
		)
		return OpError{Op: op, Kind: ErrTransport, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	c.log.Debug("identity.request",
		"op", op,
		"request_id", reqID,
		"status", res.StatusCode,
		"duration_ms", c.now().Sub(start).Milliseconds(),
	)

	body := io.LimitReader(res.Body, maxResponseBodySize)
	if res.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, body)
		return StatusError{Op: op, StatusCode: res.StatusCode}
	}

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return OpError{Op: op, Kind: ErrDecode, Err: err}
	}
	return nil
}
