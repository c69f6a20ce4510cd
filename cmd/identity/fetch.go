package identity

import (
	"context"
	"net/http"
)

// Fetch performs an authenticated request against the service and decodes the JSON body into dst.
//
// When the service answers 401 the access credential is assumed stale: Fetch refreshes the
// session once and replays the request. Concurrent Fetch calls share a single refresh.
// Fetch only supports body-less requests, so replaying is always safe.
func (c *Client) Fetch(ctx context.Context, method, path string, dst any) error {
	op := "identity.Fetch " + method + " " + path

	err := c.fetchOnce(ctx, op, method, path, dst)
	if !IsUnauthorized(err) {
		return err
	}

	if rerr := c.sharedRefresh(ctx); rerr != nil {
		c.log.Debug("identity.fetch.refresh.fail", "path", path, "kind", Classify(rerr), "err", rerr)
		return err
	}

	return c.fetchOnce(ctx, op, method, path, dst)
}

func (c *Client) fetchOnce(ctx context.Context, op, method, path string, dst any) error {
	req, err := c.newRequest(ctx, op, method, path)
	if err != nil {
		return err
	}
	return c.doJSON(req, op, dst)
}

// sharedRefresh collapses concurrent refreshes triggered by 401s into one call.
// The refresh runs with the context of the first caller.
func (c *Client) sharedRefresh(ctx context.Context) error {
	_, err, _ := c.refreshGroup.Do(http.MethodPost+" "+RefreshPath, func() (any, error) {
		return nil, c.Refresh(ctx)
	})
	return err
}
