package identity

import "strings"

// csrfToken returns the CSRF double-submit cookie the service set for its origin, if any.
func (c *Client) csrfToken() string {
	if c == nil || c.hc == nil || c.hc.Jar == nil {
		return ""
	}
	for _, ck := range c.hc.Jar.Cookies(c.base) {
		if ck.Name != c.csrfCookie {
			continue
		}
		if v := strings.TrimSpace(ck.Value); v != "" {
			return v
		}
	}
	return ""
}
