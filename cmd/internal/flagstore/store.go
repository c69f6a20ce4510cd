package flagstore

import (
	"context"
	"errors"
	"strings"
)

const (
	// AuthenticatedKey is the key under which the session core records "was authenticated".
	AuthenticatedKey = "isAuthenticated"

	// TrueValue is the only value that counts as a set flag.
	TrueValue = "true"
)

// ErrInvalidInput is returned for empty keys or namespaces and invalid backend options.
var ErrInvalidInput = errors.New("flagstore: invalid input")

// Store is a string key/value store that survives process restarts.
//
// Get reports ok=false for a missing key; a missing key is not an error.
// Remove of a missing key is a no-op.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Flag is a boolean view over a single Store key.
// The flag is set only when the stored value is exactly TrueValue.
type Flag struct {
	store Store
	key   string
}

// NewFlag returns a Flag bound to key. An empty key falls back to AuthenticatedKey.
func NewFlag(store Store, key string) Flag {
	key = strings.TrimSpace(key)
	if key == "" {
		key = AuthenticatedKey
	}
	return Flag{store: store, key: key}
}

// Key returns the store key backing the flag.
func (f Flag) Key() string { return f.key }

// IsSet reports whether the flag holds TrueValue.
func (f Flag) IsSet(ctx context.Context) (bool, error) {
	v, ok, err := f.store.Get(ctx, f.key)
	if err != nil || !ok {
		return false, err
	}
	return v == TrueValue, nil
}

// Mark stores TrueValue.
func (f Flag) Mark(ctx context.Context) error {
	return f.store.Set(ctx, f.key, TrueValue)
}

// Clear removes the flag.
func (f Flag) Clear(ctx context.Context) error {
	return f.store.Remove(ctx, f.key)
}

func validKey(key string) bool {
	return strings.TrimSpace(key) != ""
}
