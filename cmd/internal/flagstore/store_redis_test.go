package flagstore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisStore(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedis(t)
	s, err := NewRedisStore(rdb, "ns")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	exerciseStore(t, s)
}

func TestRedisStore_KeyLayout(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedis(t)
	s, _ := NewRedisStore(rdb, "kiosk-1")

	if err := s.Set(context.Background(), AuthenticatedKey, TrueValue); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := mr.Get("arcshell:flags:kiosk-1:isAuthenticated")
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	if got != TrueValue {
		t.Fatalf("raw=%q want=%q", got, TrueValue)
	}
	if mr.TTL("arcshell:flags:kiosk-1:isAuthenticated") != 0 {
		t.Fatalf("flag must not expire")
	}
}

func TestRedisStore_ServerDown(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedis(t)
	s, _ := NewRedisStore(rdb, "ns")
	mr.Close()

	if _, _, err := s.Get(context.Background(), AuthenticatedKey); err == nil {
		t.Fatalf("expected error with redis down")
	}
}

func TestNewRedisStore_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisStore(nil, "ns"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("nil client err=%v", err)
	}

	_, rdb := newTestRedis(t)
	if _, err := NewRedisStore(rdb, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty namespace err=%v", err)
	}
}
