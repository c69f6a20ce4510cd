package flagstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

// exerciseStore runs the behavior every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("get missing ok=%v err=%v want=false,nil", ok, err)
	}

	if err := s.Set(ctx, AuthenticatedKey, TrueValue); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.Get(ctx, AuthenticatedKey)
	if err != nil || !ok || v != TrueValue {
		t.Fatalf("get v=%q ok=%v err=%v want=%q,true,nil", v, ok, err, TrueValue)
	}

	if err := s.Set(ctx, AuthenticatedKey, "false"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, _, _ := s.Get(ctx, AuthenticatedKey); v != "false" {
		t.Fatalf("v=%q want=false", v)
	}

	if err := s.Remove(ctx, AuthenticatedKey); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, err := s.Get(ctx, AuthenticatedKey); err != nil || ok {
		t.Fatalf("after remove ok=%v err=%v", ok, err)
	}

	if err := s.Remove(ctx, AuthenticatedKey); err != nil {
		t.Fatalf("remove missing: %v", err)
	}

	if err := s.Set(ctx, "  ", "x"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank key err=%v want=ErrInvalidInput", err)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore()
	if err := s.Set(ctx, AuthenticatedKey, TrueValue); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want=context.Canceled", err)
	}
}

func TestFlag(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	f := NewFlag(s, "")

	if f.Key() != AuthenticatedKey {
		t.Fatalf("key=%q want=%q", f.Key(), AuthenticatedKey)
	}

	if set, err := f.IsSet(ctx); err != nil || set {
		t.Fatalf("fresh set=%v err=%v", set, err)
	}

	if err := f.Mark(ctx); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if set, _ := f.IsSet(ctx); !set {
		t.Fatalf("expected flag set after Mark")
	}

	// Only the exact literal counts.
	for _, v := range []string{"TRUE", "1", "yes", " true", ""} {
		_ = s.Set(ctx, AuthenticatedKey, v)
		if set, _ := f.IsSet(ctx); set {
			t.Fatalf("value %q treated as set", v)
		}
	}

	if err := f.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := s.Get(ctx, AuthenticatedKey); ok {
		t.Fatalf("expected key absent after Clear")
	}
}

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingStore) Set(context.Context, string, string) error         { return f.err }
func (f failingStore) Remove(context.Context, string) error              { return f.err }

func TestFlag_PropagatesStoreError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	f := NewFlag(failingStore{err: boom}, "k")

	set, err := f.IsSet(context.Background())
	if set || !errors.Is(err, boom) {
		t.Fatalf("set=%v err=%v want=false,boom", set, err)
	}
}
