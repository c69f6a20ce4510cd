package flagstore

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// Integration tests are opt-in and require ARC_DATABASE_URL.
// Outside CI an unreachable Postgres skips them.

func TestPostgresStore(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustTestSchemaName()
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })

	s, err := NewPostgresStore(pool, "https://api.example.com", WithSchema(schema))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	// Idempotent.
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema twice: %v", err)
	}

	exerciseStore(t, s)

	other, _ := NewPostgresStore(pool, "https://other.example.com", WithSchema(schema))
	_ = s.Set(ctx, AuthenticatedKey, TrueValue)
	if _, ok, err := other.Get(ctx, AuthenticatedKey); err != nil || ok {
		t.Fatalf("namespace leak ok=%v err=%v", ok, err)
	}
}

func TestNewPostgresStore_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewPostgresStore(nil, "ns"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("nil pool err=%v", err)
	}

	for _, schema := range []string{"", "1abc", `arc"; DROP`, "a-b"} {
		_, err := NewPostgresStore(nil, "ns", WithSchema(schema))
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("schema=%q err=%v want=ErrInvalidInput", schema, err)
		}
	}
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("ARC_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: ARC_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, raw)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable: %v", err)
		}
		t.Fatalf("ping: %v", err)
	}
	return pool
}

func mustTestSchemaName() string {
	return "arc_it_" + strings.ToLower(ulid.Make().String())
}

func mustDropSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
}

func shouldSkipIntegration(err error) bool {
	if err == nil || os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}
