package flagstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps flags in <schema>.client_flags, keyed by (namespace, key).
//
// The pgx pool is owned by the caller; this store must NOT close it.
// Schema identifiers are validated and quoted.
type PostgresStore struct {
	pool      *pgxpool.Pool
	schema    string
	namespace string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema (default "arc").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("%w: empty schema", ErrInvalidInput)
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("%w: invalid schema identifier", ErrInvalidInput)
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore scoped to namespace.
func NewPostgresStore(pool *pgxpool.Pool, namespace string, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:      pool,
		schema:    "arc",
		namespace: strings.TrimSpace(namespace),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("%w: nil pool", ErrInvalidInput)
	}
	if st.namespace == "" {
		return nil, fmt.Errorf("%w: empty namespace", ErrInvalidInput)
	}
	return st, nil
}

// EnsureSchema creates the schema and table when missing. Deployments that manage
// DDL elsewhere can skip it.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + pgx.Identifier{s.schema}.Sanitize(),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  namespace TEXT NOT NULL,
  key TEXT NOT NULL,
  value TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (namespace, key)
)`, s.table()),
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("flagstore: ensure schema: %w", err)
		}
	}
	return nil
}

// Get loads a value.
func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	if !validKey(key) {
		return "", false, ErrInvalidInput
	}

	q := fmt.Sprintf(`SELECT value FROM %s WHERE namespace = $1 AND key = $2`, s.table())

	var v string
	err := s.pool.QueryRow(ctx, q, s.namespace, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("flagstore: get %q: %w", key, err)
	}
	return v, true, nil
}

// Set upserts a value.
func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	if !validKey(key) {
		return ErrInvalidInput
	}

	q := fmt.Sprintf(`
INSERT INTO %s (namespace, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, key) DO UPDATE
SET value = EXCLUDED.value, updated_at = now()`, s.table())

	if _, err := s.pool.Exec(ctx, q, s.namespace, key, value); err != nil {
		return fmt.Errorf("flagstore: set %q: %w", key, err)
	}
	return nil
}

// Remove deletes a value.
func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidInput
	}

	q := fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1 AND key = $2`, s.table())
	if _, err := s.pool.Exec(ctx, q, s.namespace, key); err != nil {
		return fmt.Errorf("flagstore: remove %q: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "client_flags"}.Sanitize()
}
