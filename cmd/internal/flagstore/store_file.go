package flagstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/martinlindhe/base36"
	"golang.org/x/crypto/blake2s"
)

// FileStore keeps one JSON document per namespace in the user's config directory.
//
// The namespace (usually the API origin) is hashed into the file name, so flags of
// different origins never collide, mirroring per-origin browser storage.
// Writes go through a temp file + rename so a crash never leaves a torn document.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore under dir. An empty dir resolves to
// <user config dir>/arcshell/flags.
func NewFileStore(dir, namespace string) (*FileStore, error) {
	if strings.TrimSpace(namespace) == "" {
		return nil, fmt.Errorf("%w: empty namespace", ErrInvalidInput)
	}

	if strings.TrimSpace(dir) == "" {
		root, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(root, "arcshell", "flags")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("flagstore: create dir: %w", err)
	}

	return &FileStore{path: filepath.Join(dir, fileName(namespace))}, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Get loads a value from the namespace document.
func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if !validKey(key) {
		return "", false, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := entries[key]
	return v, ok, nil
}

// Set stores a value in the namespace document.
func (s *FileStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validKey(key) {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[key] = value
	return s.save(entries)
}

// Remove deletes a value; the file is removed once the document is empty.
func (s *FileStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validKey(key) {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)

	if len(entries) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return s.save(entries)
}

func (s *FileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, err
	}

	entries := make(map[string]string)
	if len(raw) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("flagstore: corrupt file %s: %w", s.path, err)
	}
	return entries, nil
}

func (s *FileStore) save(entries map[string]string) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".flags-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

func fileName(namespace string) string {
	h := blake2s.Sum256([]byte(namespace))
	return strings.ToLower(base36.EncodeBytes(h[:])) + ".json"
}
