package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// FileStore is the durable tier: a flat TOML table of key = "value" pairs.
// A missing file is an empty store, not an error.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Lookup reads the file on every call so a login performed elsewhere is seen
// without restarting.
func (s *FileStore) Lookup(_ context.Context, key string) (string, bool, error) {
	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Save writes key = value, creating parent directories as needed. The file is
// written with owner-only permissions.
func (s *FileStore) Save(key, value string) error {
	values, err := s.load()
	if err != nil {
		return err
	}
	if values == nil {
		values = make(map[string]string)
	}
	values[key] = value

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	bytes, err := toml.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.WriteFile(s.path, bytes, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

func (s *FileStore) load() (map[string]string, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open credentials: %w", err)
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var values map[string]string
	if err := toml.Unmarshal(bytes, &values); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return values, nil
}

// EnvStore is a session tier backed by the process environment. Keys are
// upper-cased and prefixed, so "authToken" is read from PREFIX_AUTHTOKEN.
type EnvStore struct {
	Prefix string
	getenv func(string) (string, bool)
}

// NewEnvStore returns a store reading variables named prefix + KEY.
func NewEnvStore(prefix string) *EnvStore {
	return &EnvStore{Prefix: prefix, getenv: os.LookupEnv}
}

// Lookup implements Store.
func (s *EnvStore) Lookup(_ context.Context, key string) (string, bool, error) {
	name := s.Prefix + strings.ToUpper(key)
	v, ok := s.getenv(name)
	return v, ok, nil
}

// MemoryStore is a session tier that lives for the process only.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns a store seeded with values.
func NewMemoryStore(values map[string]string) *MemoryStore {
	s := &MemoryStore{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}
