package session

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/patrickmn/go-cache"
)

const memoryKey = "session"

func init() {
	// go-cache persists items with gob
	gob.Register(Session{})
}

// MemoryStore keeps the session in a go-cache. Without a path it lives for the
// lifetime of the process; with a path every change is written to that file
// and the file is read back on open.
type MemoryStore struct {
	cache *cache.Cache
	path  string
	mu    sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

// NewFileStore opens a store persisted at path. A missing file is an empty store.
func NewFileStore(path string) (*MemoryStore, error) {
	if path == "" {
		return nil, errors.New("session file path is empty")
	}
	store := &MemoryStore{
		cache: cache.New(cache.NoExpiration, 0),
		path:  path,
	}
	if err := store.cache.LoadFile(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read session file %s: %w", path, err)
	}
	return store, nil
}

// DefaultFilePath is the session file under the user configuration directory,
// or in the working directory when there is none.
func DefaultFilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".skinscan-session.gob"
	}
	return filepath.Join(dir, "skinscan", "session.gob")
}

func (m *MemoryStore) Load(ctx context.Context) (Session, error) {
	if x, found := m.cache.Get(memoryKey); found {
		return x.(Session), nil
	}
	return Session{}, ErrNotFound
}

func (m *MemoryStore) Save(ctx context.Context, s Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.cache.Set(memoryKey, s, cache.NoExpiration)
	return m.persist()
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.cache.Delete(memoryKey)
	return m.persist()
}

func (m *MemoryStore) persist() error {
	if m.path == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := m.cache.SaveFile(m.path); err != nil {
		return fmt.Errorf("failed to write session file %s: %w", m.path, err)
	}
	return nil
}
