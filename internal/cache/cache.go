package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// CacheItem is an entry held in memory in front of the file.
type CacheItem struct {
	Value    []byte
	StoredAt time.Time
}

// Store is a key-value cache on disk. Every entry is one file named after its
// key, and its age is taken from the file modification time. Concurrent
// writers are last-write-wins.
type Store struct {
	dir string
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	items map[string]CacheItem
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to judge entry age.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store rooted at dir. A zero ttl keeps entries forever.
func New(dir string, ttl time.Duration, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	s := &Store{
		dir:   dir,
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]CacheItem),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Key hashes its parts into a cache key.
func Key(parts ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *Store) expired(storedAt time.Time) bool {
	return s.ttl > 0 && s.now().Sub(storedAt) > s.ttl
}

// Get returns the raw value stored under key.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()
	if ok && !s.expired(item.StoredAt) {
		return item.Value, true
	}

	info, err := os.Stat(s.path(key))
	if err != nil {
		return nil, false
	}
	if s.expired(info.ModTime()) {
		s.Delete(key)
		return nil, false
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false
	}

	s.mu.Lock()
	s.items[key] = CacheItem{Value: data, StoredAt: info.ModTime()}
	s.mu.Unlock()
	return data, true
}

// Set stores value under key. The file is written to a temporary name and
// renamed into place so readers never see a partial entry.
func (s *Store) Set(key string, value []byte) error {
	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create cache entry: %w", err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit cache entry: %w", err)
	}

	s.mu.Lock()
	s.items[key] = CacheItem{Value: value, StoredAt: s.now()}
	s.mu.Unlock()
	return nil
}

// GetJSON decodes the entry under key into v. An entry that does not decode is
// removed and reported as a miss.
func (s *Store) GetJSON(key string, v any) bool {
	data, ok := s.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.Delete(key)
		return false
	}
	return true
}

// SetJSON encodes v and stores it under key.
func (s *Store) SetJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return s.Set(key, data)
}

// Delete removes an entry from memory and disk.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()

	_ = os.Remove(s.path(key))
}

// Prune removes expired entries and returns how many files were deleted.
func (s *Store) Prune() (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read cache dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil || !s.expired(info.ModTime()) {
			continue
		}
		s.Delete(strings.TrimSuffix(name, ".json"))
		removed++
	}
	return removed, nil
}
