// Package storage persists device-local state under logical keys in a
// directory, enforcing a total byte capacity the way a constrained medium would.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"github.com/jfloresavalos/InvBF/internal/inventory"
)

// Logical keys.
const (
	KeyAuthority    = "authority"
	KeyDevice       = "device"
	KeyDeviceLocked = "device_locked"
	KeySession      = "session"
	KeyCatalog      = "catalog"
	KeyCatalogHash  = "catalog_hash"
	KeyOpLog        = "oplog"
	KeyStockCache   = "stock_cache"
)

const fileSuffix = ".dat"

// DefaultCapacity mirrors the few megabytes a browser-style store grants.
const DefaultCapacity int64 = 10 << 20

var keyPattern = regexp.MustCompile(`^[a-z0-9_\-]{1,64}$`)

// JournalKey returns the journal key for one inventory session.
func JournalKey(sessionID int64) string {
	return "journal_" + strconv.FormatInt(sessionID, 10)
}

// Store is a file-per-key value store. It is safe for concurrent use.
type Store struct {
	dir      string
	capacity int64

	mu sync.Mutex
}

// Open prepares dir for use. A capacity <= 0 uses DefaultCapacity.
func Open(dir string, capacity int64) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{dir: dir, capacity: capacity}, nil
}

// Dir returns the backing directory.
func (s *Store) Dir() string { return s.dir }

// Capacity returns the byte budget shared by all keys.
func (s *Store) Capacity() int64 { return s.capacity }

// Get returns the value for key. A missing key is (nil, false, nil).
func (s *Store) Get(key string) ([]byte, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, &inventory.StorageError{Key: key, Err: err}
	}
	return data, true, nil
}

// GetString is Get for small text values; errors read as missing.
func (s *Store) GetString(key string) string {
	data, ok, err := s.Get(key)
	if err != nil || !ok {
		return ""
	}
	return string(data)
}

// Put replaces the value for key. The write is rejected, leaving the previous
// value in place, when it would push total usage past the capacity.
func (s *Store) Put(key string, value []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	used, err := s.usageLocked()
	if err != nil {
		return &inventory.StorageError{Key: key, Err: err}
	}
	if info, err := os.Stat(path); err == nil {
		used -= info.Size()
	}
	if used+int64(len(value)) > s.capacity {
		return &inventory.StorageError{
			Key: key,
			Err: fmt.Errorf("%w: need %d bytes, %d of %d in use", inventory.ErrCapacityExceeded, len(value), used, s.capacity),
		}
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+"-*")
	if err != nil {
		return &inventory.StorageError{Key: key, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &inventory.StorageError{Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &inventory.StorageError{Key: key, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return &inventory.StorageError{Key: key, Err: err}
	}
	return nil
}

// PutString is Put for small text values.
func (s *Store) PutString(key, value string) error {
	return s.Put(key, []byte(value))
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &inventory.StorageError{Key: key, Err: err}
	}
	return nil
}

// Usage returns the bytes currently held across all keys.
func (s *Store) Usage() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usageLocked()
}

func (s *Store) usageLocked() (int64, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+fileSuffix))
	if err != nil {
		return 0, err
	}
	var total int64
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

func (s *Store) path(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", &inventory.StorageError{Key: key, Err: fmt.Errorf("invalid key")}
	}
	return filepath.Join(s.dir, key+fileSuffix), nil
}
