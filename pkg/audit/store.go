// Package audit persists decision trails and cross-process counters.
// Shared state is only ever updated through the transactional Store:
// bounded lock acquisition, full rewrite to a temporary file, atomic
// publish by rename. A crash mid-update can never leave half-written
// state behind.
package audit

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store is a small transactional view over one shared file.
type Store interface {
	// Load acquires the lock and returns the current contents (nil if
	// the file does not exist yet).
	Load() ([]byte, error)
	// CompareAndSwap atomically replaces the contents, failing if they
	// changed since Load.
	CompareAndSwap(old, new []byte) error
	// Release drops the lock. Safe to call more than once.
	Release() error
}

// ErrConflict reports that the file changed between Load and
// CompareAndSwap.
var ErrConflict = errors.New("audit store: contents changed since load")

// ErrLockTimeout reports that the lock could not be acquired in time.
var ErrLockTimeout = errors.New("audit store: lock acquisition timed out")

const (
	defaultLockWait   = 2 * time.Second
	defaultStaleAfter = 30 * time.Second
	lockPollInterval  = 10 * time.Millisecond
)

// FileStore implements Store over a file with a sidecar lock file.
type FileStore struct {
	path       string
	lockPath   string
	lockWait   time.Duration
	staleAfter time.Duration
	held       bool
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithLockWait bounds how long Load waits for the lock.
func WithLockWait(d time.Duration) FileStoreOption {
	return func(s *FileStore) {
		s.lockWait = d
	}
}

// WithStaleAfter sets the age at which an abandoned lock is reclaimed.
func WithStaleAfter(d time.Duration) FileStoreOption {
	return func(s *FileStore) {
		s.staleAfter = d
	}
}

// NewFileStore creates a store over path.
func NewFileStore(path string, opts ...FileStoreOption) *FileStore {
	s := &FileStore{
		path:       path,
		lockPath:   path + ".lock",
		lockWait:   defaultLockWait,
		staleAfter: defaultStaleAfter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load acquires the lock and reads the current contents.
func (s *FileStore) Load() ([]byte, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		s.Release()
		return nil, err
	}
	return data, nil
}

// CompareAndSwap writes new contents if the file still matches old. The
// write goes to a temporary file in the same directory and is published
// by rename.
func (s *FileStore) CompareAndSwap(old, new []byte) error {
	if !s.held {
		return fmt.Errorf("audit store: CompareAndSwap without Load")
	}

	current, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if !bytes.Equal(current, old) {
		return ErrConflict
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(new); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Release drops the lock.
func (s *FileStore) Release() error {
	if !s.held {
		return nil
	}
	s.held = false
	return os.Remove(s.lockPath)
}

// acquire takes the lock file exclusively, waiting up to lockWait and
// reclaiming locks older than staleAfter.
func (s *FileStore) acquire() error {
	deadline := time.Now().Add(s.lockWait)
	for {
		f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			f.Close()
			s.held = true
			return nil
		}
		if !os.IsExist(err) {
			return err
		}

		if info, statErr := os.Stat(s.lockPath); statErr == nil {
			if time.Since(info.ModTime()) > s.staleAfter {
				// Holder is gone; reclaim and retry immediately.
				os.Remove(s.lockPath)
				continue
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w (waited %s for %s)", ErrLockTimeout, s.lockWait, s.lockPath)
		}
		time.Sleep(lockPollInterval)
	}
}
