package audit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counters.json")
	store := NewFileStore(path)

	data, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if data != nil {
		t.Errorf("Load of missing file = %q, want nil", data)
	}

	if err := store.CompareAndSwap(nil, []byte(`{"runs":1}`)); err != nil {
		t.Fatalf("CompareAndSwap: %v", err)
	}
	if err := store.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	data, err = store.Load()
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	defer store.Release()
	if string(data) != `{"runs":1}` {
		t.Errorf("Load = %q", data)
	}
}

func TestFileStoreConflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileStore(path)

	if _, err := store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Someone else rewrites the file behind our back.
	if err := os.WriteFile(path, []byte("other"), 0644); err != nil {
		t.Fatal(err)
	}
	err := store.CompareAndSwap(nil, []byte("mine"))
	store.Release()
	if !errors.Is(err, ErrConflict) {
		t.Errorf("CompareAndSwap error = %v, want ErrConflict", err)
	}
}

func TestFileStoreLockTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path+".lock", []byte("held\n"), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(path, WithLockWait(50*time.Millisecond), WithStaleAfter(time.Hour))
	_, err := store.Load()
	if !errors.Is(err, ErrLockTimeout) {
		t.Errorf("Load error = %v, want ErrLockTimeout", err)
	}
}

func TestFileStoreReclaimsStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	lockPath := path + ".lock"
	if err := os.WriteFile(lockPath, []byte("stale\n"), 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Minute)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(path, WithLockWait(200*time.Millisecond), WithStaleAfter(time.Second))
	if _, err := store.Load(); err != nil {
		t.Fatalf("Load did not reclaim stale lock: %v", err)
	}
	store.Release()
}

func TestBumpCounters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counters.json")

	if err := BumpCounters(NewFileStore(path), Counters{Runs: 1, Passes: 3, Attempts: 4}); err != nil {
		t.Fatalf("BumpCounters: %v", err)
	}
	if err := BumpCounters(NewFileStore(path), Counters{Runs: 1, Exhaustions: 1}); err != nil {
		t.Fatalf("second BumpCounters: %v", err)
	}

	got, err := ReadCounters(NewFileStore(path))
	if err != nil {
		t.Fatalf("ReadCounters: %v", err)
	}
	want := Counters{Runs: 2, Passes: 3, Attempts: 4, Exhaustions: 1}
	if got != want {
		t.Errorf("counters = %+v, want %+v", got, want)
	}
}
