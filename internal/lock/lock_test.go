package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "taverna.db")

	l, err := Acquire(dbPath)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	data, err := os.ReadFile(dbPath + ".lock")
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid != os.Getpid() {
		t.Errorf("lock file pid = %q, want %d", data, os.Getpid())
	}

	if err := l.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}

	// A clean release removes the sidecar and frees the lock.
	if _, err := os.Stat(dbPath + ".lock"); !os.IsNotExist(err) {
		t.Error("sidecar survived release")
	}
	l2, err := Acquire(dbPath)
	if err != nil {
		t.Fatalf("re-Acquire after release: %v", err)
	}
	_ = l2.Release()
}

func TestDoubleAcquireFails(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "taverna.db")

	l1, err := Acquire(dbPath)
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	defer func() { _ = l1.Release() }()

	_, err = Acquire(dbPath)
	if err == nil {
		t.Fatal("second Acquire() should fail")
	}

	var running *AlreadyRunningError
	if !errors.As(err, &running) {
		t.Fatalf("expected AlreadyRunningError, got %T: %v", err, err)
	}
	if running.PID != os.Getpid() {
		t.Errorf("reported pid = %d, want %d", running.PID, os.Getpid())
	}
}

func TestReleaseNil(t *testing.T) {
	var l *Lock
	if err := l.Release(); err != nil {
		t.Errorf("nil Release() error = %v", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "taverna.db")

	l, err := Acquire(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("first Release() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}
