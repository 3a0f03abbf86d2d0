// Package lock guarantees a single writer process per store file. The lock
// lives in a sidecar file next to the database and is held for the process
// lifetime; there is no renewal.
package lock

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// AlreadyRunningError is returned when another process holds the store lock.
// PID is the holder's pid when it could be read back, 0 otherwise.
type AlreadyRunningError struct {
	PID  int
	Path string
}

func (e *AlreadyRunningError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("another instance is already running (pid %d, lock %s)", e.PID, e.Path)
	}
	return fmt.Sprintf("another instance is already running (lock %s)", e.Path)
}

// Lock is an acquired store lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive non-blocking lock on the sidecar of the given
// store file and records our pid in it. Returns *AlreadyRunningError when
// another process holds it.
func Acquire(dbPath string) (*Lock, error) {
	lockPath := dbPath + ".lock"

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		// Best-effort: read the holder's pid for the error message.
		data, _ := os.ReadFile(lockPath)
		pid, _ := strconv.Atoi(strings.TrimSpace(string(data)))
		_ = f.Close()
		return nil, &AlreadyRunningError{PID: pid, Path: lockPath}
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Lock{file: f, path: lockPath}, nil
}

// Release drops the lock and removes the sidecar. Safe on nil receiver and
// safe to call twice.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove before closing so no stale sidecar survives a clean shutdown.
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}
