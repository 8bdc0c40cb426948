// OS-level file locking for single-owner access to a journal.
//
// A Store keeps its committed state in memory and appends to the journal
// without re-reading it, so exactly one Store may own a journal at a time.
// Open takes an exclusive, non-blocking lock on a sidecar "<name>.lock"
// file and holds it until Close. The sidecar is used rather than the
// journal itself because Compact replaces the journal by rename, which
// would silently drop a lock held on the old inode.
//
// fileLock wraps flock(2) / LockFileEx with a mutex that guards the file
// handle's lifetime so that Fd() cannot race with Close() on the same
// *os.File.
package binder

import (
	"errors"
	"os"
	"sync"
)

// ErrLocked is returned by Open when another Store owns the journal.
var ErrLocked = errors.New("journal is locked by another store")

// fileLock coordinates an OS-level exclusive lock with safe teardown.
type fileLock struct {
	mu sync.Mutex
	f  *os.File
}

// acquire opens the sidecar lock file inside root and takes the lock.
func acquire(root *os.Root, name string) (*fileLock, error) {
	f, err := root.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	l := &fileLock{f: f}
	if err := l.tryLock(); err != nil {
		f.Close()
		return nil, ErrLocked
	}
	return l, nil
}

// release drops the lock and closes the sidecar. Safe to call twice.
func (l *fileLock) release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	l.unlock()
	err := l.f.Close()
	l.f = nil
	return err
}
