//go:build unix

package binder

import (
	"syscall"
)

// tryLock takes an exclusive flock without blocking.
func (l *fileLock) tryLock() error {
	return syscall.Flock(int(l.f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

func (l *fileLock) unlock() error {
	return syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
}
