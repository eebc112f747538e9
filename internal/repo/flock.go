package repo

import (
	"os"
	"syscall"
)

// Flock adds advisory file locking to an open file. Publishing runs
// take an exclusive lock on the mirror root so two operators cannot
// mutate the tree at once.
type Flock struct {
	*os.File
}

// Lock acquires an exclusive lock without blocking. It fails
// immediately if another process holds the lock.
func (f Flock) Lock() error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

// Unlock releases the lock.
func (f Flock) Unlock() error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
