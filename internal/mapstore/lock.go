package mapstore

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

const lockFileSuffix = ".lock"

// Lock is a file-based lock next to the map file.
type Lock struct {
	lock *flock.Flock
	path string
}

func NewLock(mapPath string) *Lock {
	lockPath := mapPath + lockFileSuffix
	return &Lock{
		lock: flock.New(lockPath),
		path: lockPath,
	}
}

// Lock acquires the lock, waiting if another run holds it.
func (l *Lock) Lock(log logrus.FieldLogger) error {
	locked, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}

	if !locked {
		if log != nil {
			log.Warn("another run is updating the map file, waiting for it to finish")
		}
		if err := l.lock.Lock(); err != nil {
			return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
		}
	}
	return nil
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}
