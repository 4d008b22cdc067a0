//go:build unix

package fs

import (
	"os"

	"github.com/skyline93/seacache/internal/errors"
	"golang.org/x/sys/unix"
)

// FileLock is an exclusive advisory lock held on a lock file. It serializes
// critical sections across processes sharing the same data directory.
type FileLock struct {
	f *os.File
}

// Lock blocks until an exclusive lock on the file name is acquired. The file
// is created if necessary.
func Lock(name string) (*FileLock, error) {
	f, err := OpenFile(name, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for {
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "flock %v", name)
	}

	return &FileLock{f: f}, nil
}

// Unlock releases the lock. It is safe to call on a nil lock.
func (l *FileLock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	cerr := l.f.Close()
	l.f = nil
	if err != nil {
		return errors.WithStack(err)
	}
	return cerr
}
