package registry

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// fcntl locks are owned by the process, so goroutines are serialized here.
var processMu sync.Mutex

// FileLock is the write lock shadow-utils takes on /etc/.pwd.lock before
// editing the account databases. Holding it keeps groupadd, usermod and
// friends out while a merge reads and rewrites the files.
type FileLock struct {
	f *os.File
}

// Lock blocks until the fcntl write lock on path is acquired. The lock file
// is created if needed.
func Lock(path string) (*FileLock, error) {
	processMu.Lock()
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|unix.O_CLOEXEC, 0o600)
	if err != nil {
		processMu.Unlock()
		return nil, err
	}
	lk := unix.Flock_t{
		Type:   unix.F_WRLCK,
		Whence: io.SeekStart,
	}
	for {
		err = unix.FcntlFlock(f.Fd(), unix.F_SETLKW, &lk)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		f.Close()
		processMu.Unlock()
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return &FileLock{f: f}, nil
}

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	lk := unix.Flock_t{
		Type:   unix.F_UNLCK,
		Whence: io.SeekStart,
	}
	err := unix.FcntlFlock(l.f.Fd(), unix.F_SETLK, &lk)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	processMu.Unlock()
	return err
}
