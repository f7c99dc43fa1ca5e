package commit

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Result reports whether applying an artifact touched the filesystem.
type Result int

const (
	// Unchanged means the target already matched and nothing was written.
	Unchanged Result = iota

	// Changed means the target was created, replaced or removed.
	Changed
)

func (r Result) String() string {
	if r == Changed {
		return "changed"
	}
	return "unchanged"
}

// Artifact is one file fully owned by a reconciler.
type Artifact struct {
	// Path is the absolute path of the target.
	Path string

	// Content is the desired file content. Ignored when Absent is set.
	Content []byte

	// Absent means the target must not exist.
	Absent bool

	UID  int
	GID  int
	Mode os.FileMode

	// BackupPath, if set, receives a copy of the current target before it
	// is replaced. The copy keeps the current owner and mode.
	BackupPath string
}

// Committer applies artifacts to the filesystem. Every replacement goes
// through a sibling temporary file and a rename, so readers observe either
// the old or the new content, never a partial write.
//
// A Committer holds no per-path state and is safe for concurrent use on
// disjoint paths.
type Committer struct {
	rename func(oldpath, newpath string) error
}

// New returns a Committer backed by the real filesystem.
func New() *Committer {
	return &Committer{rename: os.Rename}
}

// Apply converges a single artifact. It returns Unchanged without writing
// when the target is a regular file whose bytes, owner, group and mode
// already match.
func (c *Committer) Apply(a Artifact) (Result, error) {
	if !filepath.IsAbs(a.Path) {
		return Unchanged, fmt.Errorf("commit %q: path must be absolute", a.Path)
	}
	if a.Absent {
		return c.remove(a.Path)
	}

	var st unix.Stat_t
	exists := true
	if err := unix.Lstat(a.Path, &st); err != nil {
		if !errors.Is(err, unix.ENOENT) {
			return Unchanged, &fs.PathError{Op: "lstat", Path: a.Path, Err: err}
		}
		exists = false
	}

	regular := exists && st.Mode&unix.S_IFMT == unix.S_IFREG
	if regular && metadataMatches(&st, a.UID, a.GID, a.Mode) {
		current, err := os.ReadFile(a.Path)
		if err != nil {
			return Unchanged, err
		}
		if bytes.Equal(current, a.Content) {
			return Unchanged, nil
		}
	}

	if a.BackupPath != "" && regular {
		current, err := os.ReadFile(a.Path)
		if err != nil {
			return Unchanged, err
		}
		if err := c.writeAtomic(a.BackupPath, current, int(st.Uid), int(st.Gid), st.Mode&permBits); err != nil {
			return Unchanged, fmt.Errorf("backup %s: %w", a.Path, err)
		}
	}

	if err := c.writeAtomic(a.Path, a.Content, a.UID, a.GID, unixMode(a.Mode)); err != nil {
		return Unchanged, err
	}
	return Changed, nil
}

func (c *Committer) remove(path string) (Result, error) {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Unchanged, nil
		}
		return Unchanged, err
	}
	if err := syncDir(filepath.Dir(path)); err != nil {
		return Changed, err
	}
	return Changed, nil
}

// TempPath is the deterministic sibling used while replacing path. A file
// left behind by a crash is overwritten by the next commit to the same path.
func TempPath(path string) string {
	dir, name := filepath.Split(path)
	return filepath.Join(dir, "."+name+".new")
}

func (c *Committer) writeAtomic(path string, content []byte, uid, gid int, mode uint32) (err error) {
	tmp := TempPath(path)
	if err := unlinkStale(tmp); err != nil {
		return err
	}

	fd, err := unix.Open(tmp, unix.O_WRONLY|unix.O_CREAT|unix.O_EXCL|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		return &fs.PathError{Op: "create", Path: tmp, Err: err}
	}
	f := os.NewFile(uintptr(fd), tmp)
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = unix.Unlink(tmp)
		}
	}()

	// Ownership and mode are fixed while the file is still empty and mode 0.
	if err := unix.Fchown(fd, uid, gid); err != nil {
		return &fs.PathError{Op: "fchown", Path: tmp, Err: err}
	}
	if err := unix.Fchmod(fd, mode); err != nil {
		return &fs.PathError{Op: "fchmod", Path: tmp, Err: err}
	}
	if _, err := f.Write(content); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		_ = unix.Unlink(tmp)
		return err
	}

	if err := c.rename(tmp, path); err != nil {
		_ = unix.Unlink(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return syncDir(filepath.Dir(path))
}

func unlinkStale(path string) error {
	if err := unix.Unlink(path); err != nil && !errors.Is(err, unix.ENOENT) {
		return &fs.PathError{Op: "unlink", Path: path, Err: err}
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", dir, err)
	}
	return nil
}

const permBits = 0o7777

func metadataMatches(st *unix.Stat_t, uid, gid int, mode os.FileMode) bool {
	return int(st.Uid) == uid && int(st.Gid) == gid && st.Mode&permBits == unixMode(mode)
}

// unixMode converts the permission and special bits of an os.FileMode to
// the representation expected by chmod(2).
func unixMode(m os.FileMode) uint32 {
	mode := uint32(m.Perm())
	if m&os.ModeSetuid != 0 {
		mode |= unix.S_ISUID
	}
	if m&os.ModeSetgid != 0 {
		mode |= unix.S_ISGID
	}
	if m&os.ModeSticky != 0 {
		mode |= unix.S_ISVTX
	}
	return mode
}
