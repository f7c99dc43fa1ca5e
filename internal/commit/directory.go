package commit

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"golang.org/x/sys/unix"
)

// Symlink points path at target, replacing whatever is there through a
// temporary link and a rename.
func (c *Committer) Symlink(path, target string) (Result, error) {
	if !filepath.IsAbs(path) {
		return Unchanged, fmt.Errorf("symlink %q: path must be absolute", path)
	}
	if current, err := os.Readlink(path); err == nil && current == target {
		return Unchanged, nil
	}

	tmp := TempPath(path)
	if err := unlinkStale(tmp); err != nil {
		return Unchanged, err
	}
	if err := os.Symlink(target, tmp); err != nil {
		return Unchanged, err
	}
	if err := c.rename(tmp, path); err != nil {
		_ = unix.Unlink(tmp)
		return Unchanged, fmt.Errorf("replace %s: %w", path, err)
	}
	if err := syncDir(filepath.Dir(path)); err != nil {
		return Changed, err
	}
	return Changed, nil
}

// EnsureDirectory creates path as a directory, or corrects the owner and
// mode of an existing one. A non-directory at path is an error; it is never
// replaced.
func (c *Committer) EnsureDirectory(path string, uid, gid int, mode os.FileMode) (Result, error) {
	if !filepath.IsAbs(path) {
		return Unchanged, fmt.Errorf("directory %q: path must be absolute", path)
	}

	want := unixMode(mode)
	result := Unchanged

	var st unix.Stat_t
	err := unix.Lstat(path, &st)
	switch {
	case errors.Is(err, unix.ENOENT):
		if err := unix.Mkdir(path, 0); err != nil {
			return Unchanged, &fs.PathError{Op: "mkdir", Path: path, Err: err}
		}
		result = Changed
	case err != nil:
		return Unchanged, &fs.PathError{Op: "lstat", Path: path, Err: err}
	case st.Mode&unix.S_IFMT != unix.S_IFDIR:
		return Unchanged, fmt.Errorf("directory %s: exists and is not a directory", path)
	case metadataMatches(&st, uid, gid, mode):
		return Unchanged, nil
	}

	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		return result, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	defer unix.Close(fd)

	if err := unix.Fchown(fd, uid, gid); err != nil {
		return result, &fs.PathError{Op: "fchown", Path: path, Err: err}
	}
	if err := unix.Fchmod(fd, want); err != nil {
		return result, &fs.PathError{Op: "fchmod", Path: path, Err: err}
	}
	if result == Changed {
		if err := syncDir(filepath.Dir(path)); err != nil {
			return Changed, err
		}
	}
	return Changed, nil
}

// TrimOptions narrows which entries TrimDirectory may delete.
type TrimOptions struct {
	// Allow lists static entries that are never deleted.
	Allow []string

	// FullyOwned means every entry not kept or allowed is deleted. Otherwise
	// only entries listed in Previous are eligible.
	FullyOwned bool

	// Previous lists the entries this caller created on earlier passes.
	Previous []string

	// KeepNonEmpty leaves directories that still have content in place
	// instead of reporting an error.
	KeepNonEmpty bool
}

// TrimDirectory deletes entries of dir that are not in keep, subject to
// opts. It returns the names it deleted, sorted. A missing dir is not an
// error. Deletion continues past individual failures; the failures are
// joined into the returned error.
func (c *Committer) TrimDirectory(dir string, keep []string, opts TrimOptions) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var removed []string
	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if slices.Contains(keep, name) || slices.Contains(opts.Allow, name) {
			continue
		}
		if !opts.FullyOwned && !slices.Contains(opts.Previous, name) {
			continue
		}

		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			if entry.IsDir() && opts.KeepNonEmpty && (errors.Is(err, unix.ENOTEMPTY) || errors.Is(err, unix.EEXIST)) {
				continue
			}
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		removed = append(removed, name)
	}

	if len(removed) > 0 {
		if err := syncDir(dir); err != nil {
			errs = append(errs, err)
		}
	}
	sort.Strings(removed)
	return removed, errors.Join(errs...)
}
