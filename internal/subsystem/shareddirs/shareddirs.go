package shareddirs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"hostconfd/internal/commit"
	"hostconfd/internal/config"
	"hostconfd/internal/datastore"
	"hostconfd/internal/notify"
	"hostconfd/internal/reconciler"
	"hostconfd/internal/subsystem"
	"hostconfd/pkg/logging"
)

const name = "shareddirs"

// Manifest lists, one per line, the directories this reconciler created
// under the base directory. Only those are ever deleted.
const Manifest = ".hostconfd-dirs"

// Reconciler keeps the shared directories in place with the desired owner
// and mode. Directories whose row was deleted are removed once empty;
// anything else in the base directory is left alone.
type Reconciler struct {
	cfg  config.SharedDirsConfig
	deps subsystem.Deps
}

// New returns the shared directory reconciler.
func New(cfg config.SharedDirsConfig, deps subsystem.Deps) *Reconciler {
	return &Reconciler{cfg: cfg, deps: deps}
}

func (r *Reconciler) Name() string { return name }

func (r *Reconciler) Sources() []string {
	return []string{datastore.SourceSharedDirectories, notify.Periodic}
}

func (r *Reconciler) Rebuild(ctx context.Context, pass *reconciler.Pass) error {
	dirs, err := r.deps.Store.SharedDirectories(ctx)
	if err != nil {
		return err
	}
	rootUID, rootGID, err := subsystem.Owner(r.deps.IDs, "root", "root")
	if err != nil {
		return err
	}
	if _, err := pass.EnsureDirectory(r.cfg.BaseDir, rootUID, rootGID, 0o755); err != nil {
		return err
	}
	previous, err := r.readManifest()
	if err != nil {
		return err
	}

	var errs []error
	var keep, created []string
	for _, d := range dirs {
		if err := subsystem.ValidName(d.Name); err != nil || d.Name == Manifest {
			errs = append(errs, fmt.Errorf("shared directory %q: invalid name", d.Name))
			continue
		}
		keep = append(keep, d.Name)

		uid, gid, err := subsystem.Owner(r.deps.IDs, d.Owner, d.Group)
		if err != nil {
			errs = append(errs, fmt.Errorf("shared directory %s: %w", d.Name, err))
			continue
		}
		path := filepath.Join(r.cfg.BaseDir, d.Name)
		existed := exists(path)
		res, err := pass.EnsureDirectory(path, uid, gid, FileMode(d.Mode))
		if !existed && exists(path) {
			created = append(created, d.Name)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res == commit.Changed {
			logging.Info(name, "Converged %s (%s:%s %04o)", d.Name, d.Owner, d.Group, d.Mode)
		}
	}

	removed, err := pass.Trim(r.cfg.BaseDir, keep, commit.TrimOptions{
		Allow:        []string{Manifest},
		Previous:     previous,
		KeepNonEmpty: true,
	})
	for _, d := range removed {
		logging.Info(name, "Removed %s", d)
	}
	if err != nil {
		errs = append(errs, err)
	}

	// A directory that existed before it was first desired is never owned.
	// Owned directories left in place stay in the manifest.
	owned := created
	for _, p := range previous {
		if !slices.Contains(created, p) && !slices.Contains(removed, p) && exists(filepath.Join(r.cfg.BaseDir, p)) {
			owned = append(owned, p)
		}
	}
	if err := r.writeManifest(pass, owned, rootUID, rootGID); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Reconciler) readManifest() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(r.cfg.BaseDir, Manifest))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" && subsystem.ValidName(line) == nil {
			names = append(names, line)
		}
	}
	return names, nil
}

func (r *Reconciler) writeManifest(pass *reconciler.Pass, names []string, uid, gid int) error {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	var buf bytes.Buffer
	for _, n := range sorted {
		buf.WriteString(n)
		buf.WriteByte('\n')
	}
	_, err := pass.Commit(commit.Artifact{
		Path:    filepath.Join(r.cfg.BaseDir, Manifest),
		Content: buf.Bytes(),
		UID:     uid,
		GID:     gid,
		Mode:    0o600,
	})
	return err
}

// FileMode converts unix permission bits, including setuid, setgid and
// sticky, to an os.FileMode.
func FileMode(bits uint32) os.FileMode {
	m := os.FileMode(bits & 0o777)
	if bits&0o4000 != 0 {
		m |= os.ModeSetuid
	}
	if bits&0o2000 != 0 {
		m |= os.ModeSetgid
	}
	if bits&0o1000 != 0 {
		m |= os.ModeSticky
	}
	return m
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
