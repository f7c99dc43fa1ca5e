package groups

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"

	"hostconfd/internal/commit"
	"hostconfd/internal/config"
	"hostconfd/internal/datastore"
	"hostconfd/internal/reconciler"
	"hostconfd/internal/registry"
	"hostconfd/internal/subsystem"
	"hostconfd/pkg/logging"
)

const name = "groups"

// SourceGroupFile is published by the filesystem watch on the group file.
const SourceGroupFile = "group_file"

// Reconciler merges the managed groups into the system group database.
// Groups outside the managed id range are never touched.
type Reconciler struct {
	cfg  config.RegistryConfig
	deps subsystem.Deps
}

// New returns the group database reconciler.
func New(cfg config.RegistryConfig, deps subsystem.Deps) *Reconciler {
	return &Reconciler{cfg: cfg, deps: deps}
}

func (r *Reconciler) Name() string { return name }

func (r *Reconciler) Sources() []string {
	return []string{datastore.SourceGroups, SourceGroupFile}
}

func (r *Reconciler) options() registry.MergeOptions {
	return registry.MergeOptions{
		Range:     registry.IDRange{Min: r.cfg.ManagedMin, Max: r.cfg.ManagedMax},
		Bootstrap: r.cfg.Bootstrap,
	}
}

// Rebuild reads both database files fresh under the shadow-utils lock and
// writes them back only if the merge changed their bytes. A merge that
// would violate a safety rule writes nothing.
func (r *Reconciler) Rebuild(ctx context.Context, pass *reconciler.Pass) error {
	rows, err := r.deps.Store.Groups(ctx)
	if err != nil {
		return err
	}
	desired := make([]registry.Group, 0, len(rows))
	for _, row := range rows {
		if err := subsystem.ValidName(row.Name); err != nil {
			return err
		}
		desired = append(desired, registry.Group{Name: row.Name, GID: row.GID, Members: row.Members})
	}

	lock, err := registry.Lock(r.cfg.LockFile)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	existing, err := registry.ReadGroups(r.cfg.GroupFile)
	if err != nil {
		return err
	}
	// Hosts without gshadow keep none; an empty one is still synced.
	shadows, err := registry.ReadShadows(r.cfg.GShadowFile)
	hasShadow := !errors.Is(err, fs.ErrNotExist)
	if err != nil && hasShadow {
		return err
	}

	opts := r.options()
	merged, changes, err := registry.Merge(existing, registry.CarryPasswords(existing, desired), opts)
	if err != nil {
		return err
	}
	for _, c := range changes {
		logging.Info(name, "Group %s", c)
	}

	if err := r.write(pass, r.cfg.GroupFile, registry.FormatGroups(merged), 0o644); err != nil {
		return err
	}
	if !hasShadow {
		return nil
	}
	synced := registry.SyncShadows(shadows, merged, changes, opts.Range)
	return r.write(pass, r.cfg.GShadowFile, registry.FormatShadows(synced), 0)
}

// write commits content keeping the file's current owner and mode, with
// the previous version saved as path-.
func (r *Reconciler) write(pass *reconciler.Pass, path string, content []byte, mode os.FileMode) error {
	uid, gid := 0, 0
	var st unix.Stat_t
	switch err := unix.Stat(path, &st); {
	case err == nil:
		uid, gid = int(st.Uid), int(st.Gid)
		mode = os.FileMode(st.Mode & 0o777)
	case !errors.Is(err, unix.ENOENT):
		return &fs.PathError{Op: "stat", Path: path, Err: err}
	}

	_, err := pass.Commit(commit.Artifact{
		Path:       path,
		Content:    content,
		UID:        uid,
		GID:        gid,
		Mode:       mode,
		BackupPath: path + "-",
	})
	return err
}
