package dns

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"hostconfd/internal/commit"
	"hostconfd/internal/config"
	"hostconfd/internal/datastore"
	"hostconfd/internal/reconciler"
	"hostconfd/internal/subsystem"
	"hostconfd/pkg/logging"
)

const name = "dns"

// Reconciler writes one BIND zone file per zone and the configuration
// fragment that declares them, and reloads named when either changed.
type Reconciler struct {
	cfg  config.DNSConfig
	deps subsystem.Deps

	// memo maps zone name to the serial last written.
	memo reconciler.Memo
}

// New returns the DNS reconciler.
func New(cfg config.DNSConfig, deps subsystem.Deps) *Reconciler {
	return &Reconciler{cfg: cfg, deps: deps}
}

func (r *Reconciler) Name() string { return name }

func (r *Reconciler) Sources() []string {
	return []string{datastore.SourceZones, datastore.SourceRecords}
}

// Rebuild converges the zone directory. A zone whose serial was already
// written is skipped without rendering, as long as its file still exists.
// A failing zone does not stop the others; all failures are returned
// together after the configuration fragment and trim ran.
func (r *Reconciler) Rebuild(ctx context.Context, pass *reconciler.Pass) error {
	if err := subsystem.RequireRedHat(r.deps.Host); err != nil {
		return err
	}
	zones, err := r.deps.Store.Zones(ctx)
	if err != nil {
		return err
	}
	uid, gid, err := subsystem.Owner(r.deps.IDs, r.cfg.Owner, r.cfg.Group)
	if err != nil {
		return err
	}

	var errs []error
	keep := make([]string, 0, len(zones))
	names := make([]string, 0, len(zones))
	declared := make([]confZone, 0, len(zones))
	for _, z := range zones {
		if err := subsystem.ValidName(z.Name); err != nil {
			errs = append(errs, fmt.Errorf("zone: %w", err))
			continue
		}
		file := z.Name + ".zone"
		path := filepath.Join(r.cfg.ZonesDir, file)
		keep = append(keep, file)
		names = append(names, z.Name)
		declared = append(declared, confZone{Name: z.Name, File: path})

		if err := r.applyZone(pass, z, path, uid, gid); err != nil {
			errs = append(errs, err)
		}
	}
	r.memo.Retain(names)

	if conf, err := confTemplate.Render(declared); err != nil {
		errs = append(errs, err)
	} else if _, err := pass.Commit(commit.Artifact{
		Path: r.cfg.ConfFile, Content: conf, UID: uid, GID: gid, Mode: 0o640,
	}); err != nil {
		errs = append(errs, err)
	}

	removed, err := pass.Trim(r.cfg.ZonesDir, keep, commit.TrimOptions{
		Allow:        r.cfg.Keep,
		FullyOwned:   true,
		KeepNonEmpty: true,
	})
	for _, f := range removed {
		logging.Info(name, "Removed stale zone file %s", f)
	}
	if err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Reconciler) applyZone(pass *reconciler.Pass, z datastore.Zone, path string, uid, gid int) error {
	token := strconv.FormatUint(uint64(z.Serial), 10)
	pass.Observe(z.Name, token)
	if r.memo.Unchanged(z.Name, token) && exists(path) {
		return nil
	}

	content, err := zoneTemplate.Render(z)
	if err != nil {
		return fmt.Errorf("zone %s: %w", z.Name, err)
	}
	res, err := pass.Commit(commit.Artifact{Path: path, Content: content, UID: uid, GID: gid, Mode: 0o640})
	if err != nil {
		r.memo.Forget(z.Name)
		return fmt.Errorf("zone %s: %w", z.Name, err)
	}
	r.memo.Record(z.Name, token)
	if res == commit.Changed {
		logging.Info(name, "Wrote zone %s at serial %d", z.Name, z.Serial)
	}
	return nil
}

// Restart reloads named once for the whole pass.
func (r *Reconciler) Restart(ctx context.Context, pass *reconciler.Pass) error {
	return r.deps.Services.ReloadOrRestart(ctx, r.cfg.Unit)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
