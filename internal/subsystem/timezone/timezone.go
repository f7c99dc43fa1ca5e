package timezone

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hostconfd/internal/commit"
	"hostconfd/internal/config"
	"hostconfd/internal/datastore"
	"hostconfd/internal/notify"
	"hostconfd/internal/reconciler"
	"hostconfd/internal/subsystem"
	"hostconfd/pkg/logging"
)

const name = "timezone"

// Reconciler points the localtime link at the configured zone. It also
// listens to the periodic source, since nothing notifies when another tool
// changes the link.
type Reconciler struct {
	cfg  config.TimezoneConfig
	deps subsystem.Deps
}

// New returns the timezone reconciler.
func New(cfg config.TimezoneConfig, deps subsystem.Deps) *Reconciler {
	return &Reconciler{cfg: cfg, deps: deps}
}

func (r *Reconciler) Name() string { return name }

func (r *Reconciler) Sources() []string {
	return []string{datastore.SourceHostSettings, notify.Periodic}
}

// Rebuild leaves the host alone while no timezone is set.
func (r *Reconciler) Rebuild(ctx context.Context, pass *reconciler.Pass) error {
	settings, err := r.deps.Store.HostSettings(ctx)
	if err != nil {
		return err
	}
	tz := settings.Timezone
	if tz == "" {
		logging.Debug(name, "No timezone configured")
		return nil
	}
	target, err := r.zoneFile(tz)
	if err != nil {
		return err
	}
	pass.Observe(name, tz)

	res, err := pass.Symlink(r.cfg.Localtime, target)
	if err != nil {
		return err
	}
	if res == commit.Changed {
		logging.Info(name, "Timezone set to %s", tz)
	}

	if r.cfg.ClockFile == "" {
		return nil
	}
	uid, gid, err := subsystem.Owner(r.deps.IDs, "root", "root")
	if err != nil {
		return err
	}
	_, err = pass.Commit(commit.Artifact{
		Path:    r.cfg.ClockFile,
		Content: []byte(fmt.Sprintf("ZONE=%q\n", tz)),
		UID:     uid,
		GID:     gid,
		Mode:    0o644,
	})
	return err
}

// zoneFile validates tz against the zoneinfo database and returns the path
// of its file.
func (r *Reconciler) zoneFile(tz string) (string, error) {
	if filepath.IsAbs(tz) || strings.Contains(tz, "..") || filepath.Clean(tz) != tz {
		return "", fmt.Errorf("invalid timezone %q", tz)
	}
	path := filepath.Join(r.cfg.ZoneinfoDir, tz)
	st, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("unknown timezone %q: %w", tz, err)
	}
	if !st.Mode().IsRegular() {
		return "", fmt.Errorf("unknown timezone %q: not a zone file", tz)
	}
	return path, nil
}
