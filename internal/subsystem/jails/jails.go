package jails

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"hostconfd/internal/commit"
	"hostconfd/internal/config"
	"hostconfd/internal/datastore"
	"hostconfd/internal/reconciler"
	"hostconfd/internal/subsystem"
	"hostconfd/internal/template"
	"hostconfd/pkg/logging"
)

const name = "jails"

var jailTemplate = template.Must("jail.local", `# generated by hostconfd
[{{ .Name }}]
enabled = true
filter = {{ .Filter }}
logpath = {{ .LogPath }}
{{- with .Port }}
port = {{ . }}
{{- end }}
maxretry = {{ .MaxRetry }}
findtime = {{ .FindTime }}
bantime = {{ .BanTime }}
{{- with .Action }}
action = {{ . | trim }}
{{- end }}
`)

// Reconciler writes one fail2ban jail file per enabled jail. fail2ban runs
// only while at least one jail is enabled.
type Reconciler struct {
	cfg  config.JailsConfig
	deps subsystem.Deps

	// reload is set by Rebuild when fail2ban should be running.
	reload bool
}

// New returns the ban jail reconciler.
func New(cfg config.JailsConfig, deps subsystem.Deps) *Reconciler {
	return &Reconciler{cfg: cfg, deps: deps}
}

func (r *Reconciler) Name() string { return name }

func (r *Reconciler) Sources() []string { return []string{datastore.SourceBanJails} }

func (r *Reconciler) Rebuild(ctx context.Context, pass *reconciler.Pass) error {
	r.reload = false
	if err := subsystem.RequireRedHat(r.deps.Host); err != nil {
		return err
	}
	all, err := r.deps.Store.BanJails(ctx)
	if err != nil {
		return err
	}
	var jails []datastore.BanJail
	for _, j := range all {
		if j.Enabled {
			jails = append(jails, j)
		}
	}

	r.reload = len(jails) > 0
	if !r.reload {
		return r.disable(ctx, pass)
	}

	installed, err := r.deps.Packages.Installed(ctx, r.cfg.Package)
	if err != nil {
		return err
	}
	if !installed {
		if err := r.deps.Packages.Install(ctx, r.cfg.Package); err != nil {
			return err
		}
		pass.MarkChanged("package " + r.cfg.Package)
	}

	uid, gid, err := subsystem.Owner(r.deps.IDs, "root", "root")
	if err != nil {
		return err
	}

	var errs []error
	var keep []string
	for _, j := range jails {
		if err := validate(j); err != nil {
			errs = append(errs, err)
			continue
		}
		file := j.Name + ".local"
		keep = append(keep, file)
		content, err := jailTemplate.Render(j)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := pass.Commit(commit.Artifact{
			Path:    filepath.Join(r.cfg.JailDir, file),
			Content: content,
			UID:     uid,
			GID:     gid,
			Mode:    0o644,
		}); err != nil {
			errs = append(errs, err)
		}
	}

	removed, err := pass.Trim(r.cfg.JailDir, keep, commit.TrimOptions{Allow: r.cfg.Keep, FullyOwned: true})
	for _, f := range removed {
		logging.Info(name, "Removed jail file %s", f)
	}
	if err != nil {
		errs = append(errs, err)
	}

	if err := r.deps.Services.Enable(ctx, r.cfg.Unit); err != nil {
		errs = append(errs, err)
	}
	running, err := r.running(ctx)
	if err != nil {
		errs = append(errs, err)
	} else if !running {
		pass.MarkChanged(r.cfg.Unit)
	}
	return errors.Join(errs...)
}

// disable stops fail2ban and removes every jail file.
func (r *Reconciler) disable(ctx context.Context, pass *reconciler.Pass) error {
	removed, err := pass.Trim(r.cfg.JailDir, nil, commit.TrimOptions{Allow: r.cfg.Keep, FullyOwned: true})
	if err != nil {
		return err
	}
	running, err := r.running(ctx)
	if err != nil {
		return err
	}
	if !running && len(removed) == 0 {
		return nil
	}
	if err := r.deps.Services.Stop(ctx, r.cfg.Unit); err != nil {
		return err
	}
	if err := r.deps.Services.Disable(ctx, r.cfg.Unit); err != nil {
		return err
	}
	logging.Info(name, "No jails enabled; stopped %s", r.cfg.Unit)
	return nil
}

// running reports whether fail2ban is active. A failed or stopped unit is
// not running even while it is loaded.
func (r *Reconciler) running(ctx context.Context) (bool, error) {
	units, err := r.deps.Services.ActiveUnits(ctx, r.cfg.Unit)
	if err != nil {
		return false, err
	}
	return len(units) > 0, nil
}

// Restart reloads fail2ban if any jail is enabled. After a teardown the
// unit is already stopped.
func (r *Reconciler) Restart(ctx context.Context, pass *reconciler.Pass) error {
	if !r.reload {
		return nil
	}
	return r.deps.Services.ReloadOrRestart(ctx, r.cfg.Unit)
}

func validate(j datastore.BanJail) error {
	if err := subsystem.ValidName(j.Name); err != nil {
		return fmt.Errorf("jail: %w", err)
	}
	for field, v := range map[string]string{"filter": j.Filter, "logpath": j.LogPath, "port": j.Port} {
		if strings.ContainsAny(v, "\r\n") {
			return fmt.Errorf("jail %s: %s must be a single line", j.Name, field)
		}
	}
	if j.Filter == "" || j.LogPath == "" {
		return fmt.Errorf("jail %s: filter and logpath are required", j.Name)
	}
	return nil
}
