package ftp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"hostconfd/internal/commit"
	"hostconfd/internal/config"
	"hostconfd/internal/datastore"
	"hostconfd/internal/reconciler"
	"hostconfd/internal/subsystem"
	"hostconfd/internal/template"
	"hostconfd/pkg/logging"
)

const name = "ftp"

var vhostTemplate = template.Must("vsftpd.conf", `# generated by hostconfd for {{ .ServerName }}
listen=YES
listen_address={{ .Address }}
listen_port={{ .Port }}
ftpd_banner={{ .Banner | default (printf "%s FTP server" .ServerName) }}
anonymous_enable={{ if .Anonymous }}YES{{ else }}NO{{ end }}
{{- if .Anonymous }}
anon_root={{ .LocalRoot }}
no_anon_password=YES
{{- end }}
local_enable=YES
local_root={{ .LocalRoot }}
chroot_local_user=YES
allow_writeable_chroot=YES
write_enable=YES
{{- if and .PasvMinPort .PasvMaxPort }}
pasv_enable=YES
pasv_min_port={{ .PasvMinPort }}
pasv_max_port={{ .PasvMaxPort }}
{{- end }}
{{- with .MaxClients }}
max_clients={{ . }}
{{- end }}
pam_service_name=vsftpd
xferlog_enable=YES
`)

// Reconciler runs one vsftpd instance per configured server. The package
// is installed while at least one server exists and removed otherwise.
type Reconciler struct {
	cfg  config.FTPConfig
	deps subsystem.Deps

	// restart lists the units of the current pass that need a restart.
	// Rebuild and Restart run under the same rebuild lock.
	restart []string
}

// New returns the FTP reconciler.
func New(cfg config.FTPConfig, deps subsystem.Deps) *Reconciler {
	return &Reconciler{cfg: cfg, deps: deps}
}

func (r *Reconciler) Name() string { return name }

func (r *Reconciler) Sources() []string { return []string{datastore.SourceFTPServers} }

// Instance returns the systemd instance name of a server.
func Instance(s datastore.FTPServer) string {
	addr := strings.NewReplacer(":", "_", "%", "_").Replace(s.Address)
	return "vhost-" + addr + "-" + strconv.Itoa(s.Port)
}

func (r *Reconciler) unit(instance string) string {
	return r.cfg.UnitTemplate + instance + ".service"
}

func (r *Reconciler) Rebuild(ctx context.Context, pass *reconciler.Pass) error {
	r.restart = nil
	if err := subsystem.RequireRedHat(r.deps.Host); err != nil {
		return err
	}
	servers, err := r.deps.Store.FTPServers(ctx)
	if err != nil {
		return err
	}
	running, err := r.deps.Services.ActiveUnits(ctx, r.unit("vhost-*"))
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		return r.teardown(ctx, pass, running)
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
	if _, err := pass.EnsureDirectory(r.cfg.ConfigDir, uid, gid, 0o755); err != nil {
		return err
	}

	var errs []error
	var keep, units []string
	for _, s := range servers {
		if net.ParseIP(s.Address) == nil {
			errs = append(errs, fmt.Errorf("server %s: invalid address %q", s.ServerName, s.Address))
			continue
		}
		instance := Instance(s)
		unit := r.unit(instance)
		keep = append(keep, instance+".conf")
		units = append(units, unit)

		content, err := vhostTemplate.Render(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res, err := pass.Commit(commit.Artifact{
			Path:    filepath.Join(r.cfg.ConfigDir, instance+".conf"),
			Content: content,
			UID:     uid,
			GID:     gid,
			Mode:    0o600,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res == commit.Changed || !slices.Contains(running, unit) {
			r.restart = append(r.restart, unit)
			pass.MarkChanged(unit)
		}
	}

	for _, unit := range running {
		if slices.Contains(units, unit) {
			continue
		}
		if err := r.stop(ctx, pass, unit); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.deps.Services.Enable(ctx, units...); err != nil {
		errs = append(errs, err)
	}

	removed, err := pass.Trim(r.cfg.ConfigDir, keep, commit.TrimOptions{FullyOwned: true})
	for _, f := range removed {
		logging.Info(name, "Removed stale config %s", f)
	}
	if err != nil {
		errs = append(errs, err)
	}
	if err := r.disableRemoved(ctx, pass, removed, running); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// teardown stops every instance, removes their configs and the package.
func (r *Reconciler) teardown(ctx context.Context, pass *reconciler.Pass, running []string) error {
	var errs []error
	for _, unit := range running {
		if err := r.stop(ctx, pass, unit); err != nil {
			errs = append(errs, err)
		}
	}
	removed, err := pass.Trim(r.cfg.ConfigDir, nil, commit.TrimOptions{FullyOwned: true})
	if err != nil {
		errs = append(errs, err)
	}
	if err := r.disableRemoved(ctx, pass, removed, running); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	installed, err := r.deps.Packages.Installed(ctx, r.cfg.Package)
	if err != nil || !installed {
		return err
	}
	if err := r.deps.Packages.Remove(ctx, r.cfg.Package); err != nil {
		return err
	}
	pass.MarkChanged("package " + r.cfg.Package)
	logging.Info(name, "No FTP servers left; removed %s", r.cfg.Package)
	return nil
}

func (r *Reconciler) stop(ctx context.Context, pass *reconciler.Pass, unit string) error {
	if err := r.deps.Services.Stop(ctx, unit); err != nil {
		return err
	}
	if err := r.deps.Services.Disable(ctx, unit); err != nil {
		return err
	}
	pass.MarkChanged(unit)
	logging.Info(name, "Stopped %s", unit)
	return nil
}

// disableRemoved disables the instances whose config was trimmed while they
// were not running, such as a crashed one. Running instances were already
// stopped and disabled.
func (r *Reconciler) disableRemoved(ctx context.Context, pass *reconciler.Pass, removed, running []string) error {
	var units []string
	for _, f := range removed {
		instance, ok := strings.CutSuffix(f, ".conf")
		if !ok {
			continue
		}
		if unit := r.unit(instance); !slices.Contains(running, unit) {
			units = append(units, unit)
		}
	}
	if len(units) == 0 {
		return nil
	}
	if err := r.deps.Services.Disable(ctx, units...); err != nil {
		return err
	}
	logging.Info(name, "Disabled stopped instances %v", units)
	return nil
}

// Restart restarts the instances whose configuration changed in this pass
// or which were not running.
func (r *Reconciler) Restart(ctx context.Context, pass *reconciler.Pass) error {
	var errs []error
	for _, unit := range r.restart {
		if err := r.deps.Services.Restart(ctx, unit); err != nil {
			errs = append(errs, err)
		}
	}
	r.restart = nil
	return errors.Join(errs...)
}
