package app

import (
	"errors"
	"fmt"

	"hostconfd/internal/config"
	"hostconfd/internal/datastore"
	"hostconfd/internal/notify"
	"hostconfd/internal/reconciler"
	"hostconfd/internal/subsystem"
	"hostconfd/internal/subsystem/dns"
	"hostconfd/internal/subsystem/ftp"
	"hostconfd/internal/subsystem/groups"
	"hostconfd/internal/subsystem/jails"
	"hostconfd/internal/subsystem/mailfilter"
	"hostconfd/internal/subsystem/shareddirs"
	"hostconfd/internal/subsystem/timezone"
	"hostconfd/internal/system"
	"hostconfd/pkg/logging"
)

// Services holds everything the daemon runs. It is built once by
// InitializeServices and torn down by Close.
type Services struct {
	Host  system.Host
	Store datastore.Store

	// Hub fans the notifications of Sources out to the runners.
	Hub     *notify.Hub
	Sources []notify.Source

	// Systemd is the shared D-Bus connection, closed last.
	Systemd *system.Systemd

	Manager *reconciler.Manager
}

// InitializeServices wires the data store, the notification sources, the
// host collaborators and every enabled reconciler. Nothing is started.
func InitializeServices(cfg config.Config) (*Services, error) {
	host, err := system.ReadHost(cfg.System.OSReleaseFile)
	if err != nil {
		logging.Warn("Bootstrap", "Could not detect host, assuming generic linux: %v", err)
		host = system.Host{ID: "linux"}
	}
	logging.Info("Bootstrap", "Detected host %s", host)

	store, err := datastore.Open(cfg.Datastore.Driver, cfg.Datastore.DSN, cfg.Datastore.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open data store: %w", err)
	}

	hub := notify.NewHub()
	systemd := system.NewSystemd()
	deps := subsystem.Deps{
		Store:    store,
		Host:     host,
		Services: systemd,
		Packages: system.NewRPMPackages(cfg.System.PackageManager),
		IDs:      system.NSSResolver{},
	}

	managerCfg := reconciler.ManagerConfig{
		Notifier:            hub,
		MaxConcurrentPasses: cfg.Reconcilers.MaxConcurrent,
	}
	if cfg.System.Relabel {
		managerCfg.Relabeler = system.NewRestorecon(cfg.System.Restorecon)
	}
	manager := reconciler.NewManager(managerCfg)

	s := &Services{
		Host:    host,
		Store:   store,
		Hub:     hub,
		Sources: buildSources(cfg),
		Systemd: systemd,
		Manager: manager,
	}

	for _, rec := range BuildReconcilers(cfg, deps) {
		if _, err := manager.Register(rec); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to register reconciler: %w", err)
		}
	}
	if len(manager.Names()) == 0 {
		logging.Warn("Bootstrap", "No reconcilers enabled in configuration")
	}
	return s, nil
}

// BuildReconcilers returns the reconcilers enabled in cfg, in a fixed order.
func BuildReconcilers(cfg config.Config, deps subsystem.Deps) []reconciler.Reconciler {
	rc := cfg.Reconcilers
	var recs []reconciler.Reconciler
	if rc.DNS.Enabled {
		recs = append(recs, dns.New(rc.DNS, deps))
	}
	if rc.FTP.Enabled {
		recs = append(recs, ftp.New(rc.FTP, deps))
	}
	if rc.MailFilter.Enabled {
		recs = append(recs, mailfilter.New(rc.MailFilter, deps))
	}
	if rc.Jails.Enabled {
		recs = append(recs, jails.New(rc.Jails, deps))
	}
	if rc.Timezone.Enabled {
		recs = append(recs, timezone.New(rc.Timezone, deps))
	}
	if rc.Groups.Enabled {
		recs = append(recs, groups.New(cfg.Registry, deps))
	}
	if rc.SharedDirs.Enabled {
		recs = append(recs, shareddirs.New(rc.SharedDirs, deps))
	}
	return recs
}

func buildSources(cfg config.Config) []notify.Source {
	var sources []notify.Source
	if cfg.Notify.Listen {
		sources = append(sources, notify.NewPostgresSource(
			cfg.Datastore.DSN,
			datastore.Sources,
			cfg.Notify.MinReconnectInterval,
			cfg.Notify.MaxReconnectInterval,
		))
	}
	if cfg.Reconcilers.Groups.Enabled && cfg.Reconcilers.Groups.Watch {
		fs := notify.NewFilesystemSource(cfg.Notify.Debounce)
		fs.Watch(cfg.Registry.GroupFile, groups.SourceGroupFile)
		sources = append(sources, fs)
	}
	if cfg.Notify.Periodic > 0 {
		sources = append(sources, notify.NewPeriodicSource(notify.Periodic, cfg.Notify.Periodic))
	}
	return sources
}

// Close releases the store and the D-Bus connection. The manager must have
// been stopped first.
func (s *Services) Close() error {
	var errs []error
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close data store: %w", err))
		}
	}
	if s.Systemd != nil {
		s.Systemd.Close()
	}
	return errors.Join(errs...)
}
