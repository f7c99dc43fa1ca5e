package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"hostconfd/pkg/logging"
)

// Validate checks the configuration for values that would make the daemon
// misbehave. It returns nil or a ConfigurationErrorCollection listing every
// problem found, not just the first.
func (c Config) Validate(path string) error {
	var errs ConfigurationErrorCollection
	add := func(field, message string, suggestions ...string) {
		errs.Add(ConfigurationError{
			FilePath:    path,
			FileName:    filepath.Base(path),
			ErrorType:   "validation",
			Field:       field,
			Message:     message,
			Suggestions: suggestions,
		})
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", err.Error(), "use one of debug, info, warn, error")
	}
	switch logging.Format(c.Logging.Format) {
	case logging.FormatText, logging.FormatJSON, logging.FormatJournal:
	default:
		add("logging.format", fmt.Sprintf("unknown format %q", c.Logging.Format), "use one of text, json, journal")
	}

	switch c.Datastore.Driver {
	case "postgres", "sqlite":
	default:
		add("datastore.driver", fmt.Sprintf("unknown driver %q", c.Datastore.Driver), "use postgres or sqlite")
	}
	if c.Datastore.QueryTimeout < 0 {
		add("datastore.queryTimeout", "must not be negative")
	}
	if c.Notify.Listen && c.Datastore.Driver != "postgres" {
		add("notify.listen", "LISTEN/NOTIFY requires the postgres driver", "set notify.listen to false for sqlite snapshots")
	}
	if c.Notify.MinReconnectInterval > c.Notify.MaxReconnectInterval {
		add("notify.minReconnectInterval", "must not exceed notify.maxReconnectInterval")
	}

	if c.Reconcilers.MaxConcurrent < 0 {
		add("reconcilers.maxConcurrent", "must not be negative", "use 0 for no limit")
	}

	r := c.Registry
	if r.ManagedMin == 0 {
		add("registry.managedMin", "id 0 is reserved for root and cannot be managed")
	}
	if r.ManagedMin > r.ManagedMax {
		add("registry.managedMin", fmt.Sprintf("managed range [%d, %d] is empty", r.ManagedMin, r.ManagedMax))
	}
	if strings.TrimSpace(r.Bootstrap) == "" {
		add("registry.bootstrap", "is required")
	}

	rc := c.Reconcilers
	if rc.DNS.Enabled {
		requireAbs(add, "reconcilers.dns.zonesDir", rc.DNS.ZonesDir)
		requireAbs(add, "reconcilers.dns.confFile", rc.DNS.ConfFile)
		if filepath.Dir(rc.DNS.ConfFile) == filepath.Clean(rc.DNS.ZonesDir) {
			add("reconcilers.dns.confFile", "must not live inside zonesDir, which is trimmed")
		}
	}
	if rc.FTP.Enabled {
		requireAbs(add, "reconcilers.ftp.configDir", rc.FTP.ConfigDir)
		if !strings.HasSuffix(rc.FTP.UnitTemplate, "@") {
			add("reconcilers.ftp.unitTemplate", "must be a template unit prefix ending in '@'")
		}
	}
	if rc.MailFilter.Enabled {
		requireAbs(add, "reconcilers.mailfilter.limitsFile", rc.MailFilter.LimitsFile)
	}
	if rc.Jails.Enabled {
		requireAbs(add, "reconcilers.jails.jailDir", rc.Jails.JailDir)
	}
	if rc.Timezone.Enabled {
		requireAbs(add, "reconcilers.timezone.localtime", rc.Timezone.Localtime)
		requireAbs(add, "reconcilers.timezone.zoneinfoDir", rc.Timezone.ZoneinfoDir)
	}
	if rc.Groups.Enabled {
		requireAbs(add, "registry.groupFile", r.GroupFile)
		requireAbs(add, "registry.gshadowFile", r.GShadowFile)
		requireAbs(add, "registry.lockFile", r.LockFile)
	}
	if rc.SharedDirs.Enabled {
		requireAbs(add, "reconcilers.shareddirs.baseDir", rc.SharedDirs.BaseDir)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func requireAbs(add func(field, message string, suggestions ...string), field, value string) {
	if strings.TrimSpace(value) == "" {
		add(field, "is required")
		return
	}
	if !filepath.IsAbs(value) {
		add(field, fmt.Sprintf("%q is not an absolute path", value))
	}
}
