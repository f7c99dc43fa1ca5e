package config

import "time"

// Config is the top-level configuration structure for hostconfd.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Datastore   DatastoreConfig   `yaml:"datastore"`
	Notify      NotifyConfig      `yaml:"notify"`
	Registry    RegistryConfig    `yaml:"registry"`
	System      SystemConfig      `yaml:"system"`
	Reconcilers ReconcilersConfig `yaml:"reconcilers"`
}

// LoggingConfig selects log format and verbosity.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error (default: info)
	Format string `yaml:"format,omitempty"` // text, json, journal (default: journal)
}

// DatastoreConfig points at the authoritative data store.
type DatastoreConfig struct {
	// Driver is "postgres" for the master database or "sqlite" for a local snapshot.
	Driver string `yaml:"driver"`

	// DSN is the driver-specific connection string (or file path for sqlite).
	DSN string `yaml:"dsn"`

	// QueryTimeout bounds every snapshot query.
	QueryTimeout time.Duration `yaml:"queryTimeout,omitempty"`
}

// NotifyConfig configures the change notification sources.
type NotifyConfig struct {
	// Listen enables LISTEN/NOTIFY on the postgres data store.
	Listen bool `yaml:"listen"`

	MinReconnectInterval time.Duration `yaml:"minReconnectInterval,omitempty"`
	MaxReconnectInterval time.Duration `yaml:"maxReconnectInterval,omitempty"`

	// Debounce is how long the filesystem watcher waits for further events
	// on the same path before notifying.
	Debounce time.Duration `yaml:"debounce,omitempty"`

	// Periodic is the interval of the "periodic" source used by reconcilers
	// that revalidate host state that nothing notifies about. Zero disables it.
	Periodic time.Duration `yaml:"periodic,omitempty"`
}

// RegistryConfig describes the system group database.
type RegistryConfig struct {
	// ManagedMin and ManagedMax bound the id range hostconfd may create,
	// modify or delete. Everything outside is read-only.
	ManagedMin uint32 `yaml:"managedMin"`
	ManagedMax uint32 `yaml:"managedMax"`

	GroupFile   string `yaml:"groupFile,omitempty"`
	GShadowFile string `yaml:"gshadowFile,omitempty"`
	LockFile    string `yaml:"lockFile,omitempty"`

	// Bootstrap is the entry that must exist after every merge.
	Bootstrap string `yaml:"bootstrap,omitempty"`
}

// SystemConfig configures host collaborators.
type SystemConfig struct {
	OSReleaseFile string `yaml:"osReleaseFile,omitempty"`

	// PackageManager is the command used to install and remove packages (dnf, yum).
	PackageManager string `yaml:"packageManager,omitempty"`

	// Restorecon is the SELinux relabel command. Relabeling is skipped when
	// SELinux is disabled on the host or Relabel is false.
	Restorecon string `yaml:"restorecon,omitempty"`
	Relabel    bool   `yaml:"relabel"`
}

// ReconcilersConfig holds one block per subsystem.
type ReconcilersConfig struct {
	DNS        DNSConfig        `yaml:"dns"`
	FTP        FTPConfig        `yaml:"ftp"`
	MailFilter MailFilterConfig `yaml:"mailfilter"`
	Jails      JailsConfig      `yaml:"jails"`
	Timezone   TimezoneConfig   `yaml:"timezone"`
	Groups     GroupsConfig     `yaml:"groups"`
	SharedDirs SharedDirsConfig `yaml:"shareddirs"`

	// MaxConcurrent bounds the passes a check runs at once. Zero means
	// every enabled reconciler at once.
	MaxConcurrent int `yaml:"maxConcurrent,omitempty"`
}

// DNSConfig configures the BIND zone reconciler.
type DNSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	ZonesDir string `yaml:"zonesDir,omitempty"`
	ConfFile string `yaml:"confFile,omitempty"`
	Owner    string `yaml:"owner,omitempty"`
	Group    string `yaml:"group,omitempty"`
	Unit     string `yaml:"unit,omitempty"`

	// Static names in ZonesDir that are never trimmed.
	Keep []string `yaml:"keep,omitempty"`
}

// FTPConfig configures the vsftpd reconciler.
type FTPConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ConfigDir string `yaml:"configDir,omitempty"`
	Package   string `yaml:"package,omitempty"`
	// UnitTemplate is the systemd template unit, instantiated per server.
	UnitTemplate string `yaml:"unitTemplate,omitempty"`
}

// MailFilterConfig configures the outbound mail limit reconciler.
type MailFilterConfig struct {
	Enabled    bool   `yaml:"enabled"`
	LimitsFile string `yaml:"limitsFile,omitempty"`
	Owner      string `yaml:"owner,omitempty"`
	Group      string `yaml:"group,omitempty"`
	// Unit is reloaded when the limits file changes. Empty means no reload.
	Unit string `yaml:"unit,omitempty"`
}

// JailsConfig configures the fail2ban reconciler.
type JailsConfig struct {
	Enabled bool     `yaml:"enabled"`
	JailDir string   `yaml:"jailDir,omitempty"`
	Unit    string   `yaml:"unit,omitempty"`
	Package string   `yaml:"package,omitempty"`
	Keep    []string `yaml:"keep,omitempty"`
}

// TimezoneConfig configures the timezone reconciler.
type TimezoneConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Localtime   string `yaml:"localtime,omitempty"`
	ZoneinfoDir string `yaml:"zoneinfoDir,omitempty"`
	// ClockFile is written with ZONE="..." when set (/etc/sysconfig/clock).
	ClockFile string `yaml:"clockFile,omitempty"`
}

// GroupsConfig configures the group database reconciler.
type GroupsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Watch notifies the reconciler when the group file is edited by other tools.
	Watch bool `yaml:"watch"`
}

// SharedDirsConfig configures the shared directory reconciler.
type SharedDirsConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseDir string `yaml:"baseDir,omitempty"`
}
