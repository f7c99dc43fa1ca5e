package config

import "time"

const (
	// DefaultConfigPath is where the daemon looks for its configuration.
	DefaultConfigPath = "/etc/hostconfd/config.yaml"

	DefaultQueryTimeout         = 30 * time.Second
	DefaultMinReconnectInterval = 10 * time.Second
	DefaultMaxReconnectInterval = time.Minute
	DefaultDebounce             = 500 * time.Millisecond
	DefaultPeriodic             = time.Hour
)

// DefaultConfig returns the configuration used when no file is present.
// Every reconciler is disabled; a host opts in explicitly.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "journal",
		},
		Datastore: DatastoreConfig{
			Driver:       "postgres",
			QueryTimeout: DefaultQueryTimeout,
		},
		Notify: NotifyConfig{
			Listen:               true,
			MinReconnectInterval: DefaultMinReconnectInterval,
			MaxReconnectInterval: DefaultMaxReconnectInterval,
			Debounce:             DefaultDebounce,
			Periodic:             DefaultPeriodic,
		},
		Registry: RegistryConfig{
			ManagedMin:  1000,
			ManagedMax:  60000,
			GroupFile:   "/etc/group",
			GShadowFile: "/etc/gshadow",
			LockFile:    "/etc/.pwd.lock",
			Bootstrap:   "root",
		},
		System: SystemConfig{
			OSReleaseFile:  "/etc/os-release",
			PackageManager: "dnf",
			Restorecon:     "/sbin/restorecon",
			Relabel:        true,
		},
		Reconcilers: ReconcilersConfig{
			DNS: DNSConfig{
				ZonesDir: "/var/named",
				ConfFile: "/etc/named.zones.conf",
				Owner:    "root",
				Group:    "named",
				Unit:     "named.service",
				Keep:     []string{"named.ca", "named.localhost", "named.loopback", "named.empty", "data", "dynamic", "slaves"},
			},
			FTP: FTPConfig{
				ConfigDir:    "/etc/vsftpd/vhosts",
				Package:      "vsftpd",
				UnitTemplate: "vsftpd@",
			},
			MailFilter: MailFilterConfig{
				LimitsFile: "/etc/mail/hostconfd-limits",
				Owner:      "root",
				Group:      "root",
			},
			Jails: JailsConfig{
				JailDir: "/etc/fail2ban/jail.d",
				Unit:    "fail2ban.service",
				Package: "fail2ban-server",
				Keep:    []string{"00-firewalld.conf"},
			},
			Timezone: TimezoneConfig{
				Localtime:   "/etc/localtime",
				ZoneinfoDir: "/usr/share/zoneinfo",
			},
			Groups: GroupsConfig{
				Watch: true,
			},
			SharedDirs: SharedDirsConfig{
				BaseDir: "/var/shared",
			},
		},
	}
}
