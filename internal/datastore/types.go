package datastore

// Notification channels, one per table. The master database sends NOTIFY
// on the table's name after every committed change to it.
const (
	SourceZones             = "dns_zones"
	SourceRecords           = "dns_records"
	SourceFTPServers        = "ftp_servers"
	SourceMailLimits        = "mail_limits"
	SourceBanJails          = "ban_jails"
	SourceHostSettings      = "host_settings"
	SourceGroups            = "linux_groups"
	SourceSharedDirectories = "shared_directories"
)

// Sources lists every notification channel.
var Sources = []string{
	SourceZones,
	SourceRecords,
	SourceFTPServers,
	SourceMailLimits,
	SourceBanJails,
	SourceHostSettings,
	SourceGroups,
	SourceSharedDirectories,
}

// Zone is an authoritative DNS zone with its SOA parameters. Serial is the
// zone's version token: it is bumped by the master on every change to the
// zone or its records.
type Zone struct {
	Name       string
	Serial     uint32
	TTL        uint32
	Primary    string
	Hostmaster string
	Refresh    uint32
	Retry      uint32
	Expire     uint32
	Minimum    uint32
	Records    []Record
}

// Record is one resource record. TTL 0 means the zone default; Priority is
// only meaningful for MX and SRV.
type Record struct {
	Name     string
	Type     string
	TTL      uint32
	Priority int
	Data     string
}

// FTPServer is one vsftpd virtual host bound to an address and port.
type FTPServer struct {
	Address     string
	Port        int
	ServerName  string
	Banner      string
	Anonymous   bool
	LocalRoot   string
	PasvMinPort int
	PasvMaxPort int
	MaxClients  int
}

// MailLimit caps outbound mail for one sender address.
type MailLimit struct {
	Address string
	Burst   int
	// Rate is messages per hour.
	Rate int
}

// BanJail is one fail2ban jail. Times are in seconds.
type BanJail struct {
	Name     string
	Enabled  bool
	Filter   string
	LogPath  string
	Port     string
	MaxRetry int
	FindTime int
	BanTime  int
	Action   string
}

// HostSettings holds host-wide scalar settings. Empty fields are unmanaged.
type HostSettings struct {
	Timezone string
}

// Group is a desired managed group.
type Group struct {
	Name    string
	GID     uint32
	Members []string
}

// SharedDirectory is a directory under the shared base directory.
type SharedDirectory struct {
	Name  string
	Owner string
	Group string
	Mode  uint32
}
