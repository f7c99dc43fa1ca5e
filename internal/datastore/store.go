package datastore

import (
	"context"
	"fmt"
	"time"
)

// Store is the read-only view of the authoritative data store. Every
// method returns a consistent snapshot of the rows it covers, and all
// methods are safe for concurrent use.
type Store interface {
	Zones(ctx context.Context) ([]Zone, error)
	FTPServers(ctx context.Context) ([]FTPServer, error)
	MailLimits(ctx context.Context) ([]MailLimit, error)
	BanJails(ctx context.Context) ([]BanJail, error)
	HostSettings(ctx context.Context) (HostSettings, error)
	Groups(ctx context.Context) ([]Group, error)
	SharedDirectories(ctx context.Context) ([]SharedDirectory, error)
	Close() error
}

// Open connects to the store selected by driver: "postgres" for the master
// database or "sqlite" for a local snapshot file.
func Open(driver, dsn string, queryTimeout time.Duration) (*SQLStore, error) {
	switch driver {
	case "postgres":
		return openPostgres(dsn, queryTimeout)
	case "sqlite":
		return openSQLite(dsn, queryTimeout)
	default:
		return nil, fmt.Errorf("unknown datastore driver %q", driver)
	}
}
