package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLStore implements Store on database/sql. The queries are plain SQL
// accepted by both PostgreSQL and SQLite.
type SQLStore struct {
	db      *sql.DB
	driver  string
	timeout time.Duration
	txOpts  *sql.TxOptions
}

// DB returns the underlying handle, for seeding snapshots and tests.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Close closes the database handle.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// snapshot runs fn in a read transaction so multi-table reads see one
// consistent state.
func (s *SQLStore) snapshot(ctx context.Context, what string, fn func(tx *sql.Tx) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, s.txOpts)
	if err != nil {
		return fmt.Errorf("%s: begin snapshot: %w", what, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return tx.Commit()
}

func (s *SQLStore) Zones(ctx context.Context) ([]Zone, error) {
	var zones []Zone
	err := s.snapshot(ctx, "read zones", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, name, serial, ttl, primary_ns, hostmaster, refresh, retry, expire, minimum
			FROM dns_zones ORDER BY name`)
		if err != nil {
			return err
		}
		byID := make(map[int64]int)
		for rows.Next() {
			var id int64
			var z Zone
			if err := rows.Scan(&id, &z.Name, &z.Serial, &z.TTL, &z.Primary, &z.Hostmaster,
				&z.Refresh, &z.Retry, &z.Expire, &z.Minimum); err != nil {
				rows.Close()
				return err
			}
			byID[id] = len(zones)
			zones = append(zones, z)
		}
		if err := closeRows(rows); err != nil {
			return err
		}

		rows, err = tx.QueryContext(ctx, `
			SELECT zone_id, name, type, ttl, priority, data
			FROM dns_records ORDER BY zone_id, name, type, priority, data, id`)
		if err != nil {
			return err
		}
		for rows.Next() {
			var zoneID int64
			var r Record
			var ttl, priority sql.NullInt64
			if err := rows.Scan(&zoneID, &r.Name, &r.Type, &ttl, &priority, &r.Data); err != nil {
				rows.Close()
				return err
			}
			r.TTL = uint32(ttl.Int64)
			r.Priority = int(priority.Int64)
			if i, ok := byID[zoneID]; ok {
				zones[i].Records = append(zones[i].Records, r)
			}
		}
		return closeRows(rows)
	})
	if err != nil {
		return nil, err
	}
	return zones, nil
}

func (s *SQLStore) FTPServers(ctx context.Context) ([]FTPServer, error) {
	var servers []FTPServer
	err := s.snapshot(ctx, "read ftp servers", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT address, port, server_name, banner, anonymous, local_root,
			       pasv_min_port, pasv_max_port, max_clients
			FROM ftp_servers WHERE enabled ORDER BY address, port`)
		if err != nil {
			return err
		}
		for rows.Next() {
			var f FTPServer
			if err := rows.Scan(&f.Address, &f.Port, &f.ServerName, &f.Banner, &f.Anonymous, &f.LocalRoot,
				&f.PasvMinPort, &f.PasvMaxPort, &f.MaxClients); err != nil {
				rows.Close()
				return err
			}
			servers = append(servers, f)
		}
		return closeRows(rows)
	})
	if err != nil {
		return nil, err
	}
	return servers, nil
}

func (s *SQLStore) MailLimits(ctx context.Context) ([]MailLimit, error) {
	var limits []MailLimit
	err := s.snapshot(ctx, "read mail limits", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT address, burst, rate FROM mail_limits ORDER BY address`)
		if err != nil {
			return err
		}
		for rows.Next() {
			var l MailLimit
			if err := rows.Scan(&l.Address, &l.Burst, &l.Rate); err != nil {
				rows.Close()
				return err
			}
			limits = append(limits, l)
		}
		return closeRows(rows)
	})
	if err != nil {
		return nil, err
	}
	return limits, nil
}

func (s *SQLStore) BanJails(ctx context.Context) ([]BanJail, error) {
	var jails []BanJail
	err := s.snapshot(ctx, "read ban jails", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT name, enabled, filter, log_path, port, max_retry, find_time, ban_time, action
			FROM ban_jails ORDER BY name`)
		if err != nil {
			return err
		}
		for rows.Next() {
			var j BanJail
			if err := rows.Scan(&j.Name, &j.Enabled, &j.Filter, &j.LogPath, &j.Port,
				&j.MaxRetry, &j.FindTime, &j.BanTime, &j.Action); err != nil {
				rows.Close()
				return err
			}
			jails = append(jails, j)
		}
		return closeRows(rows)
	})
	if err != nil {
		return nil, err
	}
	return jails, nil
}

func (s *SQLStore) HostSettings(ctx context.Context) (HostSettings, error) {
	var settings HostSettings
	err := s.snapshot(ctx, "read host settings", func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT value FROM host_settings WHERE key = 'timezone'`).Scan(&settings.Timezone)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	})
	return settings, err
}

func (s *SQLStore) Groups(ctx context.Context) ([]Group, error) {
	var groups []Group
	err := s.snapshot(ctx, "read groups", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT name, gid FROM linux_groups ORDER BY gid, name`)
		if err != nil {
			return err
		}
		byName := make(map[string]int)
		for rows.Next() {
			var g Group
			if err := rows.Scan(&g.Name, &g.GID); err != nil {
				rows.Close()
				return err
			}
			byName[g.Name] = len(groups)
			groups = append(groups, g)
		}
		if err := closeRows(rows); err != nil {
			return err
		}

		rows, err = tx.QueryContext(ctx, `SELECT group_name, member FROM linux_group_members ORDER BY group_name, member`)
		if err != nil {
			return err
		}
		for rows.Next() {
			var group, member string
			if err := rows.Scan(&group, &member); err != nil {
				rows.Close()
				return err
			}
			if i, ok := byName[group]; ok {
				groups[i].Members = append(groups[i].Members, member)
			}
		}
		return closeRows(rows)
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *SQLStore) SharedDirectories(ctx context.Context) ([]SharedDirectory, error) {
	var dirs []SharedDirectory
	err := s.snapshot(ctx, "read shared directories", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT name, owner, group_name, mode FROM shared_directories ORDER BY name`)
		if err != nil {
			return err
		}
		for rows.Next() {
			var d SharedDirectory
			if err := rows.Scan(&d.Name, &d.Owner, &d.Group, &d.Mode); err != nil {
				rows.Close()
				return err
			}
			dirs = append(dirs, d)
		}
		return closeRows(rows)
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}
