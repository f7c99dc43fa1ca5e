package datastore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// openPostgres does not contact the server. An unreachable master surfaces
// as an error from the first query of a pass, like any other I/O failure.
func openPostgres(dsn string, timeout time.Duration) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &SQLStore{
		db:      db,
		driver:  "postgres",
		timeout: timeout,
		txOpts:  &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
	}, nil
}
