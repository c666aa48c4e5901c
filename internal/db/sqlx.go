package db

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"motorpool/paddock/internal/config"
)

var DB *sqlx.DB

// InitSqlx opens a second, read-side connection for the raw aggregate
// queries. Postgres gets a short retry loop so startup tolerates the
// database container coming up alongside us.
func InitSqlx(cfg *config.Config) (*sqlx.DB, error) {
	var (
		sdb *sqlx.DB
		err error
	)

	switch cfg.Database.Driver {
	case "postgres":
		for i := 0; i < 10; i++ {
			sdb, err = sqlx.Connect("postgres", cfg.Database.DSN)
			if err == nil {
				break
			}
			time.Sleep(500 * time.Millisecond)
		}
	default:
		sdb, err = sqlx.Connect("sqlite3", cfg.DatabasePath())
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s (sqlx): %w", cfg.Database.Driver, err)
	}

	DB = sdb
	return sdb, nil
}
