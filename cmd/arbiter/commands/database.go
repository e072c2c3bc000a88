package commands

import (
	"database/sql"

	"github.com/oddsmith/arbiter/config"
	"github.com/oddsmith/arbiter/db"
	"github.com/oddsmith/arbiter/errors"
	"github.com/oddsmith/arbiter/logger"
)

// openDatabase opens and migrates the configured database. An explicit
// path overrides the configured one.
func openDatabase(path string) (*sql.DB, error) {
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}
		path = cfg.Database.Path
	}

	conn, err := db.Open(path, logger.Logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(conn, logger.Logger); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
