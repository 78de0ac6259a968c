package db

import (
	"database/sql"
	"log"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/marangon/faultlog/config"
)

// SqliteDB wraps the single local database file all reports persist into.
type SqliteDB struct {
	DB *sql.DB
}

func GetDB(c *config.Config) *SqliteDB {
	s := &SqliteDB{}
	s.Init(c)
	return s
}

func (s *SqliteDB) Init(c *config.Config) {
	conn, err := sql.Open("sqlite", c.DataPath)
	if err != nil {
		log.Fatalf("unable to open database %s: %v", c.DataPath, err)
	}
	s.DB = conn

	if err := migrate(conn); err != nil {
		log.Fatalf("unable to run migrations: %v", err)
	}
}

func (s *SqliteDB) Close() error {
	return s.DB.Close()
}

func migrate(db *sql.DB) error {
	query := `CREATE TABLE IF NOT EXISTS blobs (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at TEXT NOT NULL
	)`
	if _, err := db.Exec(query); err != nil {
		return errors.Wrap(err, "migrations error")
	}
	return nil
}
