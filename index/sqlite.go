package index

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// WhichSQLiteDriver reports which SQLite driver was compiled in.
func WhichSQLiteDriver() string {
	return sqliteDriver
}

func connect(path string) (*sqlx.DB, error) {
	// URI filenames have to begin with 'file:'; see
	// https://www.sqlite.org/c3ref/open.html . It seems that sqlite3
	// permitted URI filenames without the file: prefix, but that is not
	// standard.
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}

	db, err := sqlx.Connect(sqliteDriver, path)
	if err != nil {
		return nil, err
	}

	// No rollback journal and no WAL: index files are written once and
	// then read-only, and the fixed journal mode keeps the produced file
	// reproducible.
	_, err = db.Exec(`
	PRAGMA journal_mode = OFF;
	PRAGMA synchronous = OFF;
	PRAGMA auto_vacuum = NONE;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to set pragmas: %w", err)
	}

	return db, nil
}
