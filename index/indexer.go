package index

import (
	"os"

	"github.com/carbocation/pfx"

	"github.com/genoparse/genoparse"
)

// Record is one indexable record of a source file: its lookup keys and the
// byte offset at which its native encoding starts.
type Record struct {
	Name       string
	Chromosome string
	Position   uint32
	Offset     int64
}

// ScanFunc performs the one-time linear pass over a source file, calling
// emit once per record in file order. Drivers provide a ScanFunc for their
// format; the indexer owns everything else.
type ScanFunc func(emit func(Record) error) error

// Build creates the index for sourcePath, replacing any existing one.
// Records are inserted in scan order inside a single transaction with fixed
// pragmas, so re-indexing an unchanged source yields a byte-identical index
// file. Records sharing a lookup key are all retained.
func Build(sourcePath string, mode Mode, scan ScanFunc) error {
	idxPath := Path(sourcePath)
	if err := os.Remove(idxPath); err != nil && !os.IsNotExist(err) {
		return pfx.Err(err)
	}

	fp, err := TakeFingerprint(sourcePath)
	if err != nil {
		return pfx.Err(err)
	}

	db, err := connect(idxPath)
	if err != nil {
		return pfx.Err(err)
	}
	defer db.Close()

	variantDDL := `CREATE TABLE Variant (
		name TEXT NOT NULL,
		chromosome TEXT NOT NULL,
		position INTEGER NOT NULL,
		file_start_position INTEGER NOT NULL,
		PRIMARY KEY (name, chromosome, position, file_start_position)
	)`
	if mode == ModeDefault {
		variantDDL += " WITHOUT ROWID"
	}

	ddl := []string{
		`CREATE TABLE Metadata (
			filename TEXT NOT NULL,
			file_size INTEGER NOT NULL,
			last_write_time INTEGER NOT NULL,
			first_1000_bytes BLOB NOT NULL,
			mode TEXT NOT NULL
		)`,
		variantDDL,
		`CREATE INDEX chrom_pos_idx ON Variant (chromosome, position)`,
	}
	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			return pfx.Err(err)
		}
	}

	tx, err := db.Beginx()
	if err != nil {
		return pfx.Err(err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO Metadata (filename, file_size, last_write_time, first_1000_bytes, mode) VALUES (?, ?, ?, ?, ?)",
		sourcePath, fp.FileSize, fp.LastWriteTime, fp.FirstThousandBytes, mode.String())
	if err != nil {
		return pfx.Err(err)
	}

	insert, err := tx.Preparex(
		"INSERT INTO Variant (name, chromosome, position, file_start_position) VALUES (?, ?, ?, ?)")
	if err != nil {
		return pfx.Err(err)
	}

	err = scan(func(rec Record) error {
		_, err := insert.Exec(rec.Name, genoparse.NormalizeChromosome(rec.Chromosome), rec.Position, rec.Offset)
		return err
	})
	if err != nil {
		return pfx.Err(err)
	}

	return pfx.Err(tx.Commit())
}
