// Package index builds and loads the persisted variant indexes that give
// text-based genotype containers (IMPUTE2, VCF) sub-linear random access.
// The index is a small SQLite database stored next to the source file: a
// Variant table mapping (name, chromosome, position) to byte offsets, and a
// Metadata table carrying a fingerprint of the source so a stale index is
// rejected instead of mis-seeking.
package index

import (
	"fmt"
	"os"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/jmoiron/sqlx"

	"github.com/genoparse/genoparse"
)

// Mode selects the on-disk row-numbering convention. The two conventions
// must never be intermixed within one index file; the mode is embedded in
// the Metadata table and checked on open.
type Mode int

const (
	// ModeDefault stores the Variant table WITHOUT ROWID.
	ModeDefault Mode = iota

	// ModeLegacy keeps the implicit rowid, for compatibility with SQLite
	// builds prior to 3.8.2.
	ModeLegacy
)

func (m Mode) String() string {
	switch m {
	case ModeLegacy:
		return "legacy"
	default:
		return "default"
	}
}

// ParseMode resolves a mode flag as supplied on the command line.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return ModeDefault, nil
	case "legacy":
		return ModeLegacy, nil
	}
	return 0, fmt.Errorf("unknown index mode %q (valid: default, legacy)", s)
}

// Path returns the index filename for a source file.
func Path(sourcePath string) string {
	return sourcePath + ".idx"
}

// Has reports whether an index file exists for the source.
func Has(sourcePath string) bool {
	_, err := os.Stat(Path(sourcePath))
	return err == nil
}

// Metadata mirrors the single row of the Metadata table.
type Metadata struct {
	Filename           string `db:"filename"`
	FileSize           int64  `db:"file_size"`
	LastWriteTime      int64  `db:"last_write_time"`
	FirstThousandBytes []byte `db:"first_1000_bytes"`
	Mode               string `db:"mode"`
}

// Index is a loaded, read-only variant index.
type Index struct {
	DB   *sqlx.DB
	Meta *Metadata

	path string
}

// Open loads the index for sourcePath and validates it: the stored mode
// must equal mode, and the stored fingerprint must still match the source
// file. Any mismatch fails with StaleIndexError. A missing index file fails
// with IndexRequiredError.
func Open(sourcePath string, mode Mode) (*Index, error) {
	idxPath := Path(sourcePath)
	if _, err := os.Stat(idxPath); err != nil {
		return nil, &genoparse.IndexRequiredError{Path: sourcePath, Op: "random access"}
	}

	db, err := connect(idxPath)
	if err != nil {
		return nil, pfx.Err(err)
	}

	ix := &Index{DB: db, Meta: &Metadata{}, path: idxPath}
	if err := db.Get(ix.Meta, "SELECT * FROM Metadata LIMIT 1"); err != nil {
		db.Close()
		return nil, &genoparse.StaleIndexError{IndexPath: idxPath, Reason: "missing metadata table"}
	}

	if ix.Meta.Mode != mode.String() {
		db.Close()
		return nil, &genoparse.StaleIndexError{
			IndexPath: idxPath,
			Reason:    fmt.Sprintf("built in %s mode, opened expecting %s mode", ix.Meta.Mode, mode),
		}
	}

	fp, err := TakeFingerprint(sourcePath)
	if err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}
	if reason, ok := fp.Matches(ix.Meta); !ok {
		db.Close()
		return nil, &genoparse.StaleIndexError{IndexPath: idxPath, Reason: reason}
	}

	return ix, nil
}

func (ix *Index) Close() error {
	return ix.DB.Close()
}

// NVariants returns the number of indexed records.
func (ix *Index) NVariants() (int, error) {
	var n int
	if err := ix.DB.Get(&n, "SELECT COUNT(*) FROM Variant"); err != nil {
		return 0, pfx.Err(err)
	}
	return n, nil
}

// OffsetsByName returns the byte offsets of every record with the given
// marker name, in file order. Duplicated names retain all offsets.
func (ix *Index) OffsetsByName(name string) ([]int64, error) {
	var offsets []int64
	err := ix.DB.Select(&offsets,
		"SELECT file_start_position FROM Variant WHERE name = ? ORDER BY file_start_position ASC",
		name)
	if err != nil {
		return nil, pfx.Err(err)
	}
	return offsets, nil
}

// OffsetsInRegion returns the byte offsets of every record on chrom with
// start <= position <= end, in file order.
func (ix *Index) OffsetsInRegion(chrom string, start, end uint32) ([]int64, error) {
	var offsets []int64
	err := ix.DB.Select(&offsets,
		"SELECT file_start_position FROM Variant WHERE chromosome = ? AND position BETWEEN ? AND ? ORDER BY file_start_position ASC",
		genoparse.NormalizeChromosome(chrom), start, end)
	if err != nil {
		return nil, pfx.Err(err)
	}
	return offsets, nil
}
