package bgen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/genoparse/genoparse"
	"github.com/genoparse/genoparse/index"
)

// BGIIndex wraps the SQLite .bgi file that the external bgenix tool writes
// alongside a BGEN file.
type BGIIndex struct {
	DB       *sqlx.DB
	Metadata *BGIMetadata

	path string
}

func (b *BGIIndex) Close() error {
	return b.DB.Close()
}

// OpenBGI opens the .bgi at path. If the index carries a Metadata row, its
// fingerprint is checked against the BGEN file at sourcePath, and a
// mismatch is reported as a StaleIndexError.
func OpenBGI(path, sourcePath string) (*BGIIndex, error) {
	bgi := &BGIIndex{
		Metadata: &BGIMetadata{},
		path:     path,
	}

	// URI filenames have to begin with 'file:'; see
	// https://www.sqlite.org/c3ref/open.html . It seems that sqlite3 permitted
	// URI filenames without the file: prefix, but that is not standard.
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}

	db, err := sqlx.Connect(index.WhichSQLiteDriver(), path)
	if err != nil {
		return nil, err
	}
	bgi.DB = db

	// Not all index files have metadata; ignore any error
	_ = bgi.DB.Get(bgi.Metadata, "SELECT * FROM Metadata LIMIT 1")

	if bgi.Metadata.FileSize > 0 {
		if err := bgi.checkFingerprint(sourcePath); err != nil {
			db.Close()
			return nil, err
		}
	}

	return bgi, nil
}

func (b *BGIIndex) checkFingerprint(sourcePath string) error {
	fp, err := index.TakeFingerprint(sourcePath)
	if err != nil {
		return err
	}

	if fp.FileSize != int64(b.Metadata.FileSize) {
		return &genoparse.StaleIndexError{
			IndexPath: b.path,
			Reason:    fmt.Sprintf("file size changed from %d to %d bytes", b.Metadata.FileSize, fp.FileSize),
		}
	}
	if !bytes.Equal(fp.FirstThousandBytes, b.Metadata.FirstThousandBytes) {
		return &genoparse.StaleIndexError{
			IndexPath: b.path,
			Reason:    "leading bytes changed since the index was built",
		}
	}

	return nil
}

func (b *BGIIndex) NVariants() (int, error) {
	var n int
	if err := b.DB.Get(&n, "SELECT COUNT(*) FROM Variant"); err != nil {
		return 0, err
	}
	return n, nil
}

// OffsetsByName returns the byte offsets of every variant whose rsid
// matches name, in storage order.
func (b *BGIIndex) OffsetsByName(name string) ([]int64, error) {
	var offsets []int64
	err := b.DB.Select(&offsets,
		"SELECT file_start_position FROM Variant WHERE rsid = ? ORDER BY file_start_position", name)
	return offsets, err
}

// OffsetsInRegion returns the byte offsets of every variant within the
// inclusive position span on one chromosome, in storage order. bgenix
// sometimes records chromosomes zero-padded to two characters, so both
// spellings are tried.
func (b *BGIIndex) OffsetsInRegion(chrom string, start, end uint32) ([]int64, error) {
	padded := chrom
	if len(chrom) == 1 {
		padded = "0" + chrom
	}

	var offsets []int64
	err := b.DB.Select(&offsets,
		`SELECT file_start_position FROM Variant
		 WHERE (chromosome = ? OR chromosome = ?) AND position >= ? AND position <= ?
		 ORDER BY file_start_position`,
		chrom, padded, start, end)
	return offsets, err
}

// VariantIndex conforms to the data found in the rows of the SQLite table
// "Variant" from BGEN Index (.bgi) files, and can be easily parsed with sqlx.
type VariantIndex struct {
	Chromosome        string
	Position          uint32
	RSID              string `db:"rsid"`
	NAlleles          uint16 `db:"number_of_alleles"`
	Allele1           string
	Allele2           string
	FileStartPosition int64 `db:"file_start_position"`
	SizeInBytes       int64 `db:"size_in_bytes"`
}

// BGIMetadata conforms to the data found in the rows of the SQLite table
// "Metadata" from more recent versions of BGEN.
type BGIMetadata struct {
	Filename           string
	FileSize           uint   `db:"file_size"`
	LastWriteTime      Time   `db:"last_write_time"`
	FirstThousandBytes []byte `db:"first_1000_bytes"`
	IndexCreationTime  Time   `db:"index_creation_time"`
}
