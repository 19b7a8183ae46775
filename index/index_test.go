package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genoparse/genoparse"
)

func fixtureSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.gen")
	require.NoError(t, os.WriteFile(path, []byte("fixture genotype data\n"), 0o644))
	return path
}

func fixtureScan(emit func(Record) error) error {
	records := []Record{
		{Name: "rs1", Chromosome: "1", Position: 100, Offset: 0},
		{Name: "rs2", Chromosome: "1", Position: 200, Offset: 40},
		{Name: "rs3", Chromosome: "2", Position: 150, Offset: 80},
		{Name: "rs2", Chromosome: "2", Position: 999, Offset: 120},
	}
	for _, r := range records {
		if err := emit(r); err != nil {
			return err
		}
	}
	return nil
}

func TestBuildAndOpen(t *testing.T) {
	src := fixtureSource(t)
	require.NoError(t, Build(src, ModeDefault, fixtureScan))
	require.True(t, Has(src))

	ix, err := Open(src, ModeDefault)
	require.NoError(t, err)
	defer ix.Close()

	n, err := ix.NVariants()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Duplicated names retain every offset, in file order.
	offsets, err := ix.OffsetsByName("rs2")
	require.NoError(t, err)
	assert.Equal(t, []int64{40, 120}, offsets)

	offsets, err = ix.OffsetsByName("rs999")
	require.NoError(t, err)
	assert.Empty(t, offsets)

	offsets, err = ix.OffsetsInRegion("1", 100, 200)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 40}, offsets)

	offsets, err = ix.OffsetsInRegion("chr2", 150, 150)
	require.NoError(t, err)
	assert.Equal(t, []int64{80}, offsets)
}

func TestBuildIsIdempotent(t *testing.T) {
	src := fixtureSource(t)
	require.NoError(t, Build(src, ModeDefault, fixtureScan))
	first, err := os.ReadFile(Path(src))
	require.NoError(t, err)

	require.NoError(t, Build(src, ModeDefault, fixtureScan))
	second, err := os.ReadFile(Path(src))
	require.NoError(t, err)

	assert.Equal(t, first, second, "re-indexing an unchanged source must reproduce the index byte for byte")
}

func TestOpenMissingIndex(t *testing.T) {
	src := fixtureSource(t)

	_, err := Open(src, ModeDefault)
	require.Error(t, err)
	var ire *genoparse.IndexRequiredError
	assert.ErrorAs(t, err, &ire)
}

func TestOpenStaleIndex(t *testing.T) {
	src := fixtureSource(t)
	require.NoError(t, Build(src, ModeDefault, fixtureScan))

	// Rewrite the source after indexing.
	require.NoError(t, os.WriteFile(src, []byte("entirely different content\n"), 0o644))
	// Some filesystems have coarse mtime resolution.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(src, future, future))

	_, err := Open(src, ModeDefault)
	require.Error(t, err)
	var sie *genoparse.StaleIndexError
	assert.ErrorAs(t, err, &sie)
}

func TestOpenModeMismatch(t *testing.T) {
	src := fixtureSource(t)
	require.NoError(t, Build(src, ModeLegacy, fixtureScan))

	_, err := Open(src, ModeDefault)
	require.Error(t, err)
	var sie *genoparse.StaleIndexError
	require.ErrorAs(t, err, &sie)

	ix, err := Open(src, ModeLegacy)
	require.NoError(t, err)
	ix.Close()
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeDefault, m)

	m, err = ParseMode("LEGACY")
	require.NoError(t, err)
	assert.Equal(t, ModeLegacy, m)

	_, err = ParseMode("bogus")
	assert.Error(t, err)
}
