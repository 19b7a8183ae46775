package plink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genoparse/genoparse"
)

// writeFixture lays down a 3-sample, 2-marker file-group and returns its
// prefix.
func writeFixture(t *testing.T) string {
	t.Helper()
	prefix := filepath.Join(t.TempDir(), "study")

	fam := "f1 s1 0 0 1 -9\nf2 s2 0 0 2 -9\nf3 s3 0 0 1 -9\n"
	require.NoError(t, os.WriteFile(prefix+".fam", []byte(fam), 0o644))

	bim := "1\trs1\t0\t100\tA\tG\n1\trs2\t0\t200\tC\tT\n"
	require.NoError(t, os.WriteFile(prefix+".bim", []byte(bim), 0o644))

	// rs1: s1 hom-coded, s2 het, s3 hom-ref.
	// rs2: s1 missing, s2 hom-ref, s3 het.
	bed := []byte{
		bedMagic1, bedMagic2, bedSNPMajor,
		0b00111000, // rs1: codes 0, 2, 3 packed low bits first
		0b00101101, // rs2: codes 1, 3, 2
	}
	require.NoError(t, os.WriteFile(prefix+".bed", bed, 0o644))

	return prefix
}

func TestOpenAndRead(t *testing.T) {
	src, err := Open(writeFixture(t))
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, []string{"s1", "s2", "s3"}, src.Samples().IDs())
	assert.Equal(t, 2, src.NVariants())
	assert.Equal(t, genoparse.OrientationAsStored, src.Orientation())

	rdr := src.Reader()

	g := rdr.Read()
	require.NotNil(t, g)
	assert.Equal(t, "rs1", g.Variant.Name)
	assert.Equal(t, "1", g.Variant.Chromosome)
	assert.Equal(t, uint32(100), g.Variant.Position)
	assert.Equal(t, genoparse.Allele("G"), g.Reference)
	assert.Equal(t, genoparse.Allele("A"), g.Coded)
	assert.Equal(t, []genoparse.Call{{A1: 1, A2: 1}, {A1: 0, A2: 1}, {A1: 0, A2: 0}}, g.Calls)

	g = rdr.Read()
	require.NotNil(t, g)
	assert.Equal(t, "rs2", g.Variant.Name)
	assert.Equal(t, []genoparse.Call{genoparse.MissingCall, {A1: 0, A2: 0}, {A1: 0, A2: 1}}, g.Calls)

	assert.Nil(t, rdr.Read())
	assert.NoError(t, rdr.Err())
}

func TestRandomAccessMatchesSequential(t *testing.T) {
	src, err := Open(writeFixture(t))
	require.NoError(t, err)
	defer src.Close()

	rows, err := src.VariantsByName("rs2")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rdr := src.Reader()
	rdr.Read()
	want := rdr.Read()
	require.NotNil(t, want)
	assert.Equal(t, want.Calls, rows[0].Calls)

	rows, err = src.VariantsByName("absent")
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = src.VariantsInRegion("chr1", 150, 250)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "rs2", rows[0].Variant.Name)
}

func TestOpenRejectsBadMagic(t *testing.T) {
	prefix := writeFixture(t)
	bed, err := os.ReadFile(prefix + ".bed")
	require.NoError(t, err)
	bed[0] = 0xff
	require.NoError(t, os.WriteFile(prefix+".bed", bed, 0o644))

	_, err = Open(prefix)
	require.Error(t, err)
	var fe *genoparse.FormatError
	assert.ErrorAs(t, err, &fe)
}

func TestOpenRejectsTruncatedBed(t *testing.T) {
	prefix := writeFixture(t)
	bed, err := os.ReadFile(prefix + ".bed")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(prefix+".bed", bed[:len(bed)-1], 0o644))

	_, err = Open(prefix)
	assert.Error(t, err)
}

func TestDuplicateMarkerRenaming(t *testing.T) {
	prefix := writeFixture(t)
	bim := "1\trs1\t0\t100\tA\tG\n1\trs1\t0\t100\tC\tT\n"
	require.NoError(t, os.WriteFile(prefix+".bim", []byte(bim), 0o644))

	src, err := Open(prefix)
	require.NoError(t, err)
	defer src.Close()

	rows, err := src.VariantsByName("rs1:dup2")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Multiallelic, "same locus twice marks both rows multi-allelic")
}

func TestWriterRoundTrip(t *testing.T) {
	src, err := Open(writeFixture(t))
	require.NoError(t, err)
	defer src.Close()

	outPrefix := filepath.Join(t.TempDir(), "out")
	w, err := NewWriter(outPrefix, src.Samples())
	require.NoError(t, err)

	rdr := src.Reader()
	for g := rdr.Read(); g != nil; g = rdr.Read() {
		require.NoError(t, w.WriteVariant(g))
	}
	require.NoError(t, rdr.Err())
	require.NoError(t, w.Close())

	back, err := Open(outPrefix)
	require.NoError(t, err)
	defer back.Close()

	assert.Equal(t, src.Samples().IDs(), back.Samples().IDs())
	require.Equal(t, 2, back.NVariants())

	orig := src.Reader()
	copied := back.Reader()
	for g := orig.Read(); g != nil; g = orig.Read() {
		h := copied.Read()
		require.NotNil(t, h)
		assert.Equal(t, g.Calls, h.Calls)
		assert.Equal(t, g.Reference, h.Reference)
		assert.Equal(t, g.Coded, h.Coded)
		assert.Equal(t, g.Variant.Name, h.Variant.Name)
	}
}
