package impute2

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genoparse/genoparse"
	"github.com/genoparse/genoparse/index"
)

const fixtureGen = "1 rs1 100 A G 0.9 0.05 0.05 0 0 0 0.1 0.2 0.7\n" +
	"1 rs2 200 C T 1 0 0 0 1 0 0 0 1\n" +
	"2 rs3 150 A C 0.98 0.01 0.01 0.98 0.01 0.01 0.98 0.01 0.01\n"

const fixtureSample = "ID_1 ID_2 missing\n" +
	"0 0 0\n" +
	"f1 s1 0\n" +
	"f2 s2 0\n" +
	"f3 s3 0\n"

func writeFixture(t *testing.T, gzipped bool) (genPath, samplePath string) {
	t.Helper()
	dir := t.TempDir()

	samplePath = filepath.Join(dir, "study.sample")
	require.NoError(t, os.WriteFile(samplePath, []byte(fixtureSample), 0o644))

	if !gzipped {
		genPath = filepath.Join(dir, "study.gen")
		require.NoError(t, os.WriteFile(genPath, []byte(fixtureGen), 0o644))
		return genPath, samplePath
	}

	genPath = filepath.Join(dir, "study.gen.gz")
	f, err := os.Create(genPath)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(fixtureGen))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return genPath, samplePath
}

func TestOpenAndRead(t *testing.T) {
	genPath, samplePath := writeFixture(t, false)

	src, err := Open(genPath, samplePath, nil)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, []string{"s1", "s2", "s3"}, src.Samples().IDs())
	assert.Equal(t, -1, src.NVariants(), "unindexed source cannot know its variant count")

	rdr := src.Reader()

	g := rdr.Read()
	require.NotNil(t, g)
	assert.Equal(t, "rs1", g.Variant.Name)
	assert.Equal(t, "1", g.Variant.Chromosome)
	assert.Equal(t, uint32(100), g.Variant.Position)
	assert.Equal(t, genoparse.Allele("A"), g.Reference)
	assert.Equal(t, genoparse.Allele("G"), g.Coded)

	require.Len(t, g.Probs, 3)
	assert.Equal(t, genoparse.Prob{0.9, 0.05, 0.05}, g.Probs[0])
	assert.True(t, g.Probs[1].Missing(), "an all-zero triplet is an explicit missing genotype")
	assert.Equal(t, genoparse.Prob{0.1, 0.2, 0.7}, g.Probs[2])

	// Default thresholding: best probability 0.9 passes, 0.7 does not.
	d := g.Dosages()
	assert.InDelta(t, 0.15, d[0], 1e-9)
	assert.True(t, math.IsNaN(d[1]))
	assert.True(t, math.IsNaN(d[2]))

	require.NotNil(t, rdr.Read())
	require.NotNil(t, rdr.Read())
	assert.Nil(t, rdr.Read())
	assert.NoError(t, rdr.Err())
}

func TestThresholdDisabled(t *testing.T) {
	genPath, samplePath := writeFixture(t, false)

	src, err := Open(genPath, samplePath, &Options{ProbThreshold: -1})
	require.NoError(t, err)
	defer src.Close()

	g := src.Reader().Read()
	require.NotNil(t, g)
	d := g.Dosages()
	assert.InDelta(t, 1.6, d[2], 1e-9)
}

func TestBadProbabilitySum(t *testing.T) {
	dir := t.TempDir()
	genPath := filepath.Join(dir, "bad.gen")
	samplePath := filepath.Join(dir, "bad.sample")
	require.NoError(t, os.WriteFile(genPath, []byte("1 rs1 100 A G 0.2 0.2 0.1\n"), 0o644))
	require.NoError(t, os.WriteFile(samplePath, []byte("ID_1 ID_2 missing\n0 0 0\nf1 s1 0\n"), 0o644))

	src, err := Open(genPath, samplePath, nil)
	require.NoError(t, err)
	defer src.Close()

	rdr := src.Reader()
	assert.Nil(t, rdr.Read())
	var fe *genoparse.FormatError
	require.ErrorAs(t, rdr.Err(), &fe)
	assert.Equal(t, 1, fe.Record)
}

func TestLookupsRequireIndex(t *testing.T) {
	genPath, samplePath := writeFixture(t, false)

	src, err := Open(genPath, samplePath, nil)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.VariantsByName("rs1")
	var ire *genoparse.IndexRequiredError
	require.ErrorAs(t, err, &ire)

	_, err = src.VariantsInRegion("1", 100, 200)
	require.ErrorAs(t, err, &ire)
}

func TestIndexedLookups(t *testing.T) {
	for _, gzipped := range []bool{false, true} {
		genPath, samplePath := writeFixture(t, gzipped)
		require.NoError(t, index.Build(genPath, index.ModeDefault, IndexScan(genPath)))

		src, err := Open(genPath, samplePath, nil)
		require.NoError(t, err)

		assert.Equal(t, 3, src.NVariants())

		rows, err := src.VariantsByName("rs2")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, uint32(200), rows[0].Variant.Position)
		assert.Equal(t, genoparse.Prob{0, 1, 0}, rows[0].Probs[1])

		rows, err = src.VariantsInRegion("1", 50, 250)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "rs1", rows[0].Variant.Name)
		assert.Equal(t, "rs2", rows[1].Variant.Name)

		rows, err = src.VariantsByName("rs999")
		require.NoError(t, err)
		assert.Empty(t, rows)

		src.Close()
	}
}

func TestStaleIndexRejected(t *testing.T) {
	genPath, samplePath := writeFixture(t, false)
	require.NoError(t, index.Build(genPath, index.ModeDefault, IndexScan(genPath)))

	grown := fixtureGen + "2 rs4 300 G T 1 0 0 1 0 0 1 0 0\n"
	require.NoError(t, os.WriteFile(genPath, []byte(grown), 0o644))

	_, err := Open(genPath, samplePath, nil)
	var sie *genoparse.StaleIndexError
	require.ErrorAs(t, err, &sie)
}

func TestWriter(t *testing.T) {
	var sb strings.Builder
	samples, err := genoparse.NewSampleSet([]string{"s1", "s2"})
	require.NoError(t, err)

	w := NewWriter(&sb, samples)
	err = w.WriteVariant(&genoparse.Genotypes{
		Variant:   genoparse.NewVariant("rs1", "chrX", 500, []genoparse.Allele{"A", "G"}),
		Reference: "A",
		Coded:     "G",
		Probs:     []genoparse.Prob{{0.9, 0.05, 0.05}, genoparse.MissingProb},
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "23 rs1 500 A G 0.9 0.05 0.05 0 0 0\n", sb.String())
}

func TestWriterFromHardCalls(t *testing.T) {
	var sb strings.Builder
	samples, err := genoparse.NewSampleSet([]string{"s1"})
	require.NoError(t, err)

	w := NewWriter(&sb, samples)
	err = w.WriteVariant(&genoparse.Genotypes{
		Variant:   genoparse.NewVariant("", "1", 10, []genoparse.Allele{"C", "T"}),
		Reference: "C",
		Coded:     "T",
		Calls:     []genoparse.Call{{A1: 0, A2: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "1 . 10 C T 0 1 0\n", sb.String())
}

func TestWriterRoundTrip(t *testing.T) {
	genPath, samplePath := writeFixture(t, false)
	src, err := Open(genPath, samplePath, nil)
	require.NoError(t, err)
	defer src.Close()

	outPath := filepath.Join(t.TempDir(), "out.gen")
	w, err := Create(outPath, src.Samples())
	require.NoError(t, err)

	rdr := src.Reader()
	for g := rdr.Read(); g != nil; g = rdr.Read() {
		require.NoError(t, w.WriteVariant(g))
	}
	require.NoError(t, rdr.Err())
	require.NoError(t, w.Close())

	back, err := Open(outPath, samplePath, nil)
	require.NoError(t, err)
	defer back.Close()

	orig := src.Reader()
	copied := back.Reader()
	for g := orig.Read(); g != nil; g = orig.Read() {
		h := copied.Read()
		require.NotNil(t, h)
		assert.Equal(t, g.Variant.Name, h.Variant.Name)
		require.Equal(t, len(g.Probs), len(h.Probs))
		for i := range g.Probs {
			if g.Probs[i].Missing() {
				assert.True(t, h.Probs[i].Missing())
				continue
			}
			assert.Equal(t, g.Probs[i], h.Probs[i])
		}
	}
	assert.Nil(t, copied.Read())
}
