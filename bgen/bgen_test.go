package bgen

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/genoparse/genoparse"
	"github.com/genoparse/genoparse/index"
)

type testVariant struct {
	id, rsid, chrom string
	pos             uint32
	alleles         []string
	ploidies        []byte
	stored          []byte
}

// writeTestBGEN synthesizes a layout 2, uncompressed, two-sample file and
// returns its path plus the byte offset of each variant block.
func writeTestBGEN(t *testing.T, variants []testVariant) (string, []int64) {
	t.Helper()

	var buf bytes.Buffer
	u16 := func(v uint16) { binary.Write(&buf, binary.LittleEndian, v) }
	u32 := func(v uint32) { binary.Write(&buf, binary.LittleEndian, v) }
	str := func(s string) { u16(uint16(len(s))); buf.WriteString(s) }

	u32(20)                    // offset to the end of the header
	u32(20)                    // header length
	u32(uint32(len(variants))) // variant count
	u32(2)                     // sample count
	buf.WriteString(MagicNumber)
	u32(uint32(Layout2) << 2) // flags: uncompressed, layout 2, no sample IDs

	offsets := make([]int64, 0, len(variants))
	for _, v := range variants {
		offsets = append(offsets, int64(buf.Len()))

		str(v.id)
		str(v.rsid)
		str(v.chrom)
		u32(v.pos)
		u16(uint16(len(v.alleles)))
		for _, a := range v.alleles {
			u32(uint32(len(a)))
			buf.WriteString(a)
		}

		data := layout2Block(2, v.ploidies, 0, 8, v.stored)
		u32(uint32(len(data)))
		buf.Write(data)
	}

	path := filepath.Join(t.TempDir(), "test.bgen")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path, offsets
}

func fixtureVariants() []testVariant {
	return []testVariant{
		{
			id: "v1", rsid: "rs1", chrom: "01", pos: 100, alleles: []string{"A", "G"},
			// Sample 1 het with certainty, sample 2 missing.
			ploidies: []byte{2, 0x82},
			stored:   []byte{0, 255, 0, 0},
		},
		{
			id: "v2", rsid: "rs2", chrom: "02", pos: 200, alleles: []string{"C", "T"},
			// Sample 1 hom-ref, sample 2 hom-alt (implied final value).
			ploidies: []byte{2, 2},
			stored:   []byte{255, 0, 0, 0},
		},
	}
}

func TestOpenHeader(t *testing.T) {
	path, _ := writeTestBGEN(t, fixtureVariants())

	src, err := Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if src.b.NVariants != 2 || src.b.NSamples != 2 {
		t.Errorf("unexpected header: %+v", src.b)
	}
	if src.b.FlagLayout != Layout2 {
		t.Errorf("layout flag is %s, expected Layout2", src.b.FlagLayout)
	}
	if src.b.FlagCompression != CompressionDisabled {
		t.Errorf("compression flag is %s, expected disabled", src.b.FlagCompression)
	}

	// No embedded IDs and no sample file: stable placeholders.
	want := []string{"sample_1", "sample_2"}
	for i, id := range src.Samples().IDs() {
		if id != want[i] {
			t.Errorf("sample %d is %q, expected %q", i, id, want[i])
		}
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	path, _ := writeTestBGEN(t, fixtureVariants())
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw[offsetMagicNumber] = 'x'
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = Open(path, Options{})
	if err == nil {
		t.Fatal("expected an error for a corrupt magic number")
	}
	if _, ok := err.(*genoparse.FormatError); !ok {
		t.Errorf("got %T, expected FormatError", err)
	}
}

func TestReadSequential(t *testing.T) {
	path, _ := writeTestBGEN(t, fixtureVariants())

	src, err := Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	rdr := src.Reader()

	g := rdr.Read()
	if g == nil {
		t.Fatal(rdr.Err())
	}
	if g.Variant.Name != "rs1" {
		t.Errorf("name is %q, expected rs1", g.Variant.Name)
	}
	if g.Variant.Chromosome != "1" {
		t.Errorf("chromosome is %q, expected the zero-padding stripped", g.Variant.Chromosome)
	}
	if g.Reference != "A" || g.Coded != "G" {
		t.Errorf("alleles are %s/%s, expected A/G", g.Reference, g.Coded)
	}
	if g.Probs[0] != (genoparse.Prob{0, 1, 0}) {
		t.Errorf("sample 1 probabilities are %v", g.Probs[0])
	}
	if !g.Probs[1].Missing() {
		t.Error("sample 2 should be missing")
	}
	if d := g.Dosages(); math.Abs(d[0]-1) > 1e-12 {
		t.Errorf("sample 1 dosage is %g, expected 1", d[0])
	}

	g = rdr.Read()
	if g == nil {
		t.Fatal(rdr.Err())
	}
	if g.Variant.Name != "rs2" {
		t.Errorf("name is %q, expected rs2", g.Variant.Name)
	}
	if g.Probs[0] != (genoparse.Prob{1, 0, 0}) {
		t.Errorf("sample 1 probabilities are %v", g.Probs[0])
	}
	if g.Probs[1] != (genoparse.Prob{0, 0, 1}) {
		t.Errorf("sample 2 probabilities are %v", g.Probs[1])
	}

	if rdr.Read() != nil {
		t.Error("expected end of input after two variants")
	}
	if rdr.Err() != nil {
		t.Error(rdr.Err())
	}
}

func TestOxfordSampleFile(t *testing.T) {
	path, _ := writeTestBGEN(t, fixtureVariants())

	samplePath := filepath.Join(filepath.Dir(path), "test.sample")
	content := "ID_1 ID_2 missing\n0 0 0\nf1 s1 0\nf2 s2 0\n"
	if err := os.WriteFile(samplePath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := Open(path, Options{SamplePath: samplePath})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	ids := src.Samples().IDs()
	if ids[0] != "s1" || ids[1] != "s2" {
		t.Errorf("unexpected sample IDs: %v", ids)
	}
}

func TestLookupsRequireBGI(t *testing.T) {
	path, _ := writeTestBGEN(t, fixtureVariants())

	src, err := Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	_, err = src.VariantsByName("rs1")
	if _, ok := err.(*genoparse.IndexRequiredError); !ok {
		t.Errorf("got %T (%v), expected IndexRequiredError", err, err)
	}
}

// writeTestBGI lays down a minimal bgenix-shaped index next to the file.
func writeTestBGI(t *testing.T, bgenPath string, variants []testVariant, offsets []int64) {
	t.Helper()

	db, err := sqlx.Connect(index.WhichSQLiteDriver(), "file:"+bgenPath+".bgi")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE Variant (
		chromosome TEXT NOT NULL,
		position INTEGER NOT NULL,
		rsid TEXT NOT NULL,
		number_of_alleles INTEGER NOT NULL,
		allele1 TEXT NOT NULL,
		allele2 TEXT NOT NULL,
		file_start_position INTEGER NOT NULL,
		size_in_bytes INTEGER NOT NULL
	)`)
	if err != nil {
		t.Fatal(err)
	}

	for i, v := range variants {
		_, err = db.Exec(
			"INSERT INTO Variant VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			v.chrom, v.pos, v.rsid, len(v.alleles), v.alleles[0], v.alleles[1], offsets[i], 0)
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestBGILookups(t *testing.T) {
	variants := fixtureVariants()
	path, offsets := writeTestBGEN(t, variants)
	writeTestBGI(t, path, variants, offsets)

	src, err := Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	rows, err := src.VariantsByName("rs2")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, expected 1", len(rows))
	}
	if rows[0].Variant.Position != 200 {
		t.Errorf("position is %d, expected 200", rows[0].Variant.Position)
	}

	// The index stores the chromosome zero-padded; the query must match
	// either spelling.
	rows, err = src.VariantsInRegion("1", 50, 150)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Variant.Name != "rs1" {
		t.Fatalf("unexpected region result: %+v", rows)
	}

	rows, err = src.VariantsByName("rs999")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows, expected none", len(rows))
	}
}
