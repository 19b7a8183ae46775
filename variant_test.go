package genoparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeChromosome(t *testing.T) {
	cases := map[string]string{
		"1":     "1",
		"chr1":  "1",
		"CHR22": "22",
		"01":    "1",
		"007":   "7",
		"23":    "X",
		"24":    "Y",
		"25":    "XY",
		"26":    "MT",
		"chrX":  "X",
		"x":     "X",
		"0":     "0",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeChromosome(in), "input %q", in)
	}
}

func TestChromosomeCode(t *testing.T) {
	assert.Equal(t, 1, ChromosomeCode("chr1"))
	assert.Equal(t, 23, ChromosomeCode("X"))
	assert.Equal(t, 26, ChromosomeCode("MT"))
	assert.Equal(t, 0, ChromosomeCode("scaffold_12"))
	assert.Equal(t, 0, ChromosomeCode("99"))
}

func TestAlleleComplement(t *testing.T) {
	assert.Equal(t, Allele("T"), Allele("A").Complement())
	assert.Equal(t, Allele("TA"), Allele("AT").Complement())
	assert.Equal(t, Allele("GT"), Allele("AC").Complement())

	// Indel markers and other non-nucleotide symbols pass through.
	assert.Equal(t, Allele("I"), Allele("I").Complement())
	assert.Equal(t, Allele("-"), Allele("-").Complement())
}

func TestAllelesAmbiguous(t *testing.T) {
	assert.True(t, NewVariant("", "1", 1, []Allele{"A", "T"}).AllelesAmbiguous())
	assert.True(t, NewVariant("", "1", 1, []Allele{"C", "G"}).AllelesAmbiguous())
	assert.False(t, NewVariant("", "1", 1, []Allele{"A", "C"}).AllelesAmbiguous())
	assert.False(t, NewVariant("", "1", 1, []Allele{"A"}).AllelesAmbiguous())
}

func TestSharesAlleles(t *testing.T) {
	ag := NewVariant("", "1", 100, []Allele{"A", "G"})
	ga := NewVariant("", "1", 100, []Allele{"G", "A"})
	ct := NewVariant("", "1", 100, []Allele{"C", "T"})
	bare := NewVariant("", "1", 100, nil)

	assert.True(t, ag.SharesAlleles(ga))
	assert.False(t, ag.SharesAlleles(ct))

	// A side with unknown alleles matches anything.
	assert.True(t, ag.SharesAlleles(bare))
	assert.True(t, bare.SharesAlleles(ct))
}

func TestComplementaryStrand(t *testing.T) {
	v := NewVariant("rs1", "chr2", 500, []Allele{"A", "G"})
	c := v.ComplementaryStrand()

	assert.Equal(t, "rs1", c.Name)
	assert.Equal(t, "2", c.Chromosome)
	assert.Equal(t, []Allele{"T", "C"}, c.Alleles)
	// Original untouched.
	assert.Equal(t, []Allele{"A", "G"}, v.Alleles)
}

func TestNewVariantUppercasesAlleles(t *testing.T) {
	v := NewVariant("rs1", "1", 1, []Allele{"a", "g"})
	assert.Equal(t, []Allele{"A", "G"}, v.Alleles)
	assert.Equal(t, Allele("A"), v.Reference())
}
