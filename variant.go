package genoparse

import (
	"fmt"
	"strings"
)

// Allele is a reference or alternate allele sequence.
type Allele string

var complements = map[byte]byte{'A': 'T', 'T': 'A', 'C': 'G', 'G': 'C'}

// Complement returns the allele on the opposite strand. Symbols without a
// nucleotide complement (e.g. indel markers) are returned unchanged.
func (a Allele) Complement() Allele {
	out := make([]byte, len(a))
	for i := 0; i < len(a); i++ {
		c, ok := complements[a[i]]
		if !ok {
			return a
		}
		out[i] = c
	}
	return Allele(out)
}

// Variant is the identity of a genomic locus: chromosome, 1-based position,
// and the known alleles with the reference allele first. Name may be empty
// or "unknown"; it is never part of coordinate identity.
type Variant struct {
	Name       string
	Chromosome string
	Position   uint32
	Alleles    []Allele
}

// NewVariant builds a Variant with a normalized chromosome token and
// uppercased alleles. The reference allele comes first in alleles.
func NewVariant(name, chrom string, pos uint32, alleles []Allele) *Variant {
	v := &Variant{
		Name:       name,
		Chromosome: NormalizeChromosome(chrom),
		Position:   pos,
		Alleles:    make([]Allele, len(alleles)),
	}
	for i, a := range alleles {
		v.Alleles[i] = Allele(strings.ToUpper(string(a)))
	}
	return v
}

// Reference returns the reference allele, or "" when alleles are unknown.
func (v *Variant) Reference() Allele {
	if len(v.Alleles) == 0 {
		return ""
	}
	return v.Alleles[0]
}

// LocusEqual reports whether two variants describe the same coordinate,
// ignoring names and alleles.
func (v *Variant) LocusEqual(other *Variant) bool {
	return v.Chromosome == other.Chromosome && v.Position == other.Position
}

// SharesAlleles reports whether the two variants have at least one allele in
// common. Either side with no known alleles matches anything.
func (v *Variant) SharesAlleles(other *Variant) bool {
	if len(v.Alleles) == 0 || len(other.Alleles) == 0 {
		return true
	}
	for _, a := range v.Alleles {
		for _, b := range other.Alleles {
			if a == b {
				return true
			}
		}
	}
	return false
}

// AllelesAmbiguous reports whether the allele pair is its own strand
// complement (A/T or C/G), in which case a strand flip cannot be detected
// from the alleles alone.
func (v *Variant) AllelesAmbiguous() bool {
	if len(v.Alleles) != 2 {
		return false
	}
	return v.Alleles[0].Complement() == v.Alleles[1]
}

// ComplementaryStrand returns a copy of the variant with every allele
// complemented.
func (v *Variant) ComplementaryStrand() *Variant {
	alleles := make([]Allele, len(v.Alleles))
	for i, a := range v.Alleles {
		alleles[i] = a.Complement()
	}
	return &Variant{
		Name:       v.Name,
		Chromosome: v.Chromosome,
		Position:   v.Position,
		Alleles:    alleles,
	}
}

func (v *Variant) String() string {
	return fmt.Sprintf("chr%s:%d_%v", v.Chromosome, v.Position, v.Alleles)
}

// NormalizeChromosome takes a raw chromosome token and returns its standard
// string translation: uppercased, with any "chr" prefix and leading zeros
// stripped, and the numeric encodings used by PLINK and IMPUTE2 mapped back
// to X/Y/XY/MT.
func NormalizeChromosome(chrom string) string {
	chrom = strings.ToUpper(strings.TrimSpace(chrom))
	chrom = strings.TrimPrefix(chrom, "CHR")
	if trimmed := strings.TrimLeft(chrom, "0"); trimmed != "" {
		chrom = trimmed
	} else if chrom != "" {
		chrom = "0"
	}

	switch chrom {
	case "23":
		return "X"
	case "24":
		return "Y"
	case "25":
		return "XY"
	case "26":
		return "MT"
	}

	return chrom
}

// ChromosomeCode returns the numeric chromosome encoding used by PLINK and
// IMPUTE2 (X=23, Y=24, XY=25, MT=26, unknown=0).
func ChromosomeCode(chrom string) int {
	switch c := NormalizeChromosome(chrom); c {
	case "X":
		return 23
	case "Y":
		return 24
	case "XY":
		return 25
	case "MT":
		return 26
	default:
		n := 0
		for i := 0; i < len(c); i++ {
			if c[i] < '0' || c[i] > '9' {
				return 0
			}
			n = n*10 + int(c[i]-'0')
		}
		if n > 26 {
			return 0
		}
		return n
	}
}
