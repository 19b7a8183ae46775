package genoparse

import "math"

// FlipAlleles swaps the reference and coded alleles of a row in place,
// recoding the genotype values accordingly (dosage d becomes 2-d).
func FlipAlleles(g *Genotypes) *Genotypes {
	g.Reference, g.Coded = g.Coded, g.Reference
	for i, c := range g.Calls {
		if c.Missing() {
			continue
		}
		g.Calls[i] = Call{1 - c.A1, 1 - c.A2}
	}
	for i, p := range g.Probs {
		g.Probs[i] = Prob{p[2], p[1], p[0]}
	}
	return g
}

// MAF computes the minor allele frequency of a row from its dosages and
// reports whether the minor allele is currently the coded allele. Rows with
// no called samples return NaN.
func MAF(g *Genotypes) (maf float64, minorCoded bool) {
	var sum float64
	var n int
	for _, d := range g.Dosages() {
		if math.IsNaN(d) {
			continue
		}
		sum += d
		n++
	}
	if n == 0 {
		return math.NaN(), true
	}

	maf = sum / float64(2*n)
	if maf > 0.5 {
		return 1 - maf, false
	}
	return maf, true
}

// CodeMinor recodes the row so that the coded allele is the minor allele,
// i.e. the genotype value counts minor alleles.
func CodeMinor(g *Genotypes) *Genotypes {
	if _, minorCoded := MAF(g); !minorCoded {
		return FlipAlleles(g)
	}
	return g
}
