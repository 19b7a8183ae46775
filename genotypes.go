package genoparse

import (
	"fmt"
	"math"
)

// MissingAllele is the reserved allele index marking a missing hard call.
const MissingAllele int8 = -1

// Call is a hard genotype call for one sample: a pair of allele indices
// relative to the (Reference, Coded) pair of its Genotypes row. The pair is
// unordered unless the row is phased.
type Call struct {
	A1, A2 int8
}

// MissingCall is the reserved sentinel for an absent hard call.
var MissingCall = Call{MissingAllele, MissingAllele}

// Missing reports whether the call carries no genotype.
func (c Call) Missing() bool {
	return c.A1 == MissingAllele || c.A2 == MissingAllele
}

// CodedCount returns the number of coded alleles in the call (the hard-call
// dosage), or NaN when missing.
func (c Call) CodedCount() float64 {
	if c.Missing() {
		return math.NaN()
	}
	return float64(c.A1) + float64(c.A2)
}

// Prob is a genotype probability triplet for one diploid sample:
// P(ref/ref), P(ref/coded), P(coded/coded).
type Prob [3]float64

// MissingProb marks a sample whose probabilities are explicitly absent.
var MissingProb = Prob{math.NaN(), math.NaN(), math.NaN()}

// Missing reports whether the triplet is the explicit-missing sentinel.
func (p Prob) Missing() bool {
	return math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsNaN(p[2])
}

// Dosage returns the expected coded-allele count, or NaN when missing.
func (p Prob) Dosage() float64 {
	if p.Missing() {
		return math.NaN()
	}
	return p[1] + 2*p[2]
}

// HardCall collapses the triplet to a discrete call by argmax. Ties resolve
// to the lowest dosage state. Missing triplets collapse to MissingCall.
func (p Prob) HardCall() Call {
	if p.Missing() {
		return MissingCall
	}
	best := 0
	for i := 1; i < 3; i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	switch best {
	case 0:
		return Call{0, 0}
	case 1:
		return Call{0, 1}
	default:
		return Call{1, 1}
	}
}

// CheckProb validates one triplet against ProbTolerance. record is the
// 1-based ordinal of the row the triplet came from, used to build the
// FormatError. Missing triplets are valid.
func CheckProb(path string, record int, p Prob) error {
	if p.Missing() {
		return nil
	}
	sum := p[0] + p[1] + p[2]
	if math.Abs(sum-1) > ProbTolerance {
		return &FormatError{
			Path:   path,
			Record: record,
			Msg:    fmt.Sprintf("probability triplet sums to %g, not 1 within tolerance %g", sum, ProbTolerance),
		}
	}
	return nil
}

// Genotypes holds one biallelic row: a variant plus the per-sample genotype
// values, ordered 1:1 with the SampleSet of the Source it came from. The
// Reference allele codes 0 and the Coded allele codes 1. A multi-allelic
// variant is decomposed into one row per alternate allele, each flagged
// Multiallelic.
//
// Exactly one of Calls or Probs is the native representation; the other is
// nil. The derived views below translate between the two, and report when
// the translation is lossy.
type Genotypes struct {
	Variant   *Variant
	Reference Allele
	Coded     Allele

	Calls []Call
	Probs []Prob

	Phased       bool
	Multiallelic bool

	// Threshold is the per-driver probability threshold applied when
	// deriving dosages: a sample whose best genotype probability is below
	// it becomes missing. Zero disables thresholding.
	Threshold float64
}

// Len returns the number of samples in the row.
func (g *Genotypes) Len() int {
	if g.Calls != nil {
		return len(g.Calls)
	}
	return len(g.Probs)
}

// HardCalls returns the discrete genotype view. derived is true when the
// native representation was probabilistic and the calls were obtained by
// argmax, which is lossy.
func (g *Genotypes) HardCalls() (calls []Call, derived bool) {
	if g.Calls != nil {
		return g.Calls, false
	}
	calls = make([]Call, len(g.Probs))
	for i, p := range g.Probs {
		calls[i] = p.HardCall()
	}
	return calls, true
}

// Probabilities returns the probability view. derived is true when the
// native representation was hard calls, widened to degenerate triplets.
func (g *Genotypes) Probabilities() (probs []Prob, derived bool) {
	if g.Probs != nil {
		return g.Probs, false
	}
	probs = make([]Prob, len(g.Calls))
	for i, c := range g.Calls {
		if c.Missing() {
			probs[i] = MissingProb
			continue
		}
		probs[i][int(c.A1)+int(c.A2)] = 1
	}
	return probs, true
}

// Dosages returns the per-sample coded-allele dosage, NaN for missing. For
// probabilistic rows the driver's Threshold is applied.
func (g *Genotypes) Dosages() []float64 {
	out := make([]float64, g.Len())
	if g.Calls != nil {
		for i, c := range g.Calls {
			out[i] = c.CodedCount()
		}
		return out
	}
	for i, p := range g.Probs {
		if g.Threshold > 0 && !p.Missing() &&
			p[0] < g.Threshold && p[1] < g.Threshold && p[2] < g.Threshold {
			out[i] = math.NaN()
			continue
		}
		out[i] = p.Dosage()
	}
	return out
}

// Subset returns a copy of the row holding only the samples selected by
// perm, in perm order. perm is a permutation produced by
// SampleSet.Permutation and is applied to whichever representation is
// native.
func (g *Genotypes) Subset(perm []int) *Genotypes {
	out := &Genotypes{
		Variant:      g.Variant,
		Reference:    g.Reference,
		Coded:        g.Coded,
		Phased:       g.Phased,
		Multiallelic: g.Multiallelic,
		Threshold:    g.Threshold,
	}
	if g.Calls != nil {
		out.Calls = make([]Call, len(perm))
		for i, j := range perm {
			out.Calls[i] = g.Calls[j]
		}
	}
	if g.Probs != nil {
		out.Probs = make([]Prob, len(perm))
		for i, j := range perm {
			out.Probs[i] = g.Probs[j]
		}
	}
	return out
}

// ComplementStrand returns a copy of the row with the variant and both row
// alleles complemented. Genotype values are unchanged; only the allele
// labels move to the other strand.
func (g *Genotypes) ComplementStrand() *Genotypes {
	out := *g
	out.Variant = g.Variant.ComplementaryStrand()
	out.Reference = g.Reference.Complement()
	out.Coded = g.Coded.Complement()
	return &out
}
