package genoparse

import (
	"errors"

	"github.com/carbocation/pfx"
)

// WriterFunc opens the output writer once the extraction's output sample
// order is known. Deferring the open until this point guarantees that a bad
// keep-list fails before any output bytes exist.
type WriterFunc func(samples *SampleSet) (Writer, error)

// Extractor connects one Source to one Writer, filtering by variant
// selectors and/or a sample keep-list and re-encoding rows into the target
// format on the way through.
//
// Names selects variants by marker name; Loci selects by coordinate (the
// selector's alleles, when present, must share at least one allele with the
// stored row, and unambiguous selectors are retried on the complementary
// strand). Nil Names and Loci means every variant. Nil Keep means every
// sample; otherwise the output carries exactly the keep-list samples in
// keep-list order.
type Extractor struct {
	Source Source
	Names  []string
	Loci   []*Variant
	Keep   []string
}

// Report summarizes a completed extraction.
type Report struct {
	VariantsWritten int
	SamplesKept     int

	// Unmatched lists the selectors that matched nothing. A selector with
	// no hits is not an error, but callers get the full tally for
	// diagnostics.
	Unmatched []string
}

// lookupThreshold: targeted random access is used instead of a streaming
// scan when there are at least this many stored variants per selector.
const lookupThreshold = 10

// Run performs the extraction. The writer is opened via open only after the
// keep-list has validated against the source's samples, and is closed
// before Run returns.
func (e *Extractor) Run(open WriterFunc) (*Report, error) {
	native := e.Source.Samples()

	var perm []int
	outSamples := native
	if e.Keep != nil {
		var err error
		if perm, err = native.Permutation(e.Keep); err != nil {
			return nil, err
		}
		if outSamples, err = NewSampleSet(e.Keep); err != nil {
			return nil, pfx.Err(err)
		}
	}

	report := &Report{SamplesKept: outSamples.Len()}

	// For small selector sets over an indexed source, collect the hits up
	// front by random access. When the source turns out to need an index
	// it does not have, fall back to the streaming scan; the choice is
	// cardinality-driven, not a hard rule.
	var collected []*Genotypes
	streaming := true
	if e.selective() {
		n := e.Source.NVariants()
		if n < 0 || len(e.Names)+len(e.Loci) <= n/lookupThreshold {
			rows, err := e.collectByLookup(report)
			switch {
			case err == nil:
				collected = rows
				streaming = false
			case errors.As(err, new(*IndexRequiredError)):
				// No usable index; scan instead.
			default:
				return nil, err
			}
		}
	}

	w, err := open(outSamples)
	if err != nil {
		return nil, pfx.Err(err)
	}

	if streaming {
		err = e.runStreaming(w, perm, report)
	} else {
		for _, g := range collected {
			if err = e.emit(w, g, perm, report); err != nil {
				break
			}
		}
	}

	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (e *Extractor) selective() bool {
	return e.Names != nil || e.Loci != nil
}

func (e *Extractor) emit(w Writer, g *Genotypes, perm []int, report *Report) error {
	if e.Source.Orientation() == OrientationComplemented {
		g = g.ComplementStrand()
	}
	if perm != nil {
		g = g.Subset(perm)
	}
	if err := w.WriteVariant(g); err != nil {
		return err
	}
	report.VariantsWritten++
	return nil
}

// collectByLookup resolves every selector through the Source's random
// access methods, recording unmatched selectors in the report.
func (e *Extractor) collectByLookup(report *Report) ([]*Genotypes, error) {
	var out []*Genotypes

	for _, name := range e.Names {
		rows, err := e.Source.VariantsByName(name)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			report.Unmatched = append(report.Unmatched, name)
			continue
		}
		out = append(out, rows...)
	}

	for _, sel := range e.Loci {
		rows, err := e.lookupLocus(sel)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			report.Unmatched = append(report.Unmatched, sel.String())
			continue
		}
		out = append(out, rows...)
	}

	return out, nil
}

func (e *Extractor) lookupLocus(sel *Variant) ([]*Genotypes, error) {
	rows, err := e.Source.VariantsInRegion(sel.Chromosome, sel.Position, sel.Position)
	if err != nil {
		return nil, err
	}

	var hits []*Genotypes
	for _, g := range rows {
		if sel.SharesAlleles(g.Variant) {
			hits = append(hits, g)
		}
	}
	if len(hits) > 0 || sel.AllelesAmbiguous() || len(sel.Alleles) == 0 {
		return hits, nil
	}

	// Nothing stored with the requested alleles. The variant may be
	// recorded on the other strand, which is detectable whenever the
	// allele pair is not its own complement.
	comp := sel.ComplementaryStrand()
	for _, g := range rows {
		if comp.SharesAlleles(g.Variant) {
			hits = append(hits, g.ComplementStrand())
		}
	}
	return hits, nil
}

func (e *Extractor) runStreaming(w Writer, perm []int, report *Report) error {
	nameWanted := make(map[string]bool, len(e.Names))
	for _, n := range e.Names {
		nameWanted[n] = false
	}
	lociHit := make([]bool, len(e.Loci))

	rdr := e.Source.Reader()
	for g := rdr.Read(); g != nil; g = rdr.Read() {
		keep, flip := e.matchRow(g, nameWanted, lociHit)
		if !keep {
			continue
		}
		if flip {
			g = g.ComplementStrand()
		}
		if err := e.emit(w, g, perm, report); err != nil {
			return err
		}
	}
	if err := rdr.Err(); err != nil {
		return err
	}

	for _, n := range e.Names {
		if !nameWanted[n] {
			report.Unmatched = append(report.Unmatched, n)
		}
	}
	for i, hit := range lociHit {
		if !hit {
			report.Unmatched = append(report.Unmatched, e.Loci[i].String())
		}
	}
	return nil
}

// matchRow decides whether a streamed row is selected, and whether it must
// be strand-flipped to match the selector's orientation.
func (e *Extractor) matchRow(g *Genotypes, nameWanted map[string]bool, lociHit []bool) (keep, flip bool) {
	if !e.selective() {
		return true, false
	}

	if _, wanted := nameWanted[g.Variant.Name]; wanted {
		nameWanted[g.Variant.Name] = true
		return true, false
	}

	for i, sel := range e.Loci {
		if !sel.LocusEqual(g.Variant) {
			continue
		}
		if sel.SharesAlleles(g.Variant) {
			lociHit[i] = true
			return true, false
		}
		if !sel.AllelesAmbiguous() && len(sel.Alleles) > 0 &&
			sel.ComplementaryStrand().SharesAlleles(g.Variant) {
			lociHit[i] = true
			return true, true
		}
	}
	return false, false
}
