package bgen

import (
	"fmt"
	"os"

	"github.com/carbocation/pfx"

	"github.com/genoparse/genoparse"
)

// Options adjusts how a BGEN file is opened.
type Options struct {
	// SamplePath names an external Oxford sample file, used when the BGEN
	// file does not embed its sample identifiers. When neither is
	// available, placeholder identifiers are synthesized.
	SamplePath string

	// BGIPath overrides the default <file>.bgi location of the index.
	BGIPath string

	// ProbThreshold masks dosage values whose best genotype probability
	// falls below it. Zero selects the default; a negative value disables
	// masking.
	ProbThreshold float64
}

// DefaultProbThreshold masks dosages for samples whose most likely genotype
// is still uncertain.
const DefaultProbThreshold = 0.9

// Source reads one BGEN file, with random access when its .bgi companion
// index is present.
type Source struct {
	b         *BGEN
	samples   *genoparse.SampleSet
	bgi       *BGIIndex
	threshold float64
}

// Open opens the BGEN file at path. If a .bgi index exists it is loaded and
// validated against the file; a stale index is an error rather than a
// silent fallback.
func Open(path string, opts Options) (*Source, error) {
	b, err := open(path)
	if err != nil {
		return nil, err
	}

	src := &Source{b: b, threshold: opts.ProbThreshold}
	if src.threshold == 0 {
		src.threshold = DefaultProbThreshold
	} else if src.threshold < 0 {
		src.threshold = 0
	}

	var ids []string
	switch {
	case b.FlagHasSampleIDs == 1:
		ids, err = readEmbeddedSamples(b)
	case opts.SamplePath != "":
		ids, err = readOxfordSamples(opts.SamplePath)
	default:
		// No identifiers anywhere; synthesize stable placeholders.
		ids = make([]string, b.NSamples)
		for i := range ids {
			ids[i] = fmt.Sprintf("sample_%d", i+1)
		}
	}
	if err != nil {
		b.Close()
		return nil, err
	}

	src.samples, err = genoparse.NewSampleSet(ids)
	if err != nil {
		b.Close()
		return nil, pfx.Err(err)
	}

	bgiPath := opts.BGIPath
	if bgiPath == "" {
		bgiPath = path + ".bgi"
	}
	if _, statErr := os.Stat(bgiPath); statErr == nil {
		src.bgi, err = OpenBGI(bgiPath, path)
		if err != nil {
			b.Close()
			return nil, err
		}
	}

	return src, nil
}

func (s *Source) Samples() *genoparse.SampleSet {
	return s.samples
}

func (s *Source) NVariants() int {
	return int(s.b.NVariants)
}

func (s *Source) Orientation() genoparse.Orientation {
	return genoparse.OrientationAsStored
}

func (s *Source) Close() error {
	if s.bgi != nil {
		s.bgi.Close()
	}
	return s.b.Close()
}

type reader struct {
	s  *Source
	vr *VariantReader

	err error
}

func (s *Source) Reader() genoparse.GenotypeReader {
	return &reader{s: s, vr: s.b.NewVariantReader()}
}

func (r *reader) Read() *genoparse.Genotypes {
	if r.err != nil {
		return nil
	}

	v := r.vr.Read()
	if v == nil {
		r.err = r.vr.Error()
		return nil
	}

	g, err := r.s.toGenotypes(v, int(r.vr.VariantsSeen))
	if err != nil {
		r.err = err
		return nil
	}
	return g
}

func (r *reader) Err() error {
	return r.err
}

// VariantsByName returns every row whose rsid matches name, using the .bgi
// index.
func (s *Source) VariantsByName(name string) ([]*genoparse.Genotypes, error) {
	if s.bgi == nil {
		return nil, &genoparse.IndexRequiredError{Path: s.b.FilePath, Op: "lookup by name"}
	}

	offsets, err := s.bgi.OffsetsByName(name)
	if err != nil {
		return nil, pfx.Err(err)
	}
	return s.rowsAt(offsets)
}

// VariantsInRegion returns every row on chrom with start <= pos <= end,
// using the .bgi index.
func (s *Source) VariantsInRegion(chrom string, start, end uint32) ([]*genoparse.Genotypes, error) {
	if s.bgi == nil {
		return nil, &genoparse.IndexRequiredError{Path: s.b.FilePath, Op: "region query"}
	}

	offsets, err := s.bgi.OffsetsInRegion(chrom, start, end)
	if err != nil {
		return nil, pfx.Err(err)
	}
	return s.rowsAt(offsets)
}

func (s *Source) rowsAt(offsets []int64) ([]*genoparse.Genotypes, error) {
	out := make([]*genoparse.Genotypes, 0, len(offsets))
	vr := s.b.NewVariantReader()
	for _, off := range offsets {
		v, err := vr.ReadAt(off)
		if err != nil {
			return nil, err
		}
		g, err := s.toGenotypes(v, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// toGenotypes converts one parsed variant block into the probabilistic row
// representation. Only biallelic diploid data has a three-state genotype
// space; anything else is rejected rather than misread.
func (s *Source) toGenotypes(v *VariantData, ordinal int) (*genoparse.Genotypes, error) {
	if len(v.Alleles) != 2 {
		return nil, &genoparse.FormatError{
			Path:   s.b.FilePath,
			Record: ordinal,
			Msg:    fmt.Sprintf("variant %s has %d alleles, only biallelic variants are supported", v.RSID, len(v.Alleles)),
		}
	}

	name := v.RSID
	if name == "" || name == "." {
		name = v.ID
	}
	if name == "." {
		name = ""
	}

	g := &genoparse.Genotypes{
		Variant: genoparse.NewVariant(name, v.Chromosome, v.Position,
			[]genoparse.Allele{v.Alleles[0], v.Alleles[1]}),
		Reference: v.Alleles[0],
		Coded:     v.Alleles[1],
		Probs:     make([]genoparse.Prob, 0, len(v.Probabilities.SampleProbabilities)),
		Phased:    v.Probabilities.Phased,
		Threshold: s.threshold,
	}

	for i, sp := range v.Probabilities.SampleProbabilities {
		if sp.Missing {
			g.Probs = append(g.Probs, genoparse.MissingProb)
			continue
		}
		if sp.Ploidy != 2 {
			return nil, &genoparse.FormatError{
				Path:   s.b.FilePath,
				Record: ordinal,
				Msg:    fmt.Sprintf("variant %s sample %d has ploidy %d, only diploid data is supported", v.RSID, i+1, sp.Ploidy),
			}
		}

		var p genoparse.Prob
		if v.Probabilities.Phased {
			// Two haplotypes, each with a probability per allele.
			// Collapse the haplotype product into genotype states.
			h1Ref, h2Ref := sp.Probabilities[0], sp.Probabilities[2]
			p = genoparse.Prob{
				h1Ref * h2Ref,
				h1Ref*(1-h2Ref) + (1-h1Ref)*h2Ref,
				(1 - h1Ref) * (1 - h2Ref),
			}
		} else {
			p = genoparse.Prob{sp.Probabilities[0], sp.Probabilities[1], sp.Probabilities[2]}
		}

		if err := genoparse.CheckProb(s.b.FilePath, ordinal, p); err != nil {
			return nil, err
		}
		g.Probs = append(g.Probs, p)
	}

	return g, nil
}
