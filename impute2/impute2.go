// Package impute2 reads and writes IMPUTE2 genotype files: one variant per
// line, five identity fields followed by a probability triplet per sample,
// plain text or gzip. Sequential iteration needs nothing else; random
// access by name or region requires the persisted index built by
// genoparse/index (or the genoindex command).
package impute2

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/klauspost/compress/gzip"

	"github.com/genoparse/genoparse"
	"github.com/genoparse/genoparse/index"
)

// DefaultProbThreshold masks dosages for samples whose most likely genotype
// is still uncertain.
const DefaultProbThreshold = 0.9

// identity fields preceding the probability triplets: chromosome, name,
// position, allele 1 (reference), allele 2 (coded).
const nIdentityFields = 5

// Options tunes an IMPUTE2 source.
type Options struct {
	// ProbThreshold masks dosages whose best genotype probability falls
	// below it. Zero means DefaultProbThreshold; negative disables
	// thresholding.
	ProbThreshold float64

	// IndexMode is the row-numbering convention the index is expected to
	// be built in.
	IndexMode index.Mode
}

// Source reads one IMPUTE2 file plus its companion sample file.
type Source struct {
	path string

	f       *os.File
	gz      bool
	samples *genoparse.SampleSet
	idx     *index.Index
	nVars   int

	threshold float64
}

// Open opens an IMPUTE2 file and its sample file. If an index exists next
// to the file it is loaded and validated; a missing index only disables
// random access.
func Open(path, samplePath string, opts *Options) (*Source, error) {
	samples, err := readSampleFile(samplePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	gz, err := isGzip(f)
	if err != nil {
		f.Close()
		return nil, pfx.Err(err)
	}

	s := &Source{
		path:      path,
		f:         f,
		gz:        gz,
		samples:   samples,
		nVars:     -1,
		threshold: DefaultProbThreshold,
	}
	if opts != nil {
		if opts.ProbThreshold < 0 {
			s.threshold = 0
		} else if opts.ProbThreshold > 0 {
			s.threshold = opts.ProbThreshold
		}
	}

	if index.Has(path) {
		var mode index.Mode
		if opts != nil {
			mode = opts.IndexMode
		}
		idx, err := index.Open(path, mode)
		if err != nil {
			f.Close()
			return nil, err
		}
		s.idx = idx
		if n, err := idx.NVariants(); err == nil {
			s.nVars = n
		}
	}

	return s, nil
}

func (s *Source) Samples() *genoparse.SampleSet {
	return s.samples
}

func (s *Source) NVariants() int {
	return s.nVars
}

func (s *Source) Orientation() genoparse.Orientation {
	return genoparse.OrientationAsStored
}

func (s *Source) Close() error {
	err := s.f.Close()
	if s.idx != nil {
		if cerr := s.idx.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// rewind returns a fresh line reader from the start of the file.
func (s *Source) rewind() (*bufio.Reader, error) {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return nil, pfx.Err(err)
	}
	if !s.gz {
		return bufio.NewReader(s.f), nil
	}
	zr, err := gzip.NewReader(s.f)
	if err != nil {
		return nil, pfx.Err(err)
	}
	return bufio.NewReader(zr), nil
}

type reader struct {
	s       *Source
	br      *bufio.Reader
	ordinal int
	err     error
}

func (s *Source) Reader() genoparse.GenotypeReader {
	br, err := s.rewind()
	return &reader{s: s, br: br, err: err}
}

func (r *reader) Read() *genoparse.Genotypes {
	if r.err != nil {
		return nil
	}

	line, err := r.br.ReadString('\n')
	if line == "" && err != nil {
		if err != io.EOF {
			r.err = pfx.Err(err)
		}
		return nil
	}

	r.ordinal++
	g, perr := r.s.parseLine(line, r.ordinal)
	if perr != nil {
		r.err = perr
		return nil
	}
	return g
}

func (r *reader) Err() error {
	return r.err
}

// lineAt reads the record starting at the given uncompressed-stream offset.
// Plain files seek directly; gzip streams are decompressed forward to the
// offset.
func (s *Source) lineAt(offset int64) (string, error) {
	if !s.gz {
		if _, err := s.f.Seek(offset, io.SeekStart); err != nil {
			return "", pfx.Err(err)
		}
		line, err := bufio.NewReader(s.f).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", pfx.Err(err)
		}
		return line, nil
	}

	br, err := s.rewind()
	if err != nil {
		return "", err
	}
	if _, err := io.CopyN(io.Discard, br, offset); err != nil {
		return "", pfx.Err(err)
	}
	line, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", pfx.Err(err)
	}
	return line, nil
}

func (s *Source) rowsAt(offsets []int64) ([]*genoparse.Genotypes, error) {
	var out []*genoparse.Genotypes
	for _, offset := range offsets {
		line, err := s.lineAt(offset)
		if err != nil {
			return nil, err
		}
		g, err := s.parseLine(line, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *Source) VariantsByName(name string) ([]*genoparse.Genotypes, error) {
	if s.idx == nil {
		return nil, &genoparse.IndexRequiredError{Path: s.path, Op: "lookup by name"}
	}
	offsets, err := s.idx.OffsetsByName(name)
	if err != nil {
		return nil, err
	}
	return s.rowsAt(offsets)
}

func (s *Source) VariantsInRegion(chrom string, start, end uint32) ([]*genoparse.Genotypes, error) {
	if s.idx == nil {
		return nil, &genoparse.IndexRequiredError{Path: s.path, Op: "lookup by region"}
	}
	offsets, err := s.idx.OffsetsInRegion(chrom, start, end)
	if err != nil {
		return nil, err
	}
	return s.rowsAt(offsets)
}

// parseLine decodes one IMPUTE2 record. ordinal is the 1-based record
// number when known (sequential reads), 0 for random-access reads.
func (s *Source) parseLine(line string, ordinal int) (*genoparse.Genotypes, error) {
	fields := strings.Fields(line)
	nSamples := s.samples.Len()
	if len(fields) != nIdentityFields+3*nSamples {
		return nil, &genoparse.FormatError{
			Path:   s.path,
			Record: ordinal,
			Msg:    fmt.Sprintf("expected %d fields for %d samples, got %d", nIdentityFields+3*nSamples, nSamples, len(fields)),
		}
	}

	pos64, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return nil, &genoparse.FormatError{
			Path:   s.path,
			Record: ordinal,
			Msg:    fmt.Sprintf("non-numeric position %q", fields[2]),
		}
	}

	probs := make([]genoparse.Prob, nSamples)
	for i := 0; i < nSamples; i++ {
		var p genoparse.Prob
		for k := 0; k < 3; k++ {
			p[k], err = strconv.ParseFloat(fields[nIdentityFields+3*i+k], 64)
			if err != nil {
				return nil, &genoparse.FormatError{
					Path:   s.path,
					Record: ordinal,
					Msg:    fmt.Sprintf("bad probability %q for sample %d", fields[nIdentityFields+3*i+k], i),
				}
			}
		}

		// An all-zero triplet is the conventional IMPUTE2 encoding for an
		// explicitly missing genotype.
		if p[0] == 0 && p[1] == 0 && p[2] == 0 {
			probs[i] = genoparse.MissingProb
			continue
		}
		if err := genoparse.CheckProb(s.path, ordinal, p); err != nil {
			return nil, err
		}
		probs[i] = p
	}

	ref := genoparse.Allele(strings.ToUpper(fields[3]))
	coded := genoparse.Allele(strings.ToUpper(fields[4]))
	variant := genoparse.NewVariant(fields[1], fields[0], uint32(pos64), []genoparse.Allele{ref, coded})

	return &genoparse.Genotypes{
		Variant:   variant,
		Reference: ref,
		Coded:     coded,
		Probs:     probs,
		Threshold: s.threshold,
	}, nil
}

// IndexScan returns the linear indexing pass for an IMPUTE2 file, for use
// with index.Build. Offsets are uncompressed-stream positions, identical
// whether the file is stored plain or gzipped.
func IndexScan(path string) index.ScanFunc {
	return func(emit func(index.Record) error) error {
		f, err := os.Open(path)
		if err != nil {
			return pfx.Err(err)
		}
		defer f.Close()

		var src io.Reader = f
		gz, err := isGzip(f)
		if err != nil {
			return pfx.Err(err)
		}
		if gz {
			zr, err := gzip.NewReader(f)
			if err != nil {
				return pfx.Err(err)
			}
			defer zr.Close()
			src = zr
		}

		br := bufio.NewReader(src)
		var offset int64
		ordinal := 0
		for {
			line, err := br.ReadString('\n')
			if line == "" && err == io.EOF {
				return nil
			}
			if err != nil && err != io.EOF {
				return pfx.Err(err)
			}
			ordinal++

			fields := strings.Fields(line)
			if len(fields) < nIdentityFields {
				return &genoparse.FormatError{
					Path:   path,
					Record: ordinal,
					Msg:    fmt.Sprintf("expected at least %d fields, got %d", nIdentityFields, len(fields)),
				}
			}
			pos64, perr := strconv.ParseUint(fields[2], 10, 32)
			if perr != nil {
				return &genoparse.FormatError{
					Path:   path,
					Record: ordinal,
					Msg:    fmt.Sprintf("non-numeric position %q", fields[2]),
				}
			}

			if err := emit(index.Record{
				Name:       fields[1],
				Chromosome: fields[0],
				Position:   uint32(pos64),
				Offset:     offset,
			}); err != nil {
				return err
			}

			offset += int64(len(line))
			if err == io.EOF {
				return nil
			}
		}
	}
}

// isGzip sniffs the gzip magic without disturbing the handle position.
func isGzip(f *os.File) (bool, error) {
	magic := make([]byte, 2)
	n, err := f.ReadAt(magic, 0)
	if err != nil && err != io.EOF {
		return false, err
	}
	return n == 2 && magic[0] == 0x1f && magic[1] == 0x8b, nil
}
