// Package vcf reads and writes textual variant-call files. The GT field is
// the genotype representation; multi-allelic records decompose into one row
// per alternate allele. Sequential iteration is always available; name and
// region random access require the persisted index built by genoparse/index
// over raw line offsets.
package vcf

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

const (
	colChrom = iota
	colPos
	colID
	colRef
	colAlt
	colQual
	colFilter
	colInfo
	colFormat
	colFirstSample
)

// Source reads one VCF file.
type Source struct {
	path string

	f       *os.File
	gz      bool
	samples *genoparse.SampleSet
	idx     *index.Index
	nVars   int
}

// Options tunes a VCF source.
type Options struct {
	// IndexMode is the row-numbering convention the index is expected to
	// be built in.
	IndexMode index.Mode
}

// Open opens a VCF file, reading the header for the sample set. If an
// index exists next to the file it is loaded and validated.
func Open(path string, opts *Options) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	gz, err := isGzip(f)
	if err != nil {
		f.Close()
		return nil, pfx.Err(err)
	}

	s := &Source{path: path, f: f, gz: gz, nVars: -1}

	br, err := s.rewind()
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := s.readHeader(br); err != nil {
		f.Close()
		return nil, err
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

// readHeader consumes meta lines until the #CHROM line and extracts the
// sample identifiers.
func (s *Source) readHeader(br *bufio.Reader) error {
	ordinal := 0
	for {
		line, err := br.ReadString('\n')
		if line == "" && err != nil {
			return &genoparse.FormatError{Path: s.path, Record: ordinal, Msg: "missing #CHROM header line"}
		}
		ordinal++
		line = strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(line, "##") {
			continue
		}
		if !strings.HasPrefix(line, "#CHROM") {
			return &genoparse.FormatError{Path: s.path, Record: ordinal, Msg: "expected #CHROM header line"}
		}

		cols := strings.Split(line, "\t")
		if len(cols) < colFirstSample {
			return &genoparse.FormatError{Path: s.path, Record: ordinal, Msg: "header has no FORMAT/sample columns"}
		}
		samples, err := genoparse.NewSampleSet(cols[colFirstSample:])
		if err != nil {
			return &genoparse.FormatError{Path: s.path, Record: ordinal, Msg: err.Error()}
		}
		s.samples = samples
		return nil
	}
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
	pending []*genoparse.Genotypes
	err     error
}

func (s *Source) Reader() genoparse.GenotypeReader {
	r := &reader{s: s}
	br, err := s.rewind()
	if err != nil {
		r.err = err
		return r
	}
	// Skip the header; data lines follow.
	for {
		line, err := br.ReadString('\n')
		if line == "" && err != nil {
			break
		}
		if strings.HasPrefix(line, "#CHROM") {
			break
		}
	}
	r.br = br
	return r
}

func (r *reader) Read() *genoparse.Genotypes {
	if r.err != nil {
		return nil
	}

	for len(r.pending) == 0 {
		if r.br == nil {
			return nil
		}
		line, err := r.br.ReadString('\n')
		if line == "" && err != nil {
			if err != io.EOF {
				r.err = pfx.Err(err)
			}
			return nil
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		r.ordinal++
		rows, perr := r.s.parseRecord(line, r.ordinal)
		if perr != nil {
			r.err = perr
			return nil
		}
		r.pending = rows
	}

	g := r.pending[0]
	r.pending = r.pending[1:]
	return g
}

func (r *reader) Err() error {
	return r.err
}

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
		rows, err := s.parseRecord(line, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
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

// parseRecord decodes one VCF data line into one row per alternate allele.
func (s *Source) parseRecord(line string, ordinal int) ([]*genoparse.Genotypes, error) {
	cols := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(cols) != colFirstSample+s.samples.Len() {
		return nil, &genoparse.FormatError{
			Path:   s.path,
			Record: ordinal,
			Msg:    fmt.Sprintf("expected %d columns for %d samples, got %d", colFirstSample+s.samples.Len(), s.samples.Len(), len(cols)),
		}
	}

	pos64, err := strconv.ParseUint(cols[colPos], 10, 32)
	if err != nil {
		return nil, &genoparse.FormatError{
			Path:   s.path,
			Record: ordinal,
			Msg:    fmt.Sprintf("non-numeric position %q", cols[colPos]),
		}
	}

	gtIdx := -1
	for i, key := range strings.Split(cols[colFormat], ":") {
		if key == "GT" {
			gtIdx = i
			break
		}
	}
	if gtIdx < 0 {
		return nil, &genoparse.FormatError{Path: s.path, Record: ordinal, Msg: "record has no GT field"}
	}

	ref := genoparse.Allele(strings.ToUpper(cols[colRef]))
	alts := strings.Split(cols[colAlt], ",")

	name := cols[colID]
	if name == "." {
		name = ""
	}

	alleles := make([]genoparse.Allele, 0, len(alts)+1)
	alleles = append(alleles, ref)
	for _, alt := range alts {
		alleles = append(alleles, genoparse.Allele(strings.ToUpper(alt)))
	}
	variant := genoparse.NewVariant(name, cols[colChrom], uint32(pos64), alleles)

	// Decode the GT pairs once, then project onto each alternate allele.
	type gtPair struct {
		a1, a2  int
		missing bool
		phased  bool
	}
	pairs := make([]gtPair, s.samples.Len())
	anyPhased := false
	for i := 0; i < s.samples.Len(); i++ {
		sample := cols[colFirstSample+i]
		parts := strings.Split(sample, ":")
		if gtIdx >= len(parts) {
			return nil, &genoparse.FormatError{
				Path:   s.path,
				Record: ordinal,
				Msg:    fmt.Sprintf("sample %d is missing its GT field", i),
			}
		}
		gt := parts[gtIdx]

		sep := "/"
		if strings.Contains(gt, "|") {
			sep = "|"
			pairs[i].phased = true
			anyPhased = true
		}
		hap := strings.Split(gt, sep)
		if len(hap) != 2 {
			return nil, &genoparse.FormatError{
				Path:   s.path,
				Record: ordinal,
				Msg:    fmt.Sprintf("sample %d has non-diploid GT %q", i, gt),
			}
		}
		if hap[0] == "." || hap[1] == "." {
			pairs[i].missing = true
			continue
		}
		if pairs[i].a1, err = strconv.Atoi(hap[0]); err == nil {
			pairs[i].a2, err = strconv.Atoi(hap[1])
		}
		if err != nil {
			return nil, &genoparse.FormatError{
				Path:   s.path,
				Record: ordinal,
				Msg:    fmt.Sprintf("sample %d has malformed GT %q", i, gt),
			}
		}
	}

	rows := make([]*genoparse.Genotypes, 0, len(alts))
	for k, alt := range alts {
		calls := make([]genoparse.Call, len(pairs))
		for i, p := range pairs {
			if p.missing {
				calls[i] = genoparse.MissingCall
				continue
			}
			var c genoparse.Call
			if p.a1 == k+1 {
				c.A1 = 1
			}
			if p.a2 == k+1 {
				c.A2 = 1
			}
			calls[i] = c
		}
		rows = append(rows, &genoparse.Genotypes{
			Variant:      variant,
			Reference:    ref,
			Coded:        genoparse.Allele(strings.ToUpper(alt)),
			Calls:        calls,
			Phased:       anyPhased,
			Multiallelic: len(alts) > 1,
		})
	}
	return rows, nil
}

// IndexScan returns the linear indexing pass for a VCF file, for use with
// index.Build. Offsets are uncompressed-stream positions of data lines.
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

			if !strings.HasPrefix(line, "#") && strings.TrimSpace(line) != "" {
				ordinal++
				cols := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
				if len(cols) < colFormat {
					return &genoparse.FormatError{
						Path:   path,
						Record: ordinal,
						Msg:    fmt.Sprintf("expected at least %d columns, got %d", colFormat, len(cols)),
					}
				}
				pos64, perr := strconv.ParseUint(cols[colPos], 10, 32)
				if perr != nil {
					return &genoparse.FormatError{
						Path:   path,
						Record: ordinal,
						Msg:    fmt.Sprintf("non-numeric position %q", cols[colPos]),
					}
				}
				name := cols[colID]
				if name == "." {
					name = ""
				}

				if err := emit(index.Record{
					Name:       name,
					Chromosome: cols[colChrom],
					Position:   uint32(pos64),
					Offset:     offset,
				}); err != nil {
					return err
				}
			}

			offset += int64(len(line))
			if err == io.EOF {
				return nil
			}
		}
	}
}

func isGzip(f *os.File) (bool, error) {
	magic := make([]byte, 2)
	n, err := f.ReadAt(magic, 0)
	if err != nil && err != io.EOF {
		return false, err
	}
	return n == 2 && magic[0] == 0x1f && magic[1] == 0x8b, nil
}
