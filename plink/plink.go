// Package plink reads and writes the PLINK binary triplet: a bit-packed
// .bed genotype matrix paired with .bim marker and .fam pedigree text
// files. Genotypes are native hard calls; the whole .bim is held in memory
// and serves as the index, so name and region lookups never require an
// external index file.
package plink

import (
	"fmt"
	"os"

	"github.com/carbocation/pfx"

	"github.com/genoparse/genoparse"
)

const (
	bedMagic1 = 0x6c
	bedMagic2 = 0x1b

	// bedSNPMajor is the only supported .bed mode: one variant per
	// ceil(nsamples/4) byte block.
	bedSNPMajor = 0x01

	bedHeaderLength = 3
)

// Source reads a PLINK file-group. It owns the open .bed handle for its
// lifetime.
type Source struct {
	prefix string

	bed     *os.File
	rows    []bimRow
	samples *genoparse.SampleSet
	byName  map[string]int

	// bytesPerVariant is ceil(nsamples/4).
	bytesPerVariant int64
}

// Open opens prefix.bed, prefix.bim and prefix.fam.
func Open(prefix string) (*Source, error) {
	rows, err := readBIM(prefix + ".bim")
	if err != nil {
		return nil, err
	}

	samples, err := readFAM(prefix + ".fam")
	if err != nil {
		return nil, err
	}

	bed, err := os.Open(prefix + ".bed")
	if err != nil {
		return nil, pfx.Err(err)
	}

	s := &Source{
		prefix:          prefix,
		bed:             bed,
		rows:            rows,
		samples:         samples,
		byName:          make(map[string]int, len(rows)),
		bytesPerVariant: int64((samples.Len() + 3) / 4),
	}
	for i, r := range rows {
		s.byName[r.VariantID] = i
	}

	if err := s.checkHeader(); err != nil {
		bed.Close()
		return nil, err
	}

	return s, nil
}

func (s *Source) checkHeader() error {
	header := make([]byte, bedHeaderLength)
	if _, err := s.bed.ReadAt(header, 0); err != nil {
		return pfx.Err(err)
	}
	if header[0] != bedMagic1 || header[1] != bedMagic2 {
		return &genoparse.FormatError{
			Path:   s.prefix + ".bed",
			Record: 1,
			Msg:    fmt.Sprintf("bad magic bytes %x %x", header[0], header[1]),
		}
	}
	if header[2] != bedSNPMajor {
		return &genoparse.FormatError{
			Path:   s.prefix + ".bed",
			Record: 1,
			Msg:    "only SNP-major .bed files are supported",
		}
	}

	info, err := s.bed.Stat()
	if err != nil {
		return pfx.Err(err)
	}
	want := bedHeaderLength + int64(len(s.rows))*s.bytesPerVariant
	if info.Size() != want {
		return &genoparse.FormatError{
			Path:   s.prefix + ".bed",
			Record: 1,
			Msg:    fmt.Sprintf("file is %d bytes, expected %d for %d variants x %d samples", info.Size(), want, len(s.rows), s.samples.Len()),
		}
	}
	return nil
}

func (s *Source) Samples() *genoparse.SampleSet {
	return s.samples
}

func (s *Source) NVariants() int {
	return len(s.rows)
}

func (s *Source) Orientation() genoparse.Orientation {
	return genoparse.OrientationAsStored
}

func (s *Source) Close() error {
	return s.bed.Close()
}

// readRow decodes the genotype block of one marker. The Allele2 (major)
// allele is the reference and Allele1 is coded, matching the usual PLINK
// convention.
func (s *Source) readRow(i int) (*genoparse.Genotypes, error) {
	row := s.rows[i]

	buf := make([]byte, s.bytesPerVariant)
	offset := bedHeaderLength + int64(i)*s.bytesPerVariant
	if _, err := s.bed.ReadAt(buf, offset); err != nil {
		return nil, pfx.Err(err)
	}

	n := s.samples.Len()
	calls := make([]genoparse.Call, n)
	for j := 0; j < n; j++ {
		code := buf[j/4] >> (uint(j%4) * 2) & 3
		switch code {
		case 0: // homozygous A1
			calls[j] = genoparse.Call{A1: 1, A2: 1}
		case 1: // missing
			calls[j] = genoparse.MissingCall
		case 2: // heterozygous
			calls[j] = genoparse.Call{A1: 0, A2: 1}
		case 3: // homozygous A2
			calls[j] = genoparse.Call{A1: 0, A2: 0}
		}
	}

	variant := &genoparse.Variant{
		Name:       row.VariantID,
		Chromosome: row.Chromosome,
		Position:   row.Coordinate,
		Alleles:    []genoparse.Allele{row.Allele2, row.Allele1},
	}
	return &genoparse.Genotypes{
		Variant:      variant,
		Reference:    row.Allele2,
		Coded:        row.Allele1,
		Calls:        calls,
		Multiallelic: row.multiallelic,
	}, nil
}

type reader struct {
	s   *Source
	i   int
	err error
}

func (s *Source) Reader() genoparse.GenotypeReader {
	return &reader{s: s}
}

func (r *reader) Read() *genoparse.Genotypes {
	if r.err != nil || r.i >= len(r.s.rows) {
		return nil
	}
	g, err := r.s.readRow(r.i)
	if err != nil {
		r.err = err
		return nil
	}
	r.i++
	return g
}

func (r *reader) Err() error {
	return r.err
}

// VariantsByName returns the marker with the given name. Marker names are
// unique after :dupN renaming, so at most one row matches.
func (s *Source) VariantsByName(name string) ([]*genoparse.Genotypes, error) {
	i, ok := s.byName[name]
	if !ok {
		return nil, nil
	}
	g, err := s.readRow(i)
	if err != nil {
		return nil, err
	}
	return []*genoparse.Genotypes{g}, nil
}

func (s *Source) VariantsInRegion(chrom string, start, end uint32) ([]*genoparse.Genotypes, error) {
	chrom = genoparse.NormalizeChromosome(chrom)

	var out []*genoparse.Genotypes
	for i, row := range s.rows {
		if row.Chromosome != chrom || row.Coordinate < start || row.Coordinate > end {
			continue
		}
		g, err := s.readRow(i)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
