package plink

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/carbocation/pfx"

	"github.com/genoparse/genoparse"
)

// Writer serializes rows into a PLINK .bed/.bim/.fam file-group. PLINK has
// no probabilistic representation, so probabilistic rows collapse to hard
// calls by argmax; the collapse is deterministic (ties resolve to the lower
// dosage state).
type Writer struct {
	prefix  string
	samples *genoparse.SampleSet

	bed *os.File
	bim *bufio.Writer
	fam *os.File

	bimFile *os.File
	buf     []byte
}

// NewWriter creates prefix.bed, prefix.bim and prefix.fam. The .fam is
// written immediately; markers are appended by WriteVariant.
func NewWriter(prefix string, samples *genoparse.SampleSet) (*Writer, error) {
	fam, err := os.Create(prefix + ".fam")
	if err != nil {
		return nil, pfx.Err(err)
	}
	famW := bufio.NewWriter(fam)
	for _, id := range samples.IDs() {
		// No pedigree information in the unified model: fid=iid, founders,
		// unknown sex and phenotype.
		fmt.Fprintf(famW, "%s %s 0 0 0 -9\n", id, id)
	}
	if err := famW.Flush(); err != nil {
		fam.Close()
		return nil, pfx.Err(err)
	}

	bimFile, err := os.Create(prefix + ".bim")
	if err != nil {
		fam.Close()
		return nil, pfx.Err(err)
	}

	bed, err := os.Create(prefix + ".bed")
	if err != nil {
		fam.Close()
		bimFile.Close()
		return nil, pfx.Err(err)
	}
	if _, err := bed.Write([]byte{bedMagic1, bedMagic2, bedSNPMajor}); err != nil {
		fam.Close()
		bimFile.Close()
		bed.Close()
		return nil, pfx.Err(err)
	}

	return &Writer{
		prefix:  prefix,
		samples: samples,
		bed:     bed,
		bim:     bufio.NewWriter(bimFile),
		bimFile: bimFile,
		fam:     fam,
		buf:     make([]byte, (samples.Len()+3)/4),
	}, nil
}

func (w *Writer) Samples() *genoparse.SampleSet {
	return w.samples
}

func (w *Writer) WriteVariant(g *genoparse.Genotypes) error {
	if g.Len() != w.samples.Len() {
		return pfx.Err(fmt.Errorf("row has %d samples, writer expects %d", g.Len(), w.samples.Len()))
	}

	calls, _ := g.HardCalls()

	for i := range w.buf {
		w.buf[i] = 0
	}
	for j, c := range calls {
		var code byte
		switch c.CodedCount() {
		case 2:
			code = 0
		case 1:
			code = 2
		case 0:
			code = 3
		default: // missing
			code = 1
		}
		w.buf[j/4] |= code << (uint(j%4) * 2)
	}

	if _, err := w.bed.Write(w.buf); err != nil {
		return pfx.Err(err)
	}

	chrom := g.Variant.Chromosome
	if code := genoparse.ChromosomeCode(chrom); code > 0 {
		chrom = strconv.Itoa(code)
	}
	name := g.Variant.Name
	if name == "" {
		name = fmt.Sprintf("%s:%d", g.Variant.Chromosome, g.Variant.Position)
	}
	_, err := fmt.Fprintf(w.bim, "%s\t%s\t0\t%d\t%s\t%s\n",
		chrom, name, g.Variant.Position, g.Coded, g.Reference)
	return pfx.Err(err)
}

func (w *Writer) Close() error {
	err := w.bim.Flush()
	if cerr := w.bimFile.Close(); err == nil {
		err = cerr
	}
	if cerr := w.bed.Close(); err == nil {
		err = cerr
	}
	if cerr := w.fam.Close(); err == nil {
		err = cerr
	}
	return pfx.Err(err)
}
