package impute2

import (
	"bufio"
	"io"
	"os"
	"strconv"

	"github.com/carbocation/pfx"

	"github.com/genoparse/genoparse"
)

// Writer serializes rows as IMPUTE2 text. Probabilistic rows are written
// losslessly; hard-call rows widen to degenerate triplets (a 1 in the
// called state). Output is append-only, so any io.Writer works, including
// standard output.
type Writer struct {
	w       *bufio.Writer
	closer  io.Closer
	samples *genoparse.SampleSet
}

// NewWriter writes IMPUTE2 records to an arbitrary sink.
func NewWriter(w io.Writer, samples *genoparse.SampleSet) *Writer {
	return &Writer{w: bufio.NewWriter(w), samples: samples}
}

// Create writes IMPUTE2 records to a new file at path.
func Create(path string, samples *genoparse.SampleSet) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	w := NewWriter(f, samples)
	w.closer = f
	return w, nil
}

func (w *Writer) Samples() *genoparse.SampleSet {
	return w.samples
}

func (w *Writer) WriteVariant(g *genoparse.Genotypes) error {
	probs, _ := g.Probabilities()

	chrom := g.Variant.Chromosome
	if code := genoparse.ChromosomeCode(chrom); code > 0 {
		chrom = strconv.Itoa(code)
	}
	name := g.Variant.Name
	if name == "" {
		name = "."
	}

	var buf []byte
	buf = append(buf, chrom...)
	buf = append(buf, ' ')
	buf = append(buf, name...)
	buf = append(buf, ' ')
	buf = strconv.AppendUint(buf, uint64(g.Variant.Position), 10)
	buf = append(buf, ' ')
	buf = append(buf, g.Reference...)
	buf = append(buf, ' ')
	buf = append(buf, g.Coded...)

	for _, p := range probs {
		if p.Missing() {
			// Conventional missing encoding.
			buf = append(buf, " 0 0 0"...)
			continue
		}
		for k := 0; k < 3; k++ {
			buf = append(buf, ' ')
			buf = strconv.AppendFloat(buf, p[k], 'g', -1, 64)
		}
	}
	buf = append(buf, '\n')

	_, err := w.w.Write(buf)
	return pfx.Err(err)
}

func (w *Writer) Close() error {
	err := w.w.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return pfx.Err(err)
}
