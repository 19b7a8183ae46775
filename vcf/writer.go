package vcf

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/carbocation/pfx"

	"github.com/genoparse/genoparse"
)

var gtStrings = [3]string{"0/0", "0/1", "1/1"}

// Writer serializes rows as VCF 4.3 with GT:DS sample fields. Probabilistic
// rows keep their exact dosage in DS but the GT is an argmax collapse;
// multi-allelic input rows are written as separate biallelic records. The
// output never seeks, so unbounded sinks like standard output work.
type Writer struct {
	w       *bufio.Writer
	closer  io.Closer
	samples *genoparse.SampleSet

	headerWritten bool

	// Date overrides the fileDate header line, for reproducible output.
	Date time.Time
}

// NewWriter writes VCF records to an arbitrary sink.
func NewWriter(w io.Writer, samples *genoparse.SampleSet) *Writer {
	return &Writer{w: bufio.NewWriter(w), samples: samples}
}

// Create writes VCF records to a new file at path.
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

func (w *Writer) writeHeader() error {
	date := w.Date
	if date.IsZero() {
		date = time.Now()
	}

	fmt.Fprintf(w.w, "##fileformat=VCFv4.3\n")
	fmt.Fprintf(w.w, "##fileDate=%s\n", date.Format("20060102"))
	fmt.Fprintf(w.w, "##source=genoparse\n")
	fmt.Fprintf(w.w, "##INFO=<ID=AF,Number=A,Type=Float,Description=\"Alternative allele frequency in the initial population\">\n")
	fmt.Fprintf(w.w, "##FORMAT=<ID=GT,Number=1,Type=String,Description=\"Genotype\">\n")
	fmt.Fprintf(w.w, "##FORMAT=<ID=DS,Number=1,Type=Float,Description=\"Alternate allele dosage\">\n")
	fmt.Fprintf(w.w, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT")
	for _, id := range w.samples.IDs() {
		fmt.Fprintf(w.w, "\t%s", id)
	}
	_, err := fmt.Fprintln(w.w)
	return pfx.Err(err)
}

func (w *Writer) WriteVariant(g *genoparse.Genotypes) error {
	if !w.headerWritten {
		if err := w.writeHeader(); err != nil {
			return err
		}
		w.headerWritten = true
	}
	if g.Len() != w.samples.Len() {
		return pfx.Err(fmt.Errorf("row has %d samples, writer expects %d", g.Len(), w.samples.Len()))
	}

	dosages := g.Dosages()
	calls, _ := g.HardCalls()

	// Alternative allele frequency over called samples.
	var sum float64
	var n int
	for _, d := range dosages {
		if math.IsNaN(d) {
			continue
		}
		sum += d
		n++
	}
	af := "."
	if n > 0 {
		af = strconv.FormatFloat(sum/float64(2*n), 'g', -1, 64)
	}

	name := g.Variant.Name
	if name == "" {
		name = "."
	}

	var buf []byte
	buf = append(buf, g.Variant.Chromosome...)
	buf = append(buf, '\t')
	buf = strconv.AppendUint(buf, uint64(g.Variant.Position), 10)
	buf = append(buf, '\t')
	buf = append(buf, name...)
	buf = append(buf, '\t')
	buf = append(buf, g.Reference...)
	buf = append(buf, '\t')
	buf = append(buf, g.Coded...)
	buf = append(buf, "\t.\tPASS\tAF="...)
	buf = append(buf, af...)
	buf = append(buf, "\tGT:DS"...)

	for i, c := range calls {
		buf = append(buf, '\t')
		if c.Missing() || math.IsNaN(dosages[i]) {
			buf = append(buf, "./.:."...)
			continue
		}
		buf = append(buf, gtStrings[int(c.A1)+int(c.A2)]...)
		buf = append(buf, ':')
		buf = strconv.AppendFloat(buf, dosages[i], 'g', -1, 64)
	}
	buf = append(buf, '\n')

	_, err := w.w.Write(buf)
	return pfx.Err(err)
}

func (w *Writer) Close() error {
	var err error
	if !w.headerWritten {
		// An extraction with zero matches still emits a valid, empty VCF.
		err = w.writeHeader()
		w.headerWritten = true
	}
	if ferr := w.w.Flush(); err == nil {
		err = ferr
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return pfx.Err(err)
}
