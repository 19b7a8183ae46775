// Command genoextract pulls a subset of variants and/or samples out of one
// genotype container and re-encodes it into another format.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/genoparse/genoparse"
	"github.com/genoparse/genoparse/bgen"
	"github.com/genoparse/genoparse/impute2"
	"github.com/genoparse/genoparse/index"
	"github.com/genoparse/genoparse/plink"
	"github.com/genoparse/genoparse/vcf"
)

func main() {
	var (
		formatName = flag.String("format", "", "Input format: plink, impute2, bgen, or vcf")
		in         = flag.String("in", "", "Input file (for plink, the .bed/.bim/.fam prefix)")
		samplePath = flag.String("sample", "", "Companion sample file (impute2; bgen without embedded IDs)")
		bgiPath    = flag.String("bgi", "", "BGEN index file (default <in>.bgi)")
		threshold  = flag.Float64("threshold", 0, "Probability threshold for dosage masking (0 = driver default, negative = off)")
		legacy     = flag.Bool("legacy", false, "Expect indexes built for SQLite builds prior to 3.8.2")

		extractPath = flag.String("extract", "", "File listing marker names to extract, one per line")
		lociPath    = flag.String("loci", "", "File listing loci to extract: chrom pos [ref coded] per line")
		keepPath    = flag.String("keep", "", "File listing sample IDs to keep, one per line")

		out           = flag.String("out", "", "Output path, or - for stdout (for plink, the output prefix)")
		outFormatName = flag.String("output-format", "", "Output format: plink, impute2, or vcf")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *formatName == "" || *in == "" || *out == "" || *outFormatName == "" {
		flag.PrintDefaults()
		logger.Error("-format, -in, -out, and -output-format are required")
		os.Exit(1)
	}

	if err := run(logger, *formatName, expandHome(*in), expandHome(*samplePath), expandHome(*bgiPath),
		*threshold, *legacy, *extractPath, *lociPath, *keepPath, *out, *outFormatName); err != nil {
		logger.Error("extraction failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, formatName, in, samplePath, bgiPath string, threshold float64,
	legacy bool, extractPath, lociPath, keepPath, out, outFormatName string) error {

	format, err := genoparse.ParseFormat(formatName)
	if err != nil {
		return err
	}
	outFormat, err := genoparse.ParseFormat(outFormatName)
	if err != nil {
		return err
	}
	if outFormat == genoparse.FormatBGEN {
		return fmt.Errorf("bgen output is not supported; write impute2 and convert with an external tool")
	}

	mode := index.ModeDefault
	if legacy {
		mode = index.ModeLegacy
	}

	src, err := openSource(format, in, samplePath, bgiPath, threshold, mode)
	if err != nil {
		return err
	}
	defer src.Close()

	ex := &genoparse.Extractor{Source: src}
	if extractPath != "" {
		if ex.Names, err = readList(extractPath); err != nil {
			return err
		}
	}
	if lociPath != "" {
		if ex.Loci, err = readLoci(lociPath); err != nil {
			return err
		}
	}
	if keepPath != "" {
		if ex.Keep, err = readList(keepPath); err != nil {
			return err
		}
	}

	report, err := ex.Run(func(samples *genoparse.SampleSet) (genoparse.Writer, error) {
		return openWriter(outFormat, out, samples)
	})
	if err != nil {
		return err
	}

	for _, sel := range report.Unmatched {
		logger.Warn("selector matched no variants", "selector", sel)
	}
	logger.Info("extraction complete",
		"variants", report.VariantsWritten,
		"samples", report.SamplesKept,
		"unmatched", len(report.Unmatched))

	return nil
}

func openSource(format genoparse.Format, in, samplePath, bgiPath string, threshold float64, mode index.Mode) (genoparse.Source, error) {
	switch format {
	case genoparse.FormatPlink:
		return plink.Open(strings.TrimSuffix(in, ".bed"))
	case genoparse.FormatImpute2:
		if samplePath == "" {
			return nil, fmt.Errorf("impute2 input requires -sample")
		}
		return impute2.Open(in, samplePath, &impute2.Options{ProbThreshold: threshold, IndexMode: mode})
	case genoparse.FormatBGEN:
		return bgen.Open(in, bgen.Options{SamplePath: samplePath, BGIPath: bgiPath, ProbThreshold: threshold})
	case genoparse.FormatVCF:
		return vcf.Open(in, &vcf.Options{IndexMode: mode})
	}
	return nil, fmt.Errorf("unknown format %s", format)
}

func openWriter(format genoparse.Format, out string, samples *genoparse.SampleSet) (genoparse.Writer, error) {
	if out == "-" {
		switch format {
		case genoparse.FormatImpute2:
			return impute2.NewWriter(os.Stdout, samples), nil
		case genoparse.FormatVCF:
			return vcf.NewWriter(os.Stdout, samples), nil
		}
		return nil, fmt.Errorf("%s output cannot be written to stdout", format)
	}

	switch format {
	case genoparse.FormatPlink:
		return plink.NewWriter(out, samples)
	case genoparse.FormatImpute2:
		return impute2.Create(withExtension(out, format), samples)
	case genoparse.FormatVCF:
		return vcf.Create(withExtension(out, format), samples)
	}
	return nil, fmt.Errorf("unknown format %s", format)
}

func withExtension(out string, format genoparse.Format) string {
	if filepath.Ext(out) == "" {
		return out + format.Extension()
	}
	return out
}

// readList reads one token per line, ignoring blank lines.
func readList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if tok := strings.TrimSpace(scanner.Text()); tok != "" {
			out = append(out, tok)
		}
	}
	return out, scanner.Err()
}

// readLoci parses one locus per line: chromosome and position, optionally
// followed by the reference and coded alleles.
func readLoci(path string) ([]*genoparse.Variant, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []*genoparse.Variant
	lineNo := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 && len(fields) != 4 {
			return nil, fmt.Errorf("%s:%d: expected 'chrom pos' or 'chrom pos ref coded', got %d fields", path, lineNo, len(fields))
		}
		pos, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad position %q: %w", path, lineNo, fields[1], err)
		}

		var alleles []genoparse.Allele
		if len(fields) == 4 {
			alleles = []genoparse.Allele{genoparse.Allele(fields[2]), genoparse.Allele(fields[3])}
		}
		out = append(out, genoparse.NewVariant("", fields[0], uint32(pos), alleles))
	}
	return out, scanner.Err()
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		usr, err := user.Current()
		if err != nil {
			return path
		}
		return filepath.Join(usr.HomeDir, path[2:])
	}
	return path
}
