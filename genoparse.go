// Package genoparse provides a format-agnostic access layer over genetic
// variant container formats. Each supported container (PLINK binary
// triplets, IMPUTE2 probability files, BGEN, VCF) is exposed through the
// same Source contract, and the Extractor can stream any Source into any
// Writer, re-encoding genotypes between representations along the way.
package genoparse

import (
	"fmt"
	"strings"
)

// ProbTolerance is the maximum deviation from 1.0 tolerated when summing a
// genotype probability triplet. Rows outside this tolerance are rejected as
// malformed rather than silently renormalized.
const ProbTolerance = 0.01

// Format selects a concrete container format. Dispatch on this value is
// explicit; no driver is ever chosen by sniffing object shape.
type Format int

const (
	FormatPlink Format = iota
	FormatImpute2
	FormatBGEN
	FormatVCF
)

var formatNames = map[Format]string{
	FormatPlink:   "plink",
	FormatImpute2: "impute2",
	FormatBGEN:    "bgen",
	FormatVCF:     "vcf",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Extension returns the file extension appended to an output path when the
// caller omits it. PLINK output is a file-group, so the extension applies to
// each member file and the returned value here is empty.
func (f Format) Extension() string {
	switch f {
	case FormatImpute2:
		return ".gen"
	case FormatVCF:
		return ".vcf"
	case FormatBGEN:
		return ".bgen"
	}
	return ""
}

// ParseFormat resolves a format selector as supplied on the command line.
func ParseFormat(s string) (Format, error) {
	for f, name := range formatNames {
		if name == strings.ToLower(s) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown format %q (valid: plink, impute2, bgen, vcf)", s)
}

// Orientation reports the strand convention a Source stores its alleles in.
type Orientation int

const (
	// OrientationAsStored means alleles are reported exactly as encoded in
	// the source file.
	OrientationAsStored Orientation = iota

	// OrientationComplemented means the source stores alleles on the
	// opposite strand and consumers must complement before re-encoding.
	OrientationComplemented
)

func (o Orientation) String() string {
	switch o {
	case OrientationAsStored:
		return "as-stored"
	case OrientationComplemented:
		return "complemented"
	default:
		return "Illegal selection"
	}
}
