package bgen

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/genoparse/genoparse"
)

type Probability struct {
	NSamples            uint32
	NAlleles            uint16
	MinimumPloidy       uint8
	MaximumPloidy       uint8
	Phased              bool
	NProbabilityBits    uint8 // nbits. Must be 1-32 inclusive (there is no uint4 which would otherwise suffice)
	SampleProbabilities []*SampleProbability
}

// SampleProbability represents the variant data for one specfific individual at
// one specific locus, including information on whether this data is missing,
// what that individual's ploidy is, and then either (1) the probabilities for
// the phased haplotypes or (2) the probabilities for the genotypes. Phased
// probabilities are stored haplotype by haplotype, NAlleles values per
// haplotype. Unphased probabilities cover every genotype combination, in the
// colexicographic order defined by the BGEN spec.
type SampleProbability struct {
	Missing       bool
	Ploidy        uint8 // Limited to 0-63
	Probabilities []float64
}

// parseProbabilities interprets a decompressed genotype data block according
// to the file's layout flag.
func parseProbabilities(b *BGEN, data []byte, ordinal int) (*Probability, error) {
	switch b.FlagLayout {
	case Layout1:
		return parseProbabilitiesLayout1(b, data, ordinal)
	case Layout2:
		return parseProbabilitiesLayout2(b, data, ordinal)
	}

	return nil, &genoparse.FormatError{
		Path:   b.FilePath,
		Record: ordinal,
		Msg:    fmt.Sprintf("unsupported layout flag %d", b.FlagLayout),
	}
}

// parseProbabilitiesLayout1 handles the fixed 6-bytes-per-sample block:
// three uint16 values scaled by 32768, always unphased, always diploid,
// always biallelic. A sample whose three values are all zero is missing.
func parseProbabilitiesLayout1(b *BGEN, data []byte, ordinal int) (*Probability, error) {
	if len(data) != int(6*b.NSamples) {
		return nil, &genoparse.FormatError{
			Path:   b.FilePath,
			Record: ordinal,
			Msg:    fmt.Sprintf("probability block is %d bytes, expected %d for %d samples", len(data), 6*b.NSamples, b.NSamples),
		}
	}

	p := &Probability{
		NSamples:            b.NSamples,
		NAlleles:            2,
		MinimumPloidy:       2,
		MaximumPloidy:       2,
		Phased:              false,
		NProbabilityBits:    16,
		SampleProbabilities: make([]*SampleProbability, 0, b.NSamples),
	}

	const denom = 32768.0
	for i := 0; i < int(b.NSamples); i++ {
		aa := binary.LittleEndian.Uint16(data[6*i:])
		ab := binary.LittleEndian.Uint16(data[6*i+2:])
		bb := binary.LittleEndian.Uint16(data[6*i+4:])

		sp := &SampleProbability{Ploidy: 2}
		if aa == 0 && ab == 0 && bb == 0 {
			sp.Missing = true
		} else {
			sp.Probabilities = []float64{
				float64(aa) / denom,
				float64(ab) / denom,
				float64(bb) / denom,
			}
		}
		p.SampleProbabilities = append(p.SampleProbabilities, sp)
	}

	return p, nil
}

// parseProbabilitiesLayout2 handles the bit-packed block: a per-sample
// ploidy/missingness byte list followed by B-bit probability values, with
// the final probability of each sample (or haplotype) implied by the rest.
func parseProbabilitiesLayout2(b *BGEN, data []byte, ordinal int) (*Probability, error) {
	malformed := func(msg string) error {
		return &genoparse.FormatError{Path: b.FilePath, Record: ordinal, Msg: msg}
	}

	if len(data) < 10 {
		return nil, malformed(fmt.Sprintf("probability block is %d bytes, too short for its preamble", len(data)))
	}

	nSamples := binary.LittleEndian.Uint32(data[0:])
	if nSamples != b.NSamples {
		return nil, malformed(fmt.Sprintf("probability block covers %d samples, header says %d", nSamples, b.NSamples))
	}
	nAlleles := binary.LittleEndian.Uint16(data[4:])
	if nAlleles < 1 {
		return nil, malformed("probability block reports zero alleles")
	}

	p := &Probability{
		NSamples:            nSamples,
		NAlleles:            nAlleles,
		MinimumPloidy:       data[6],
		MaximumPloidy:       data[7],
		SampleProbabilities: make([]*SampleProbability, 0, nSamples),
	}

	if len(data) < 10+int(nSamples) {
		return nil, malformed(fmt.Sprintf("probability block is %d bytes, too short for %d ploidy entries", len(data), nSamples))
	}
	ploidies := data[8 : 8+nSamples]

	switch data[8+nSamples] {
	case 0:
		p.Phased = false
	case 1:
		p.Phased = true
	default:
		return nil, malformed(fmt.Sprintf("phased flag is %d, must be 0 or 1", data[8+nSamples]))
	}

	p.NProbabilityBits = data[9+nSamples]
	if p.NProbabilityBits < 1 || p.NProbabilityBits > 32 {
		return nil, malformed(fmt.Sprintf("probability bit depth is %d, must be 1-32", p.NProbabilityBits))
	}

	br := newBitReader(bytes.NewReader(data[10+nSamples:]))
	denom := float64(uint64(1)<<p.NProbabilityBits - 1)

	for i := uint32(0); i < nSamples; i++ {
		sp := &SampleProbability{
			Missing: ploidies[i]&0x80 != 0,
			Ploidy:  ploidies[i] & 0x3f,
		}

		// Count of values stored for this sample. The final probability
		// in each group is implied, so one fewer value is stored.
		var nStored, groupSize int
		if p.Phased {
			groupSize = int(nAlleles) - 1
			nStored = int(sp.Ploidy) * groupSize
		} else {
			groupSize = Choose(int(sp.Ploidy)+int(nAlleles)-1, int(nAlleles)-1) - 1
			nStored = groupSize
		}

		var probs []float64
		if groupSize > 0 {
			probs = make([]float64, 0, nStored+nStored/groupSize)
			groupSum := 0.0
			for j := 0; j < nStored; j++ {
				v, err := br.ReadUint(int(p.NProbabilityBits))
				if err != nil {
					return nil, malformed(fmt.Sprintf("probability block truncated at sample %d", i))
				}

				probs = append(probs, float64(v)/denom)
				groupSum += float64(v) / denom

				// Close out each group with the implied final value.
				if (j+1)%groupSize == 0 {
					probs = append(probs, 1-groupSum)
					groupSum = 0
				}
			}
		}

		if !sp.Missing {
			sp.Probabilities = probs
		}
		p.SampleProbabilities = append(p.SampleProbabilities, sp)
	}

	return p, nil
}
