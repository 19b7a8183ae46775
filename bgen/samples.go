package bgen

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/carbocation/pfx"

	"github.com/genoparse/genoparse"
)

// readEmbeddedSamples parses the sample identifier block that follows the
// header when the file carries sample IDs.
func readEmbeddedSamples(b *BGEN) ([]string, error) {
	if b.FlagHasSampleIDs == 0 {
		return nil, pfx.Err(fmt.Errorf("%s: file indicates that it does not have sample IDs", b.FilePath))
	}

	samples := make([]string, 0, b.NSamples)

	bufferLength := make([]byte, 2)
	bufferID := make([]byte, 2)
	// SamplesStart is at sample_block_length, and SamplesStart+4 is at
	// number_samples.
	offset := int64(b.SamplesStart + 8)

	nSamples := int(b.NSamples)
	var sampleTextSize uint16
	for i := 0; i < nSamples; i++ {
		if err := b.parseAtOffsetWithBuffer(offset, bufferLength); err != nil {
			return nil, pfx.Err(err)
		}
		offset += 2

		sampleTextSize = binary.LittleEndian.Uint16(bufferLength)

		// resize the sample buffer to the size dictated by the result of bufferLength
		if int(sampleTextSize) > cap(bufferID) {
			bufferID = make([]byte, sampleTextSize)
		}
		bufferID = bufferID[:sampleTextSize]
		if err := b.parseAtOffsetWithBuffer(offset, bufferID); err != nil {
			return nil, pfx.Err(err)
		}

		// Copy the buffer into a string so that the buffer can be reused
		samples = append(samples, string(bufferID))
		offset += int64(sampleTextSize)
	}

	return samples, nil
}

// readOxfordSamples parses an external Oxford-format sample file (two
// header lines, then fid and iid columns), for files without embedded
// sample IDs.
func readOxfordSamples(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	var fids, iids []string
	lineNo := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo <= 2 || strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Fields(line)
		if len(cols) < 2 {
			return nil, &genoparse.FormatError{
				Path:   path,
				Record: lineNo - 2,
				Msg:    fmt.Sprintf("expected at least 2 fields, got %d", len(cols)),
			}
		}
		fids = append(fids, cols[0])
		iids = append(iids, cols[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	return genoparse.UniqueSampleIDs(fids, iids), nil
}
