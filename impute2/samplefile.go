package impute2

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/carbocation/pfx"

	"github.com/genoparse/genoparse"
)

// readSampleFile parses an Oxford-format sample file: two header lines
// (column names and type codes) followed by one sample per line starting
// with family and individual IDs. Individual IDs are used as identifiers,
// with a fid_iid fallback when they are not unique.
func readSampleFile(path string) (*genoparse.SampleSet, error) {
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

	samples, err := genoparse.NewSampleSet(genoparse.UniqueSampleIDs(fids, iids))
	if err != nil {
		return nil, pfx.Err(err)
	}
	return samples, nil
}
