package plink

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/carbocation/pfx"

	"github.com/genoparse/genoparse"
)

// readFAM parses the pedigree file and returns the sample set in file
// order. Individual IDs are used as identifiers; when they are not unique,
// "fid_iid" compound identifiers are used instead.
func readFAM(path string) (*genoparse.SampleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	var fids, iids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		cols := strings.Fields(line)
		if len(cols) < 2 {
			return nil, &genoparse.FormatError{
				Path:   path,
				Record: len(iids) + 1,
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
