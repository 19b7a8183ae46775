package plink

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"

	"github.com/genoparse/genoparse"
)

// Map columns in the BIM file to their positions
const (
	bimChromosome int = iota
	bimVariantID
	bimMorgans
	bimCoordinate
	bimAllele1
	bimAllele2
)

type bimRow struct {
	Chromosome string
	VariantID  string
	Coordinate uint32
	Allele1    genoparse.Allele // usually the minor allele; coded
	Allele2    genoparse.Allele // usually the major allele; reference
	// Morgans is excluded intentionally

	multiallelic bool
}

// readBIM parses the whole marker file. The in-memory rows double as the
// random-access index for the BED file, so PLINK sources never need an
// external index.
func readBIM(path string) ([]bimRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	var rows []bimRow
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		ordinal := len(rows) + 1

		cols := strings.Fields(line)
		if len(cols) < bimAllele2+1 {
			return nil, &genoparse.FormatError{
				Path:   path,
				Record: ordinal,
				Msg:    fmt.Sprintf("expected %d fields, got %d", bimAllele2+1, len(cols)),
			}
		}

		coord64, err := strconv.ParseUint(cols[bimCoordinate], 10, 32)
		if err != nil {
			return nil, &genoparse.FormatError{
				Path:   path,
				Record: ordinal,
				Msg:    fmt.Sprintf("non-numeric position %q", cols[bimCoordinate]),
			}
		}

		rows = append(rows, bimRow{
			Chromosome: genoparse.NormalizeChromosome(cols[bimChromosome]),
			VariantID:  cols[bimVariantID],
			Coordinate: uint32(coord64),
			Allele1:    genoparse.Allele(strings.ToUpper(cols[bimAllele1])),
			Allele2:    genoparse.Allele(strings.ToUpper(cols[bimAllele2])),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	markMultiallelic(rows)
	renameDuplicates(rows)

	return rows, nil
}

func markMultiallelic(rows []bimRow) {
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[locusKey(r.Chromosome, r.Coordinate)]++
	}
	for i := range rows {
		rows[i].multiallelic = counts[locusKey(rows[i].Chromosome, rows[i].Coordinate)] > 1
	}
}

// renameDuplicates appends ":dupN" to markers sharing a name, in file
// order, so every marker name is unique within the source.
func renameDuplicates(rows []bimRow) {
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.VariantID]++
	}

	seen := make(map[string]int)
	for i := range rows {
		name := rows[i].VariantID
		if counts[name] > 1 {
			seen[name]++
			rows[i].VariantID = fmt.Sprintf("%s:dup%d", name, seen[name])
		}
	}
}

func locusKey(chrom string, pos uint32) string {
	return fmt.Sprintf("%s:%d", chrom, pos)
}
