package genoparse

import "fmt"

// SampleSet is an ordered set of unique sample identifiers. It establishes
// the positional alignment for every Genotypes row drawn from the same
// Source; two Sources over different sample sets must be re-aligned by
// identifier, never compared by position.
type SampleSet struct {
	ids []string
	pos map[string]int
}

// NewSampleSet builds a SampleSet, rejecting duplicate identifiers.
func NewSampleSet(ids []string) (*SampleSet, error) {
	s := &SampleSet{
		ids: make([]string, len(ids)),
		pos: make(map[string]int, len(ids)),
	}
	copy(s.ids, ids)
	for i, id := range ids {
		if _, seen := s.pos[id]; seen {
			return nil, fmt.Errorf("duplicate sample identifier %q", id)
		}
		s.pos[id] = i
	}
	return s, nil
}

// Len returns the number of samples.
func (s *SampleSet) Len() int {
	return len(s.ids)
}

// IDs returns the identifiers in positional order. The slice is shared;
// callers must not modify it.
func (s *SampleSet) IDs() []string {
	return s.ids
}

// Position returns the positional index of a sample identifier.
func (s *SampleSet) Position(id string) (int, bool) {
	i, ok := s.pos[id]
	return i, ok
}

// Permutation maps a keep-list onto this sample set: the returned slice has
// one source index per keep-list entry, in keep-list order. A keep-list
// identifier absent from the set fails with UnknownSampleError.
func (s *SampleSet) Permutation(keep []string) ([]int, error) {
	perm := make([]int, len(keep))
	for i, id := range keep {
		j, ok := s.pos[id]
		if !ok {
			return nil, &UnknownSampleError{ID: id}
		}
		perm[i] = j
	}
	return perm, nil
}

// UniqueSampleIDs returns the individual IDs when they are unique, and
// otherwise falls back to "fid_iid" compound identifiers, matching the
// convention of PLINK FAM and IMPUTE2 sample files.
func UniqueSampleIDs(fids, iids []string) []string {
	seen := make(map[string]bool, len(iids))
	unique := true
	for _, id := range iids {
		if seen[id] {
			unique = false
			break
		}
		seen[id] = true
	}
	if unique {
		return iids
	}

	out := make([]string, len(iids))
	for i := range iids {
		out[i] = fids[i] + "_" + iids[i]
	}
	return out
}
